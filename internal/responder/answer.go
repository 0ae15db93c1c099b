package responder

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Bounds on the number of follow-up search queries.
const (
	MinSearchQueries = 1
	MaxSearchQueries = 3
)

// ErrSchemaViolation is the sentinel behind every ValidationError.
var ErrSchemaViolation = errors.New("responder: structured output does not match the answer schema")

// ValidationError describes why a structured response was rejected.
type ValidationError struct {
	Reason string
	Raw    string
}

func (e *ValidationError) Error() string {
	return "responder: invalid structured answer: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrSchemaViolation }

// Reflection is the model's critique of its own answer.
type Reflection struct {
	Missing     string `json:"missing"`
	Superfluous string `json:"superfluous"`
}

// StructuredAnswer is an answer with self-critique and follow-up search queries.
type StructuredAnswer struct {
	Answer        string     `json:"answer"`
	Reflection    Reflection `json:"reflection"`
	SearchQueries []string   `json:"search_queries"`
}

// Validate checks the invariants the schema alone cannot express.
func (a StructuredAnswer) Validate() error {
	if n := len(a.SearchQueries); n < MinSearchQueries || n > MaxSearchQueries {
		return &ValidationError{Reason: fmt.Sprintf("search_queries must hold %d-%d entries, got %d", MinSearchQueries, MaxSearchQueries, n)}
	}
	return nil
}

// Schema describes StructuredAnswer for function calling. answerWords is the
// length target mentioned to the model; it is not enforced.
func Schema(answerWords int) jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"answer": {
				Type:        jsonschema.String,
				Description: fmt.Sprintf("~%d word detailed answer to the question.", answerWords),
			},
			"reflection": {
				Type:        jsonschema.Object,
				Description: "Your reflection on the initial answer.",
				Properties: map[string]jsonschema.Definition{
					"missing":     {Type: jsonschema.String, Description: "Critique of what is missing."},
					"superfluous": {Type: jsonschema.String, Description: "Critique of what is superfluous."},
				},
				Required:             []string{"missing", "superfluous"},
				AdditionalProperties: false,
			},
			"search_queries": {
				Type:        jsonschema.Array,
				Description: "1-3 search queries for researching improvements to address the critique of your current answer.",
				Items:       &jsonschema.Definition{Type: jsonschema.String},
			},
		},
		Required:             []string{"answer", "reflection", "search_queries"},
		AdditionalProperties: false,
	}
}

// Parse validates raw tool-call arguments and returns the answer. Anything
// short of an exact match is rejected whole: no field is defaulted, no query
// list is truncated or padded. Keys must match exactly; a case variant such
// as "Answer" is an unknown field, never an alias.
func Parse(raw string) (StructuredAnswer, error) {
	reject := func(reason string) (StructuredAnswer, error) {
		return StructuredAnswer{}, &ValidationError{Reason: reason, Raw: raw}
	}

	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return reject("malformed JSON: " + err.Error())
	}
	if !jsonschema.Validate(Schema(0), generic) {
		return reject("does not conform to schema")
	}

	// The answer is built from the validated tree itself. A second, typed
	// decode would match keys case-insensitively and could overwrite values.
	obj, ok := generic.(map[string]any)
	if !ok {
		return reject("not a JSON object")
	}
	if key, found := unknownKey(obj, "answer", "reflection", "search_queries"); found {
		return reject(fmt.Sprintf("unknown field %q", key))
	}
	answer, ok := obj["answer"].(string)
	if !ok {
		return reject("missing answer")
	}
	refl, ok := obj["reflection"].(map[string]any)
	if !ok {
		return reject("missing reflection")
	}
	if key, found := unknownKey(refl, "missing", "superfluous"); found {
		return reject(fmt.Sprintf("unknown field %q", "reflection."+key))
	}
	missing, ok := refl["missing"].(string)
	if !ok {
		return reject("missing reflection.missing")
	}
	superfluous, ok := refl["superfluous"].(string)
	if !ok {
		return reject("missing reflection.superfluous")
	}
	items, ok := obj["search_queries"].([]any)
	if !ok {
		return reject("missing search_queries")
	}
	queries := make([]string, 0, len(items))
	for i, item := range items {
		q, ok := item.(string)
		if !ok {
			return reject(fmt.Sprintf("search_queries[%d] is not a string", i))
		}
		queries = append(queries, q)
	}

	a := StructuredAnswer{
		Answer:        answer,
		Reflection:    Reflection{Missing: missing, Superfluous: superfluous},
		SearchQueries: queries,
	}
	if err := a.Validate(); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Raw = raw
		}
		return StructuredAnswer{}, err
	}
	return a, nil
}

// unknownKey reports the first key of obj, in sorted order, outside allowed.
func unknownKey(obj map[string]any, allowed ...string) (string, bool) {
	for _, key := range slices.Sorted(maps.Keys(obj)) {
		if !slices.Contains(allowed, key) {
			return key, true
		}
	}
	return "", false
}
