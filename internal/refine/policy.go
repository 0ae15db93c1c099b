package refine

// State of the refinement FSM.
type State string

const (
	StateGenerate State = "GENERATE"
	StateReflect  State = "REFLECT"
	StateDone     State = "DONE" // Terminal: last draft is the result
)

// Trigger of the refinement FSM.
type Trigger string

const (
	TriggerDrafted   Trigger = "Drafted"
	TriggerCritiqued Trigger = "Critiqued"
)

// Policy is the stopping rule, consulted after every draft is appended.
type Policy interface {
	Done(historyLen int) bool
}

// MaxMessages stops once the history holds more than this many messages.
type MaxMessages int

// DefaultMaxMessages matches a three critique round run from a single request.
const DefaultMaxMessages MaxMessages = 6

func (m MaxMessages) Done(historyLen int) bool { return historyLen > int(m) }

// StepsFor returns a transition cap that leaves a single-request run under
// MaxMessages(threshold) room to reach DONE, which takes at most threshold+1 steps.
func StepsFor(threshold int) int { return 2 * (threshold + 1) }

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc func(historyLen int) bool

func (f PolicyFunc) Done(historyLen int) bool { return f(historyLen) }

// Next is the transition function: it depends only on the current state,
// the history length and the policy.
func Next(state State, historyLen int, p Policy) State {
	switch state {
	case StateGenerate:
		if p.Done(historyLen) {
			return StateDone
		}
		return StateReflect
	case StateReflect:
		return StateGenerate
	default:
		return StateDone
	}
}
