package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/comigor/reflexion-go/internal/logger"
	"github.com/comigor/reflexion-go/internal/refine"
	"github.com/comigor/reflexion-go/internal/responder"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Refiner runs the tweet refinement loop.
type Refiner interface {
	Run(ctx context.Context, request string) (refine.Result, error)
}

// Answerer runs the structured responder.
type Answerer interface {
	Respond(ctx context.Context, question string) (responder.StructuredAnswer, error)
}

type request struct {
	Request string `json:"request"`
}

type errorBody struct {
	Error string `json:"error"`
	Step  string `json:"step,omitempty"`
}

// NewHandler returns the HTTP surface of both pipelines.
func NewHandler(refiner Refiner, answerer Answerer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /tweet", func(w http.ResponseWriter, r *http.Request) {
		text, ok := decodeRequest(w, r)
		if !ok {
			return
		}
		logger.L.Info("tweet request", "request", text)

		res, err := refiner.Run(r.Context(), text)
		if err != nil {
			logger.L.Error("tweet run failed", "err", err, "run_id", res.RunID)
			body := errorBody{Error: err.Error()}
			var stepErr *refine.StepError
			if errors.As(err, &stepErr) {
				body.Step = stepErr.Step
			}
			writeJSON(w, http.StatusBadGateway, body)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("POST /answer", func(w http.ResponseWriter, r *http.Request) {
		text, ok := decodeRequest(w, r)
		if !ok {
			return
		}
		logger.L.Info("answer request", "request", text)

		answer, err := answerer.Respond(r.Context(), text)
		switch {
		case errors.Is(err, responder.ErrSchemaViolation):
			logger.L.Warn("answer rejected", "err", err)
			writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Step: "validate"})
		case err != nil:
			logger.L.Error("answer failed", "err", err)
			body := errorBody{Error: err.Error()}
			var stepErr *responder.StepError
			if errors.As(err, &stepErr) {
				body.Step = stepErr.Step
			}
			writeJSON(w, http.StatusBadGateway, body)
		default:
			writeJSON(w, http.StatusOK, answer)
		}
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		logger.L.Error("read body error", "err", err)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return "", false
	}
	if strings.TrimSpace(req.Request) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "request must not be empty"})
		return "", false
	}
	return req.Request, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("write response error", "err", err)
	}
}
