package logger

import (
	"log/slog"
	"os"
	"strings"
)

var levelVar = new(slog.LevelVar)

// L is assigned once at init and never replaced, so it is safe to read from
// any goroutine. Only the level changes at runtime, through levelVar.
var L = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))

// SetLevel configures the global log level (debug, info, warn, error).
func SetLevel(lvl string) {
	switch strings.ToLower(lvl) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// ForRun returns a logger tagged with the run id and pipeline name.
func ForRun(runID, pipeline string) *slog.Logger {
	return L.With("run_id", runID, "pipeline", pipeline)
}
