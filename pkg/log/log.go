package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// service tags every log line emitted by this binary, so multiplexed
// output (CLI + background tasks + HTTP server) can be told apart from
// anything else writing to the same stream.
const service = "llm-memory"

// Logger is the global logger instance, configured once by Init.
var Logger zerolog.Logger

// Level is a configuration-level name, independent of zerolog's own
// Level type so callers (flag parsing, config files) don't need to
// import zerolog.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config controls Init.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init sets the global zerolog level and builds Logger, tagging every
// line with the service name. JSON output suits log aggregation when
// running `serve`; console output suits interactive CLI use, which is
// why cmd/llm-memory defaults --log-json to false.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(cfg.Level.zerolog())

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var base zerolog.Logger
	if cfg.JSONOutput {
		base = zerolog.New(output)
	} else {
		base = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339})
	}
	Logger = base.With().Timestamp().Str("service", service).Logger()
}

// WithScope returns a child logger tagged with the memory scope
// (global/local/committed) an operation or background task is acting
// on — the one context field nearly every log line in this engine
// carries, since almost all state is partitioned by scope.
func WithScope(scope string) zerolog.Logger {
	return Logger.With().Str("scope", scope).Logger()
}

// WithOp returns a child logger tagged with both scope and the
// operation name (e.g. "upsert", "compact", "sync-merge"), for the
// audit-style lines ops.go and maintenance.go emit around mutations.
func WithOp(scope, op string) zerolog.Logger {
	return Logger.With().Str("scope", scope).Str("op", op).Logger()
}
