package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global base logger; WithProvider/WithComponent/
// WithOperation derive scoped children from it.
var Logger zerolog.Logger

// Level is a logging verbosity, set once at startup via Init.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

var zerologLevels = map[Level]zerolog.Level{
	DebugLevel: zerolog.DebugLevel,
	InfoLevel:  zerolog.InfoLevel,
	WarnLevel:  zerolog.WarnLevel,
	ErrorLevel: zerolog.ErrorLevel,
}

// Config is the Init input: verbosity, wire format, and destination.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init sets the global log level and builds Logger. JSONOutput picks a
// structured writer suited to log aggregation; its absence falls back
// to a human-readable console writer for local runs.
func Init(cfg Config) {
	level, ok := zerologLevels[cfg.Level]
	if !ok {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if !cfg.JSONOutput {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}
	Logger = zerolog.New(output).With().Timestamp().Logger()
}

func withField(key, value string) zerolog.Logger {
	return Logger.With().Str(key, value).Logger()
}

// WithComponent scopes Logger to one internal package (store, lock, httpapi, ...).
func WithComponent(component string) zerolog.Logger { return withField("component", component) }

// WithProvider scopes Logger to one provider (eppo, eu).
func WithProvider(provider string) zerolog.Logger { return withField("provider", provider) }

// WithOperation scopes Logger to one lifecycle operation (fetch, build, lock, ...).
func WithOperation(operation string) zerolog.Logger { return withField("operation", operation) }
