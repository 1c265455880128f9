package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pterm/pterm"
)

// Enumeration of the console log levels accepted on the command line
const (
	LevelSilent  = "silent"  // no output at all
	LevelError   = "error"   // only fatal diagnostics
	LevelWarn    = "warn"    // warnings and errors
	LevelVerbose = "verbose" // progress lines, warnings and errors (DEFAULT)
	LevelDebug   = "debug"   // everything including per-declaration detail
)

// Logger wraps slog.Logger with bindgen-specific helpers so every stage of
// the pipeline reports progress and problems with the same field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.  If handler is nil the
// console handler is used at the verbose level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = NewConsoleHandler(os.Stdout, LevelVerbose)
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewConsoleHandler renders records through pterm's colorful logger.
func NewConsoleHandler(w io.Writer, level string) slog.Handler {
	pl := pterm.DefaultLogger.WithLevel(pterm.LogLevelInfo).WithWriter(w)
	switch level {
	case LevelSilent:
		pl = pl.WithLevel(pterm.LogLevelDisabled)
	case LevelError:
		pl = pl.WithLevel(pterm.LogLevelError)
	case LevelWarn:
		pl = pl.WithLevel(pterm.LogLevelWarn)
	case LevelDebug:
		pl = pl.WithLevel(pterm.LogLevelDebug)
	}
	return pterm.NewSlogHandler(pl)
}

// NewTextLogger creates a Logger that writes plain slog text records to w.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})),
	}
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewTextLogger(io.Discard, slog.Level(1000))
}

// WithModule tags every record with the module being processed.
func (l *Logger) WithModule(module string) *Logger {
	return &Logger{Logger: l.Logger.With("module", module)}
}

// LogModule announces the start of a header-processing task.
func (l *Logger) LogModule(ctx context.Context, header, module, library string) {
	l.InfoContext(ctx, "processing header",
		"header", header,
		"module", module,
		"library", library,
	)
}

// LogAutoDetected reports a function flagged as returning a struct by value.
func (l *Logger) LogAutoDetected(ctx context.Context, function, structType string) {
	l.DebugContext(ctx, "auto-detected struct return",
		"function", function,
		"returns", structType,
	)
}

// LogDetectSummary reports the finished struct-return registry: its size at
// info level and the function names, in detection order, at debug level.
func (l *Logger) LogDetectSummary(ctx context.Context, functions []string) {
	l.InfoContext(ctx, "auto-detected functions returning structs by value",
		"count", len(functions),
	)
	if len(functions) > 0 {
		l.DebugContext(ctx, "struct-return registry",
			"functions", strings.Join(functions, ","),
		)
	}
}

// LogUnhandledType reports a type the classifier could not place.
func (l *Logger) LogUnhandledType(ctx context.Context, owner, name, rawType string) {
	l.WarnContext(ctx, "unhandled type",
		"owner", owner,
		"name", name,
		"type", rawType,
	)
}

// LogSkippedDecl reports a declaration dropped for a recoverable reason.
func (l *Logger) LogSkippedDecl(ctx context.Context, name, reason string) {
	l.WarnContext(ctx, "ignoring declaration",
		"name", name,
		"reason", reason,
	)
}

// LogArtifact reports a written output file.
func (l *Logger) LogArtifact(ctx context.Context, path string) {
	l.InfoContext(ctx, "generated", "path", path)
}
