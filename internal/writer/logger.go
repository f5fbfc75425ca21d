package writer

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// multiHandler wraps multiple handlers to write to multiple destinations
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// SetupLogger creates a logger that writes text to stderr and JSON to the
// session log file. The caller closes the returned file.
func SetupLogger(sessionMgr *SessionManager, logLevel slog.Level) (*slog.Logger, *os.File, error) {
	logFile, err := os.OpenFile(sessionMgr.GetLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return NewTeeLogger(os.Stderr, logFile, logLevel), logFile, nil
}

// NewTeeLogger writes text records to console and JSON records to file.
// The console only receives warnings and above unless logLevel is Debug,
// so that it does not interleave with interactive output.
func NewTeeLogger(console, file io.Writer, logLevel slog.Level) *slog.Logger {
	textHandler := slog.NewTextHandler(console, &slog.HandlerOptions{
		Level: consoleLevel(logLevel),
	})
	jsonHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(&multiHandler{
		handlers: []slog.Handler{textHandler, jsonHandler},
	})
}

// ConsoleLogger is used when session files are disabled
func ConsoleLogger(logLevel slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: consoleLevel(logLevel),
	}))
}

func consoleLevel(logLevel slog.Level) slog.Level {
	if logLevel <= slog.LevelDebug {
		return logLevel
	}
	return max(logLevel, slog.LevelWarn)
}
