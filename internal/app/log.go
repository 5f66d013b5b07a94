package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LogFileName is the name of the log file inside the log directory.
const LogFileName = "ustar.log"

// ustarHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<opID>\t<message>\t<key=value ...>
//
// Records may arrive from several collector goroutines, so each line is
// built in full and written under mu.
type ustarHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	opID  string
	attrs []slog.Attr
}

func newUstarHandler(w io.Writer, opID string) *ustarHandler {
	return &ustarHandler{mu: &sync.Mutex{}, w: w, opID: opID}
}

func (h *ustarHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *ustarHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	fmt.Fprintf(&b, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.opID, r.Message)

	// Pre-set attrs first, then per-record attrs.
	for _, a := range h.attrs {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *ustarHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ustarHandler{
		mu:    h.mu,
		w:     h.w,
		opID:  h.opID,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *ustarHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger that writes to both logDir/ustar.log and stderr.
// It returns the slog.Logger, the open log file (for cleanup), and any error.
func newLogger(logDir string, opID string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, LogFileName)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	w := io.MultiWriter(f, os.Stderr)
	return slog.New(newUstarHandler(w, opID)), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the ustar.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
