// Package testutil holds helpers shared by package tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// NopLogger returns a logger that discards all output.
// Use this in tests to avoid log noise.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// LogRecorder collects JSON log lines written at debug level and above
type LogRecorder struct {
	t   testing.TB
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLogRecorder returns a debug-level logger and the recorder behind it
func NewLogRecorder(t testing.TB) (*slog.Logger, *LogRecorder) {
	r := &LogRecorder{t: t}
	logger := slog.New(slog.NewJSONHandler(r, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, r
}

func (r *LogRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

// Entries decodes every recorded line whose message equals msg
func (r *LogRecorder) Entries(msg string) []map[string]any {
	r.t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(r.buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			r.t.Fatalf("decode log line %q: %v", line, err)
		}
		if entry[slog.MessageKey] == msg {
			out = append(out, entry)
		}
	}
	return out
}
