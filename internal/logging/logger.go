// Package logging provides leveled logging and a decision trace for
// spikerecon runs.
//
// Operational messages go to a slog.Logger on stderr. Reconstruction
// decisions (triggers, epoch flushes, discards, discovered channels) go to a
// JSONL file, decisions.jsonl, under the state directory when the level is
// debug or trace.
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DecisionFile is the name of the JSONL decision trace.
const DecisionFile = "decisions.jsonl"

// LevelTrace sits below Debug. At this level every held row is traced.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps "info", "debug", "trace" (any case) to a slog.Level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s names a supported level.
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info", "debug", "trace":
		return true
	}
	return false
}

func levelLabels(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

// NewLogger creates a leveled text logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level), ReplaceAttr: levelLabels}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewJSONLogger is NewLogger with one JSON object per line, used when the
// CLI runs with --json so stderr stays machine readable.
func NewJSONLogger(level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level), ReplaceAttr: levelLabels}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// DecisionLogger appends decision events to a JSONL stream. It is safe for
// concurrent use, and a nil *DecisionLogger ignores every call.
type DecisionLogger struct {
	mu  sync.Mutex
	w   io.Writer
	c   io.Closer
	run string
}

// NewDecisionLogger opens dir/decisions.jsonl for append. At info level it
// returns nil and creates nothing. It also returns nil when the file cannot
// be opened; tracing never fails a run.
func NewDecisionLogger(dir string, level string) *DecisionLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, DecisionFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &DecisionLogger{w: f, c: f}
}

// NewDecisionWriter traces to w. Close does not close w.
func NewDecisionWriter(w io.Writer) *DecisionLogger {
	return &DecisionLogger{w: w}
}

// SetRun tags every following event with the given run id.
func (dl *DecisionLogger) SetRun(id string) {
	if dl == nil {
		return
	}
	dl.mu.Lock()
	dl.run = id
	dl.mu.Unlock()
}

// Log writes event as one JSONL line with "time" (and "run", when set)
// added. The caller's map is left untouched.
func (dl *DecisionLogger) Log(event map[string]any) {
	if dl == nil {
		return
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.w == nil {
		return
	}

	entry := make(map[string]any, len(event)+2)
	for k, v := range event {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	if dl.run != "" {
		entry["run"] = dl.run
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = dl.w.Write(append(data, '\n'))
}

// Close stops tracing and closes the file opened by NewDecisionLogger.
func (dl *DecisionLogger) Close() {
	if dl == nil {
		return
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.c != nil {
		dl.c.Close()
	}
	dl.w, dl.c = nil, nil
}
