// Package errlog appends navigation failures to a plain-text log file.
package errlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultPath is the log location used when none is configured.
const DefaultPath = "errors/errorlog.txt"

// timestampLayout renders as [DD:MM:YY | HH:MM:SS].
const timestampLayout = "[02:01:06 | 15:04:05]"

// Recorder accepts failure reports. Implementations must never fail the caller.
type Recorder interface {
	Record(where string, err error)
}

// Reporter writes one line per failure to a file, creating its directory
// on first use. It is safe for concurrent use.
type Reporter struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// New returns a Reporter writing to path (DefaultPath if empty).
func New(path string) *Reporter {
	if path == "" {
		path = DefaultPath
	}
	return &Reporter{path: path, now: time.Now}
}

// Path returns the log file location.
func (r *Reporter) Path() string { return r.path }

// Record appends "[DD:MM:YY | HH:MM:SS] Error <context>: <err>".
// Write failures are logged and otherwise ignored.
func (r *Reporter) Record(where string, err error) {
	line := Format(r.now(), where, err)

	r.mu.Lock()
	defer r.mu.Unlock()

	if writeErr := appendLine(r.path, line); writeErr != nil {
		slog.Warn("errlog: failed to write error record",
			"path", r.path,
			"error", writeErr,
		)
	}
}

// Format renders a single record, newline included.
func Format(ts time.Time, where string, err error) string {
	msg := "<nil>"
	if err != nil {
		msg = err.Error()
	}
	return fmt.Sprintf("%s Error %s: %s\n", ts.Format(timestampLayout), where, msg)
}

func appendLine(path, line string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("write log: %w", err)
	}
	return f.Close()
}

// Discard is a Recorder that drops every record.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(string, error) {}
