// package shared defines shared helpers
package shared

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// ParseLogLevel maps a config level name to a [log.Level], defaulting to info.
func ParseLogLevel(s string) log.Level {
	if strings.TrimSpace(s) == "" {
		return log.InfoLevel
	}
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// OpenRunLog creates dir (if needed) and opens a fresh log file named from the
// run parameters and the current time, e.g. event-623-all-true-20240131_154500.log.
func OpenRunLog(dir string, parts ...string) (*os.File, error) {
	if dir == "" {
		dir = "log"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102_150405")
	name := strings.Join(append(parts, stamp), "-") + ".log"

	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}
