// Fixed-capacity tail of job-log entries, rendered as display lines for the
// watch UI.
package logtee

import (
	"container/ring"
	"fmt"
	"sync"

	"github.com/komero-io/komero/pkg/komtypes"
)

type LogTail struct {
	entries *ring.Ring
	mu      sync.Mutex
}

// keeps only "capacity" last Append() calls (retrieve with Snapshot())
func NewLogTail(capacity int) *LogTail {
	r := ring.New(capacity)

	return &LogTail{
		entries: r,
	}
}

func (t *LogTail) Append(entry komtypes.LogEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries.Value = entry
	t.entries = t.entries.Next()
}

// Replace swaps the whole tail content, keeping the last "capacity" entries.
// Used when rehydrating from a persisted session.
func (t *LogTail) Replace(entries []komtypes.LogEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.entries
	for i := 0; i < r.Len(); i++ { // reset
		r.Value = nil
		r = r.Next()
	}

	for _, entry := range entries {
		t.entries.Value = entry
		t.entries = t.entries.Next()
	}
}

// Snapshot returns the retained entries rendered as display lines, oldest
// first.
func (t *LogTail) Snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	lines := []string{}

	r := t.entries
	for i := 0; i < r.Len(); i++ {
		if entry, got := r.Value.(komtypes.LogEntry); got {
			lines = append(lines, FormatEntry(entry))
		}
		r = r.Next()
	}

	return lines
}

func FormatEntry(entry komtypes.LogEntry) string {
	return fmt.Sprintf(
		"%s %-7s %s",
		entry.Timestamp.Format("15:04:05"),
		string(entry.Severity),
		entry.Message)
}
