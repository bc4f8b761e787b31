package logtee

import (
	"fmt"
	"testing"
	"time"

	"github.com/function61/gokit/assert"
	"github.com/komero-io/komero/pkg/komtypes"
)

func TestLogTail(t *testing.T) {
	tail := NewLogTail(3)

	at := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		tail.Append(komtypes.LogEntry{
			Timestamp: at.Add(time.Duration(i) * time.Second),
			Severity:  komtypes.SeverityInfo,
			Message:   fmt.Sprintf("line %d", i),
		})
	}

	snapshot := tail.Snapshot()

	// only the last 3 survive, oldest first
	assert.Assert(t, len(snapshot) == 3)
	assert.EqualString(t, snapshot[0], "12:00:03 info    line 3")
	assert.EqualString(t, snapshot[2], "12:00:05 info    line 5")
}

func TestReplace(t *testing.T) {
	tail := NewLogTail(2)

	tail.Append(komtypes.LogEntry{Severity: komtypes.SeverityInfo, Message: "old"})

	at := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	tail.Replace([]komtypes.LogEntry{
		{Timestamp: at, Severity: komtypes.SeverityWarning, Message: "a"},
		{Timestamp: at, Severity: komtypes.SeverityError, Message: "b"},
		{Timestamp: at, Severity: komtypes.SeveritySuccess, Message: "c"},
	})

	snapshot := tail.Snapshot()

	assert.Assert(t, len(snapshot) == 2)
	assert.EqualString(t, snapshot[0], "12:00:00 error   b")
	assert.EqualString(t, snapshot[1], "12:00:00 success c")
}
