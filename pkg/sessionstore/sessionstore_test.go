package sessionstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/function61/gokit/assert"
	"github.com/komero-io/komero/pkg/accessmode"
	"github.com/komero-io/komero/pkg/komtypes"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "panel.db"))
	assert.Assert(t, err == nil)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSessionRoundtrip(t *testing.T) {
	store := openTestStore(t)

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	assert.Assert(t, store.SaveSession(&PersistedSession{
		Logs: []komtypes.LogEntry{
			{Timestamp: now, Severity: komtypes.SeverityInfo, Message: "resync started"},
		},
		ExecutionStatus: komtypes.ExecutionRunning,
		Progress:        &komtypes.ProgressSnapshot{Percent: 42},
		SavedAt:         now,
	}) == nil)

	// resuming within the window restores the exact state
	session, err := store.LoadSession(5*time.Minute, now.Add(4*time.Minute))
	assert.Assert(t, err == nil)
	assert.Assert(t, session != nil)
	assert.EqualString(t, string(session.ExecutionStatus), "running")
	assert.Assert(t, len(session.Logs) == 1)
	assert.EqualString(t, session.Logs[0].Message, "resync started")
	assert.Assert(t, session.Progress.Percent == 42)
}

func TestStaleSessionIsDiscarded(t *testing.T) {
	store := openTestStore(t)

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	assert.Assert(t, store.SaveSession(&PersistedSession{
		ExecutionStatus: komtypes.ExecutionRunning,
		SavedAt:         now,
	}) == nil)

	session, err := store.LoadSession(5*time.Minute, now.Add(6*time.Minute))
	assert.Assert(t, err == nil)
	assert.Assert(t, session == nil)

	// the stale slot was deleted on sight, so even a generous window finds
	// nothing now
	session, err = store.LoadSession(24*time.Hour, now.Add(6*time.Minute))
	assert.Assert(t, err == nil)
	assert.Assert(t, session == nil)
}

func TestClearSession(t *testing.T) {
	store := openTestStore(t)

	now := time.Now()

	assert.Assert(t, store.SaveSession(&PersistedSession{
		ExecutionStatus: komtypes.ExecutionRunning,
		SavedAt:         now,
	}) == nil)

	assert.Assert(t, store.ClearSession() == nil)

	session, err := store.LoadSession(5*time.Minute, now)
	assert.Assert(t, err == nil)
	assert.Assert(t, session == nil)

	// clearing an already-empty slot is fine
	assert.Assert(t, store.ClearSession() == nil)
}

func TestModeCache(t *testing.T) {
	store := openTestStore(t)

	_, got, err := store.LoadMode()
	assert.Assert(t, err == nil)
	assert.Assert(t, !got)

	assert.Assert(t, store.SaveMode(accessmode.ModePublic) == nil)

	mode, got, err := store.LoadMode()
	assert.Assert(t, err == nil)
	assert.Assert(t, got)
	assert.EqualString(t, string(mode), "public")
}
