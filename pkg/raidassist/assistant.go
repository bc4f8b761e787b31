// Orchestrates the destructive RAID-extension workflow: select a disk,
// precheck it, confirm the plan, execute, follow the resync to completion via
// the push channel, and persist enough state to survive a client restart.
package raidassist

import (
	"log"
	"sync"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/komero-io/komero/pkg/komtypes"
	"github.com/komero-io/komero/pkg/sessionstore"
)

// a session older than this is not worth resuming - the operation it
// describes has moved on without us
const SessionMaxAge = 5 * time.Minute

const (
	// terminal log line needs a moment to render before we refresh state
	defaultSettleDelay = 2 * time.Second
	// keep the outcome visible for a while, then drop the persisted session
	defaultClearDelay = 10 * time.Second
)

// progress consumer phase (distinct from ExecutionStatus: the phase tracks
// what the event stream is telling us, the status tracks our own run)
type phase string

const (
	phaseIdle      phase = "idle"
	phaseResyncing phase = "resyncing"
	phaseSettling  phase = "settling"
)

type Assistant struct {
	mu sync.Mutex

	planner *Planner
	store   *sessionstore.Store // nil = no persistence

	selectedDisk *komtypes.Disk
	plan         *Plan

	status   komtypes.ExecutionStatus
	logs     []komtypes.LogEntry
	progress *komtypes.ProgressSnapshot
	phase    phase

	// exact-message suppression of errors already reported once this run
	loggedErrors map[string]bool

	settleTimer *time.Timer
	clearTimer  *time.Timer

	settleDelay time.Duration
	clearDelay  time.Duration

	onRefresh func() // triggers an inventory+status refresh
	onChange  func() // UI redraw hook; called without the lock held

	logl *logex.Leveled
}

func New(planner *Planner, store *sessionstore.Store, onRefresh func(), onChange func(), logger *log.Logger) *Assistant {
	return &Assistant{
		planner:      planner,
		store:        store,
		status:       komtypes.ExecutionIdle,
		phase:        phaseIdle,
		loggedErrors: map[string]bool{},
		settleDelay:  defaultSettleDelay,
		clearDelay:   defaultClearDelay,
		onRefresh:    onRefresh,
		onChange:     onChange,
		logl:         logex.Levels(logger),
	}
}

// Restore rehydrates state persisted by a previous process, if it is recent
// enough. Call once, right after New.
func (a *Assistant) Restore(now time.Time) error {
	if a.store == nil {
		return nil
	}

	session, err := a.store.LoadSession(SessionMaxAge, now)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	a.mu.Lock()
	a.logs = session.Logs
	a.status = session.ExecutionStatus
	a.progress = session.Progress
	if a.status == komtypes.ExecutionRunning {
		a.phase = phaseResyncing
	}
	a.mu.Unlock()

	a.notifyChanged()

	return nil
}

// Close releases pending timers. The assistant must not be used afterwards.
func (a *Assistant) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.settleTimer != nil {
		a.settleTimer.Stop()
		a.settleTimer = nil
	}
	if a.clearTimer != nil {
		a.clearTimer.Stop()
		a.clearTimer = nil
	}
}

// snapshot accessors

func (a *Assistant) Status() komtypes.ExecutionStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.status
}

func (a *Assistant) Plan() *Plan {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.plan
}

func (a *Assistant) Logs() []komtypes.LogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	logs := make([]komtypes.LogEntry, len(a.logs))
	copy(logs, a.logs)

	return logs
}

func (a *Assistant) Progress() *komtypes.ProgressSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.progress == nil {
		return nil
	}

	snapshot := *a.progress
	return &snapshot
}

// internal helpers. appendLog/persist/notify assume the caller handles
// locking as documented per-function.

// call with lock held
func (a *Assistant) appendLogLocked(severity komtypes.LogSeverity, message string, at time.Time) bool {
	if severity == komtypes.SeverityError && a.loggedErrors[message] {
		return false // this exact error was already reported this run
	}
	if severity == komtypes.SeverityError {
		a.loggedErrors[message] = true
	}

	a.logs = append(a.logs, komtypes.LogEntry{
		Timestamp: at,
		Severity:  severity,
		Message:   message,
	})

	return true
}

// call with lock held. persists only while there is something worth
// resuming: an active run, or progress still on screen.
func (a *Assistant) persistLocked() {
	if a.store == nil {
		return
	}
	if a.status != komtypes.ExecutionRunning && a.progress == nil {
		return
	}

	if err := a.store.SaveSession(&sessionstore.PersistedSession{
		Logs:            a.logs,
		ExecutionStatus: a.status,
		Progress:        a.progress,
		SavedAt:         time.Now(),
	}); err != nil {
		a.logl.Error.Printf("persisting session: %v", err)
	}
}

// call without the lock held
func (a *Assistant) notifyChanged() {
	if a.onChange != nil {
		a.onChange()
	}
}
