package raidassist

import (
	"strings"
	"time"

	"github.com/komero-io/komero/pkg/byteshuman"
	"github.com/komero-io/komero/pkg/komtypes"
)

// terminal-condition markers in the backend's job log
const (
	logResyncStarted   = "resync started"
	logResyncCompleted = "resync completed"
)

// HandleMdraidLog consumes one job-log push event. Events may arrive before,
// interleaved with, or after the Execute call's HTTP ack - ordering between
// the two is not guaranteed.
func (a *Assistant) HandleMdraidLog(event komtypes.MdraidLogEvent) {
	a.mu.Lock()

	severity := event.Type
	switch severity {
	case komtypes.SeverityInfo, komtypes.SeverityWarning, komtypes.SeverityError, komtypes.SeveritySuccess:
	default:
		severity = komtypes.SeverityInfo
	}

	at := event.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	changed := a.appendLogLocked(severity, event.Message, at)

	lowered := strings.ToLower(event.Message)

	switch {
	case strings.Contains(lowered, logResyncStarted):
		a.phase = phaseResyncing
		if a.status != komtypes.ExecutionRunning {
			// channel beat the HTTP ack; the backend clearly accepted the job
			a.status = komtypes.ExecutionRunning
		}
	case strings.Contains(lowered, logResyncCompleted):
		a.settleLocked()
	}

	a.persistLocked()
	a.mu.Unlock()

	if changed {
		a.notifyChanged()
	}
}

// HandleResyncProgress consumes one progress push event. Progress events
// update the snapshot but never produce log lines.
func (a *Assistant) HandleResyncProgress(event komtypes.ResyncProgressEvent) {
	a.mu.Lock()

	if a.phase == phaseIdle && a.status != komtypes.ExecutionRunning {
		// progress for a run we did not know about yet (event raced our
		// HTTP ack, or another frontend started it)
		a.phase = phaseResyncing
		a.status = komtypes.ExecutionRunning
	}

	a.updateProgressLocked(event.Percent, event.ETA, event.Speed)

	if event.Completed {
		if a.progress != nil {
			a.progress.Percent = 100
			a.progress.Completed = true
		}
		a.settleLocked()
	}

	a.persistLocked()
	a.mu.Unlock()

	a.notifyChanged()
}

// HandleStatusPoll is the fallback path: when the push channel is down, the
// 5s array-status poll still keeps the progress snapshot alive.
func (a *Assistant) HandleStatusPoll(status *komtypes.ArrayStatus) {
	if status == nil || !status.Syncing {
		return
	}

	a.mu.Lock()
	a.updateProgressLocked(
		status.SyncProgress,
		byteshuman.ETA(time.Duration(status.SyncETASecs)*time.Second),
		byteshuman.Speed(status.SyncSpeedBps))
	a.persistLocked()
	a.mu.Unlock()

	a.notifyChanged()
}

// call with lock held. percent is clamped non-decreasing for the run - the
// backend occasionally reports a lower figure right after a phase change.
func (a *Assistant) updateProgressLocked(percent float64, eta string, speed string) {
	if a.progress == nil {
		a.progress = &komtypes.ProgressSnapshot{}
	}

	if percent > a.progress.Percent {
		a.progress.Percent = percent
	}
	if eta != "" {
		a.progress.ETA = eta
	}
	if speed != "" {
		a.progress.Speed = speed
	}
}

// call with lock held. enters the settling phase: wait a beat so the final
// log line renders, then refresh inventory/status and declare success.
func (a *Assistant) settleLocked() {
	if a.phase == phaseSettling {
		return
	}
	a.phase = phaseSettling

	if a.settleTimer != nil {
		a.settleTimer.Stop()
	}

	a.settleTimer = time.AfterFunc(a.settleDelay, a.settle)
}

func (a *Assistant) settle() {
	a.mu.Lock()
	if a.phase != phaseSettling {
		a.mu.Unlock()
		return
	}

	a.phase = phaseIdle
	a.status = komtypes.ExecutionSuccess
	a.appendLogLocked(komtypes.SeveritySuccess, "operation completed", time.Now())
	a.scheduleClearLocked()
	a.mu.Unlock()

	a.notifyChanged()

	if a.onRefresh != nil {
		a.onRefresh()
	}
}

// call with lock held. the outcome stays visible for clearDelay, then the
// progress snapshot and the persisted session are dropped.
func (a *Assistant) scheduleClearLocked() {
	if a.clearTimer != nil {
		a.clearTimer.Stop()
	}

	a.clearTimer = time.AfterFunc(a.clearDelay, func() {
		a.mu.Lock()
		a.progress = nil
		a.mu.Unlock()

		if a.store != nil {
			if err := a.store.ClearSession(); err != nil {
				a.logl.Error.Printf("clearing session: %v", err)
			}
		}

		a.notifyChanged()
	})
}
