package raidassist

import (
	"context"
	"errors"
	"time"

	"github.com/function61/gokit/ezhttp"
	"github.com/komero-io/komero/pkg/komtypes"
)

// a resync takes tens of minutes; the acknowledgment of the job must not be
// cut short by a normal request timeout. hitting even this limit surfaces as
// a network error, not proof the backend gave up.
const executeTimeout = 30 * time.Minute

var (
	ErrNoDiskSelected     = errors.New("no target disk selected")
	ErrPlanBlocked        = errors.New("operation blocked by precheck errors")
	ErrAlreadyRunning     = errors.New("an operation is already running")
	ErrNothingToStop      = errors.New("no resync in progress")
	ErrPlanNotConfirmable = errors.New("plan has no executable commands")
)

// SelectDisk sets (or, with nil, clears) the operation's target and
// recomputes the plan. The previous plan is invalid the moment the selection
// changes - it is never kept around.
func (a *Assistant) SelectDisk(ctx context.Context, disk *komtypes.Disk, arrayStatus *komtypes.ArrayStatus) {
	a.mu.Lock()
	a.selectedDisk = disk
	a.plan = nil
	a.mu.Unlock()

	if disk == nil {
		a.notifyChanged()
		return
	}

	plan := a.planner.Precheck(ctx, *disk, arrayStatus)

	a.mu.Lock()
	// selection may have changed while precheck was in flight; a plan for a
	// disk that is no longer selected is stale
	if a.selectedDisk != nil && a.selectedDisk.Path == plan.TargetDisk {
		a.plan = plan
	}
	a.mu.Unlock()

	a.notifyChanged()
}

// Confirm is the pure UI gate before execution: it hands out the plan's
// commands (or the optimization steps) for the user to acknowledge. No side
// effects.
func (a *Assistant) Confirm() (*Plan, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.plan == nil {
		return nil, ErrNoDiskSelected
	}
	if !a.plan.CanProceed {
		return nil, ErrPlanBlocked
	}
	if len(a.plan.Commands) == 0 && a.plan.SmartOptimization == nil {
		return nil, ErrPlanNotConfirmable
	}

	return a.plan, nil
}

// Execute issues the mutating call. The only function that may move the
// status to running, and only from idle or a terminal state.
//
// Known race, preserved from the original design: the guard is client-local
// only. Two panel instances can both pass it and trigger the backend twice -
// there is no idempotency token.
func (a *Assistant) Execute(ctx context.Context, dryRun bool) error {
	a.mu.Lock()

	if a.status == komtypes.ExecutionRunning {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	if a.plan == nil || !a.plan.CanProceed {
		a.mu.Unlock()
		if a.plan == nil {
			return ErrNoDiskSelected
		}
		return ErrPlanBlocked
	}

	// a retry inside the previous run's outcome window must start clean:
	// inherited progress would pin the new run at the old percent, and the
	// old clear timer would wipe the new run's state mid-flight
	if a.settleTimer != nil {
		a.settleTimer.Stop()
		a.settleTimer = nil
	}
	if a.clearTimer != nil {
		a.clearTimer.Stop()
		a.clearTimer = nil
	}
	a.progress = nil
	a.phase = phaseIdle

	plan := a.plan
	a.status = komtypes.ExecutionRunning
	a.loggedErrors = map[string]bool{} // dedup scope is one run
	a.appendLogLocked(komtypes.SeverityInfo, "starting operation for "+plan.TargetDisk, time.Now())
	a.persistLocked()
	a.mu.Unlock()

	a.notifyChanged()

	// the HTTP ack means only "job accepted"; actual outcome arrives on the
	// push channel
	if err := a.trigger(ctx, plan, dryRun); err != nil {
		a.mu.Lock()
		a.status = komtypes.ExecutionError
		a.appendLogLocked(komtypes.SeverityError, err.Error(), time.Now())
		a.persistLocked()
		a.mu.Unlock()

		a.notifyChanged()

		// plan stays intact so the user may retry without re-deriving it
		return err
	}

	return nil
}

func (a *Assistant) trigger(ctx context.Context, plan *Plan, dryRun bool) error {
	ctx, cancel := context.WithTimeout(ctx, executeTimeout)
	defer cancel()

	ack := komtypes.JobAcceptedResponse{}

	if plan.Optimized() {
		_, err := ezhttp.Post(
			ctx,
			a.planner.endpoint().MdraidOptimizeAndAdd(),
			ezhttp.SendJson(&komtypes.OptimizeAndAddRequest{
				Array:             a.planner.array,
				SmartOptimization: *plan.SmartOptimization,
			}),
			ezhttp.RespondsJson(&ack, true))
		return err
	}

	_, err := ezhttp.Post(
		ctx,
		a.planner.endpoint().MdraidAddDisk(),
		ezhttp.SendJson(&komtypes.AddDiskRequest{
			Array:  a.planner.array,
			Disk:   plan.TargetDisk,
			DryRun: dryRun,
		}),
		ezhttp.RespondsJson(&ack, true))
	return err
}

// StopResync is the single cancellation primitive: it asks the backend to
// stop the underlying sync (the disk-add itself cannot be undone). On success
// the array stays in its current consistent state, so the run counts as a
// success.
func (a *Assistant) StopResync(ctx context.Context) error {
	a.mu.Lock()
	if a.status != komtypes.ExecutionRunning && a.progress == nil {
		a.mu.Unlock()
		return ErrNothingToStop
	}
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, ezhttp.DefaultTimeout10s)
	defer cancel()

	res := komtypes.StopResyncResponse{}
	if _, err := ezhttp.Post(
		ctx,
		a.planner.endpoint().MdraidStopResync(),
		ezhttp.SendJson(&komtypes.StopResyncRequest{Array: a.planner.array}),
		ezhttp.RespondsJson(&res, true),
	); err != nil {
		a.mu.Lock()
		a.appendLogLocked(komtypes.SeverityError, "stop resync: "+err.Error(), time.Now())
		a.persistLocked()
		a.mu.Unlock()

		a.notifyChanged()
		return err
	}

	a.mu.Lock()
	for _, line := range res.Log {
		a.appendLogLocked(komtypes.SeverityInfo, line, time.Now())
	}
	a.appendLogLocked(komtypes.SeveritySuccess, "resync stopped; array left in its current consistent state", time.Now())
	a.progress = nil
	a.status = komtypes.ExecutionSuccess
	a.phase = phaseIdle
	a.scheduleClearLocked()
	a.mu.Unlock()

	a.notifyChanged()

	if a.onRefresh != nil {
		a.onRefresh()
	}

	return nil
}
