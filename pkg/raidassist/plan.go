package raidassist

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/function61/gokit/ezhttp"
	"github.com/function61/gokit/logex"
	"github.com/komero-io/komero/pkg/komtypes"
)

// backend reason strings carry a leading marker telling whether they block
// the operation or merely advise about it; unmarked reasons are informational
const (
	blockingMarker = "ERROR: "
	warningMarker  = "WARNING: "
)

// validated plan for extending the array with one specific disk. Tied to that
// disk: reselecting invalidates it and a fresh precheck is required.
type Plan struct {
	TargetDisk        string
	CanProceed        bool
	BlockingErrors    []string
	Warnings          []string
	Commands          []komtypes.Command
	SmartOptimization *komtypes.OptimizationPlan
}

// true when the backend proposed optimize-and-add instead of a plain add
func (p *Plan) Optimized() bool {
	return p.SmartOptimization != nil
}

type Planner struct {
	array string // e.g. "/dev/md0"
	logl  *logex.Leveled

	mu   sync.Mutex
	urls *komtypes.RestClientUrlBuilder
}

func NewPlanner(array string, urls *komtypes.RestClientUrlBuilder, logger *log.Logger) *Planner {
	return &Planner{array: array, urls: urls, logl: logex.Levels(logger)}
}

// SetUrls re-points subsequent backend calls, e.g. after an access-mode switch
func (p *Planner) SetUrls(urls *komtypes.RestClientUrlBuilder) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.urls = urls
}

func (p *Planner) endpoint() *komtypes.RestClientUrlBuilder {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.urls
}

// Precheck validates the proposed disk against the backend. Never errors out:
// a call failure becomes a blocking error on the returned plan, so the caller
// always has something to render.
func (p *Planner) Precheck(ctx context.Context, disk komtypes.Disk, arrayStatus *komtypes.ArrayStatus) *Plan {
	plan := &Plan{TargetDisk: disk.Path}

	// a recognized member must short-circuit to blocked without bothering
	// the backend
	if arrayStatus != nil && arrayStatus.IsMember(disk.Path) {
		plan.BlockingErrors = append(plan.BlockingErrors, disk.Path+" is already a member of the array")
		return plan
	}

	ctx, cancel := context.WithTimeout(ctx, ezhttp.DefaultTimeout10s)
	defer cancel()

	res := komtypes.PrecheckResponse{}
	if _, err := ezhttp.Post(
		ctx,
		p.endpoint().MdraidPrechecks(),
		ezhttp.SendJson(&komtypes.PrecheckRequest{Array: p.array, Disk: disk.Path}),
		ezhttp.RespondsJson(&res, true),
	); err != nil {
		plan.BlockingErrors = append(plan.BlockingErrors, "precheck failed: "+err.Error())
		return plan
	}

	for _, reason := range res.Reasons {
		switch {
		case strings.HasPrefix(reason, blockingMarker):
			plan.BlockingErrors = append(plan.BlockingErrors, strings.TrimPrefix(reason, blockingMarker))
		case strings.HasPrefix(reason, warningMarker):
			plan.Warnings = append(plan.Warnings, strings.TrimPrefix(reason, warningMarker))
		default:
			p.logl.Info.Printf("precheck note for %s: %s", disk.Path, reason)
		}
	}

	plan.Commands = res.Plan
	plan.SmartOptimization = res.SmartOptimization

	// proceed only on explicit success; an empty blocker list alone is not
	// a green light
	plan.CanProceed = res.Success && res.CanProceed && len(plan.BlockingErrors) == 0

	return plan
}
