package raidassist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/function61/gokit/logex"
	"github.com/komero-io/komero/pkg/komtypes"
)

func newPrecheckBackend(t *testing.T, response string) *Planner {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.EqualString(t, r.URL.Path, "/api/storage/mdraid-prechecks")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(backend.Close)

	return NewPlanner("/dev/md0", komtypes.NewRestClientUrlBuilder(backend.URL), logex.Discard)
}

func TestPrecheckPartitionsReasons(t *testing.T) {
	planner := newPrecheckBackend(t, `{
		"success": true,
		"canProceed": true,
		"reasons": [
			"WARNING: disk reports 3 reallocated sectors",
			"disk passed SMART self-test 2 days ago",
			"WARNING: resync will take approximately 5 hours"
		],
		"plan": [
			{"description": "partition disk", "command": "sgdisk --new ...", "destructive": true},
			{"description": "add to array", "command": "mdadm --add ...", "destructive": false}
		]
	}`)

	plan := planner.Precheck(context.Background(), komtypes.Disk{Path: "/dev/sdb"}, nil)

	assert.Assert(t, plan.CanProceed)
	assert.Assert(t, len(plan.BlockingErrors) == 0)
	assert.Assert(t, len(plan.Warnings) == 2)
	assert.EqualString(t, plan.Warnings[0], "disk reports 3 reallocated sectors")
	assert.Assert(t, len(plan.Commands) == 2)
	assert.Assert(t, !plan.Optimized())
}

func TestPrecheckBlocking(t *testing.T) {
	planner := newPrecheckBackend(t, `{
		"success": true,
		"canProceed": false,
		"reasons": [
			"ERROR: disk is mounted at /mnt/media",
			"WARNING: disk is over 5 years old"
		],
		"plan": []
	}`)

	plan := planner.Precheck(context.Background(), komtypes.Disk{Path: "/dev/sdb"}, nil)

	assert.Assert(t, !plan.CanProceed)
	assert.Assert(t, len(plan.BlockingErrors) == 1)
	assert.EqualString(t, plan.BlockingErrors[0], "disk is mounted at /mnt/media")
	assert.Assert(t, len(plan.Warnings) == 1)
}

func TestPrecheckSmartOptimization(t *testing.T) {
	planner := newPrecheckBackend(t, `{
		"success": true,
		"canProceed": true,
		"reasons": [],
		"plan": [],
		"smartOptimization": {
			"removeMember": "/dev/sda6",
			"expandMember": "/dev/sdb1",
			"addDisk": "/dev/sdc",
			"estimatedGainBytes": 1500000000000,
			"steps": [{"description": "shrink array off /dev/sda6", "command": "mdadm --fail ...", "destructive": true}]
		}
	}`)

	plan := planner.Precheck(context.Background(), komtypes.Disk{Path: "/dev/sdc"}, nil)

	assert.Assert(t, plan.CanProceed)
	assert.Assert(t, plan.Optimized())
	assert.EqualString(t, plan.SmartOptimization.RemoveMember, "/dev/sda6")
}

func TestPrecheckBackendRejectionIsNotAGreenLight(t *testing.T) {
	// canProceed requires the backend's explicit success
	planner := newPrecheckBackend(t, `{"success": false, "canProceed": true, "reasons": [], "plan": []}`)

	plan := planner.Precheck(context.Background(), komtypes.Disk{Path: "/dev/sdb"}, nil)

	assert.Assert(t, !plan.CanProceed)
}

func TestPrecheckCallFailureBecomesBlockingError(t *testing.T) {
	planner := NewPlanner("/dev/md0", komtypes.NewRestClientUrlBuilder("http://127.0.0.1:1"), logex.Discard)

	plan := planner.Precheck(context.Background(), komtypes.Disk{Path: "/dev/sdb"}, nil)

	assert.Assert(t, !plan.CanProceed)
	assert.Assert(t, len(plan.BlockingErrors) == 1)
}

func TestPrecheckShortCircuitsForArrayMember(t *testing.T) {
	backendCalled := false
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendCalled = true
	}))
	t.Cleanup(backend.Close)

	planner := NewPlanner("/dev/md0", komtypes.NewRestClientUrlBuilder(backend.URL), logex.Discard)

	plan := planner.Precheck(context.Background(), komtypes.Disk{Path: "/dev/sda"}, &komtypes.ArrayStatus{
		Members: []komtypes.ArrayMember{{Device: "/dev/sda6"}},
	})

	assert.Assert(t, !backendCalled)
	assert.Assert(t, !plan.CanProceed)
	assert.Assert(t, len(plan.BlockingErrors) == 1)
	assert.EqualString(t, plan.BlockingErrors[0], "/dev/sda is already a member of the array")
}

func TestPlannerFollowsUrlSwap(t *testing.T) {
	// mode switch scenario: prechecks move over to the other backend
	planner := newPrecheckBackend(t, `{"success": true, "canProceed": true, "reasons": [], "plan": []}`)
	planner.SetUrls(komtypes.NewRestClientUrlBuilder("http://127.0.0.1:1"))

	plan := planner.Precheck(context.Background(), komtypes.Disk{Path: "/dev/sdb"}, nil)

	// the original (reachable) backend is no longer consulted
	assert.Assert(t, !plan.CanProceed)
	assert.Assert(t, len(plan.BlockingErrors) == 1)
}
