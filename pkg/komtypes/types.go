// Shared data model for the Komero panel client: block devices, RAID array
// state, operation plans and the resync progress/log primitives.
package komtypes

import (
	"strings"
	"time"
)

type Disk struct {
	Path        string      `json:"path"` // e.g. "/dev/sdb"
	DisplayName string      `json:"displayName"`
	SizeBytes   uint64      `json:"sizeBytes"`
	Mounted     bool        `json:"mounted"`
	MountPoint  string      `json:"mountPoint,omitempty"`
	SystemDisk  bool        `json:"systemDisk"`
	Children    []Partition `json:"children,omitempty"`
}

type Partition struct {
	Path       string `json:"path"` // e.g. "/dev/sdb1"
	SizeBytes  uint64 `json:"sizeBytes"`
	FsType     string `json:"fsType,omitempty"`
	Mounted    bool   `json:"mounted"`
	MountPoint string `json:"mountPoint,omitempty"`
}

// one physical/partition device currently part of the RAID array
type ArrayMember struct {
	Device    string `json:"device"` // e.g. "/dev/sda6"
	SizeBytes uint64 `json:"sizeBytes"`
	State     string `json:"state"` // e.g. "in_sync"
}

type ArrayStatus struct {
	Exists        bool          `json:"exists"`
	ActiveDevices int           `json:"activeDevices"`
	TotalDevices  int           `json:"totalDevices"`
	State         string        `json:"state"` // e.g. "clean", "degraded"
	Syncing       bool          `json:"syncing"`
	SyncProgress  float64       `json:"syncProgressPercent"`
	SyncETASecs   int64         `json:"syncEtaSeconds,omitempty"`
	SyncSpeedBps  uint64        `json:"syncSpeedBps,omitempty"`
	Members       []ArrayMember `json:"members"`
}

// IsMember tells if given disk (or one of its partitions) is already part of
// the array. Member devices are partition paths, so "/dev/sda6" is a member
// hit for disk "/dev/sda" but "/dev/sdab1" is not.
func (a *ArrayStatus) IsMember(diskPath string) bool {
	for _, member := range a.Members {
		if member.Device == diskPath {
			return true
		}

		suffix, found := strings.CutPrefix(member.Device, diskPath)
		if !found {
			continue
		}

		// valid partition suffixes: "6" (/dev/sda6), "p1" (/dev/nvme0n1p1)
		if isDigit(suffix[0]) {
			return true
		}
		if suffix[0] == 'p' && len(suffix) >= 2 && isDigit(suffix[1]) {
			return true
		}
	}

	return false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// a single backend-computed step of an operation plan
type Command struct {
	Description string `json:"description"`
	Command     string `json:"command"`
	Destructive bool   `json:"destructive"`
}

// backend-proposed capacity rebalancing: shrink & drop the small member,
// grow another one and add the new disk, instead of a plain add
type OptimizationPlan struct {
	RemoveMember  string    `json:"removeMember"`
	ExpandMember  string    `json:"expandMember"`
	AddDisk       string    `json:"addDisk"`
	EstimatedGain uint64    `json:"estimatedGainBytes"`
	Steps         []Command `json:"steps"`
}

type LogSeverity string

const (
	SeverityInfo    LogSeverity = "info"
	SeverityWarning LogSeverity = "warning"
	SeverityError   LogSeverity = "error"
	SeveritySuccess LogSeverity = "success"
)

type LogEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Severity  LogSeverity `json:"severity"`
	Message   string      `json:"message"`
}

type ProgressSnapshot struct {
	Percent   float64 `json:"percent"` // 0..100
	ETA       string  `json:"eta,omitempty"`
	Speed     string  `json:"speed,omitempty"`
	Completed bool    `json:"completed"`
}

type ExecutionStatus string

const (
	ExecutionIdle    ExecutionStatus = "idle"
	ExecutionRunning ExecutionStatus = "running"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionError   ExecutionStatus = "error"
)

// terminal means a new run may be started from this state
func (e ExecutionStatus) Terminal() bool {
	return e == ExecutionSuccess || e == ExecutionError
}
