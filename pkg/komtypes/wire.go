package komtypes

// Wire types for the appliance REST API and push channel.

import (
	"encoding/json"
	"time"
)

type HealthResponse struct {
	Healthy      bool   `json:"healthy"`
	Version      string `json:"version,omitempty"`
	LocalAddress string `json:"localAddress,omitempty"` // discoverable LAN address, if the backend knows it
}

type PrecheckRequest struct {
	Array string `json:"array"`
	Disk  string `json:"disk"`
}

type PrecheckResponse struct {
	Success           bool              `json:"success"`
	CanProceed        bool              `json:"canProceed"`
	Reasons           []string          `json:"reasons"`
	Plan              []Command         `json:"plan"`
	SmartOptimization *OptimizationPlan `json:"smartOptimization,omitempty"`
}

type AddDiskRequest struct {
	Array  string `json:"array"`
	Disk   string `json:"disk"`
	DryRun bool   `json:"dryRun"`
}

type OptimizeAndAddRequest struct {
	Array             string           `json:"array"`
	SmartOptimization OptimizationPlan `json:"smartOptimization"`
}

type StopResyncRequest struct {
	Array string `json:"array"`
}

type StopResyncResponse struct {
	Success bool     `json:"success"`
	Log     []string `json:"log,omitempty"`
}

// the HTTP acknowledgment of a mutating call means only "job accepted" -
// the real outcome arrives via the push channel
type JobAcceptedResponse struct {
	Accepted bool `json:"accepted"`
}

// push channel event types
const (
	EventMdraidStatus         = "mdraid-status"
	EventMdraidLog            = "mdraid-log"
	EventMdraidResyncProgress = "mdraid-resync-progress"
)

// every push channel frame is one of these, payload keyed by Type
type PushEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type MdraidLogEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	Type      LogSeverity `json:"type"`
	Message   string      `json:"message"`
}

type ResyncProgressEvent struct {
	Percent   float64 `json:"percent"`
	ETA       string  `json:"eta,omitempty"`
	Speed     string  `json:"speed,omitempty"`
	Completed bool    `json:"completed"`
}
