package eventstore

import (
	"encoding/json"
	"time"
)

// Journal event types.
const (
	TypeCycleStarted   = "CycleStarted"
	TypeCycleCompleted = "CycleCompleted"
	TypeCycleFailed    = "CycleFailed"
)

// CycleStartedData is the payload of a CycleStarted event.
type CycleStartedData struct {
	Source string `json:"source"`
	Files  int    `json:"files"`
}

// CycleCompletedData is the payload of a CycleCompleted event. Status is
// "noop" or "succeeded".
type CycleCompletedData struct {
	Status     string   `json:"status"`
	Targets    []string `json:"targets"`
	Builds     []string `json:"builds"`
	DurationMS int64    `json:"duration_ms"`
}

// CycleFailedData is the payload of a CycleFailed event.
type CycleFailedData struct {
	Stage      string   `json:"stage"`
	Error      string   `json:"error"`
	Targets    []string `json:"targets,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// NewCycleStarted creates a CycleStarted event.
func NewCycleStarted(cycleID, bundle string, at time.Time, data CycleStartedData) (*BaseEvent, error) {
	return newEvent(cycleID, bundle, TypeCycleStarted, at, data)
}

// NewCycleCompleted creates a CycleCompleted event.
func NewCycleCompleted(cycleID, bundle string, at time.Time, data CycleCompletedData) (*BaseEvent, error) {
	return newEvent(cycleID, bundle, TypeCycleCompleted, at, data)
}

// NewCycleFailed creates a CycleFailed event.
func NewCycleFailed(cycleID, bundle string, at time.Time, data CycleFailedData) (*BaseEvent, error) {
	return newEvent(cycleID, bundle, TypeCycleFailed, at, data)
}

func newEvent(cycleID, bundle, eventType string, at time.Time, data any) (*BaseEvent, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, wrap(err, ErrMarshalPayloadFailed).
			WithContext("cycle_id", cycleID).
			WithContext("event_type", eventType).
			Build()
	}
	return &BaseEvent{
		EventCycleID:   cycleID,
		EventBundle:    bundle,
		EventType:      eventType,
		EventTimestamp: at,
		EventPayload:   payload,
	}, nil
}
