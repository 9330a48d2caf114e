package orchestrator

import (
	"time"

	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

// Outcome describes one finished (or in-flight, for observers) cycle.
type Outcome struct {
	CycleID string `json:"cycle_id"`
	Bundle  string `json:"bundle"`
	Source  string `json:"source,omitempty"`
	Status  Status `json:"status,omitempty"`
	// Changed are the filtered, resolved changed files.
	Changed []string `json:"changed,omitempty"`
	Targets []string `json:"targets,omitempty"`
	Builds  []string `json:"builds,omitempty"`
	// Trace lists every state the cycle entered, in order.
	Trace       []State            `json:"trace"`
	FailedState State              `json:"failed_state,omitempty"`
	Error       string             `json:"error,omitempty"`
	Server      *models.LoaderData `json:"-"`
	Client      *models.LoaderData `json:"-"`
	Started     time.Time          `json:"started"`
	Duration    time.Duration      `json:"duration_ns"`
}

// State returns the last state entered.
func (o *Outcome) State() State {
	if len(o.Trace) == 0 {
		return StateIdle
	}
	return o.Trace[len(o.Trace)-1]
}
