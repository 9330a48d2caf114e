package eventstore

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/loaderbuild/internal/logfields"
	"git.home.luguber.info/inful/loaderbuild/internal/orchestrator"
)

// Journal records orchestrator cycles in a Store and keeps a live history
// projection. Journal failures are logged and never fail a cycle.
type Journal struct {
	store      Store
	projection *HistoryProjection
	logger     *slog.Logger
	now        func() time.Time
}

var _ orchestrator.Observer = (*Journal)(nil)

// NewJournal creates a journal writing to store. The history keeps at most
// maxHistory completed cycles.
func NewJournal(store Store, maxHistory int, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		store:      store,
		projection: NewHistoryProjection(store, maxHistory),
		logger:     logger,
		now:        time.Now,
	}
}

// History returns the live projection.
func (j *Journal) History() *HistoryProjection { return j.projection }

// CycleStarted implements orchestrator.Observer.
func (j *Journal) CycleStarted(ctx context.Context, out *orchestrator.Outcome) {
	ev, err := NewCycleStarted(out.CycleID, out.Bundle, out.Started, CycleStartedData{
		Source: out.Source,
		Files:  len(out.Changed),
	})
	j.record(ctx, ev, err)
}

// CycleFinished implements orchestrator.Observer.
func (j *Journal) CycleFinished(ctx context.Context, out *orchestrator.Outcome) {
	var (
		ev  *BaseEvent
		err error
	)
	if out.Status == orchestrator.StatusFailed {
		ev, err = NewCycleFailed(out.CycleID, out.Bundle, j.now(), CycleFailedData{
			Stage:      string(out.FailedState),
			Error:      out.Error,
			Targets:    out.Targets,
			DurationMS: out.Duration.Milliseconds(),
		})
	} else {
		ev, err = NewCycleCompleted(out.CycleID, out.Bundle, j.now(), CycleCompletedData{
			Status:     string(out.Status),
			Targets:    out.Targets,
			Builds:     out.Builds,
			DurationMS: out.Duration.Milliseconds(),
		})
	}
	j.record(ctx, ev, err)
}

func (j *Journal) record(ctx context.Context, ev *BaseEvent, err error) {
	if err == nil {
		err = j.store.Append(ctx, ev)
	}
	if err != nil {
		j.logger.Warn("Failed to journal cycle event", logfields.Error(err))
		return
	}
	j.projection.Apply(ev)
}
