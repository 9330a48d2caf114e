// Package eventstore journals update cycles in SQLite and rebuilds a
// per-bundle history from the journal.
package eventstore

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"
)

const cycleStatusRunning = "running"

// CycleSummary is a read model of one update cycle.
type CycleSummary struct {
	CycleID     string        `json:"cycle_id"`
	Bundle      string        `json:"bundle"`
	Source      string        `json:"source,omitempty"`
	Status      string        `json:"status"` // running, noop, succeeded, failed
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Targets     []string      `json:"targets,omitempty"`
	Builds      []string      `json:"builds,omitempty"`
	FailedStage string        `json:"failed_stage,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// HistoryProjection keeps an in-memory, bounded view of cycle history
// reconstructed from journal events.
type HistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	cycles   map[string]*CycleSummary
	history  []*CycleSummary // completed cycles, newest first
	maxSize  int
	lastSync time.Time
}

// NewHistoryProjection creates a projection backed by store.
func NewHistoryProjection(store Store, maxHistorySize int) *HistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &HistoryProjection{
		store:   store,
		cycles:  make(map[string]*CycleSummary),
		history: make([]*CycleSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from every event in the store.
func (p *HistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.cycles = make(map[string]*CycleSummary)
	p.history = make([]*CycleSummary, 0, p.maxSize)
	for _, ev := range events {
		p.applyLocked(ev)
	}
	slices.SortStableFunc(p.history, func(a, b *CycleSummary) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()
	p.lastSync = time.Now()
	return nil
}

// Apply folds a single event into the projection.
func (p *HistoryProjection) Apply(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(ev)
}

func (p *HistoryProjection) applyLocked(ev Event) {
	id := ev.CycleID()
	if id == "" {
		return
	}
	summary, ok := p.cycles[id]
	if !ok {
		summary = &CycleSummary{
			CycleID:   id,
			Bundle:    ev.Bundle(),
			Status:    cycleStatusRunning,
			StartedAt: ev.Timestamp(),
		}
		p.cycles[id] = summary
	}

	switch ev.Type() {
	case TypeCycleStarted:
		summary.StartedAt = ev.Timestamp()
		var data CycleStartedData
		if err := json.Unmarshal(ev.Payload(), &data); err == nil {
			summary.Source = data.Source
		}

	case TypeCycleCompleted:
		var data CycleCompletedData
		if err := json.Unmarshal(ev.Payload(), &data); err == nil {
			summary.Status = data.Status
			summary.Targets = data.Targets
			summary.Builds = data.Builds
			summary.Duration = time.Duration(data.DurationMS) * time.Millisecond
		}
		p.completeLocked(summary, ev.Timestamp())

	case TypeCycleFailed:
		summary.Status = "failed"
		var data CycleFailedData
		if err := json.Unmarshal(ev.Payload(), &data); err == nil {
			summary.FailedStage = data.Stage
			summary.Error = data.Error
			summary.Targets = data.Targets
			summary.Duration = time.Duration(data.DurationMS) * time.Millisecond
		}
		p.completeLocked(summary, ev.Timestamp())
	}
}

func (p *HistoryProjection) completeLocked(summary *CycleSummary, at time.Time) {
	summary.CompletedAt = &at
	if summary.Status == "" || summary.Status == cycleStatusRunning {
		summary.Status = "succeeded"
	}
	for _, h := range p.history {
		if h.CycleID == summary.CycleID {
			return
		}
	}
	p.history = append([]*CycleSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()
}

// pruneLocked drops completed cycles that fell out of the bounded history.
func (p *HistoryProjection) pruneLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.CycleID] = struct{}{}
	}
	for id, s := range p.cycles {
		if s.Status == cycleStatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.cycles, id)
		}
	}
}

// History returns completed cycles, newest first. A non-empty bundle limits
// the result to that bundle.
func (p *HistoryProjection) History(bundle string) []CycleSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]CycleSummary, 0, len(p.history))
	for _, h := range p.history {
		if bundle == "" || h.Bundle == bundle {
			out = append(out, *h)
		}
	}
	return out
}

// Cycle returns the summary of one cycle.
func (p *HistoryProjection) Cycle(cycleID string) (CycleSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.cycles[cycleID]
	if !ok {
		return CycleSummary{}, false
	}
	return *s, true
}

// Running returns cycles that started but have not finished.
func (p *HistoryProjection) Running() []CycleSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []CycleSummary
	for _, s := range p.cycles {
		if s.Status == cycleStatusRunning {
			out = append(out, *s)
		}
	}
	slices.SortFunc(out, func(a, b CycleSummary) int { return a.StartedAt.Compare(b.StartedAt) })
	return out
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *HistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
