package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultSkipped  ResultLabel = "skipped"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder receives pipeline measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveCycleDuration(d time.Duration)
	IncCycleOutcome(outcome string) // noop|succeeded|failed
	SetAffectedTargets(bundle string, n int)
	IncTrigger(source string) // watch|resync|manifest|manual
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveCycleDuration(time.Duration)         {}
func (NoopRecorder) IncCycleOutcome(string)                     {}
func (NoopRecorder) SetAffectedTargets(string, int)             {}
func (NoopRecorder) IncTrigger(string)                          {}
