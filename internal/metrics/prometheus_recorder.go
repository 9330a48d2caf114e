package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "loaderbuild"

var _ Recorder = (*PrometheusRecorder)(nil)

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	stageDuration   *prom.HistogramVec
	stageResults    *prom.CounterVec
	cycleDuration   prom.Histogram
	cycleOutcomes   *prom.CounterVec
	affectedTargets *prom.GaugeVec
	triggers        *prom.CounterVec
}

// NewPrometheusRecorder creates the collectors and registers them with reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual update-cycle stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage results by outcome",
		}, []string{"stage", "result"}),
		cycleDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Total update-cycle duration",
			Buckets:   prom.DefBuckets,
		}),
		cycleOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_outcomes_total",
			Help:      "Update cycles by final status",
		}, []string{"outcome"}),
		affectedTargets: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "affected_targets",
			Help:      "Build targets affected by the last cycle of a bundle",
		}, []string{"bundle"}),
		triggers: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_triggers_total",
			Help:      "Cycle requests by source",
		}, []string{"source"}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.cycleDuration, pr.cycleOutcomes, pr.affectedTargets, pr.triggers)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveCycleDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.cycleDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCycleOutcome(outcome string) {
	if p == nil {
		return
	}
	p.cycleOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) SetAffectedTargets(bundle string, n int) {
	if p == nil {
		return
	}
	p.affectedTargets.WithLabelValues(bundle).Set(float64(n))
}

func (p *PrometheusRecorder) IncTrigger(source string) {
	if p == nil {
		return
	}
	p.triggers.WithLabelValues(source).Inc()
}
