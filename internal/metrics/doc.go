// Package metrics defines the observability hooks of the update pipeline.
//
// Components receive a Recorder and default to NoopRecorder, so no nil checks
// are needed at call sites:
//
//	o := orchestrator.New(reg, orchestrator.WithRecorder(metrics.NoopRecorder{}))
//
// PrometheusRecorder is the real implementation; HTTPHandler exposes its
// registry for scraping.
package metrics
