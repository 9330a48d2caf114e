package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field names shared by every package.
const (
	KeyBundle     = "bundle"
	KeyCycleID    = "cycle_id"
	KeyStage      = "stage"
	KeyState      = "state"
	KeyStatus     = "status"
	KeyTargets    = "targets"
	KeyFiles      = "files"
	KeyPath       = "path"
	KeyBuildfile  = "buildfile"
	KeyDurationMS = "duration_ms"
	KeyJob        = "job"
	KeyError      = "error"
)

func Bundle(name string) slog.Attr      { return slog.String(KeyBundle, name) }
func CycleID(id string) slog.Attr       { return slog.String(KeyCycleID, id) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func State(s string) slog.Attr          { return slog.String(KeyState, s) }
func Status(s string) slog.Attr         { return slog.String(KeyStatus, s) }
func Targets(n int) slog.Attr           { return slog.Int(KeyTargets, n) }
func Files(n int) slog.Attr             { return slog.Int(KeyFiles, n) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Buildfile(p string) slog.Attr      { return slog.String(KeyBuildfile, p) }
func Job(name string) slog.Attr         { return slog.String(KeyJob, name) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func Elapsed(d time.Duration) slog.Attr { return DurationMS(float64(d.Microseconds()) / 1000) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
