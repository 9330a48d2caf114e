package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/loaderbuild/internal/git"
	"git.home.luguber.info/inful/loaderbuild/internal/models"
	"git.home.luguber.info/inful/loaderbuild/internal/orchestrator"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	Bundle string   `arg:"" help:"Bundle name"`
	Files  []string `arg:"" optional:"" help:"Changed files, absolute or relative to the bundle directory"`
	Since  string   `help:"Add the files changed since this git revision"`
	JSON   bool     `name:"json" help:"Print the cycle outcome as JSON"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	h, err := NewHost(ctx, cfg, HostOptions{Observe: true}, g.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	out, err := RunCycle(ctx, h, r.Bundle, r.Files, r.Since)
	if out != nil {
		printOutcome(g, out, r.JSON)
	}
	return err
}

// RunCycle runs one cycle for files of a bundle, plus the files changed since
// a git revision when since is set.
func RunCycle(ctx context.Context, h *Host, bundle string, files []string, since string) (*orchestrator.Outcome, error) {
	b, err := h.Bundle(bundle)
	if err != nil {
		return nil, err
	}
	events := ChangeEvents(b, files)
	source := orchestrator.SourceManual
	if since != "" {
		repo, err := git.Open(b.BuildDirectory)
		if err != nil {
			return nil, err
		}
		paths, err := repo.ChangedFiles(since, "")
		if err != nil {
			return nil, err
		}
		events = append(events, repo.ChangeEvents(b.BuildDirectory, paths)...)
		source = orchestrator.SourceGit
	}
	if len(events) == 0 && since == "" {
		return nil, errors.ValidationError("no changed files given (pass files or --since)").Build()
	}
	return h.Orchestrator.BundleUpdated(ctx, orchestrator.Event{Bundle: b, Files: events, Source: source}, h.Collaborators)
}

// ChangeEvents converts command line paths to change events of b.
func ChangeEvents(b *models.Bundle, files []string) []models.ChangeEvent {
	out := make([]models.ChangeEvent, 0, len(files))
	for _, f := range files {
		if filepath.IsAbs(f) {
			out = append(out, models.NewChangeEvent(b.BuildDirectory, f))
			continue
		}
		rel := filepath.ToSlash(filepath.Clean(f))
		out = append(out, models.ChangeEvent{
			FullPath:     filepath.Join(b.BuildDirectory, filepath.FromSlash(rel)),
			RelativePath: rel,
		})
	}
	return out
}

func printOutcome(g *Global, out *orchestrator.Outcome, asJSON bool) {
	w := g.stdout()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}
	_, _ = fmt.Fprintf(w, "cycle %s: %s (%s)\n", out.CycleID, out.Status, out.Duration.Round(time.Millisecond))
	if len(out.Targets) > 0 {
		_, _ = fmt.Fprintf(w, "targets: %s\n", strings.Join(out.Targets, ", "))
	}
	if len(out.Builds) > 0 {
		_, _ = fmt.Fprintf(w, "builds: %s\n", strings.Join(out.Builds, ", "))
	}
	if out.Error != "" {
		_, _ = fmt.Fprintf(w, "failed in %s: %s\n", out.FailedState, out.Error)
	}
}
