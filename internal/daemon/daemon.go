// Package daemon hosts the orchestrator as a long-running process: it watches
// bundle directories and the registry manifest, batches changes per bundle,
// replays registered build files on a schedule and serves metrics.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/loaderbuild/internal/git"
	"git.home.luguber.info/inful/loaderbuild/internal/logfields"
	"git.home.luguber.info/inful/loaderbuild/internal/models"
	"git.home.luguber.info/inful/loaderbuild/internal/orchestrator"
	"git.home.luguber.info/inful/loaderbuild/internal/registry"
	"git.home.luguber.info/inful/loaderbuild/internal/resolver"
)

// Options configures a Daemon.
type Options struct {
	Bundles      []*models.Bundle
	ManifestPath string
	// Debounce is the quiet window before a batch of changes runs.
	Debounce time.Duration
	// ResyncInterval replays every registered build file; zero disables it.
	ResyncInterval time.Duration
	// GitPoll checks bundle repositories for new commits; zero disables it.
	GitPoll     time.Duration
	MetricsAddr string
	// Metrics serves /metrics when MetricsAddr is set.
	Metrics http.Handler
	// Ignore drops watcher events, typically for generated loader files.
	Ignore IgnoreFunc
}

// Daemon runs update cycles in response to filesystem, manifest, schedule
// and git triggers.
type Daemon struct {
	orch    *orchestrator.Orchestrator
	collab  orchestrator.Collaborators
	opts    Options
	bundles map[string]*models.Bundle
	tracker *git.Tracker
	logger  *slog.Logger

	mu      sync.Mutex
	batcher *Batcher
	ready   chan struct{}
}

// New creates a daemon. Every bundle must have a unique name.
func New(orch *orchestrator.Orchestrator, collab orchestrator.Collaborators, opts Options, logger *slog.Logger) (*Daemon, error) {
	if orch == nil {
		return nil, ferrors.ValidationError("orchestrator is required").Build()
	}
	if len(opts.Bundles) == 0 {
		return nil, ferrors.ValidationError("at least one bundle is required").Build()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Daemon{
		orch:    orch,
		collab:  collab,
		opts:    opts,
		bundles: make(map[string]*models.Bundle, len(opts.Bundles)),
		tracker: git.NewTracker(),
		logger:  logger,
		ready:   make(chan struct{}),
	}
	for _, b := range opts.Bundles {
		if _, dup := d.bundles[b.Name]; dup {
			return nil, ferrors.ValidationError("duplicate bundle").WithContext("bundle", b.Name).Build()
		}
		d.bundles[b.Name] = b
	}
	return d, nil
}

// Ready is closed once Run accepts triggers.
func (d *Daemon) Ready() <-chan struct{} { return d.ready }

// Run blocks until ctx is done. In-flight cycles see the cancellation and
// are waited for before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	watcher, err := NewWatcher(d.opts.Bundles, d.opts.ManifestPath, d.opts.Ignore, d.logger)
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	batcher := NewBatcher(ctx, d.opts.Debounce, d.runCycle, d.logger)
	d.mu.Lock()
	d.batcher = batcher
	d.mu.Unlock()
	defer batcher.Close()

	sched, err := d.schedule()
	if err != nil {
		return err
	}
	if sched != nil {
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				d.logger.Warn("Scheduler shutdown error", logfields.Error(err))
			}
		}()
	}

	var srv *http.Server
	if d.opts.MetricsAddr != "" {
		srv = d.startMetricsServer()
	}

	manifestTrigger := debounced(d.opts.Debounce, func() {
		if err := d.ReloadManifest(); err != nil {
			d.logger.Error("Failed to reload registry manifest", logfields.Error(err))
		}
	})
	go watcher.Run(ctx, func(b *models.Bundle, ev models.ChangeEvent) {
		batcher.Submit(b.Name, []models.ChangeEvent{ev}, orchestrator.SourceWatch)
	}, manifestTrigger)

	d.logger.Info("Daemon started",
		slog.Int("bundles", len(d.bundles)),
		slog.Duration("debounce", d.opts.Debounce),
		slog.Duration("resync_interval", d.opts.ResyncInterval))
	close(d.ready)

	<-ctx.Done()
	d.logger.Info("Shutting down daemon")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("Metrics server shutdown error", logfields.Error(err))
		}
	}
	return nil
}

func (d *Daemon) schedule() (*Scheduler, error) {
	if d.opts.ResyncInterval <= 0 && d.opts.GitPoll <= 0 {
		return nil, nil
	}
	sched, err := NewScheduler()
	if err != nil {
		return nil, err
	}
	if d.opts.ResyncInterval > 0 {
		if _, err := sched.Every("resync", d.opts.ResyncInterval, func() { d.Resync(orchestrator.SourceResync) }); err != nil {
			return nil, err
		}
	}
	if d.opts.GitPoll > 0 {
		d.PollGit() // records the starting HEADs
		if _, err := sched.Every("git-poll", d.opts.GitPoll, d.PollGit); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func (d *Daemon) startMetricsServer() *http.Server {
	mux := http.NewServeMux()
	if d.opts.Metrics != nil {
		mux.Handle("/metrics", d.opts.Metrics)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	srv := &http.Server{Addr: d.opts.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	d.logger.Info("Metrics server listening", slog.String("addr", d.opts.MetricsAddr))
	return srv
}

// Submit queues changed files of a bundle. It is a no-op before Run starts.
func (d *Daemon) Submit(bundle string, files []models.ChangeEvent, source string) {
	d.mu.Lock()
	b := d.batcher
	d.mu.Unlock()
	if b == nil {
		return
	}
	b.Submit(bundle, files, source)
}

func (d *Daemon) runCycle(ctx context.Context, name string, files []models.ChangeEvent, source string) {
	b, ok := d.bundles[name]
	if !ok {
		d.logger.Warn("Change for unknown bundle dropped", logfields.Bundle(name))
		return
	}
	out, err := d.orch.BundleUpdated(ctx, orchestrator.Event{Bundle: b, Files: files, Source: source}, d.collab)
	if err != nil {
		// The orchestrator already logged the failure with its stage.
		return
	}
	d.logger.Debug("Cycle finished", logfields.Bundle(name), logfields.Status(string(out.Status)))
}

// Resync replays every registered build file of every bundle.
func (d *Daemon) Resync(source string) {
	for _, b := range d.opts.Bundles {
		d.resyncBundle(b, source)
	}
}

func (d *Daemon) resyncBundle(b *models.Bundle, source string) {
	files := RegisteredChanges(d.orch.Registry(), b)
	if len(files) == 0 {
		return
	}
	d.logger.Info("Replaying registered build files", logfields.Bundle(b.Name), logfields.Files(len(files)), slog.String("source", source))
	d.Submit(b.Name, files, source)
}

// ReloadManifest re-imports the registry manifest and replays the bundles it names.
func (d *Daemon) ReloadManifest() error {
	if d.opts.ManifestPath == "" {
		return nil
	}
	m, err := registry.LoadManifest(d.opts.ManifestPath, d.orch.Registry())
	if err != nil {
		return err
	}
	d.logger.Info("Registry manifest reloaded", logfields.Path(d.opts.ManifestPath), slog.Int("bundles", len(m.Bundles())))
	for _, name := range m.Bundles() {
		if b, ok := d.bundles[name]; ok {
			d.resyncBundle(b, orchestrator.SourceManifest)
		}
	}
	return nil
}

// PollGit submits files changed by new commits in bundle repositories.
// Bundles outside a repository are skipped.
func (d *Daemon) PollGit() {
	for _, b := range d.opts.Bundles {
		files, err := d.tracker.Poll(b)
		if err != nil {
			d.logger.Debug("Git poll skipped", logfields.Bundle(b.Name), logfields.Error(err))
			continue
		}
		if len(files) > 0 {
			d.Submit(b.Name, files, orchestrator.SourceGit)
		}
	}
}

// RegisteredChanges converts a bundle's registered build files to change
// events, for replaying them through a cycle.
func RegisteredChanges(reg *registry.Registry, b *models.Bundle) []models.ChangeEvent {
	keys := reg.Buildfiles(b.Name)
	out := make([]models.ChangeEvent, 0, len(keys))
	for _, k := range keys {
		if !filepath.IsAbs(k) {
			out = append(out, models.ChangeEvent{FullPath: filepath.Join(b.BuildDirectory, filepath.FromSlash(k)), RelativePath: k})
			continue
		}
		out = append(out, models.NewChangeEvent(b.BuildDirectory, k))
	}
	return out
}

// GeneratedLoaderIgnore ignores the client loader data file and the compiled
// loader module of a bundle, so writing them does not trigger another cycle.
func GeneratedLoaderIgnore(clientPath, moduleName func(b *models.Bundle) string) IgnoreFunc {
	return IgnoreFunc(resolver.SkipGenerated(clientPath, moduleName))
}

func debounced(wait time.Duration, fn func()) func() {
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(wait, fn)
	}
}
