package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/loaderbuild/internal/compiler"
	"git.home.luguber.info/inful/loaderbuild/internal/config"
	"git.home.luguber.info/inful/loaderbuild/internal/enumerate"
	"git.home.luguber.info/inful/loaderbuild/internal/eventstore"
	ferrors "git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/loaderbuild/internal/logfields"
	"git.home.luguber.info/inful/loaderbuild/internal/metrics"
	"git.home.luguber.info/inful/loaderbuild/internal/models"
	"git.home.luguber.info/inful/loaderbuild/internal/notify"
	"git.home.luguber.info/inful/loaderbuild/internal/orchestrator"
	"git.home.luguber.info/inful/loaderbuild/internal/registry"
	"git.home.luguber.info/inful/loaderbuild/internal/writer"
)

// HostOptions selects the optional parts of a Host.
type HostOptions struct {
	// Metrics registers the Prometheus recorder when set.
	Metrics *prom.Registry
	// Observe attaches the journal and NATS notifier when configured.
	Observe bool
	// Compiler replaces the configured external compiler.
	Compiler compiler.Compiler
}

// Host wires the orchestrator and its collaborators from configuration.
type Host struct {
	Config        *config.Config
	Registry      *registry.Registry
	Orchestrator  *orchestrator.Orchestrator
	Collaborators orchestrator.Collaborators
	Journal       *eventstore.Journal

	logger  *slog.Logger
	closers []io.Closer
}

// NewHost builds a host. The caller must Close it.
func NewHost(ctx context.Context, cfg *config.Config, opts HostOptions, logger *slog.Logger) (*Host, error) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Host{Config: cfg, Registry: registry.New(), logger: logger}

	if err := h.loadManifest(); err != nil {
		return nil, err
	}
	pred, err := cfg.FilterPredicate()
	if err != nil {
		return nil, err
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithFilter(pred),
		orchestrator.WithCompilerOptions(cfg.CompilerOptions()),
		orchestrator.WithClientPath(cfg.ClientPath),
		orchestrator.WithModuleName(cfg.ModuleName),
		orchestrator.WithLogger(logger),
	}
	if opts.Metrics != nil {
		orchOpts = append(orchOpts, orchestrator.WithRecorder(metrics.NewPrometheusRecorder(opts.Metrics)))
	}
	if opts.Observe {
		observers, err := h.observers(ctx)
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		for _, obs := range observers {
			orchOpts = append(orchOpts, orchestrator.WithObserver(obs))
		}
	}

	h.Orchestrator, err = orchestrator.New(h.Registry, orchOpts...)
	if err != nil {
		_ = h.Close()
		return nil, err
	}

	bw, err := h.bundleWriter()
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	comp := opts.Compiler
	if comp == nil {
		bc := compiler.NewBinaryCompiler(cfg.Compiler.Command)
		bc.Logger = logger
		comp = bc
	}
	h.Collaborators = orchestrator.Collaborators{
		Enumerator: enumerate.NewFSEnumerator(cfg.Locate),
		Compiler:   comp,
		Writer:     bw,
	}
	return h, nil
}

// loadManifest imports the registry manifest. A missing manifest leaves the
// registry empty; the daemon picks it up once it appears.
func (h *Host) loadManifest() error {
	path := h.Config.Registry.Manifest
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		h.logger.Warn("Registry manifest not found; starting with an empty registry", logfields.Path(path))
		return nil
	}
	m, err := registry.LoadManifest(path, h.Registry)
	if err != nil {
		return err
	}
	h.logger.Info("Registry manifest loaded", logfields.Path(path), slog.Int("bundles", len(m.Bundles())))
	return nil
}

func (h *Host) observers(ctx context.Context) ([]orchestrator.Observer, error) {
	var out []orchestrator.Observer
	if h.Config.Journal.Path != "" {
		j, err := h.openJournal(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	if n := h.Config.Notify; n.NATSURL != "" {
		sink, err := notify.NewNATSSink(ctx, notify.NATSConfig{
			URL:      n.NATSURL,
			Subject:  n.Subject,
			Stream:   n.Stream,
			KVBucket: n.KVBucket,
		})
		if err != nil {
			return nil, err
		}
		h.closers = append(h.closers, sink)
		out = append(out, notify.NewNotifier(sink, n.Subject, h.logger))
		h.logger.Info("Cycle notifications enabled", slog.String("subject", n.Subject))
	}
	return out, nil
}

func (h *Host) openJournal(ctx context.Context) (*eventstore.Journal, error) {
	store, err := eventstore.NewSQLiteStore(h.Config.Journal.Path)
	if err != nil {
		return nil, err
	}
	h.closers = append(h.closers, store)
	j := eventstore.NewJournal(store, h.Config.Journal.MaxHistory, h.logger)
	if err := j.History().Rebuild(ctx); err != nil {
		h.logger.Warn("Failed to rebuild cycle history", logfields.Error(err))
	}
	h.Journal = j
	return j, nil
}

func (h *Host) bundleWriter() (writer.BundleWriter, error) {
	fsw := writer.NewFSWriter(h.Config.Locate)
	s3cfg, ok := h.Config.S3()
	if !ok {
		return fsw, nil
	}
	s3w, err := writer.NewS3Writer(s3cfg)
	if err != nil {
		return nil, err
	}
	h.logger.Info("Mirroring client loader data to object storage", slog.String("bucket", s3cfg.Bucket))
	return writer.Tee(fsw, writer.WithRetry(s3w, h.Config.RetryPolicy())), nil
}

// Bundle returns the configured bundle named name.
func (h *Host) Bundle(name string) (*models.Bundle, error) {
	bc, ok := h.Config.Bundle(name)
	if !ok {
		return nil, ferrors.NotFoundError("bundle not configured").WithContext("bundle", name).Build()
	}
	return bc.Model(), nil
}

// Close releases the journal and notification connections.
func (h *Host) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}
