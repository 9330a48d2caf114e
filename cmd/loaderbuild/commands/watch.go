package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/loaderbuild/internal/config"
	"git.home.luguber.info/inful/loaderbuild/internal/daemon"
	"git.home.luguber.info/inful/loaderbuild/internal/metrics"
	"git.home.luguber.info/inful/loaderbuild/internal/orchestrator"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	MetricsAddr    string        `name:"metrics-addr" help:"Override daemon.metrics_addr (empty string keeps the configured value)"`
	ResyncInterval time.Duration `name:"resync-interval" help:"Override daemon.resync_interval"`
	ResyncOnStart  bool          `name:"resync-on-start" help:"Replay every registered build file once at startup"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	if w.MetricsAddr != "" {
		cfg.Daemon.MetricsAddr = w.MetricsAddr
	}
	if w.ResyncInterval > 0 {
		cfg.Daemon.ResyncInterval = config.Duration(w.ResyncInterval)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	h, err := NewHost(ctx, cfg, HostOptions{Metrics: reg, Observe: true}, g.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	d, err := daemon.New(h.Orchestrator, h.Collaborators, daemon.Options{
		Bundles:        cfg.BundleModels(),
		ManifestPath:   cfg.Registry.Manifest,
		Debounce:       cfg.Daemon.Debounce.Std(),
		ResyncInterval: cfg.Daemon.ResyncInterval.Std(),
		GitPoll:        cfg.Daemon.GitPoll.Std(),
		MetricsAddr:    cfg.Daemon.MetricsAddr,
		Metrics:        metrics.HTTPHandler(reg),
		Ignore:         daemon.GeneratedLoaderIgnore(cfg.ClientPath, cfg.ModuleName),
	}, g.Logger)
	if err != nil {
		return err
	}

	if w.ResyncOnStart {
		go func() {
			select {
			case <-d.Ready():
				d.Resync(orchestrator.SourceResync)
			case <-ctx.Done():
			}
		}()
	}

	g.Logger.Info("Watching bundles", slog.Int("bundles", len(cfg.Bundles)))
	if err := d.Run(ctx); err != nil {
		return err
	}
	g.Logger.Info("Daemon stopped successfully")
	return nil
}
