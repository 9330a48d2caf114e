// Package orchestrator runs the bundle-update pipeline: filter the changed
// files, resolve affected build targets, produce and attach server and client
// loader metadata, then compile. Stages run strictly in order and the first
// failure ends the cycle with the collaborator's error, unchanged.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/loaderbuild/internal/compiler"
	"git.home.luguber.info/inful/loaderbuild/internal/enumerate"
	"git.home.luguber.info/inful/loaderbuild/internal/filter"
	ferrors "git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/loaderbuild/internal/loaderdata"
	"git.home.luguber.info/inful/loaderbuild/internal/logfields"
	"git.home.luguber.info/inful/loaderbuild/internal/metrics"
	"git.home.luguber.info/inful/loaderbuild/internal/models"
	"git.home.luguber.info/inful/loaderbuild/internal/registry"
	"git.home.luguber.info/inful/loaderbuild/internal/resolver"
	"git.home.luguber.info/inful/loaderbuild/internal/writer"
)

// Trigger sources recorded on outcomes and metrics.
const (
	SourceManual   = "manual"
	SourceWatch    = "watch"
	SourceResync   = "resync"
	SourceManifest = "manifest"
	SourceGit      = "git"
)

// Event is a bundle-update notification.
type Event struct {
	Bundle *models.Bundle
	Files  []models.ChangeEvent
	// Source says what triggered the cycle; SourceManual when empty.
	Source string
}

// Collaborators are the host-provided services a cycle calls out to.
type Collaborators struct {
	Enumerator enumerate.Enumerator
	Compiler   compiler.Compiler
	Writer     writer.BundleWriter
}

// Observer is notified when cycles start and finish. Observers run on the
// cycle's goroutine and must not block for long; they cannot fail a cycle.
type Observer interface {
	CycleStarted(ctx context.Context, out *Outcome)
	CycleFinished(ctx context.Context, out *Outcome)
}

// Orchestrator owns the registry view and options shared by all cycles.
// Cycles for different bundles may run concurrently; the host serializes
// cycles of the same bundle.
type Orchestrator struct {
	registry   *registry.Registry
	resolver   *resolver.Resolver
	aggregator *loaderdata.Aggregator
	driver     *compiler.Driver
	predicate  filter.Predicate
	clientPath func(b *models.Bundle) string
	moduleName func(b *models.Bundle) string

	compilerOpts compiler.Options
	resolverOpts []resolver.Option
	aggOpts      []loaderdata.AggregatorOption
	cacheSize    int

	recorder  metrics.Recorder
	observers []Observer
	logger    *slog.Logger
	newID     func() string
	now       func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithFilter sets the change filter predicate.
func WithFilter(p filter.Predicate) Option { return func(o *Orchestrator) { o.predicate = p } }

// WithCompilerOptions replaces compiler.DefaultOptions.
func WithCompilerOptions(opts compiler.Options) Option {
	return func(o *Orchestrator) { o.compilerOpts = opts }
}

// WithClientPath sets where client loader data is written inside a bundle.
func WithClientPath(fn func(b *models.Bundle) string) Option {
	return func(o *Orchestrator) { o.clientPath = fn }
}

// WithModuleName sets the loader meta-module name added to client data.
func WithModuleName(fn func(b *models.Bundle) string) Option {
	return func(o *Orchestrator) {
		o.moduleName = fn
		o.aggOpts = append(o.aggOpts, loaderdata.WithModuleName(fn))
	}
}

// WithResolverOptions passes options to the affected-build resolver. By default
// the resolver skips the generated files named by the client path and module name.
func WithResolverOptions(opts ...resolver.Option) Option {
	return func(o *Orchestrator) { o.resolverOpts = append(o.resolverOpts, opts...) }
}

// WithCacheSize bounds the loader data cache.
func WithCacheSize(n int) Option { return func(o *Orchestrator) { o.cacheSize = n } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithObserver adds a cycle observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithIDGenerator replaces the cycle id generator.
func WithIDGenerator(fn func() string) Option { return func(o *Orchestrator) { o.newID = fn } }

// DefaultClientPath writes client data to loader-<bundle>.json at the bundle root.
func DefaultClientPath(b *models.Bundle) string {
	return b.LoaderModuleName() + ".json"
}

// New creates an orchestrator reading descriptors from reg.
func New(reg *registry.Registry, opts ...Option) (*Orchestrator, error) {
	if reg == nil {
		return nil, ferrors.ValidationError("registry is required").Build()
	}
	o := &Orchestrator{
		registry:     reg,
		clientPath:   DefaultClientPath,
		compilerOpts: compiler.DefaultOptions(),
		recorder:     metrics.NoopRecorder{},
		logger:       slog.Default(),
		newID:        uuid.NewString,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	agg, err := loaderdata.NewAggregator(reg, o.cacheSize, o.aggOpts...)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "create loader data cache").Build()
	}
	o.aggregator = agg
	skip := resolver.WithSkip(resolver.SkipGenerated(o.clientPath, o.moduleName))
	o.resolver = resolver.New(reg, append([]resolver.Option{skip}, o.resolverOpts...)...)
	o.driver = compiler.NewDriver(nil, o.compilerOpts, o.logger)
	return o, nil
}

// Registry returns the registry the orchestrator reads.
func (o *Orchestrator) Registry() *registry.Registry { return o.registry }

// Aggregator returns the loader data aggregator.
func (o *Orchestrator) Aggregator() *loaderdata.Aggregator { return o.aggregator }

// ClientPath returns the client output path for b.
func (o *Orchestrator) ClientPath(b *models.Bundle) string { return o.clientPath(b) }

func validate(ev Event, c Collaborators) error {
	switch {
	case ev.Bundle == nil:
		return ferrors.ValidationError("event has no bundle").Build()
	case ev.Bundle.Name == "":
		return ferrors.ValidationError("bundle has no name").Build()
	case c.Enumerator == nil:
		return ferrors.ValidationError("enumerator is required").WithContext("bundle", ev.Bundle.Name).Build()
	case c.Compiler == nil:
		return ferrors.ValidationError("compiler is required").WithContext("bundle", ev.Bundle.Name).Build()
	case c.Writer == nil:
		return ferrors.ValidationError("bundle writer is required").WithContext("bundle", ev.Bundle.Name).Build()
	}
	return nil
}

// BundleUpdated runs one cycle for ev. It returns the outcome in every case
// once the cycle started; on failure the error is the one the failing
// collaborator (or the context) returned.
func (o *Orchestrator) BundleUpdated(ctx context.Context, ev Event, c Collaborators) (*Outcome, error) {
	if err := validate(ev, c); err != nil {
		return nil, err
	}
	source := ev.Source
	if source == "" {
		source = SourceManual
	}
	cyc := &cycle{
		event:  ev,
		collab: c,
		out: &Outcome{
			CycleID: o.newID(),
			Bundle:  ev.Bundle.Name,
			Source:  source,
			Trace:   []State{StateIdle},
			Started: o.now(),
		},
	}
	log := o.logger.With(logfields.Bundle(ev.Bundle.Name), logfields.CycleID(cyc.out.CycleID))
	o.recorder.IncTrigger(source)
	log.Debug("Bundle update received", logfields.Files(len(ev.Files)), slog.String("source", source))
	for _, obs := range o.observers {
		obs.CycleStarted(ctx, cyc.out)
	}

	for _, st := range o.stages() {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, log, cyc, cyc.out.State(), err)
		}
		if err := o.enter(cyc, st.state); err != nil {
			return o.fail(ctx, log, cyc, st.state, err)
		}
		start := o.now()
		err := st.run(ctx, cyc)
		o.recorder.ObserveStageDuration(string(st.state), o.now().Sub(start))
		if err != nil {
			o.recorder.IncStageResult(string(st.state), stageResult(err))
			return o.fail(ctx, log, cyc, st.state, err)
		}
		o.recorder.IncStageResult(string(st.state), metrics.ResultSuccess)
		if cyc.noop {
			return o.finish(ctx, log, cyc, StatusNoOp)
		}
	}
	return o.finish(ctx, log, cyc, StatusSucceeded)
}

func (o *Orchestrator) enter(cyc *cycle, to State) error {
	next, err := Transition(cyc.out.State(), to)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "invalid cycle transition").Build()
	}
	cyc.out.Trace = append(cyc.out.Trace, next)
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, log *slog.Logger, cyc *cycle, status Status) (*Outcome, error) {
	if err := o.enter(cyc, StateDone); err != nil {
		return o.fail(ctx, log, cyc, cyc.out.State(), err)
	}
	out := cyc.out
	out.Status = status
	out.Duration = o.now().Sub(out.Started)
	o.recorder.ObserveCycleDuration(out.Duration)
	o.recorder.IncCycleOutcome(string(status))
	o.recorder.SetAffectedTargets(out.Bundle, len(out.Targets))

	if status == StatusNoOp {
		log.Debug("No affected build targets", logfields.Files(len(out.Changed)), logfields.Elapsed(out.Duration))
	} else {
		log.Info("Bundle update cycle completed",
			logfields.Targets(len(out.Targets)),
			slog.Any("builds", out.Builds),
			logfields.Elapsed(out.Duration))
	}
	o.notifyFinished(ctx, out)
	return out, nil
}

func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, cyc *cycle, at State, err error) (*Outcome, error) {
	out := cyc.out
	if !out.State().IsTerminal() {
		if next, abortErr := Abort(out.State()); abortErr == nil {
			out.Trace = append(out.Trace, next)
		}
	}
	out.Status = StatusFailed
	out.FailedState = at
	out.Error = err.Error()
	out.Duration = o.now().Sub(out.Started)
	o.recorder.ObserveCycleDuration(out.Duration)
	o.recorder.IncCycleOutcome(string(StatusFailed))

	log.Error("Bundle update cycle failed",
		logfields.Stage(string(at)),
		logfields.Targets(len(out.Targets)),
		logfields.Error(err),
		logfields.Elapsed(out.Duration))
	// Observers get a context that survives cancellation of the cycle.
	o.notifyFinished(context.WithoutCancel(ctx), out)
	return out, err
}

func (o *Orchestrator) notifyFinished(ctx context.Context, out *Outcome) {
	for _, obs := range o.observers {
		obs.CycleFinished(ctx, out)
	}
}

func stageResult(err error) metrics.ResultLabel {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return metrics.ResultCanceled
	}
	return metrics.ResultFailed
}
