package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

// Runner runs one update cycle for a bundle.
type Runner func(ctx context.Context, bundle string, files []models.ChangeEvent, source string)

// Batcher collects change events per bundle, waits for a quiet window and
// hands the batch to the runner. At most one run per bundle is in flight;
// changes arriving during a run are merged and run once it returns.
type Batcher struct {
	ctx    context.Context
	quiet  time.Duration
	run    Runner
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	bundles map[string]*batch
	wg      sync.WaitGroup
}

type batch struct {
	files   []models.ChangeEvent
	seen    map[string]bool
	source  string
	timer   *time.Timer
	ready   bool
	running bool
}

func (b *batch) add(files []models.ChangeEvent, source string) {
	if b.seen == nil {
		b.seen = make(map[string]bool)
	}
	if b.source == "" {
		b.source = source
	}
	for _, f := range files {
		key := f.FullPath + "\x00" + f.RelativePath
		if b.seen[key] {
			continue
		}
		b.seen[key] = true
		b.files = append(b.files, f)
	}
}

func (b *batch) take() ([]models.ChangeEvent, string) {
	files, source := b.files, b.source
	b.files, b.seen, b.source = nil, nil, ""
	return files, source
}

// NewBatcher creates a batcher whose runs use ctx.
func NewBatcher(ctx context.Context, quiet time.Duration, run Runner, logger *slog.Logger) *Batcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{ctx: ctx, quiet: quiet, run: run, logger: logger, bundles: make(map[string]*batch)}
}

// Submit queues files for bundle and restarts its quiet window. The source of
// the first submission in a batch labels the run.
func (bt *Batcher) Submit(bundle string, files []models.ChangeEvent, source string) {
	if len(files) == 0 {
		return
	}
	bt.mu.Lock()
	defer bt.mu.Unlock()
	if bt.closed {
		return
	}
	b, ok := bt.bundles[bundle]
	if !ok {
		b = &batch{}
		bt.bundles[bundle] = b
	}
	b.add(files, source)
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(bt.quiet, func() { bt.fire(bundle) })
}

func (bt *Batcher) fire(bundle string) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	b := bt.bundles[bundle]
	if b == nil || bt.closed {
		return
	}
	b.timer = nil
	b.ready = true
	if b.running {
		bt.logger.Debug("Cycle running; changes queued", slog.String("bundle", bundle), slog.Int("files", len(b.files)))
		return
	}
	b.running = true
	bt.wg.Add(1)
	go bt.drain(bundle, b)
}

func (bt *Batcher) drain(bundle string, b *batch) {
	defer bt.wg.Done()
	for {
		bt.mu.Lock()
		if bt.closed || !b.ready || len(b.files) == 0 {
			b.running = false
			b.ready = false
			bt.mu.Unlock()
			return
		}
		files, source := b.take()
		b.ready = false
		bt.mu.Unlock()

		bt.run(bt.ctx, bundle, files, source)
	}
}

// Pending reports how many files are waiting for bundle.
func (bt *Batcher) Pending(bundle string) int {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	if b := bt.bundles[bundle]; b != nil {
		return len(b.files)
	}
	return 0
}

// Close drops queued changes and waits for in-flight runs.
func (bt *Batcher) Close() {
	bt.mu.Lock()
	bt.closed = true
	for _, b := range bt.bundles {
		if b.timer != nil {
			b.timer.Stop()
		}
	}
	bt.mu.Unlock()
	bt.wg.Wait()
}
