package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

type runLog struct {
	mu   sync.Mutex
	runs [][]models.ChangeEvent
	srcs []string
}

func (l *runLog) record(files []models.ChangeEvent, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append(l.runs, files)
	l.srcs = append(l.srcs, source)
}

func (l *runLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.runs)
}

func ev(path string) models.ChangeEvent {
	return models.ChangeEvent{FullPath: "/b/" + path, RelativePath: path}
}

func TestBatcherDedupesWithinWindow(t *testing.T) {
	log := &runLog{}
	bt := NewBatcher(t.Context(), 100*time.Millisecond, func(_ context.Context, _ string, files []models.ChangeEvent, source string) {
		log.record(files, source)
	}, nil)
	defer bt.Close()

	bt.Submit("news", []models.ChangeEvent{ev("a.js")}, "watch")
	bt.Submit("news", []models.ChangeEvent{ev("a.js"), ev("b.js")}, "resync")
	require.Equal(t, 2, bt.Pending("news"))

	require.Eventually(t, func() bool { return log.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	log.mu.Lock()
	defer log.mu.Unlock()
	require.Equal(t, []models.ChangeEvent{ev("a.js"), ev("b.js")}, log.runs[0])
	require.Equal(t, "watch", log.srcs[0])
}

func TestBatcherCoalescesChangesDuringRun(t *testing.T) {
	log := &runLog{}
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	bt := NewBatcher(t.Context(), 10*time.Millisecond, func(_ context.Context, _ string, files []models.ChangeEvent, source string) {
		started <- struct{}{}
		log.record(files, source)
		if log.count() == 1 {
			<-release
		}
	}, nil)
	defer bt.Close()

	bt.Submit("news", []models.ChangeEvent{ev("a.js")}, "watch")
	<-started

	bt.Submit("news", []models.ChangeEvent{ev("b.js")}, "watch")
	bt.Submit("news", []models.ChangeEvent{ev("c.js")}, "watch")
	require.Eventually(t, func() bool { return bt.Pending("news") == 2 }, time.Second, 5*time.Millisecond)
	// The quiet window elapses while the first run is blocked.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, log.count())

	close(release)
	require.Eventually(t, func() bool { return log.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 2, log.count())

	log.mu.Lock()
	defer log.mu.Unlock()
	require.Equal(t, []models.ChangeEvent{ev("b.js"), ev("c.js")}, log.runs[1])
}

func TestBatcherKeepsBundlesApart(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	bt := NewBatcher(t.Context(), 10*time.Millisecond, func(_ context.Context, bundle string, files []models.ChangeEvent, _ string) {
		mu.Lock()
		defer mu.Unlock()
		seen[bundle] += len(files)
	}, nil)
	defer bt.Close()

	bt.Submit("news", []models.ChangeEvent{ev("a.js")}, "watch")
	bt.Submit("photos", []models.ChangeEvent{ev("a.js"), ev("b.js")}, "watch")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["news"] == 1 && seen["photos"] == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBatcherCloseDropsQueuedChanges(t *testing.T) {
	log := &runLog{}
	bt := NewBatcher(t.Context(), time.Hour, func(_ context.Context, _ string, files []models.ChangeEvent, source string) {
		log.record(files, source)
	}, nil)

	bt.Submit("news", []models.ChangeEvent{ev("a.js")}, "watch")
	bt.Close()
	bt.Submit("news", []models.ChangeEvent{ev("b.js")}, "watch")

	require.Equal(t, 0, log.count())
	require.Equal(t, 1, bt.Pending("news"))
}

func TestBatcherIgnoresEmptySubmissions(t *testing.T) {
	bt := NewBatcher(t.Context(), time.Hour, func(context.Context, string, []models.ChangeEvent, string) {}, nil)
	defer bt.Close()

	bt.Submit("news", nil, "watch")
	require.Equal(t, 0, bt.Pending("news"))
}
