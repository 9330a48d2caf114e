package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/loaderbuild/internal/orchestrator"
)

type published struct {
	subject string
	data    []byte
}

type fakeSink struct {
	published  []published
	remembered map[string][]byte
	err        error
}

func (f *fakeSink) Publish(ctx context.Context, subject string, data []byte) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, published{subject, data})
	return nil
}

func (f *fakeSink) Remember(_ context.Context, bundle string, data []byte) error {
	if f.remembered == nil {
		f.remembered = map[string][]byte{}
	}
	f.remembered[bundle] = data
	return nil
}

func TestNotifierPublishesFinishedCycles(t *testing.T) {
	sink := &fakeSink{}
	n := NewNotifier(sink, "", nil)
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	out := &orchestrator.Outcome{
		CycleID:     "c1",
		Bundle:      "photo.news",
		Source:      orchestrator.SourceWatch,
		Status:      orchestrator.StatusFailed,
		FailedState: orchestrator.StateCompiling,
		Error:       "ouch",
		Targets:     []string{"/b/models/news.js"},
		Started:     started,
		Duration:    250 * time.Millisecond,
	}

	n.CycleStarted(t.Context(), out)
	require.Empty(t, sink.published)

	n.CycleFinished(t.Context(), out)
	require.Len(t, sink.published, 1)
	require.Equal(t, "loaderbuild.cycles.photo_news.failed", sink.published[0].subject)

	var msg Message
	require.NoError(t, json.Unmarshal(sink.published[0].data, &msg))
	require.Equal(t, "c1", msg.CycleID)
	require.Equal(t, "Compiling", msg.FailedState)
	require.Equal(t, []string{}, msg.Builds)
	require.Equal(t, int64(250), msg.DurationMS)
	require.True(t, started.Equal(msg.StartedAt))
	require.Contains(t, sink.remembered, "photo_news")
}

func TestNotifierSwallowsPublishErrors(t *testing.T) {
	sink := &fakeSink{err: errors.New("no responders")}
	n := NewNotifier(sink, "builds", nil)
	n.CycleFinished(context.Background(), &orchestrator.Outcome{CycleID: "c1", Bundle: "b", Status: orchestrator.StatusNoOp})
	require.Empty(t, sink.published)
	require.Empty(t, sink.remembered)
}

func TestToken(t *testing.T) {
	require.Equal(t, "_", Token(""))
	require.Equal(t, "news", Token("news"))
	require.Equal(t, "a_b_c_d", Token("a.b*c>d"))
	require.Equal(t, "my_bundle", Token("my bundle"))
	require.Equal(t, "x.photonews.noop", NewNotifier(&fakeSink{}, "x", nil).Subject("photonews", "noop"))
}

func TestNewNATSSinkRequiresURL(t *testing.T) {
	_, err := NewNATSSink(t.Context(), NATSConfig{})
	require.Error(t, err)
}
