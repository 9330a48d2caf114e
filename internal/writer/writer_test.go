package writer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/loaderbuild/internal/models"
	"git.home.luguber.info/inful/loaderbuild/internal/retry"
)

type captured struct {
	bundle string
	dst    string
	data   any
}

func TestAttachServerIsIdempotent(t *testing.T) {
	b := &models.Bundle{Name: "foo"}
	data := &models.LoaderData{JSON: map[string]models.ModuleMeta{
		"news": {Group: "foo", Requires: []string{"model"}},
	}}

	AttachServer(b, data)
	first := b.Loader.Server
	AttachServer(b, data)

	require.Equal(t, data.JSON, b.Loader.Server)
	require.Equal(t, first, b.Loader.Server)
}

func TestAttachClientDelegates(t *testing.T) {
	var calls []captured
	w := Func(func(_ context.Context, bundle, dst string, data any) error {
		calls = append(calls, captured{bundle, dst, data})
		return nil
	})
	b := &models.Bundle{Name: "foo"}
	data := &models.LoaderData{JSON: map[string]models.ModuleMeta{"x": {Group: "foo"}}}

	require.NoError(t, AttachClient(t.Context(), w, b, "loader-foo.json", data))
	require.Len(t, calls, 1)
	require.Equal(t, "foo", calls[0].bundle)
	require.Equal(t, "loader-foo.json", calls[0].dst)
	require.Equal(t, data.JSON, calls[0].data)
	require.Nil(t, b.Loader)
}

func TestAttachClientReturnsWriterError(t *testing.T) {
	boom := errors.New("disk full")
	w := Func(func(context.Context, string, string, any) error { return boom })
	err := AttachClient(t.Context(), w, &models.Bundle{Name: "foo"}, "x.json", &models.LoaderData{})
	require.Same(t, boom, err)
}

func TestTeeStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	var order []string
	mk := func(name string, err error) BundleWriter {
		return Func(func(context.Context, string, string, any) error {
			order = append(order, name)
			return err
		})
	}
	err := Tee(mk("a", nil), mk("b", boom), mk("c", nil)).WriteFileInBundle(t.Context(), "foo", "x.json", nil)
	require.Same(t, boom, err)
	require.Equal(t, []string{"a", "b"}, order)
}

func TestWithRetryRepeatsTransientFailures(t *testing.T) {
	calls := 0
	flaky := Func(func(context.Context, string, string, any) error {
		calls++
		if calls == 1 {
			return ferrors.WriteError("upload failed").Build()
		}
		return nil
	})
	w := WithRetry(flaky, retry.NewPolicy(retry.ModeFixed, time.Millisecond, time.Millisecond, 2))

	require.NoError(t, w.WriteFileInBundle(t.Context(), "foo", "loader-foo.json", map[string]any{}))
	require.Equal(t, 2, calls)
}
