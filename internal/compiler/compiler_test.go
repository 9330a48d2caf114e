package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

type recordingCompiler struct {
	calls   int
	targets []string
	inv     Invocation
	err     error
}

func (r *recordingCompiler) ShiftFiles(_ context.Context, targets []string, inv Invocation) error {
	r.calls++
	r.targets = targets
	r.inv = inv
	return r.err
}

func TestOptionsArgs(t *testing.T) {
	require.Equal(t, []string{"--no-global-config", "--no-coverage", "--no-lint"}, DefaultOptions().Args())
	require.True(t, DefaultOptions().Cache)

	opts := Options{GlobalConfig: true, Coverage: true, Lint: true, CSSProc: "assets", ExtraArgs: []string{"--quiet"}}
	require.Equal(t, []string{"--cssproc", "assets", "--quiet"}, opts.Args())
}

func TestDriverCallsCompilerOnceWithAllTargets(t *testing.T) {
	rec := &recordingCompiler{}
	d := NewDriver(rec, DefaultOptions(), nil)
	b := &models.Bundle{Name: "foo", BuildDirectory: "/b/foo"}

	require.NoError(t, d.Compile(t.Context(), b, []string{"bar.js", "build.json"}))
	require.Equal(t, 1, rec.calls)
	require.Equal(t, []string{"bar.js", "build.json"}, rec.targets)
	require.Equal(t, Invocation{
		BuildDir: "/b/foo",
		Cache:    true,
		Args:     []string{"--no-global-config", "--no-coverage", "--no-lint"},
	}, rec.inv)
}

func TestDriverThreadsBundleCSSProc(t *testing.T) {
	rec := &recordingCompiler{}
	d := NewDriver(rec, DefaultOptions(), nil)
	b := &models.Bundle{Name: "foo", BuildDirectory: "/b/foo", CSSProc: "/b/foo/assets"}

	require.NoError(t, d.Compile(t.Context(), b, []string{"bar.js"}))
	require.Equal(t, []string{"--no-global-config", "--no-coverage", "--no-lint", "--cssproc", "/b/foo/assets"}, rec.inv.Args)
}

func TestDriverReturnsCompilerErrorUnchanged(t *testing.T) {
	boom := errors.New("ouch")
	d := NewDriver(&recordingCompiler{err: boom}, DefaultOptions(), nil)

	err := d.Compile(t.Context(), &models.Bundle{Name: "foo"}, []string{"bar.js"})
	require.Same(t, boom, err)
}

func TestCompileWithUsesGivenCompiler(t *testing.T) {
	var got []string
	d := NewDriver(nil, DefaultOptions(), nil)
	err := d.CompileWith(t.Context(), Func(func(_ context.Context, targets []string, _ Invocation) error {
		got = targets
		return nil
	}), &models.Bundle{Name: "foo"}, []string{"a.js"})
	require.NoError(t, err)
	require.Equal(t, []string{"a.js"}, got)
}

func TestCompileWithoutCompilerIsValidationError(t *testing.T) {
	d := NewDriver(nil, DefaultOptions(), nil)

	err := d.Compile(t.Context(), &models.Bundle{Name: "foo"}, []string{"bar.js"})
	require.Error(t, err)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	require.Equal(t, ferrors.CategoryValidation, ce.Category())
}
