package daemon

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/loaderbuild/internal/compiler"
	"git.home.luguber.info/inful/loaderbuild/internal/enumerate"
	"git.home.luguber.info/inful/loaderbuild/internal/models"
	"git.home.luguber.info/inful/loaderbuild/internal/orchestrator"
	"git.home.luguber.info/inful/loaderbuild/internal/registry"
	"git.home.luguber.info/inful/loaderbuild/internal/writer"
)

type compileLog struct {
	mu    sync.Mutex
	calls [][]string
}

func (c *compileLog) compiler() compiler.Compiler {
	return compiler.Func(func(_ context.Context, targets []string, _ compiler.Invocation) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.calls = append(c.calls, append([]string(nil), targets...))
		return nil
	})
}

func (c *compileLog) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *compileLog) last() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		return nil
	}
	return c.calls[len(c.calls)-1]
}

type fixture struct {
	dir    string
	bundle *models.Bundle
	reg    *registry.Registry
	comp   *compileLog
	daemon *Daemon
	cancel context.CancelFunc
	done   chan error
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newsDescriptor(dir string) *models.BuildDescriptor {
	return &models.BuildDescriptor{
		Buildfile: filepath.Join(dir, "models", "news.js"),
		Name:      "news",
		Builds: map[string]models.BuildConfig{
			"news-model": {Name: "news-model", Requires: []string{"model"}, Affinity: models.AffinityClient},
		},
	}
}

func newFixture(t *testing.T, reg *registry.Registry, mutate func(*Options)) *fixture {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "models", "news.js"), "// news\n")
	writeFile(t, filepath.Join(dir, "views", "home.js"), "// home\n")

	b := &models.Bundle{Name: "photonews", BuildDirectory: dir}
	if reg == nil {
		reg = registry.New()
		require.NoError(t, reg.RegisterDescriptor(b.Name, newsDescriptor(dir)))
	}
	orch, err := orchestrator.New(reg)
	require.NoError(t, err)

	locate := func(name string) (string, bool) { return dir, name == b.Name }
	comp := &compileLog{}
	collab := orchestrator.Collaborators{
		Enumerator: enumerate.NewFSEnumerator(locate),
		Compiler:   comp.compiler(),
		Writer:     writer.NewFSWriter(locate),
	}
	opts := Options{
		Bundles:  []*models.Bundle{b},
		Debounce: 20 * time.Millisecond,
		Ignore:   GeneratedLoaderIgnore(orch.ClientPath, func(b *models.Bundle) string { return b.LoaderModuleName() }),
	}
	if mutate != nil {
		mutate(&opts)
	}
	d, err := New(orch, collab, opts, nil)
	require.NoError(t, err)
	return &fixture{dir: dir, bundle: b, reg: reg, comp: comp, daemon: d}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	f.cancel = cancel
	f.done = make(chan error, 1)
	go func() { f.done <- f.daemon.Run(ctx) }()
	select {
	case <-f.daemon.Ready():
	case err := <-f.done:
		t.Fatalf("daemon exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not become ready")
	}
	t.Cleanup(f.stop)
}

func (f *fixture) stop() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	f.cancel = nil
	<-f.done
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	orch, err := orchestrator.New(registry.New())
	require.NoError(t, err)

	_, err = New(nil, orchestrator.Collaborators{}, Options{Bundles: []*models.Bundle{{Name: "a"}}}, nil)
	require.Error(t, err)
	_, err = New(orch, orchestrator.Collaborators{}, Options{}, nil)
	require.Error(t, err)
	_, err = New(orch, orchestrator.Collaborators{}, Options{Bundles: []*models.Bundle{{Name: "a"}, {Name: "a"}}}, nil)
	require.Error(t, err)
}

func TestFileChangeTriggersCompile(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.start(t)

	news := filepath.Join(f.dir, "models", "news.js")
	writeFile(t, news, "// news v2\n")

	require.Eventually(t, func() bool { return f.comp.count() >= 1 }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{news}, f.comp.last())

	raw, err := os.ReadFile(filepath.Join(f.dir, "loader-photonews.json"))
	require.NoError(t, err)
	require.True(t, bytes.Contains(raw, []byte("news-model")))
}

func TestGeneratedLoaderFileDoesNotRetrigger(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.start(t)

	writeFile(t, filepath.Join(f.dir, "models", "news.js"), "// news v2\n")
	require.Eventually(t, func() bool { return f.comp.count() >= 1 }, 5*time.Second, 10*time.Millisecond)

	// Let any echo of the loader write settle past several quiet windows.
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, 1, f.comp.count())
}

func TestUnregisteredChangeDoesNotCompile(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.start(t)

	writeFile(t, filepath.Join(f.dir, "views", "home.js"), "// home v2\n")
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, 0, f.comp.count())
}

func TestResyncReplaysRegisteredFiles(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.start(t)

	f.daemon.Resync(orchestrator.SourceResync)

	require.Eventually(t, func() bool { return f.comp.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{filepath.Join(f.dir, "models", "news.js")}, f.comp.last())
}

func TestReloadManifestReplaysImportedBundles(t *testing.T) {
	manifestDir := t.TempDir()
	manifest := filepath.Join(manifestDir, "registry.json")

	f := newFixture(t, registry.New(), func(o *Options) { o.ManifestPath = manifest })

	src := registry.New()
	require.NoError(t, src.RegisterDescriptor(f.bundle.Name, newsDescriptor(f.dir)))
	var buf bytes.Buffer
	require.NoError(t, src.WriteManifest(&buf))
	require.NoError(t, os.WriteFile(manifest, buf.Bytes(), 0o600))

	f.start(t)
	require.NoError(t, f.daemon.ReloadManifest())

	require.Equal(t, 1, f.reg.Count(f.bundle.Name))
	require.Eventually(t, func() bool { return f.comp.count() >= 1 }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{filepath.Join(f.dir, "models", "news.js")}, f.comp.last())
}

func TestRegisteredChangesResolvesRelativeKeys(t *testing.T) {
	reg := registry.New()
	b := &models.Bundle{Name: "news", BuildDirectory: "/b/news"}
	reg.Touch("news", "models/news.js", time.Unix(1, 0))
	reg.Touch("news", "/b/news/lib/build.json", time.Unix(1, 0))

	got := RegisteredChanges(reg, b)
	require.ElementsMatch(t, []models.ChangeEvent{
		{FullPath: filepath.Join("/b/news", "models", "news.js"), RelativePath: "models/news.js"},
		{FullPath: "/b/news/lib/build.json", RelativePath: "lib/build.json"},
	}, got)
}
