package resolver

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/loaderbuild/internal/models"
	"git.home.luguber.info/inful/loaderbuild/internal/registry"
)

func newBundle(dir string) *models.Bundle {
	return &models.Bundle{Name: "photonews", BuildDirectory: dir}
}

func register(t *testing.T, reg *registry.Registry, buildfile string, names ...string) {
	t.Helper()
	d := &models.BuildDescriptor{Buildfile: buildfile, Builds: map[string]models.BuildConfig{}}
	for _, n := range names {
		d.Builds[n] = models.BuildConfig{Name: n}
	}
	require.NoError(t, reg.RegisterDescriptor("photonews", d))
}

func TestResolveRegisteredFile(t *testing.T) {
	dir := "/b/photonews"
	reg := registry.New()
	news := filepath.Join(dir, "models/news.js")
	register(t, reg, news, "news-model")

	res := New(reg).Resolve(newBundle(dir), []string{news, news}, []string{news})
	require.Equal(t, []string{news}, res.Targets)
	require.Equal(t, []string{"news-model"}, res.Builds)
	require.False(t, res.Empty())
}

func TestResolveRelativeRegistryKey(t *testing.T) {
	dir := "/b/photonews"
	reg := registry.New()
	register(t, reg, "models/news.js", "news-model")

	res := New(reg).Resolve(newBundle(dir), []string{filepath.Join(dir, "models/news.js")}, nil)
	require.Equal(t, []string{filepath.Join(dir, "models/news.js")}, res.Targets)
}

func TestResolveUnrelatedFileIsNoOp(t *testing.T) {
	reg := registry.New()
	register(t, reg, "/b/photonews/models/news.js", "news-model")

	res := New(reg).Resolve(newBundle("/b/photonews"), []string{"/b/photonews/README.md"}, nil)
	require.True(t, res.Empty())
	require.Empty(t, res.Builds)
}

func TestResolveBuildJSONDirectory(t *testing.T) {
	dir := "/b/photonews"
	reg := registry.New()
	buildJSON := filepath.Join(dir, "lib/photos/build.json")
	register(t, reg, buildJSON, "photos", "photos-core")
	unregistered := filepath.Join(dir, "lib/other/build.json")

	changed := []string{
		filepath.Join(dir, "lib/photos/js/photos.js"),
		filepath.Join(dir, "lib/other/js/other.js"),
		filepath.Join(dir, "lib/photos/js/extra.js"),
	}
	res := New(reg).Resolve(newBundle(dir), changed, []string{unregistered, buildJSON})
	require.Equal(t, []string{buildJSON}, res.Targets)
	require.Equal(t, []string{"photos", "photos-core"}, res.Builds)
}

func TestResolveSiblingDirectoryDoesNotMatch(t *testing.T) {
	dir := "/b/photonews"
	reg := registry.New()
	buildJSON := filepath.Join(dir, "lib/photos/build.json")
	register(t, reg, buildJSON, "photos")

	res := New(reg).Resolve(newBundle(dir), []string{filepath.Join(dir, "lib/photos-extra/x.js")}, []string{buildJSON})
	require.True(t, res.Empty())
}

func TestResolveOrderIsFirstSeen(t *testing.T) {
	dir := "/b/photonews"
	reg := registry.New()
	a := filepath.Join(dir, "a.js")
	b := filepath.Join(dir, "b.js")
	register(t, reg, a, "a")
	register(t, reg, b, "b")

	res := New(reg).Resolve(newBundle(dir), []string{b, a, b}, nil)
	require.Equal(t, []string{b, a}, res.Targets)
	require.Equal(t, []string{"b", "a"}, res.Builds)
}

func TestResolveSkipsGeneratedLoader(t *testing.T) {
	dir := "/b/photonews"
	reg := registry.New()
	generated := filepath.Join(dir, "loader-photonews.js")
	register(t, reg, generated, "loader-photonews")

	res := New(reg).Resolve(newBundle(dir), []string{generated}, nil)
	require.True(t, res.Empty())

	keep := New(reg, WithSkip(nil)).Resolve(newBundle(dir), []string{generated}, nil)
	require.Equal(t, []string{generated}, keep.Targets)
}

func TestResolveTimestampEntryIsTargetWithoutBuilds(t *testing.T) {
	dir := "/b/photonews"
	reg := registry.New()
	path := filepath.Join(dir, "seen.js")
	reg.Touch("photonews", path, time.Now())

	res := New(reg).Resolve(newBundle(dir), []string{path}, nil)
	require.Equal(t, []string{path}, res.Targets)
	require.Empty(t, res.Builds)
}

func TestResolveDoesNotMutateRegistry(t *testing.T) {
	dir := "/b/photonews"
	reg := registry.New()
	register(t, reg, filepath.Join(dir, "a.js"), "a")
	rev := reg.Revision("photonews")

	New(reg).Resolve(newBundle(dir), []string{filepath.Join(dir, "a.js"), filepath.Join(dir, "new.js")}, nil)
	require.Equal(t, rev, reg.Revision("photonews"))
	require.Equal(t, 1, reg.Count("photonews"))
}

func TestResolveBuildJSONDirectoryWithRelativeEnumeration(t *testing.T) {
	dir := "/b/photonews"
	reg := registry.New()
	register(t, reg, "lib/photos/build.json", "photos")

	changed := []string{filepath.Join(dir, "lib/photos/js/photos.js"), filepath.Join(dir, "lib/other/x.js")}
	res := New(reg).Resolve(newBundle(dir), changed, []string{"bar.js", "lib/photos/build.json"})
	require.Equal(t, []string{"lib/photos/build.json"}, res.Targets)
	require.Equal(t, []string{"photos"}, res.Builds)
}

func TestSkipGeneratedFollowsConfiguredNames(t *testing.T) {
	b := newBundle("/b/photonews")
	skip := SkipGenerated(
		func(b *models.Bundle) string { return "meta/" + b.Name + ".json" },
		func(b *models.Bundle) string { return b.Name + "-loader" },
	)
	require.True(t, skip(b, "/b/photonews/meta/photonews.json"))
	require.True(t, skip(b, "/b/photonews/photonews-loader.js"))
	require.False(t, skip(b, "/b/photonews/loader-photonews.js"))
	require.False(t, skip(b, "/b/photonews/models/news.js"))

	defaults := SkipGenerated(nil, nil)
	require.True(t, defaults(b, "/b/photonews/loader-photonews.js"))
	require.False(t, defaults(b, "/b/photonews/photonews-loader.js"))
}
