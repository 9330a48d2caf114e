package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

func descriptor(buildfile string, builds ...models.BuildConfig) *models.BuildDescriptor {
	d := &models.BuildDescriptor{Buildfile: buildfile, Builds: map[string]models.BuildConfig{}}
	for _, b := range builds {
		d.Builds[b.Name] = b
	}
	return d
}

func TestRegisterKeepsFirstPositionAndLastValue(t *testing.T) {
	r := New()
	a1 := descriptor("a.js", models.BuildConfig{Name: "a"})
	a2 := descriptor("a.js", models.BuildConfig{Name: "a2"})
	require.NoError(t, r.RegisterDescriptor("foo", a1))
	require.NoError(t, r.RegisterDescriptor("foo", descriptor("b.js")))
	require.NoError(t, r.RegisterDescriptor("foo", a2))

	require.Equal(t, []string{"a.js", "b.js"}, r.Buildfiles("foo"))
	got, ok := r.Descriptor("foo", "a.js")
	require.True(t, ok)
	require.Same(t, a2, got)
	require.Equal(t, 2, r.Count("foo"))
}

func TestTouchReplacesDescriptor(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterDescriptor("foo", descriptor("a.js")))
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r.Touch("foo", "a.js", ts)

	e, ok := r.Lookup("foo", "a.js")
	require.True(t, ok)
	require.False(t, e.HasDescriptor())
	require.Equal(t, ts, e.Timestamp)
	require.Empty(t, r.Descriptors("foo"))
	require.Equal(t, []string{"a.js"}, r.Buildfiles("foo"))
}

func TestRegisterDescriptorRequiresBuildfile(t *testing.T) {
	r := New()
	err := r.RegisterDescriptor("foo", &models.BuildDescriptor{})
	require.ErrorIs(t, err, ErrMissingBuildfile)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryRegistry))
	require.Zero(t, r.Revision("foo"))
}

func TestRevisionChangesOnEveryMutation(t *testing.T) {
	r := New()
	require.Zero(t, r.Revision("foo"))
	r.Touch("foo", "a.js", time.Now())
	first := r.Revision("foo")
	require.NotZero(t, first)

	require.NoError(t, r.ReplaceBundle("foo", []*models.BuildDescriptor{descriptor("b.js")}))
	second := r.Revision("foo")
	require.Greater(t, second, first)
	require.Equal(t, []string{"b.js"}, r.Buildfiles("foo"))

	r.Touch("bar", "x.js", time.Now())
	require.Equal(t, second, r.Revision("foo"))

	r.RemoveBundle("foo")
	require.Zero(t, r.Revision("foo"))
	require.Equal(t, []string{"bar"}, r.Bundles())
}

func TestReplaceBundleRejectsInvalidWithoutMutation(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterDescriptor("foo", descriptor("a.js")))
	rev := r.Revision("foo")

	err := r.ReplaceBundle("foo", []*models.BuildDescriptor{descriptor("b.js"), {}})
	require.ErrorIs(t, err, ErrMissingBuildfile)
	require.Equal(t, rev, r.Revision("foo"))
	require.Equal(t, []string{"a.js"}, r.Buildfiles("foo"))
}

func TestBuildfilesReturnsCopy(t *testing.T) {
	r := New()
	r.Touch("foo", "a.js", time.Now())
	files := r.Buildfiles("foo")
	files[0] = "mutated"
	require.Equal(t, []string{"a.js"}, r.Buildfiles("foo"))
	require.Nil(t, r.Buildfiles("missing"))
	require.Nil(t, r.Descriptors("missing"))
}

func TestConcurrentRegistration(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Touch("foo", string(rune('a'+i%26))+".js", time.Now())
			_ = r.Descriptors("foo")
		}()
	}
	wg.Wait()
	require.Equal(t, 26, r.Count("foo"))
}
