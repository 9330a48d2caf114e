package filter

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

func TestApplyResolvesAcceptedFiles(t *testing.T) {
	dir := t.TempDir()
	b := &models.Bundle{Name: "foo", BuildDirectory: dir}
	files := []models.ChangeEvent{
		{FullPath: "/src/foo/bar.js", RelativePath: "bar.js"},
		{FullPath: "/src/foo/baz.js", RelativePath: "baz.js"},
		{FullPath: "/src/foo/qux.js", RelativePath: "qux.js"},
	}

	var seen []string
	pred := func(got *models.Bundle, rel string) bool {
		require.Same(t, b, got)
		seen = append(seen, rel)
		return rel == "bar.js"
	}

	out := Apply(b, files, pred)
	require.Equal(t, []string{filepath.Join(dir, "bar.js")}, out)
	require.Equal(t, []string{"bar.js", "baz.js", "qux.js"}, seen)
}

func TestApplyAllRejectedIsEmpty(t *testing.T) {
	b := &models.Bundle{Name: "foo", BuildDirectory: "/b"}
	out := Apply(b, []models.ChangeEvent{{RelativePath: "a.js"}}, func(*models.Bundle, string) bool { return false })
	require.Empty(t, out)
}

func TestApplyDefaultsToAcceptAll(t *testing.T) {
	b := &models.Bundle{Name: "foo", BuildDirectory: "/b"}
	out := Apply(b, []models.ChangeEvent{
		{RelativePath: "models/news.js"},
		{FullPath: "bar.js"},
		{RelativePath: "/abs/x.js"},
	}, nil)
	require.Equal(t, []string{"/b/models/news.js", "bar.js", "/abs/x.js"}, out)
}

func TestRegexpPredicate(t *testing.T) {
	pred, err := Regexp(`\.js$`)
	require.NoError(t, err)
	require.True(t, pred(nil, "models/news.js"))
	require.False(t, pred(nil, "models/news.css"))

	all, err := Regexp("")
	require.NoError(t, err)
	require.True(t, all(nil, "anything"))

	_, err = Regexp("(")
	require.Error(t, err)
}
