package writer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

func TestFSWriterWritesIndentedJSON(t *testing.T) {
	root := t.TempDir()
	w := NewFSWriter(func(name string) (string, bool) { return root, name == "foo" })
	data := map[string]models.ModuleMeta{
		"news-model": {Group: "foo", Requires: []string{"model"}, Affinity: models.AffinityClient},
	}

	require.NoError(t, w.WriteFileInBundle(t.Context(), "foo", "meta/loader-foo.json", data))

	raw, err := os.ReadFile(filepath.Join(root, "meta", "loader-foo.json"))
	require.NoError(t, err)
	require.Equal(t, `{
  "news-model": {
    "group": "foo",
    "requires": [
      "model"
    ],
    "affinity": "client"
  }
}
`, string(raw))
}

func TestFSWriterSkipsUnchangedContent(t *testing.T) {
	root := t.TempDir()
	w := NewFSWriter(func(string) (string, bool) { return root, true })
	data := map[string]string{"a": "b"}
	target := filepath.Join(root, "out.json")

	require.NoError(t, w.WriteFileInBundle(t.Context(), "foo", "out.json", data))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(target, past, past))

	require.NoError(t, w.WriteFileInBundle(t.Context(), "foo", "out.json", data))
	info, err := os.Stat(target)
	require.NoError(t, err)
	require.WithinDuration(t, past, info.ModTime(), time.Second)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFSWriterRejectsEscapingPath(t *testing.T) {
	w := NewFSWriter(func(string) (string, bool) { return t.TempDir(), true })
	err := w.WriteFileInBundle(t.Context(), "foo", "../evil.json", map[string]string{})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestFSWriterUnknownBundle(t *testing.T) {
	w := NewFSWriter(func(string) (string, bool) { return "", false })
	err := w.WriteFileInBundle(t.Context(), "nope", "x.json", map[string]string{})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestFSWriterEncodeFailure(t *testing.T) {
	w := NewFSWriter(func(string) (string, bool) { return t.TempDir(), true })
	err := w.WriteFileInBundle(t.Context(), "foo", "x.json", map[string]any{"ch": make(chan int)})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryWrite))
}
