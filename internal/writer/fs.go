package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
)

// Locator maps a bundle name to its output directory.
type Locator func(bundleName string) (string, bool)

// FSWriter writes indented JSON files under each bundle's output directory.
// Files are replaced atomically and left untouched when the content is equal.
type FSWriter struct {
	locate Locator
}

// NewFSWriter creates a writer resolving bundles through locate.
func NewFSWriter(locate Locator) *FSWriter {
	return &FSWriter{locate: locate}
}

// Encode renders v the way FSWriter stores it.
func Encode(v any) ([]byte, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(raw, '\n'), nil
}

func (w *FSWriter) WriteFileInBundle(ctx context.Context, bundleName, dstPath string, jsonData any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	root, ok := w.locate(bundleName)
	if !ok {
		return ferrors.NotFoundError("unknown bundle").WithContext("bundle", bundleName).Build()
	}
	if !filepath.IsLocal(dstPath) {
		return ferrors.ValidationError("destination escapes bundle directory").
			WithContext("bundle", bundleName).
			WithContext("path", dstPath).
			Build()
	}
	content, err := Encode(jsonData)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryWrite, "encode loader data").
			WithContext("bundle", bundleName).Build()
	}

	target := filepath.Join(root, dstPath)
	if existing, err := os.ReadFile(target); err == nil && bytes.Equal(existing, content) {
		return nil
	}
	if err := writeAtomic(target, content); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryWrite, "write loader data").
			Retryable().
			WithContext("bundle", bundleName).
			WithContext("path", target).
			Build()
	}
	return nil
}

func writeAtomic(target string, content []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
