// Package enumerate lists the files that make up a bundle.
package enumerate

import (
	"context"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
)

// FilterSpec narrows enumeration to some file extensions (without the dot).
// An empty list matches every file.
type FilterSpec struct {
	Extensions []string
}

// BuildFiles is the filter the pipeline uses to find build descriptors.
var BuildFiles = FilterSpec{Extensions: []string{"js", "json"}}

// Matches reports whether path passes the filter.
func (f FilterSpec) Matches(path string) bool {
	if len(f.Extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return slices.Contains(f.Extensions, ext)
}

// Enumerator lists a bundle's files as full paths.
type Enumerator interface {
	GetBundleFiles(ctx context.Context, bundleName string, filter FilterSpec) ([]string, error)
}

// Locator maps a bundle name to its build directory.
type Locator func(bundleName string) (string, bool)

// FSEnumerator walks a bundle's build directory on disk.
type FSEnumerator struct {
	locate Locator
}

// NewFSEnumerator creates an enumerator resolving bundles through locate.
func NewFSEnumerator(locate Locator) *FSEnumerator {
	return &FSEnumerator{locate: locate}
}

// GetBundleFiles returns matching regular files in lexical walk order. Hidden
// directories are skipped.
func (e *FSEnumerator) GetBundleFiles(ctx context.Context, bundleName string, filter FilterSpec) ([]string, error) {
	root, ok := e.locate(bundleName)
	if !ok {
		return nil, ferrors.NotFoundError("unknown bundle").WithContext("bundle", bundleName).Build()
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && filter.Matches(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryEnumeration, "enumerate bundle files").
			WithContext("bundle", bundleName).
			WithContext("root", root).
			Build()
	}
	return files, nil
}

// Func adapts a function to Enumerator.
type Func func(ctx context.Context, bundleName string, filter FilterSpec) ([]string, error)

func (f Func) GetBundleFiles(ctx context.Context, bundleName string, filter FilterSpec) ([]string, error) {
	return f(ctx, bundleName, filter)
}
