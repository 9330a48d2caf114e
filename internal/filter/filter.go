// Package filter narrows a bundle's raw change notification down to the files
// the pipeline should look at.
package filter

import (
	"path/filepath"
	"regexp"

	ferrors "git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

// Predicate decides whether a changed file, given by its path relative to the
// bundle, is relevant. A nil Predicate accepts everything.
type Predicate func(b *models.Bundle, relativePath string) bool

// AcceptAll is the default predicate.
func AcceptAll(*models.Bundle, string) bool { return true }

// Regexp builds a predicate accepting relative paths matched by pattern.
// An empty pattern accepts everything.
func Regexp(pattern string) (Predicate, error) {
	if pattern == "" {
		return AcceptAll, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid change filter pattern").
			WithContext("pattern", pattern).Build()
	}
	return func(_ *models.Bundle, rel string) bool {
		return re.MatchString(filepath.ToSlash(rel))
	}, nil
}

// Apply calls pred once per event, in order, and resolves every accepted
// relative path against the bundle's build directory. Events without a
// relative path are judged and returned by their full path.
func Apply(b *models.Bundle, files []models.ChangeEvent, pred Predicate) []string {
	if pred == nil {
		pred = AcceptAll
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		rel := f.RelativePath
		if rel == "" {
			if pred(b, f.FullPath) {
				out = append(out, f.FullPath)
			}
			continue
		}
		if !pred(b, rel) {
			continue
		}
		out = append(out, resolve(b.BuildDirectory, rel))
	}
	return out
}

func resolve(dir, rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(dir, filepath.FromSlash(rel))
}
