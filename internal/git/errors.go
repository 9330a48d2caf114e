package git

import (
	"strings"

	"git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
)

// ClassifyGitError translates go-git errors into ClassifiedErrors.
func ClassifyGitError(err error, op, path string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	l := strings.ToLower(err.Error())
	category := errors.CategoryGit
	switch {
	case strings.Contains(l, "repository does not exist") || strings.Contains(l, "reference not found") ||
		strings.Contains(l, "object not found") || strings.Contains(l, "revision not found"):
		category = errors.CategoryNotFound
	case strings.Contains(l, "permission denied"):
		category = errors.CategoryFileSystem
	}

	return errors.WrapError(err, category, "git operation failed").
		WithContext("op", op).
		WithContext("path", path).
		Build()
}
