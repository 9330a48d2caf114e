package git

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

// Repo is a repository opened from any directory inside its worktree.
type Repo struct {
	repo *git.Repository
	root string
}

// Open finds the repository containing dir.
func Open(dir string) (*Repo, error) {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, ClassifyGitError(err, "open", dir)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, ClassifyGitError(err, "worktree", dir)
	}
	return &Repo{repo: repo, root: wt.Filesystem.Root()}, nil
}

// Root returns the worktree root.
func (r *Repo) Root() string { return r.root }

// Head returns the commit hash HEAD points to.
func (r *Repo) Head() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", ClassifyGitError(err, "head", r.root)
	}
	return ref.Hash().String(), nil
}

func (r *Repo) tree(rev string) (*object.Tree, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, ClassifyGitError(err, "resolve "+rev, r.root)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, ClassifyGitError(err, "commit "+rev, r.root)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, ClassifyGitError(err, "tree "+rev, r.root)
	}
	return tree, nil
}

// ChangedFiles lists repository-relative paths (slash separated, sorted)
// added, modified or deleted between from and to. An empty from lists every
// file in to; an empty to means HEAD.
func (r *Repo) ChangedFiles(from, to string) ([]string, error) {
	if to == "" {
		to = "HEAD"
	}
	toTree, err := r.tree(to)
	if err != nil {
		return nil, err
	}

	var paths []string
	if from == "" {
		err = toTree.Files().ForEach(func(f *object.File) error {
			paths = append(paths, f.Name)
			return nil
		})
		if err != nil {
			return nil, ClassifyGitError(err, "list files", r.root)
		}
	} else {
		fromTree, err := r.tree(from)
		if err != nil {
			return nil, err
		}
		changes, err := object.DiffTree(fromTree, toTree)
		if err != nil {
			return nil, ClassifyGitError(err, "diff", r.root)
		}
		for _, c := range changes {
			if c.From.Name != "" {
				paths = append(paths, c.From.Name)
			}
			if c.To.Name != "" && c.To.Name != c.From.Name {
				paths = append(paths, c.To.Name)
			}
		}
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}

// ChangeEvents maps repository-relative paths to change events of the bundle
// rooted at bundleDir, dropping paths outside it.
func (r *Repo) ChangeEvents(bundleDir string, paths []string) []models.ChangeEvent {
	abs, err := filepath.Abs(bundleDir)
	if err != nil {
		abs = bundleDir
	}
	var out []models.ChangeEvent
	for _, p := range paths {
		full := filepath.Join(r.root, filepath.FromSlash(p))
		rel, err := filepath.Rel(abs, full)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, models.ChangeEvent{FullPath: full, RelativePath: filepath.ToSlash(rel)})
	}
	return out
}
