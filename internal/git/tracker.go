package git

import (
	"sync"

	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

// Tracker remembers the last seen HEAD per bundle and reports what changed
// since.
type Tracker struct {
	mu    sync.Mutex
	heads map[string]string
	open  func(dir string) (*Repo, error)
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{heads: make(map[string]string), open: Open}
}

// Poll returns the bundle's change events since the previous poll. The first
// poll only records HEAD and returns nothing.
func (t *Tracker) Poll(b *models.Bundle) ([]models.ChangeEvent, error) {
	repo, err := t.open(b.BuildDirectory)
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	prev, seen := t.heads[b.Name]
	t.heads[b.Name] = head
	t.mu.Unlock()

	if !seen || prev == head {
		return nil, nil
	}
	paths, err := repo.ChangedFiles(prev, head)
	if err != nil {
		return nil, err
	}
	return repo.ChangeEvents(b.BuildDirectory, paths), nil
}

// Forget drops the remembered HEAD of a bundle.
func (t *Tracker) Forget(bundle string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.heads, bundle)
}
