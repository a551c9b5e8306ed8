// Package built persists which packages have already been processed under a
// label ("built" markers) and filters those packages out of later runs.
package built

import (
	"context"
	"sync"

	"github.com/utkarsh5026/pkgiter/workspace"
)

// Store answers and records whether a package is built under a label.
// Implementations must be safe for concurrent use.
type Store interface {
	IsBuilt(ctx context.Context, pkg workspace.Package, label string) (bool, error)
	MarkBuilt(ctx context.Context, pkg workspace.Package, label string) error
}

// MemoryStore keeps built markers in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	marks map[string]map[string]struct{}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{marks: map[string]map[string]struct{}{}}
}

func (s *MemoryStore) IsBuilt(_ context.Context, pkg workspace.Package, label string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.marks[label][pkg.Name]
	return ok, nil
}

func (s *MemoryStore) MarkBuilt(_ context.Context, pkg workspace.Package, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.marks[label] == nil {
		s.marks[label] = map[string]struct{}{}
	}
	s.marks[label][pkg.Name] = struct{}{}
	return nil
}

// Unmark forgets a marker. Unknown markers are ignored.
func (s *MemoryStore) Unmark(pkg workspace.Package, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.marks[label], pkg.Name)
}
