package modelstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps artifacts in process memory. Used by tests and
// single-process runs without a database.
type MemoryRepository struct {
	mu        sync.RWMutex
	artifacts map[string]storedBlob
	now       func() time.Time
}

type storedBlob struct {
	blob      []byte
	updatedAt time.Time
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		artifacts: make(map[string]storedBlob),
		now:       time.Now,
	}
}

// Save stores a copy of blob under name.
func (r *MemoryRepository) Save(_ context.Context, name string, blob []byte) error {
	if err := validateName(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.artifacts[name] = storedBlob{
		blob:      append([]byte(nil), blob...),
		updatedAt: r.now().UTC(),
	}
	return nil
}

// Load returns a copy of the blob stored under name.
func (r *MemoryRepository) Load(_ context.Context, name string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.artifacts[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), stored.blob...), nil
}

// List returns all artifacts ordered by name.
func (r *MemoryRepository) List(_ context.Context) ([]Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Artifact, 0, len(r.artifacts))
	for name, stored := range r.artifacts {
		out = append(out, Artifact{Name: name, Size: len(stored.blob), UpdatedAt: stored.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
