package directory

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/credengine/internal/server/models"
)

// Serialized holds a single lock around every call to the wrapped
// repository, so that at most one directory read or write runs at a time.
type Serialized struct {
	mu   sync.Mutex
	repo Repository
}

func NewSerialized(repo Repository) *Serialized {
	return &Serialized{repo: repo}
}

func (s *Serialized) LookupAccount(ctx context.Context, name string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.LookupAccount(ctx, name)
}

func (s *Serialized) ReadAttribute(ctx context.Context, handle, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.ReadAttribute(ctx, handle, name)
}

func (s *Serialized) WriteAttribute(ctx context.Context, handle, name string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.WriteAttribute(ctx, handle, name, values)
}

func (s *Serialized) IsMember(ctx context.Context, group, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.IsMember(ctx, group, name)
}

// Atomic runs fn with the lock held, giving it the unwrapped repository so
// that a read-modify-write sequence is not interleaved with other calls.
func (s *Serialized) Atomic(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, s.repo)
}

type atomicRepository interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

// Update runs fn atomically when repo supports it, and directly otherwise.
func Update(ctx context.Context, repo Repository, fn func(ctx context.Context, repo Repository) error) error {
	if a, ok := repo.(atomicRepository); ok {
		return a.Atomic(ctx, fn)
	}
	return fn(ctx, repo)
}
