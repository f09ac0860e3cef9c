package auth

import (
	"context"
	"time"

	"github.com/intelliod/ems/pkg/cache"
)

// RevocationStore remembers revoked token ids until the token would have
// expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevocationStore keeps revocations in process. It is used when no
// Redis is configured and does not survive restarts.
type MemoryRevocationStore struct {
	entries *cache.Cache[struct{}]
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{entries: cache.New[struct{}]()}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, until time.Time) error {
	s.entries.SetUntil(jti, struct{}{}, until)
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := s.entries.Get(jti)
	return ok, nil
}

// Purge drops expired revocations.
func (s *MemoryRevocationStore) Purge() int {
	return s.entries.Purge()
}

// RunJanitor purges expired revocations every interval until ctx is done.
func (s *MemoryRevocationStore) RunJanitor(ctx context.Context, every time.Duration) {
	s.entries.Janitor(ctx, every)
}
