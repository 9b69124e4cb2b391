package repository

import (
	"context"
	"time"

	"github.com/garyjia/doc-approval/internal/application/port"
	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedUserRepository puts an expiring LRU in front of GetByID.
// Every HTTP request resolves its actor through it, and the user
// directory is read-only to the workflow core.
type CachedUserRepository struct {
	port.UserRepository
	byID *expirable.LRU[int64, *entity.User]
}

// NewCachedUserRepository wraps inner with a cache of size entries living ttl
func NewCachedUserRepository(inner port.UserRepository, size int, ttl time.Duration) *CachedUserRepository {
	return &CachedUserRepository{
		UserRepository: inner,
		byID:           expirable.NewLRU[int64, *entity.User](size, nil, ttl),
	}
}

// GetByID serves from the cache, falling back to the wrapped repository.
// Misses for unknown ids are not cached.
func (r *CachedUserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if u, ok := r.byID.Get(id); ok {
		metrics.UserCacheLookup(true)
		cp := *u
		return &cp, nil
	}
	metrics.UserCacheLookup(false)

	u, err := r.UserRepository.GetByID(ctx, id)
	if err != nil || u == nil {
		return u, err
	}

	cp := *u
	r.byID.Add(id, &cp)
	return u, nil
}

// Invalidate drops a cached user
func (r *CachedUserRepository) Invalidate(id int64) {
	r.byID.Remove(id)
}

var _ port.UserRepository = (*CachedUserRepository)(nil)
