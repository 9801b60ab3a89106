package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/snaplink/internal/app/model"
	"go.uber.org/zap"
)

const (
	linkCachePrefix     = "link:"
	defaultLinkCacheTTL = 10 * time.Minute
)

// Compile-time interface check
var _ LinkRepository = (*CachedLinkRepository)(nil)

// CachedLinkRepository puts a Redis read-through cache in front of another LinkRepository.
// Links are immutable, so cached entries only ever need to expire, never to be invalidated.
// Redis errors are treated as cache misses.
type CachedLinkRepository struct {
	next   LinkRepository
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewCachedLinkRepository wraps next with a Redis cache. A nil client returns next unchanged.
func NewCachedLinkRepository(next LinkRepository, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) LinkRepository {
	if rdb == nil {
		return next
	}
	if ttl <= 0 {
		ttl = defaultLinkCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedLinkRepository{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

func (r *CachedLinkRepository) InsertIfAbsent(ctx context.Context, link *model.Link) error {
	if err := r.next.InsertIfAbsent(ctx, link); err != nil {
		return err
	}
	r.store(ctx, link)
	return nil
}

func (r *CachedLinkRepository) GetByID(ctx context.Context, id string) (*model.Link, error) {
	if link := r.load(ctx, id); link != nil {
		return link, nil
	}

	link, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, link)
	return link, nil
}

// DeleteExpired only touches the backing store; cache entries never outlive link expiry.
func (r *CachedLinkRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return r.next.DeleteExpired(ctx, before)
}

func (r *CachedLinkRepository) load(ctx context.Context, id string) *model.Link {
	data, err := r.rdb.Get(ctx, linkCachePrefix+id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("failed to read link from cache", zap.String("id", id), zap.Error(err))
		}
		return nil
	}

	var link model.Link
	if err := json.Unmarshal(data, &link); err != nil {
		r.logger.Warn("failed to decode cached link", zap.String("id", id), zap.Error(err))
		return nil
	}
	return &link
}

func (r *CachedLinkRepository) store(ctx context.Context, link *model.Link) {
	ttl := r.ttl
	if link.ExpiresAt != nil {
		remaining := link.ExpiresAt.Sub(r.now())
		if remaining <= 0 {
			return
		}
		ttl = min(ttl, remaining)
	}

	data, err := json.Marshal(link)
	if err != nil {
		r.logger.Warn("failed to encode link for cache", zap.String("id", link.ID), zap.Error(err))
		return
	}

	if err := r.rdb.Set(ctx, linkCachePrefix+link.ID, data, ttl).Err(); err != nil {
		r.logger.Warn("failed to cache link", zap.String("id", link.ID), zap.Error(err))
	}
}
