package copilot

import (
	"context"
	"time"

	"github.com/Vovarama1992/ebeef-copilot/internal/cache"
)

const catalogPrefix = "catalog:"

// CachedRepo serves admin-managed reference data from Redis. Customer and
// purchase reads always go to the underlying Repo.
type CachedRepo struct {
	Repo
	cache *cache.Redis
}

func NewCachedRepo(inner Repo, c *cache.Redis) *CachedRepo {
	return &CachedRepo{Repo: inner, cache: c}
}

// ActivePromotions may return entries whose window closed after caching;
// consumers filter with Promotion.ActiveAt.
func (r *CachedRepo) ActivePromotions(ctx context.Context, now time.Time) ([]Promotion, error) {
	return cache.Remember(ctx, r.cache, catalogPrefix+"promotions", cache.TTLPromotions, func(ctx context.Context) ([]Promotion, error) {
		return r.Repo.ActivePromotions(ctx, now)
	})
}

func (r *CachedRepo) ActiveTemplates(ctx context.Context) ([]SuggestionTemplate, error) {
	return cache.Remember(ctx, r.cache, catalogPrefix+"templates", cache.TTLTemplates, r.Repo.ActiveTemplates)
}

func (r *CachedRepo) ActiveProducts(ctx context.Context, category string) ([]Product, error) {
	key := catalogPrefix + "products:" + category
	return cache.Remember(ctx, r.cache, key, cache.TTLProducts, func(ctx context.Context) ([]Product, error) {
		return r.Repo.ActiveProducts(ctx, category)
	})
}

// Refresh drops every cached catalog entry.
func (r *CachedRepo) Refresh(ctx context.Context) (int, error) {
	return r.cache.Invalidate(ctx, catalogPrefix)
}
