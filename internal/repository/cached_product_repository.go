package repository

import (
	"context"
	"fmt"

	"pharma-pos/internal/cache"
	"pharma-pos/internal/domain"

	"go.uber.org/zap"
)

// CachedProductRepository caches catalog reads in redis. Only the browse
// paths (FindByID, Search) are cached; sale commits always read and write
// through the database, so stock shown here can lag by at most the cache
// TTL. Catalog writes invalidate eagerly.
type CachedProductRepository struct {
	repo   ProductRepository
	cache  *cache.Redis
	logger *zap.Logger
}

// NewCachedProductRepository wraps repo with a redis cache-aside layer.
func NewCachedProductRepository(repo ProductRepository, c *cache.Redis, logger *zap.Logger) *CachedProductRepository {
	return &CachedProductRepository{repo: repo, cache: c, logger: logger}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func searchKey(query string) string {
	return "products:search:" + query
}

func (r *CachedProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	if err := r.cache.Get(ctx, productKey(id), &product); err == nil {
		return &product, nil
	}

	found, err := r.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, productKey(id), found); err != nil {
		r.logger.Warn("Failed to cache product", zap.Int64("id", id), zap.Error(err))
	}
	return found, nil
}

func (r *CachedProductRepository) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	var products []*domain.Product
	if err := r.cache.Get(ctx, searchKey(query), &products); err == nil {
		return products, nil
	}

	products, err := r.repo.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, searchKey(query), products); err != nil {
		r.logger.Warn("Failed to cache product search", zap.String("query", query), zap.Error(err))
	}
	return products, nil
}

func (r *CachedProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if err := r.repo.Create(ctx, product); err != nil {
		return err
	}
	r.invalidate(ctx, product.ID)
	return nil
}

func (r *CachedProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if err := r.repo.Update(ctx, product); err != nil {
		return err
	}
	r.invalidate(ctx, product.ID)
	return nil
}

func (r *CachedProductRepository) Delete(ctx context.Context, id int64) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *CachedProductRepository) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	return r.repo.FindByCode(ctx, code)
}

func (r *CachedProductRepository) ExpiringWithin(ctx context.Context, days int) ([]*domain.Product, error) {
	return r.repo.ExpiringWithin(ctx, days)
}

func (r *CachedProductRepository) LowStock(ctx context.Context, threshold int) ([]*domain.Product, error) {
	return r.repo.LowStock(ctx, threshold)
}

// InvalidateProducts drops cached entries for the given products. The sale
// engine calls this after a commit so receipts see fresh stock promptly.
func (r *CachedProductRepository) InvalidateProducts(ctx context.Context, ids ...int64) {
	r.invalidate(ctx, ids...)
}

func (r *CachedProductRepository) invalidate(ctx context.Context, ids ...int64) {
	keys := []string{searchKey("")}
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.Warn("Failed to invalidate product cache", zap.Error(err))
	}
}
