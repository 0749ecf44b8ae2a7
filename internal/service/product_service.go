package service

import (
	"context"
	"strings"
	"time"

	"pharma-pos/internal/domain"
	"pharma-pos/internal/expiry"
	"pharma-pos/internal/repository"
)

// ProductService covers catalog management and the inventory read paths
// used by the POS screen and the dashboard.
type ProductService interface {
	Search(ctx context.Context, query string) ([]*domain.Product, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id int64) error
	Expiring(ctx context.Context, days int) ([]*domain.Product, error)
	LowStock(ctx context.Context, threshold int) ([]*domain.Product, error)
}

type productService struct {
	products repository.ProductRepository
}

// NewProductService creates a new instance of ProductService
func NewProductService(products repository.ProductRepository) ProductService {
	return &productService{products: products}
}

func (s *productService) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	return s.products.Search(ctx, strings.TrimSpace(query))
}

func (s *productService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return s.products.FindByID(ctx, id)
}

func (s *productService) Create(ctx context.Context, product *domain.Product) error {
	if err := normalizeProduct(product); err != nil {
		return err
	}
	return s.products.Create(ctx, product)
}

func (s *productService) Update(ctx context.Context, product *domain.Product) error {
	if err := normalizeProduct(product); err != nil {
		return err
	}
	return s.products.Update(ctx, product)
}

func (s *productService) Delete(ctx context.Context, id int64) error {
	return s.products.Delete(ctx, id)
}

// Expiring returns products whose expiry date falls within the next days.
// Negative windows are treated as zero (expiring today or already expired).
func (s *productService) Expiring(ctx context.Context, days int) ([]*domain.Product, error) {
	if days < 0 {
		days = 0
	}
	return s.products.ExpiringWithin(ctx, days)
}

func (s *productService) LowStock(ctx context.Context, threshold int) ([]*domain.Product, error) {
	if threshold < 0 {
		threshold = 0
	}
	return s.products.LowStock(ctx, threshold)
}

func normalizeProduct(product *domain.Product) error {
	product.Code = strings.TrimSpace(product.Code)
	product.Name = strings.TrimSpace(product.Name)
	product.Lab = strings.TrimSpace(product.Lab)
	product.Location = strings.TrimSpace(product.Location)

	if product.Code == "" || product.Name == "" {
		return ErrItemInvalid
	}
	if product.Stock < 0 {
		return ErrItemInvalid
	}
	if product.BuyPrice.IsNegative() || product.SellPrice.IsNegative() {
		return ErrItemInvalid
	}
	return nil
}

// ExpiryStatus classifies a product for inventory reports: "EXPIRED",
// "EXPIRES SOON" (within soonDays), or "OK".
func ExpiryStatus(product *domain.Product, soonDays int) string {
	if product.ExpiryDate == nil {
		return "OK"
	}
	days := expiry.DaysUntil(*product.ExpiryDate, time.Now())
	switch {
	case days < 0:
		return "EXPIRED"
	case days <= soonDays:
		return "EXPIRES SOON"
	default:
		return "OK"
	}
}
