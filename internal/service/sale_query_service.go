package service

import (
	"context"
	"time"

	"pharma-pos/internal/domain"
	"pharma-pos/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	// DefaultSaleListLimit is used when the caller does not ask for a limit.
	DefaultSaleListLimit = 100
	// MaxSaleListLimit caps any requested page size.
	MaxSaleListLimit = 500
)

// DaySummary is the dashboard rollup for one calendar day.
type DaySummary struct {
	Date  string          `json:"date"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// SaleQueryService is the read-only side of sales: listing history and
// retrieving single receipts. It never mutates anything and only ever
// sees fully committed sales.
type SaleQueryService interface {
	ListSales(ctx context.Context, from, to *time.Time, limit int) ([]*domain.Sale, error)
	GetSale(ctx context.Context, id int64) (*domain.Sale, []*domain.SaleItem, error)
	TodaySummary(ctx context.Context) (*DaySummary, error)
}

type saleQueryService struct {
	sales repository.SaleRepository
}

// NewSaleQueryService creates a new instance of SaleQueryService
func NewSaleQueryService(sales repository.SaleRepository) SaleQueryService {
	return &saleQueryService{sales: sales}
}

// ListSales returns sale headers most-recent-first, bounded to the
// inclusive from/to calendar-day range when given.
func (s *saleQueryService) ListSales(ctx context.Context, from, to *time.Time, limit int) ([]*domain.Sale, error) {
	if limit <= 0 {
		limit = DefaultSaleListLimit
	}
	if limit > MaxSaleListLimit {
		limit = MaxSaleListLimit
	}
	return s.sales.ListSales(ctx, from, to, limit)
}

// GetSale returns one committed sale with its receipt lines.
func (s *saleQueryService) GetSale(ctx context.Context, id int64) (*domain.Sale, []*domain.SaleItem, error) {
	if id <= 0 {
		return nil, nil, repository.ErrSaleNotFound
	}
	return s.sales.FindByID(ctx, id)
}

// TodaySummary returns today's sale count and revenue.
func (s *saleQueryService) TodaySummary(ctx context.Context) (*DaySummary, error) {
	now := time.Now()
	count, total, err := s.sales.SummaryForDay(ctx, now)
	if err != nil {
		return nil, err
	}
	return &DaySummary{
		Date:  now.Format("2006-01-02"),
		Count: count,
		Total: total,
	}, nil
}
