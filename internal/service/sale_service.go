package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pharma-pos/internal/domain"
	"pharma-pos/internal/expiry"
	"pharma-pos/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrItemInvalid      = errors.New("invalid cart line")
	ErrProductExpired   = errors.New("product is expired")
	ErrInvalidPayment   = errors.New("invalid payment method")
	ErrOperatorRequired = errors.New("sale operator is required")
	ErrSaleNotRecorded  = errors.New("sale could not be recorded")
)

// CacheInvalidator lets the engine drop stale cached product entries after
// a commit changes stock. A nil invalidator is fine.
type CacheInvalidator interface {
	InvalidateProducts(ctx context.Context, ids ...int64)
}

// SaleService is the sale transaction engine. It converts a requested cart
// into a committed sale, enforcing stock availability and the expiry
// policy, and mutating stock atomically with the sale records.
type SaleService interface {
	CommitSale(ctx context.Context, cart []domain.CartLine, paymentMethod string, operatorID int64) (*domain.Sale, []*domain.SaleItem, error)
}

type saleService struct {
	products       repository.ProductRepository
	sales          repository.SaleRepository
	invalidator    CacheInvalidator
	defaultPayment string
	logger         *zap.Logger
}

// NewSaleService creates a new instance of SaleService
func NewSaleService(
	products repository.ProductRepository,
	sales repository.SaleRepository,
	invalidator CacheInvalidator,
	defaultPayment string,
	logger *zap.Logger,
) SaleService {
	if !domain.ValidPaymentMethod(defaultPayment) {
		defaultPayment = domain.PaymentCash
	}
	return &saleService{
		products:       products,
		sales:          sales,
		invalidator:    invalidator,
		defaultPayment: defaultPayment,
		logger:         logger,
	}
}

// CommitSale validates every cart line, then commits the sale, its items,
// and the stock decrements as one transaction. Validation failures abort
// before any mutation; the commit's conditional decrements re-check stock,
// so a concurrent sale that consumed inventory between validation and
// commit surfaces as ErrInsufficientStock, never as negative stock.
func (s *saleService) CommitSale(ctx context.Context, cart []domain.CartLine, paymentMethod string, operatorID int64) (*domain.Sale, []*domain.SaleItem, error) {
	if len(cart) == 0 {
		return nil, nil, ErrEmptyCart
	}
	if operatorID <= 0 {
		return nil, nil, ErrOperatorRequired
	}

	if paymentMethod == "" {
		paymentMethod = s.defaultPayment
	}
	if !domain.ValidPaymentMethod(paymentMethod) {
		return nil, nil, fmt.Errorf("%q: %w", paymentMethod, ErrInvalidPayment)
	}

	now := time.Now()
	total := decimal.Zero
	items := make([]*domain.SaleItem, 0, len(cart))
	names := make(map[int64]string, len(cart))

	// Validation pass: read-only, covers the full cart before anything
	// is written.
	for _, line := range cart {
		if line.ProductID <= 0 || line.Qty <= 0 {
			return nil, nil, fmt.Errorf("product %d, qty %d: %w", line.ProductID, line.Qty, ErrItemInvalid)
		}
		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			return nil, nil, fmt.Errorf("product %d: negative unit price: %w", line.ProductID, ErrItemInvalid)
		}

		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return nil, nil, fmt.Errorf("product %d: %w", line.ProductID, repository.ErrProductNotFound)
			}
			s.logger.Error("Failed to resolve cart product", zap.Int64("product_id", line.ProductID), zap.Error(err))
			return nil, nil, fmt.Errorf("resolve product %d: %w", line.ProductID, ErrSaleNotRecorded)
		}
		names[product.ID] = product.Name

		if expiry.Expired(product.ExpiryDate, now) {
			return nil, nil, fmt.Errorf("%s (%s): %w",
				product.Name, product.ExpiryDate.Format(expiry.DateLayout), ErrProductExpired)
		}

		if line.Qty > product.Stock {
			return nil, nil, fmt.Errorf("%s: %w", product.Name, repository.ErrInsufficientStock)
		}

		unitPrice := product.SellPrice
		if line.UnitPrice != nil {
			unitPrice = *line.UnitPrice
		}
		subtotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Qty)))
		total = total.Add(subtotal)

		items = append(items, &domain.SaleItem{
			ProductID: product.ID,
			Code:      product.Code,
			Name:      product.Name,
			Qty:       line.Qty,
			UnitPrice: unitPrice,
			Subtotal:  subtotal,
		})
	}

	sale := &domain.Sale{
		Date:          now,
		Total:         total,
		PaymentMethod: paymentMethod,
		SellerUserID:  operatorID,
	}

	// Commit pass: one transaction covering the header, items, and
	// guarded stock decrements.
	if err := s.sales.CreateSale(ctx, sale, items); err != nil {
		var conflict *repository.StockConflictError
		if errors.As(err, &conflict) {
			name := names[conflict.ProductID]
			s.logger.Info("Sale lost a stock race",
				zap.Int64("product_id", conflict.ProductID),
				zap.Int("requested", conflict.Requested),
			)
			return nil, nil, fmt.Errorf("%s: %w", name, repository.ErrInsufficientStock)
		}
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, nil, err
		}

		s.logger.Error("Failed to record sale", zap.Error(err))
		return nil, nil, fmt.Errorf("%v: %w", err, ErrSaleNotRecorded)
	}

	if s.invalidator != nil {
		ids := make([]int64, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProductID)
		}
		s.invalidator.InvalidateProducts(ctx, ids...)
	}

	s.logger.Info("Sale committed",
		zap.Int64("sale_id", sale.ID),
		zap.String("total", sale.Total.String()),
		zap.String("payment_method", sale.PaymentMethod),
		zap.Int64("operator_id", operatorID),
		zap.Int("lines", len(items)),
	)

	return sale, items, nil
}
