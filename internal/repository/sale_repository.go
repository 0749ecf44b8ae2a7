package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pharma-pos/internal/domain"

	"github.com/shopspring/decimal"
)

var ErrSaleNotFound = errors.New("sale not found")

// SaleRepository defines the interface for sale persistence
type SaleRepository interface {
	// CreateSale persists the sale header, its items, and the matching
	// stock decrements as one transaction. On any failure nothing is
	// persisted; a lost stock race surfaces as a StockConflictError.
	CreateSale(ctx context.Context, sale *domain.Sale, items []*domain.SaleItem) error
	ListSales(ctx context.Context, from, to *time.Time, limit int) ([]*domain.Sale, error)
	FindByID(ctx context.Context, id int64) (*domain.Sale, []*domain.SaleItem, error)
	SummaryForDay(ctx context.Context, day time.Time) (int, decimal.Decimal, error)
}

type saleRepository struct {
	db *sql.DB
}

// NewSaleRepository creates a new instance of SaleRepository
func NewSaleRepository(db *sql.DB) SaleRepository {
	return &saleRepository{db: db}
}

// CreateSale writes the sale and decrements stock inside one transaction.
// Each decrement re-checks availability in the same statement, so a cart
// validated against stale stock still cannot commit past what is on hand.
func (r *saleRepository) CreateSale(ctx context.Context, sale *domain.Sale, items []*domain.SaleItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales (date, total, payment_method, seller_user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, sale.Date, sale.Total, sale.PaymentMethod, sale.SellerUserID).Scan(&sale.ID)
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}

	for _, item := range items {
		item.SaleID = sale.ID

		err = tx.QueryRowContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, qty, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, item.SaleID, item.ProductID, item.Qty, item.UnitPrice, item.Subtotal).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert sale item: %w", err)
		}

		if err := DecrementStock(ctx, tx, item.ProductID, item.Qty); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sale: %w", err)
	}

	return nil
}

// ListSales returns sale headers most-recent-first. The optional from/to
// bounds are inclusive and compared at calendar-day granularity against
// the stored timestamp.
func (r *saleRepository) ListSales(ctx context.Context, from, to *time.Time, limit int) ([]*domain.Sale, error) {
	query := `SELECT id, date, total, payment_method, seller_user_id FROM sales`
	args := []interface{}{}
	argIndex := 1

	if from != nil {
		query += fmt.Sprintf(" WHERE date::date >= $%d::date", argIndex)
		args = append(args, *from)
		argIndex++
	}
	if to != nil {
		if from != nil {
			query += fmt.Sprintf(" AND date::date <= $%d::date", argIndex)
		} else {
			query += fmt.Sprintf(" WHERE date::date <= $%d::date", argIndex)
		}
		args = append(args, *to)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	sales := []*domain.Sale{}
	for rows.Next() {
		sale := &domain.Sale{}
		err := rows.Scan(&sale.ID, &sale.Date, &sale.Total, &sale.PaymentMethod, &sale.SellerUserID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales: %w", err)
	}

	return sales, nil
}

// FindByID returns a committed sale and its items, each enriched with the
// product code and name for receipt display.
func (r *saleRepository) FindByID(ctx context.Context, id int64) (*domain.Sale, []*domain.SaleItem, error) {
	sale := &domain.Sale{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, date, total, payment_method, seller_user_id
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.Date, &sale.Total, &sale.PaymentMethod, &sale.SellerUserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, ErrSaleNotFound
		}
		return nil, nil, fmt.Errorf("failed to find sale: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT si.id, si.sale_id, si.product_id, p.code, p.name, si.qty, si.unit_price, si.subtotal
		FROM sale_items si
		JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = $1
		ORDER BY si.id ASC
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list sale items: %w", err)
	}
	defer rows.Close()

	items := []*domain.SaleItem{}
	for rows.Next() {
		item := &domain.SaleItem{}
		err := rows.Scan(
			&item.ID,
			&item.SaleID,
			&item.ProductID,
			&item.Code,
			&item.Name,
			&item.Qty,
			&item.UnitPrice,
			&item.Subtotal,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan sale item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating sale items: %w", err)
	}

	return sale, items, nil
}

// SummaryForDay returns the count and total of the sales committed on the
// given calendar day.
func (r *saleRepository) SummaryForDay(ctx context.Context, day time.Time) (int, decimal.Decimal, error) {
	var (
		count int
		total decimal.Decimal
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total), 0)
		FROM sales
		WHERE date::date = $1::date
	`, day).Scan(&count, &total)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to summarize sales: %w", err)
	}

	return count, total, nil
}
