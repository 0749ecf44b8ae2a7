package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pharma-pos/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrProductCodeTaken  = errors.New("product code already in use")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// StockConflictError reports a decrement that would drive stock negative.
// It unwraps to ErrInsufficientStock so callers can match the kind while
// still learning which product was short.
type StockConflictError struct {
	ProductID int64
	Requested int
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (requested %d)", e.ProductID, e.Requested)
}

func (e *StockConflictError) Unwrap() error {
	return ErrInsufficientStock
}

// execer is satisfied by both *sql.DB and *sql.Tx, so stock decrements can
// run inside the same transaction that records the sale.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DecrementStock atomically subtracts qty from a product's stock. The
// decrement and the availability check are one conditional statement, so
// two concurrent sales can never both pass a stale check and drive the
// stock negative: the loser sees a StockConflictError.
func DecrementStock(ctx context.Context, ex execer, productID int64, qty int) error {
	result, err := ex.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $1, updated_at = now()
		WHERE id = $2 AND stock >= $1
	`, qty, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Nothing matched: either the product is gone or stock was short.
	var stock int
	err = ex.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if err == sql.ErrNoRows {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check stock: %w", err)
	}

	return &StockConflictError{ProductID: productID, Requested: qty}
}

// ProductRepository defines the interface for inventory data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	FindByCode(ctx context.Context, code string) (*domain.Product, error)
	Search(ctx context.Context, query string) ([]*domain.Product, error)
	ExpiringWithin(ctx context.Context, days int) ([]*domain.Product, error)
	LowStock(ctx context.Context, threshold int) ([]*domain.Product, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, code, name, lab, location, stock, buy_price, sell_price, expiry_date, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (*domain.Product, error) {
	product := &domain.Product{}
	var expiry sql.NullTime

	err := row.Scan(
		&product.ID,
		&product.Code,
		&product.Name,
		&product.Lab,
		&product.Location,
		&product.Stock,
		&product.BuyPrice,
		&product.SellPrice,
		&expiry,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if expiry.Valid {
		t := expiry.Time
		product.ExpiryDate = &t
	}
	return product, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (code, name, lab, location, stock, buy_price, sell_price, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		product.Code,
		product.Name,
		product.Lab,
		product.Location,
		product.Stock,
		product.BuyPrice,
		product.SellPrice,
		nullTime(product.ExpiryDate),
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrProductCodeTaken
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update updates an existing product in the database using parameterized queries
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET code = $2, name = $3, lab = $4, location = $5, stock = $6,
		    buy_price = $7, sell_price = $8, expiry_date = $9, updated_at = now()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Code,
		product.Name,
		product.Lab,
		product.Location,
		product.Stock,
		product.BuyPrice,
		product.SellPrice,
		nullTime(product.ExpiryDate),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrProductCodeTaken
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// Delete removes a product from the database using parameterized queries
func (r *productRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindByCode retrieves a product by its unique code
func (r *productRepository) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE code = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by code: %w", err)
	}

	return product, nil
}

// Search finds products whose name or code matches the query, ordered by
// name. An empty query returns the whole catalog.
func (r *productRepository) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if query == "" {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+productColumns+` FROM products ORDER BY name ASC`)
	} else {
		pattern := "%" + query + "%"
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+productColumns+` FROM products WHERE name ILIKE $1 OR code ILIKE $1 ORDER BY name ASC`,
			pattern)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// ExpiringWithin returns products whose expiry date falls within the next
// days (already-expired products included, so they surface in alerts too).
func (r *productRepository) ExpiringWithin(ctx context.Context, days int) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE expiry_date IS NOT NULL
		  AND expiry_date <= CURRENT_DATE + $1::int
		ORDER BY expiry_date ASC
	`, days)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// LowStock returns products at or below the given stock threshold.
func (r *productRepository) LowStock(ctx context.Context, threshold int) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE stock <= $1
		ORDER BY stock ASC, name ASC
	`, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

func collectProducts(rows *sql.Rows) ([]*domain.Product, error) {
	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
