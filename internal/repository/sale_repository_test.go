package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"pharma-pos/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	connStr := "postgres://" + dbUser + ":" + dbPwd + "@" + dbHost + ":" + dbPort.Port() + "/" + dbName + "?sslmode=disable"
	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	_, err = testDB.Exec(`
		CREATE TABLE users (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(100) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(50) NOT NULL DEFAULT 'cashier',
			created_at TIMESTAMP NOT NULL DEFAULT now()
		);

		CREATE TABLE refresh_tokens (
			id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token VARCHAR(255) UNIQUE NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT now(),
			revoked BOOLEAN NOT NULL DEFAULT FALSE
		);

		CREATE TABLE products (
			id BIGSERIAL PRIMARY KEY,
			code VARCHAR(50) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			lab VARCHAR(100) NOT NULL DEFAULT '',
			location VARCHAR(100) NOT NULL DEFAULT '',
			stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
			buy_price NUMERIC(12, 2) NOT NULL DEFAULT 0,
			sell_price NUMERIC(12, 2) NOT NULL DEFAULT 0,
			expiry_date DATE,
			created_at TIMESTAMP NOT NULL DEFAULT now(),
			updated_at TIMESTAMP NOT NULL DEFAULT now()
		);

		CREATE TABLE sales (
			id BIGSERIAL PRIMARY KEY,
			date TIMESTAMP NOT NULL DEFAULT now(),
			total NUMERIC(12, 2) NOT NULL,
			payment_method VARCHAR(50) NOT NULL,
			seller_user_id BIGINT NOT NULL REFERENCES users(id)
		);

		CREATE TABLE sale_items (
			id BIGSERIAL PRIMARY KEY,
			sale_id BIGINT NOT NULL REFERENCES sales(id),
			product_id BIGINT NOT NULL REFERENCES products(id),
			qty INTEGER NOT NULL CHECK (qty > 0),
			unit_price NUMERIC(12, 2) NOT NULL,
			subtotal NUMERIC(12, 2) NOT NULL
		);
	`)
	if err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
}

func resetTables(t *testing.T) {
	t.Helper()
	_, err := testDB.Exec(`TRUNCATE sale_items, sales, products, refresh_tokens, users RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("failed to reset tables: %v", err)
	}
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func seedUser(t *testing.T, username string) int64 {
	t.Helper()
	var id int64
	err := testDB.QueryRow(`
		INSERT INTO users (username, password_hash, role)
		VALUES ($1, 'x', 'cashier')
		RETURNING id
	`, username).Scan(&id)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return id
}

func seedProduct(t *testing.T, code, name string, stock int, sellPrice string, expiry *time.Time) int64 {
	t.Helper()
	repo := NewProductRepository(testDB)
	product := &domain.Product{
		Code:       code,
		Name:       name,
		Stock:      stock,
		SellPrice:  mustDecimal(t, sellPrice),
		ExpiryDate: expiry,
	}
	if err := repo.Create(context.Background(), product); err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return product.ID
}

func saleItem(productID int64, qty int, unitPrice decimal.Decimal) *domain.SaleItem {
	return &domain.SaleItem{
		ProductID: productID,
		Qty:       qty,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func TestCreateSalePersistsHeaderItemsAndStock(t *testing.T) {
	resetTables(t)
	ctx := context.Background()

	sellerID := seedUser(t, "cashier1")
	paraID := seedProduct(t, "PARA500", "Paracetamol 500mg", 10, "19.90", nil)
	ibuID := seedProduct(t, "IBU400", "Ibuprofen 400mg", 5, "25.50", nil)

	repo := NewSaleRepository(testDB)
	sale := &domain.Sale{
		Date:          time.Now(),
		Total:         mustDecimal(t, "85.20"),
		PaymentMethod: domain.PaymentCash,
		SellerUserID:  sellerID,
	}
	items := []*domain.SaleItem{
		saleItem(paraID, 3, mustDecimal(t, "19.90")),
		saleItem(ibuID, 1, mustDecimal(t, "25.50")),
	}

	if err := repo.CreateSale(ctx, sale, items); err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	if sale.ID == 0 {
		t.Fatal("expected sale to get an id")
	}

	got, gotItems, err := repo.FindByID(ctx, sale.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !got.Total.Equal(mustDecimal(t, "85.20")) {
		t.Errorf("expected total 85.20, got %s", got.Total)
	}
	if len(gotItems) != 2 {
		t.Fatalf("expected 2 items, got %d", len(gotItems))
	}
	if gotItems[0].Code != "PARA500" || gotItems[0].Name != "Paracetamol 500mg" {
		t.Errorf("items not enriched with product identity: %+v", gotItems[0])
	}

	productRepo := NewProductRepository(testDB)
	para, err := productRepo.FindByID(ctx, paraID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if para.Stock != 7 {
		t.Errorf("expected stock 7 after sale, got %d", para.Stock)
	}
}

func TestCreateSaleStockConflictRollsBackEverything(t *testing.T) {
	resetTables(t)
	ctx := context.Background()

	sellerID := seedUser(t, "cashier1")
	paraID := seedProduct(t, "PARA500", "Paracetamol 500mg", 10, "19.90", nil)
	ibuID := seedProduct(t, "IBU400", "Ibuprofen 400mg", 2, "25.50", nil)

	repo := NewSaleRepository(testDB)
	sale := &domain.Sale{
		Date:          time.Now(),
		Total:         mustDecimal(t, "116.30"),
		PaymentMethod: domain.PaymentCash,
		SellerUserID:  sellerID,
	}
	// Second line requests more than is on hand.
	items := []*domain.SaleItem{
		saleItem(paraID, 2, mustDecimal(t, "19.90")),
		saleItem(ibuID, 3, mustDecimal(t, "25.50")),
	}

	err := repo.CreateSale(ctx, sale, items)
	if err == nil {
		t.Fatal("expected CreateSale to fail")
	}

	var conflict *StockConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StockConflictError, got %v", err)
	}
	if conflict.ProductID != ibuID || conflict.Requested != 3 {
		t.Errorf("unexpected conflict details: %+v", conflict)
	}
	if !errors.Is(err, ErrInsufficientStock) {
		t.Error("conflict must unwrap to ErrInsufficientStock")
	}

	// Nothing may survive the rollback, including the first line's
	// decrement.
	var saleCount, itemCount int
	if err := testDB.QueryRow(`SELECT COUNT(*) FROM sales`).Scan(&saleCount); err != nil {
		t.Fatalf("count sales: %v", err)
	}
	if err := testDB.QueryRow(`SELECT COUNT(*) FROM sale_items`).Scan(&itemCount); err != nil {
		t.Fatalf("count sale items: %v", err)
	}
	if saleCount != 0 || itemCount != 0 {
		t.Errorf("rolled-back sale left rows behind: %d sales, %d items", saleCount, itemCount)
	}

	productRepo := NewProductRepository(testDB)
	para, err := productRepo.FindByID(ctx, paraID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if para.Stock != 10 {
		t.Errorf("expected stock 10 after rollback, got %d", para.Stock)
	}
}

func TestConcurrentSalesNeverDriveStockNegative(t *testing.T) {
	resetTables(t)
	ctx := context.Background()

	sellerID := seedUser(t, "cashier1")
	paraID := seedProduct(t, "PARA500", "Paracetamol 500mg", 5, "19.90", nil)

	repo := NewSaleRepository(testDB)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sale := &domain.Sale{
				Date:          time.Now(),
				Total:         mustDecimal(t, "79.60"),
				PaymentMethod: domain.PaymentCash,
				SellerUserID:  sellerID,
			}
			results[i] = repo.CreateSale(ctx, sale, []*domain.SaleItem{
				saleItem(paraID, 4, mustDecimal(t, "19.90")),
			})
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInsufficientStock):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("expected one winner and one conflict, got %d wins, %d conflicts", wins, conflicts)
	}

	var stock int
	if err := testDB.QueryRow(`SELECT stock FROM products WHERE id = $1`, paraID).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 1 {
		t.Errorf("expected final stock 1, got %d", stock)
	}
}

func TestListSalesFiltersAndOrders(t *testing.T) {
	resetTables(t)
	ctx := context.Background()

	sellerID := seedUser(t, "cashier1")
	repo := NewSaleRepository(testDB)

	days := []time.Time{
		time.Date(2026, 8, 10, 14, 30, 0, 0, time.UTC),
		time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 20, 23, 59, 0, 0, time.UTC),
	}
	for _, day := range days {
		sale := &domain.Sale{
			Date:          day,
			Total:         mustDecimal(t, "10.00"),
			PaymentMethod: domain.PaymentCash,
			SellerUserID:  sellerID,
		}
		if err := repo.CreateSale(ctx, sale, nil); err != nil {
			t.Fatalf("CreateSale failed: %v", err)
		}
	}

	all, err := repo.ListSales(ctx, nil, nil, 100)
	if err != nil {
		t.Fatalf("ListSales failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 sales, got %d", len(all))
	}
	// Newest first
	if all[0].ID < all[1].ID || all[1].ID < all[2].ID {
		t.Error("expected sales ordered newest first")
	}

	// Inclusive calendar-day bounds, time of day ignored
	from := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	ranged, err := repo.ListSales(ctx, &from, &to, 100)
	if err != nil {
		t.Fatalf("ListSales failed: %v", err)
	}
	if len(ranged) != 2 {
		t.Errorf("expected 2 sales in range, got %d", len(ranged))
	}

	limited, err := repo.ListSales(ctx, nil, nil, 1)
	if err != nil {
		t.Fatalf("ListSales failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected limit to cap results, got %d", len(limited))
	}
}

func TestFindByIDUnknownSale(t *testing.T) {
	resetTables(t)

	repo := NewSaleRepository(testDB)
	if _, _, err := repo.FindByID(context.Background(), 12345); !errors.Is(err, ErrSaleNotFound) {
		t.Errorf("expected ErrSaleNotFound, got %v", err)
	}
}

func TestSummaryForDay(t *testing.T) {
	resetTables(t)
	ctx := context.Background()

	sellerID := seedUser(t, "cashier1")
	repo := NewSaleRepository(testDB)

	day := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	totals := []string{"10.00", "25.50"}
	for i, total := range totals {
		sale := &domain.Sale{
			Date:          day.Add(time.Duration(i) * time.Hour),
			Total:         mustDecimal(t, total),
			PaymentMethod: domain.PaymentCash,
			SellerUserID:  sellerID,
		}
		if err := repo.CreateSale(ctx, sale, nil); err != nil {
			t.Fatalf("CreateSale failed: %v", err)
		}
	}
	// A sale on another day must not count.
	other := &domain.Sale{
		Date:          day.AddDate(0, 0, 1),
		Total:         mustDecimal(t, "99.00"),
		PaymentMethod: domain.PaymentCash,
		SellerUserID:  sellerID,
	}
	if err := repo.CreateSale(ctx, other, nil); err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	count, total, err := repo.SummaryForDay(ctx, day)
	if err != nil {
		t.Fatalf("SummaryForDay failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 sales, got %d", count)
	}
	if !total.Equal(mustDecimal(t, "35.50")) {
		t.Errorf("expected total 35.50, got %s", total)
	}
}
