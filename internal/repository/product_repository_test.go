package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"pharma-pos/internal/domain"
)

func TestProductLifecycle(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewProductRepository(testDB)

	expiry := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	id := seedProduct(t, "PARA500", "Paracetamol 500mg", 10, "19.90", &expiry)

	product, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if product.Code != "PARA500" || product.Stock != 10 {
		t.Errorf("unexpected product: %+v", product)
	}
	if product.ExpiryDate == nil || !product.ExpiryDate.Equal(expiry) {
		t.Errorf("expiry date not persisted: %v", product.ExpiryDate)
	}
	if !product.SellPrice.Equal(mustDecimal(t, "19.90")) {
		t.Errorf("expected sell price 19.90, got %s", product.SellPrice)
	}

	byCode, err := repo.FindByCode(ctx, "PARA500")
	if err != nil {
		t.Fatalf("FindByCode failed: %v", err)
	}
	if byCode.ID != id {
		t.Errorf("FindByCode returned wrong product: %d", byCode.ID)
	}

	product.Name = "Paracetamol 500mg x20"
	product.Stock = 15
	if err := repo.Update(ctx, product); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	updated, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if updated.Name != "Paracetamol 500mg x20" || updated.Stock != 15 {
		t.Errorf("update not persisted: %+v", updated)
	}

	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.FindByID(ctx, id); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound after delete, got %v", err)
	}
}

func TestProductCodeMustBeUnique(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewProductRepository(testDB)

	seedProduct(t, "PARA500", "Paracetamol 500mg", 10, "19.90", nil)

	err := repo.Create(ctx, &domain.Product{
		Code:      "PARA500",
		Name:      "Other name",
		SellPrice: mustDecimal(t, "1.00"),
	})
	if !errors.Is(err, ErrProductCodeTaken) {
		t.Errorf("expected ErrProductCodeTaken, got %v", err)
	}
}

func TestSearchMatchesNameAndCode(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewProductRepository(testDB)

	seedProduct(t, "PARA500", "Paracetamol 500mg", 10, "19.90", nil)
	seedProduct(t, "IBU400", "Ibuprofen 400mg", 5, "25.50", nil)
	seedProduct(t, "VITC", "Vitamin C", 20, "8.75", nil)

	byName, err := repo.Search(ctx, "paraceta")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(byName) != 1 || byName[0].Code != "PARA500" {
		t.Errorf("name search missed: %d results", len(byName))
	}

	byCode, err := repo.Search(ctx, "ibu")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(byCode) != 1 || byCode[0].Code != "IBU400" {
		t.Errorf("code search missed: %d results", len(byCode))
	}

	all, err := repo.Search(ctx, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("empty query should return whole catalog, got %d", len(all))
	}
}

func TestExpiringWithinAndLowStock(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewProductRepository(testDB)

	soon := time.Now().AddDate(0, 0, 10)
	far := time.Now().AddDate(1, 0, 0)
	past := time.Now().AddDate(0, 0, -5)

	seedProduct(t, "SOON", "Expires soon", 10, "1.00", &soon)
	seedProduct(t, "FAR", "Expires far out", 10, "1.00", &far)
	seedProduct(t, "PAST", "Already expired", 10, "1.00", &past)
	seedProduct(t, "NONE", "No expiry", 2, "1.00", nil)

	expiring, err := repo.ExpiringWithin(ctx, 30)
	if err != nil {
		t.Fatalf("ExpiringWithin failed: %v", err)
	}
	codes := map[string]bool{}
	for _, p := range expiring {
		codes[p.Code] = true
	}
	if !codes["SOON"] || !codes["PAST"] {
		t.Errorf("expected SOON and PAST in alert window, got %v", codes)
	}
	if codes["FAR"] || codes["NONE"] {
		t.Errorf("unexpected products in alert window: %v", codes)
	}

	low, err := repo.LowStock(ctx, 5)
	if err != nil {
		t.Fatalf("LowStock failed: %v", err)
	}
	if len(low) != 1 || low[0].Code != "NONE" {
		t.Errorf("expected only NONE below threshold, got %d results", len(low))
	}
}

func TestDecrementStockGuards(t *testing.T) {
	resetTables(t)
	ctx := context.Background()

	id := seedProduct(t, "PARA500", "Paracetamol 500mg", 3, "19.90", nil)

	if err := DecrementStock(ctx, testDB, id, 2); err != nil {
		t.Fatalf("DecrementStock failed: %v", err)
	}

	// More than remains: no change, conflict error
	err := DecrementStock(ctx, testDB, id, 2)
	var conflict *StockConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StockConflictError, got %v", err)
	}

	var stock int
	if err := testDB.QueryRow(`SELECT stock FROM products WHERE id = $1`, id).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 1 {
		t.Errorf("expected stock 1, got %d", stock)
	}

	if err := DecrementStock(ctx, testDB, 99999, 1); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound for unknown product, got %v", err)
	}
}
