package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pharma-pos/internal/domain"
	custommiddleware "pharma-pos/internal/middleware"
	"pharma-pos/internal/repository"
	"pharma-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type stubSaleService struct {
	sale  *domain.Sale
	items []*domain.SaleItem
	err   error

	gotCart    []domain.CartLine
	gotPayment string
	gotSeller  int64
}

func (s *stubSaleService) CommitSale(ctx context.Context, cart []domain.CartLine, paymentMethod string, operatorID int64) (*domain.Sale, []*domain.SaleItem, error) {
	s.gotCart = cart
	s.gotPayment = paymentMethod
	s.gotSeller = operatorID
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.sale, s.items, nil
}

type stubSaleQueryService struct {
	sales []*domain.Sale
	sale  *domain.Sale
	items []*domain.SaleItem
	err   error

	gotLimit int
	gotFrom  *time.Time
	gotTo    *time.Time
}

func (s *stubSaleQueryService) ListSales(ctx context.Context, from, to *time.Time, limit int) ([]*domain.Sale, error) {
	s.gotFrom, s.gotTo, s.gotLimit = from, to, limit
	return s.sales, s.err
}

func (s *stubSaleQueryService) GetSale(ctx context.Context, id int64) (*domain.Sale, []*domain.SaleItem, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.sale, s.items, nil
}

func (s *stubSaleQueryService) TodaySummary(ctx context.Context) (*service.DaySummary, error) {
	return &service.DaySummary{}, s.err
}

// asOperator injects the operator identity the auth middleware would set.
func asOperator(req *http.Request, userID int64, role string) *http.Request {
	ctx := context.WithValue(req.Context(), custommiddleware.UserIDKey, userID)
	ctx = context.WithValue(ctx, custommiddleware.UserRoleKey, role)
	return req.WithContext(ctx)
}

func newSaleTestRouter(saleSvc service.SaleService, querySvc service.SaleQueryService) chi.Router {
	h := NewSaleHandler(saleSvc, querySvc, zap.NewNop())
	r := chi.NewRouter()
	r.Post("/api/sales", h.CreateSale)
	r.Get("/api/sales", h.ListSales)
	r.Get("/api/sales/{id}", h.GetSale)
	return r
}

func TestCreateSaleReturnsReceipt(t *testing.T) {
	stub := &stubSaleService{
		sale: &domain.Sale{
			ID:            1,
			Date:          time.Now(),
			Total:         decimal.RequireFromString("59.70"),
			PaymentMethod: domain.PaymentCash,
			SellerUserID:  7,
		},
		items: []*domain.SaleItem{
			{ID: 1, SaleID: 1, ProductID: 3, Code: "PARA500", Name: "Paracetamol 500mg", Qty: 3,
				UnitPrice: decimal.RequireFromString("19.90"), Subtotal: decimal.RequireFromString("59.70")},
		},
	}
	router := newSaleTestRouter(stub, &stubSaleQueryService{})

	body := []byte(`{"items":[{"product_id":3,"qty":3}],"payment_method":"cash"}`)
	req := httptest.NewRequest("POST", "/api/sales", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, asOperator(req, 7, domain.RoleCashier))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp SaleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Sale.ID != 1 || len(resp.Items) != 1 {
		t.Errorf("unexpected receipt: %+v", resp)
	}

	if stub.gotSeller != 7 {
		t.Errorf("expected operator 7, got %d", stub.gotSeller)
	}
	if len(stub.gotCart) != 1 || stub.gotCart[0].ProductID != 3 || stub.gotCart[0].Qty != 3 {
		t.Errorf("cart not passed through: %+v", stub.gotCart)
	}
}

func TestCreateSaleErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown product", fmt.Errorf("product 9: %w", repository.ErrProductNotFound), http.StatusNotFound},
		{"insufficient stock", fmt.Errorf("Paracetamol: %w", repository.ErrInsufficientStock), http.StatusConflict},
		{"expired product", fmt.Errorf("Amoxicillin: %w", service.ErrProductExpired), http.StatusConflict},
		{"invalid line", fmt.Errorf("product 0: %w", service.ErrItemInvalid), http.StatusBadRequest},
		{"invalid payment", fmt.Errorf("barter: %w", service.ErrInvalidPayment), http.StatusBadRequest},
		{"storage failure", fmt.Errorf("boom: %w", service.ErrSaleNotRecorded), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newSaleTestRouter(&stubSaleService{err: tt.err}, &stubSaleQueryService{})

			body := []byte(`{"items":[{"product_id":1,"qty":1}]}`)
			req := httptest.NewRequest("POST", "/api/sales", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, asOperator(req, 1, domain.RoleCashier))

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestCreateSaleRejectsEmptyCartPayload(t *testing.T) {
	router := newSaleTestRouter(&stubSaleService{}, &stubSaleQueryService{})

	req := httptest.NewRequest("POST", "/api/sales", bytes.NewReader([]byte(`{"items":[]}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, asOperator(req, 1, domain.RoleCashier))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty cart, got %d", w.Code)
	}
}

func TestCreateSaleRequiresOperatorIdentity(t *testing.T) {
	router := newSaleTestRouter(&stubSaleService{}, &stubSaleQueryService{})

	body := []byte(`{"items":[{"product_id":1,"qty":1}]}`)
	req := httptest.NewRequest("POST", "/api/sales", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	// No operator in context
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without operator identity, got %d", w.Code)
	}
}

func TestListSalesParsesQueryParams(t *testing.T) {
	stub := &stubSaleQueryService{sales: []*domain.Sale{{ID: 2}, {ID: 1}}}
	router := newSaleTestRouter(&stubSaleService{}, stub)

	req := httptest.NewRequest("GET", "/api/sales?from=2026-08-01&to=2026-08-31&limit=10", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, asOperator(req, 1, domain.RoleCashier))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if stub.gotLimit != 10 {
		t.Errorf("limit not passed through: %d", stub.gotLimit)
	}
	if stub.gotFrom == nil || stub.gotFrom.Format("2006-01-02") != "2026-08-01" {
		t.Errorf("from bound not parsed: %v", stub.gotFrom)
	}
	if stub.gotTo == nil || stub.gotTo.Format("2006-01-02") != "2026-08-31" {
		t.Errorf("to bound not parsed: %v", stub.gotTo)
	}
}

func TestListSalesRejectsMalformedDate(t *testing.T) {
	router := newSaleTestRouter(&stubSaleService{}, &stubSaleQueryService{})

	req := httptest.NewRequest("GET", "/api/sales?from=31-08-2026", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, asOperator(req, 1, domain.RoleCashier))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed date, got %d", w.Code)
	}
}

func TestGetSaleNotFound(t *testing.T) {
	router := newSaleTestRouter(&stubSaleService{}, &stubSaleQueryService{err: repository.ErrSaleNotFound})

	req := httptest.NewRequest("GET", "/api/sales/999", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, asOperator(req, 1, domain.RoleCashier))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetSaleRejectsBadID(t *testing.T) {
	router := newSaleTestRouter(&stubSaleService{}, &stubSaleQueryService{})

	req := httptest.NewRequest("GET", "/api/sales/abc", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, asOperator(req, 1, domain.RoleCashier))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric id, got %d", w.Code)
	}
}
