package transport

import (
	"errors"
	"net/http"
	"strconv"

	"pharma-pos/internal/config"
	"pharma-pos/internal/domain"
	"pharma-pos/internal/expiry"
	"pharma-pos/internal/middleware"
	"pharma-pos/internal/repository"
	"pharma-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest represents the product create/update payload.
// ExpiryDate is a YYYY-MM-DD string; empty means no expiry tracked.
type ProductRequest struct {
	Code       string          `json:"code" validate:"required"`
	Name       string          `json:"name" validate:"required"`
	Lab        string          `json:"lab"`
	Location   string          `json:"location"`
	Stock      int             `json:"stock" validate:"gte=0"`
	BuyPrice   decimal.Decimal `json:"buy_price"`
	SellPrice  decimal.Decimal `json:"sell_price"`
	ExpiryDate string          `json:"expiry_date"`
}

// ProductResponse decorates a catalog product with its expiry status
type ProductResponse struct {
	*domain.Product
	Status string `json:"status"`
}

// AlertsResponse groups the stock alerts shown on the dashboard
type AlertsResponse struct {
	Expiring []*domain.Product `json:"expiring"`
	LowStock []*domain.Product `json:"low_stock"`
}

// DashboardResponse is the register landing-page rollup
type DashboardResponse struct {
	Today         *service.DaySummary `json:"today"`
	ExpiringCount int                 `json:"expiring_count"`
	LowStockCount int                 `json:"low_stock_count"`
}

// ProductHandler handles HTTP requests for the product catalog
type ProductHandler struct {
	productService service.ProductService
	queryService   service.SaleQueryService
	pos            config.POSConfig
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, queryService service.SaleQueryService, pos config.POSConfig, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		queryService:   queryService,
		pos:            pos,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminOnly func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/api/products", h.SearchProducts)
		r.Get("/api/products/{id}", h.GetProduct)
		r.Get("/api/alerts", h.GetAlerts)
		r.Get("/api/dashboard", h.GetDashboard)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Post("/api/products", h.CreateProduct)
			r.Put("/api/products/{id}", h.UpdateProduct)
			r.Delete("/api/products/{id}", h.DeleteProduct)
		})
	})
}

// SearchProducts returns catalog products matching the q parameter,
// or the whole catalog when q is empty
func (h *ProductHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("Failed to search products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to search products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, h.decorate(products))
}

// GetProduct returns a single catalog product
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}

		h.logger.Error("Failed to get product", zap.Int64("product_id", id), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductResponse{
		Product: product,
		Status:  service.ExpiryStatus(product, h.pos.ExpiryAlertDays),
	})
}

// CreateProduct adds a product to the catalog
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	if err := h.productService.Create(r.Context(), product); err != nil {
		h.logger.Error("Failed to create product", zap.Error(err))

		switch {
		case errors.Is(err, repository.ErrProductCodeTaken):
			middleware.RespondWithError(w, http.StatusConflict, "product code already in use")
		case errors.Is(err, service.ErrItemInvalid):
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create product")
		}
		return
	}

	h.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("code", product.Code))
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct replaces a catalog product's fields
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}
	product.ID = id

	if err := h.productService.Update(r.Context(), product); err != nil {
		h.logger.Error("Failed to update product", zap.Int64("product_id", id), zap.Error(err))

		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		case errors.Is(err, repository.ErrProductCodeTaken):
			middleware.RespondWithError(w, http.StatusConflict, "product code already in use")
		case errors.Is(err, service.ErrItemInvalid):
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update product")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct removes a product from the catalog
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}

		h.logger.Error("Failed to delete product", zap.Int64("product_id", id), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetAlerts returns products expiring within the alert window plus
// products at or below the low-stock threshold
func (h *ProductHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	expiring, err := h.productService.Expiring(r.Context(), h.pos.ExpiryAlertDays)
	if err != nil {
		h.logger.Error("Failed to load expiry alerts", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}

	lowStock, err := h.productService.LowStock(r.Context(), h.pos.LowStockThreshold)
	if err != nil {
		h.logger.Error("Failed to load low-stock alerts", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, AlertsResponse{
		Expiring: expiring,
		LowStock: lowStock,
	})
}

// GetDashboard returns today's sales rollup plus alert counts
func (h *ProductHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	today, err := h.queryService.TodaySummary(r.Context())
	if err != nil {
		h.logger.Error("Failed to load today's summary", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	expiring, err := h.productService.Expiring(r.Context(), h.pos.ExpiryAlertDays)
	if err != nil {
		h.logger.Error("Failed to count expiring products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	lowStock, err := h.productService.LowStock(r.Context(), h.pos.LowStockThreshold)
	if err != nil {
		h.logger.Error("Failed to count low-stock products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, DashboardResponse{
		Today:         today,
		ExpiringCount: len(expiring),
		LowStockCount: len(lowStock),
	})
}

// decodeProduct validates the payload and builds the domain product.
// A malformed expiry date is logged and stored as no expiry, matching
// how the register treats unreadable dates at sale time.
func (h *ProductHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (*domain.Product, bool) {
	var req ProductRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return nil, false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	product := &domain.Product{
		Code:      req.Code,
		Name:      req.Name,
		Lab:       req.Lab,
		Location:  req.Location,
		Stock:     req.Stock,
		BuyPrice:  req.BuyPrice,
		SellPrice: req.SellPrice,
	}

	if req.ExpiryDate != "" {
		if t, ok := expiry.ParseDate(req.ExpiryDate); ok {
			product.ExpiryDate = &t
		} else {
			h.logger.Warn("Malformed expiry date, storing product without one",
				zap.String("code", req.Code),
				zap.String("expiry_date", req.ExpiryDate))
		}
	}

	return product, true
}

func (h *ProductHandler) decorate(products []*domain.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, ProductResponse{
			Product: p,
			Status:  service.ExpiryStatus(p, h.pos.ExpiryAlertDays),
		})
	}
	return out
}
