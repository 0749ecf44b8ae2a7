package transport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"pharma-pos/internal/domain"
	"pharma-pos/internal/expiry"
	"pharma-pos/internal/middleware"
	"pharma-pos/internal/repository"
	"pharma-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaleItemRequest is one requested line of a sale
type SaleItemRequest struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Qty       int              `json:"qty" validate:"required,gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// CreateSaleRequest represents the sale commit payload
type CreateSaleRequest struct {
	Items         []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string            `json:"payment_method"`
}

// SaleResponse is a committed sale with its receipt lines
type SaleResponse struct {
	Sale  *domain.Sale       `json:"sale"`
	Items []*domain.SaleItem `json:"items"`
}

// SaleHandler handles HTTP requests for sales
type SaleHandler struct {
	saleService  service.SaleService
	queryService service.SaleQueryService
	logger       *zap.Logger
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(saleService service.SaleService, queryService service.SaleQueryService, logger *zap.Logger) *SaleHandler {
	return &SaleHandler{
		saleService:  saleService,
		queryService: queryService,
		logger:       logger,
	}
}

// RegisterRoutes registers all sale routes
func (h *SaleHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/api/sales", h.CreateSale)
		r.Get("/api/sales", h.ListSales)
		r.Get("/api/sales/{id}", h.GetSale)
	})
}

// CreateSale commits a cart as an atomic sale
func (h *SaleHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Create sale validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	operatorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cart := make([]domain.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		cart = append(cart, domain.CartLine{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
		})
	}

	sale, items, err := h.saleService.CommitSale(r.Context(), cart, req.PaymentMethod, operatorID)
	if err != nil {
		h.logger.Debug("Sale rejected", zap.Error(err))

		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, repository.ErrInsufficientStock),
			errors.Is(err, service.ErrProductExpired):
			middleware.RespondWithError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrEmptyCart),
			errors.Is(err, service.ErrItemInvalid),
			errors.Is(err, service.ErrInvalidPayment),
			errors.Is(err, service.ErrOperatorRequired):
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("Failed to record sale", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to record sale")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, SaleResponse{Sale: sale, Items: items})
}

// ListSales returns sale history, newest first, optionally bounded by
// from/to calendar dates (inclusive)
func (h *SaleHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	var from, to *time.Time

	if s := r.URL.Query().Get("from"); s != "" {
		t, ok := expiry.ParseDate(s)
		if !ok {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
			return
		}
		from = &t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, ok := expiry.ParseDate(s)
		if !ok {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
			return
		}
		to = &t
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	sales, err := h.queryService.ListSales(r.Context(), from, to, limit)
	if err != nil {
		h.logger.Error("Failed to list sales", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list sales")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, sales)
}

// GetSale returns a single sale with its receipt lines
func (h *SaleHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid sale id")
		return
	}

	sale, items, err := h.queryService.GetSale(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSaleNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "sale not found")
			return
		}

		h.logger.Error("Failed to get sale", zap.Int64("sale_id", id), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get sale")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, SaleResponse{Sale: sale, Items: items})
}
