package transport

import (
	"errors"
	"net/http"

	"pharma-pos/internal/druginfo"
	"pharma-pos/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DrugInfoHandler proxies openFDA label lookups for the register UI
type DrugInfoHandler struct {
	client *druginfo.Client
	logger *zap.Logger
}

// NewDrugInfoHandler creates a new DrugInfoHandler
func NewDrugInfoHandler(client *druginfo.Client, logger *zap.Logger) *DrugInfoHandler {
	return &DrugInfoHandler{
		client: client,
		logger: logger,
	}
}

// RegisterRoutes registers all drug info routes
func (h *DrugInfoHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/api/drug-info", h.Lookup)
	})
}

// Lookup fetches openFDA label data for the name query parameter
func (h *DrugInfoHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	info, err := h.client.Lookup(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		if errors.Is(err, druginfo.ErrNameRequired) {
			middleware.RespondWithError(w, http.StatusBadRequest, "name query parameter is required")
			return
		}

		h.logger.Error("Drug info lookup failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, "drug info source unavailable")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, info)
}
