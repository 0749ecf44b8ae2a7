package transport

import (
	"fmt"
	"net/http"
	"time"

	"pharma-pos/internal/expiry"
	"pharma-pos/internal/middleware"
	"pharma-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves xlsx exports of the catalog and sale history
type ReportHandler struct {
	reportService service.ReportService
	logger        *zap.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		logger:        logger,
	}
}

// RegisterRoutes registers all report routes
func (h *ReportHandler) RegisterRoutes(r chi.Router, authMiddleware, adminOnly func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(adminOnly)
		r.Get("/api/reports/inventory", h.ExportInventory)
		r.Get("/api/reports/sales", h.ExportSales)
	})
}

// ExportInventory streams the full catalog as an xlsx workbook
func (h *ReportHandler) ExportInventory(w http.ResponseWriter, r *http.Request) {
	workbook, err := h.reportService.InventoryWorkbook(r.Context())
	if err != nil {
		h.logger.Error("Failed to build inventory workbook", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	defer workbook.Close()

	filename := fmt.Sprintf("inventory_%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := workbook.Write(w); err != nil {
		h.logger.Error("Failed to write inventory workbook", zap.Error(err))
	}
}

// ExportSales streams sale history for a date range as an xlsx workbook.
// Defaults to the last 30 days when no range is given.
func (h *ReportHandler) ExportSales(w http.ResponseWriter, r *http.Request) {
	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if s := r.URL.Query().Get("from"); s != "" {
		t, ok := expiry.ParseDate(s)
		if !ok {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
			return
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, ok := expiry.ParseDate(s)
		if !ok {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
			return
		}
		to = t
	}

	workbook, err := h.reportService.SalesWorkbook(r.Context(), from, to)
	if err != nil {
		h.logger.Error("Failed to build sales workbook", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	defer workbook.Close()

	filename := fmt.Sprintf("sales_%s_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := workbook.Write(w); err != nil {
		h.logger.Error("Failed to write sales workbook", zap.Error(err))
	}
}
