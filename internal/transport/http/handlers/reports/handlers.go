package reportshandler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gestor/internal/domain/auth"
	"gestor/internal/domain/reports"
	"gestor/internal/transport/http/api"
	"gestor/internal/transport/http/middleware"
	"gestor/internal/transport/http/shared"
)

type Handler struct {
	Service *reports.Service
}

func NewHandler(service *reports.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReportsRead)).Get("/retentions/{period}", h.handleRetentionSummary)
		r.With(middleware.RequirePermission(auth.PermFiscalAdmin)).Post("/declarations/{period}", h.handleExportDeclaration)
	})
}

func (h *Handler) handleRetentionSummary(w http.ResponseWriter, r *http.Request) {
	validator := shared.NewValidator()
	period, ok := validator.Period("period", chi.URLParam(r, "period"))
	if !ok {
		validator.Reject(w, middleware.GetRequestID(r.Context()))
		return
	}

	summary, err := h.Service.RetentionSummary(r.Context(), period)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "retention_summary_failed", "failed to summarize retentions", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

// handleExportDeclaration streams the declaration CSV and advances the
// exported retentions to reported.
func (h *Handler) handleExportDeclaration(w http.ResponseWriter, r *http.Request) {
	validator := shared.NewValidator()
	period, ok := validator.Period("period", chi.URLParam(r, "period"))
	if !ok {
		validator.Reject(w, middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=declaration-%s.csv", period))

	if _, err := h.Service.WriteDeclarationCSV(r.Context(), period, w); err != nil {
		// Headers are already written, the CSV stream just ends early.
		slog.Warn("declaration export failed",
			"period", period,
			"requestId", middleware.GetRequestID(r.Context()),
			"err", err,
		)
	}
}
