package fiscalhandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"gestor/internal/domain/auth"
	"gestor/internal/domain/fiscal"
	"gestor/internal/transport/http/api"
	"gestor/internal/transport/http/middleware"
	"gestor/internal/transport/http/shared"
)

type Handler struct {
	Service *fiscal.Service
}

func NewHandler(service *fiscal.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/fiscal", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermFiscalRead)).Get("/brackets", h.handleListBrackets)
		r.With(middleware.RequirePermission(auth.PermFiscalWrite)).Post("/brackets", h.handleCreateBracket)
		r.With(middleware.RequirePermission(auth.PermFiscalAdmin)).Post("/brackets/{bracketID}/activate", h.handleSetBracketActive(true))
		r.With(middleware.RequirePermission(auth.PermFiscalAdmin)).Post("/brackets/{bracketID}/deactivate", h.handleSetBracketActive(false))

		r.With(middleware.RequirePermission(auth.PermFiscalRead)).Get("/configs", h.handleListConfigs)
		r.With(middleware.RequirePermission(auth.PermFiscalWrite)).Post("/configs", h.handleCreateConfig)
		r.With(middleware.RequirePermission(auth.PermFiscalAdmin)).Post("/configs/{configID}/activate", h.handleActivateConfig)
		r.With(middleware.RequirePermission(auth.PermFiscalAdmin)).Post("/configs/{configID}/deactivate", h.handleDeactivateConfig)

		r.With(middleware.RequirePermission(auth.PermFiscalRead)).Get("/retentions", h.handleListRetentions)
		r.With(middleware.RequirePermission(auth.PermFiscalRead)).Get("/retentions/{retentionID}", h.handleGetRetention)
		r.With(middleware.RequirePermission(auth.PermFiscalAdmin)).Post("/retentions/{retentionID}/transition", h.handleTransitionRetention)

		r.With(middleware.RequirePermission(auth.PermFiscalRead)).Post("/simulate/payroll", h.handleSimulatePayroll)
		r.With(middleware.RequirePermission(auth.PermFiscalRead)).Post("/simulate/vat", h.handleSimulateVAT)
	})
}

func (h *Handler) handleListBrackets(w http.ResponseWriter, r *http.Request) {
	year := time.Now().UTC().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.Fail(w, http.StatusBadRequest, "invalid_year", "year must be a positive integer", middleware.GetRequestID(r.Context()))
			return
		}
		year = parsed
	}
	includeInactive := r.URL.Query().Get("includeInactive") == "true"

	brackets, err := h.Service.ListBrackets(r.Context(), year, includeInactive)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "brackets_list_failed", "failed to list brackets", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"year": year, "items": brackets}, middleware.GetRequestID(r.Context()))
}

type bracketPayload struct {
	Year           int    `json:"year"`
	MinIncome      string `json:"minIncome"`
	MaxIncome      string `json:"maxIncome"`
	RatePercent    string `json:"ratePercent"`
	FixedDeduction string `json:"fixedDeduction"`
	IsActive       bool   `json:"isActive"`
}

func (h *Handler) handleCreateBracket(w http.ResponseWriter, r *http.Request) {
	var payload bracketPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	validator := shared.NewValidator()
	if payload.Year <= 0 {
		validator.Add("year", "must be a positive fiscal year")
	}
	minIncome, _ := validator.Amount("minIncome", payload.MinIncome)
	ratePercent, _ := validator.Rate("ratePercent", payload.RatePercent)

	fixedDeduction := decimal.Zero
	if payload.FixedDeduction != "" {
		fixedDeduction, _ = validator.Amount("fixedDeduction", payload.FixedDeduction)
	}

	// An empty max income means the band is open ended.
	var maxIncome *decimal.Decimal
	if strings.TrimSpace(payload.MaxIncome) != "" {
		parsed, ok := validator.Amount("maxIncome", payload.MaxIncome)
		if ok {
			maxIncome = &parsed
		}
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	id, err := h.Service.CreateBracket(r.Context(), fiscal.TaxBracket{
		Year:           payload.Year,
		MinIncome:      minIncome,
		MaxIncome:      maxIncome,
		RatePercent:    ratePercent,
		FixedDeduction: fixedDeduction,
		IsActive:       payload.IsActive,
	})
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "bracket_create_failed", err.Error(), middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSetBracketActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bracketID := chi.URLParam(r, "bracketID")
		err := h.Service.SetBracketActive(r.Context(), bracketID, active)
		if errors.Is(err, fiscal.ErrBracketNotFound) {
			api.Fail(w, http.StatusNotFound, "bracket_not_found", "bracket not found", middleware.GetRequestID(r.Context()))
			return
		}
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "bracket_update_failed", "failed to update bracket", middleware.GetRequestID(r.Context()))
			return
		}
		api.Success(w, map[string]any{"id": bracketID, "isActive": active}, middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.Service.ListConfigs(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "configs_list_failed", "failed to list tax configs", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, configs, middleware.GetRequestID(r.Context()))
}

type configPayload struct {
	Type          string `json:"type"`
	RatePercent   string `json:"ratePercent"`
	ApplicableTo  string `json:"applicableTo"`
	EffectiveFrom string `json:"effectiveFrom"`
	IsActive      bool   `json:"isActive"`
}

func (h *Handler) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var payload configPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	validator := shared.NewValidator()
	validator.Required("type", payload.Type, "tax type is required")
	ratePercent, _ := validator.Rate("ratePercent", payload.RatePercent)
	var effectiveFrom time.Time
	if payload.EffectiveFrom != "" {
		effectiveFrom, _ = validator.Date("effectiveFrom", payload.EffectiveFrom)
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	applicableTo := strings.TrimSpace(payload.ApplicableTo)
	if applicableTo == "" {
		applicableTo = fiscal.ApplicableToAll
	}

	id, err := h.Service.CreateConfig(r.Context(), fiscal.TaxConfig{
		Type:          strings.TrimSpace(payload.Type),
		RatePercent:   ratePercent,
		ApplicableTo:  applicableTo,
		EffectiveFrom: effectiveFrom,
		IsActive:      payload.IsActive,
	})
	if errors.Is(err, fiscal.ErrUnknownTaxType) {
		api.Fail(w, http.StatusBadRequest, "unknown_tax_type", "unknown tax type", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "config_create_failed", err.Error(), middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleActivateConfig(w http.ResponseWriter, r *http.Request) {
	configID := chi.URLParam(r, "configID")
	err := h.Service.ActivateConfig(r.Context(), configID)
	if errors.Is(err, fiscal.ErrConfigNotFound) {
		api.Fail(w, http.StatusNotFound, "config_not_found", "tax config not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "config_activate_failed", "failed to activate tax config", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"id": configID, "isActive": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeactivateConfig(w http.ResponseWriter, r *http.Request) {
	configID := chi.URLParam(r, "configID")
	err := h.Service.DeactivateConfig(r.Context(), configID)
	if errors.Is(err, fiscal.ErrConfigNotFound) {
		api.Fail(w, http.StatusNotFound, "config_not_found", "tax config not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "config_deactivate_failed", "failed to deactivate tax config", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"id": configID, "isActive": false}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRetentions(w http.ResponseWriter, r *http.Request) {
	pagination := shared.ParsePagination(r, 50, 200)
	filter := fiscal.RetentionFilter{
		Period: strings.TrimSpace(r.URL.Query().Get("period")),
		Type:   strings.TrimSpace(r.URL.Query().Get("type")),
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
	}

	retentions, count, err := h.Service.ListRetentions(r.Context(), filter, pagination.Limit, pagination.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "retentions_list_failed", "failed to list retentions", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"items": retentions, "total": count}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRetention(w http.ResponseWriter, r *http.Request) {
	retention, err := h.Service.GetRetention(r.Context(), chi.URLParam(r, "retentionID"))
	if errors.Is(err, fiscal.ErrRetentionNotFound) {
		api.Fail(w, http.StatusNotFound, "retention_not_found", "retention not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "retention_get_failed", "failed to load retention", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, retention, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTransitionRetention(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	retentionID := chi.URLParam(r, "retentionID")
	err := h.Service.TransitionRetention(r.Context(), retentionID, strings.TrimSpace(payload.Status))
	if errors.Is(err, fiscal.ErrRetentionNotFound) {
		api.Fail(w, http.StatusNotFound, "retention_not_found", "retention not found", middleware.GetRequestID(r.Context()))
		return
	}
	if errors.Is(err, fiscal.ErrInvalidTransition) {
		api.Fail(w, http.StatusConflict, "invalid_transition", "retention status can only advance one step forward", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "retention_transition_failed", "failed to transition retention", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{"id": retentionID, "status": payload.Status}, middleware.GetRequestID(r.Context()))
}

type simulatePayrollPayload struct {
	GrossSalary string `json:"grossSalary"`
	Period      string `json:"period"`
}

// handleSimulatePayroll runs the full payroll tax calculation without
// touching any stored results or retentions.
func (h *Handler) handleSimulatePayroll(w http.ResponseWriter, r *http.Request) {
	var payload simulatePayrollPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	validator := shared.NewValidator()
	grossSalary, _ := validator.Amount("grossSalary", payload.GrossSalary)
	period, _ := validator.Period("period", payload.Period)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	breakdown, err := h.Service.ComputeForPayroll(r.Context(), grossSalary, period)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "simulation_failed", "failed to simulate payroll taxes", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, breakdown, middleware.GetRequestID(r.Context()))
}

type simulateVATPayload struct {
	BaseAmount string `json:"baseAmount"`
}

func (h *Handler) handleSimulateVAT(w http.ResponseWriter, r *http.Request) {
	var payload simulateVATPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	validator := shared.NewValidator()
	baseAmount, _ := validator.Amount("baseAmount", payload.BaseAmount)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	amount, rate, err := h.Service.VATForInvoice(r.Context(), baseAmount)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "simulation_failed", "failed to compute VAT", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{
		"baseAmount":  baseAmount,
		"ratePercent": rate,
		"vatAmount":   amount,
		"total":       baseAmount.Add(amount),
	}, middleware.GetRequestID(r.Context()))
}
