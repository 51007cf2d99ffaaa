package payrollhandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gestor/internal/domain/auth"
	"gestor/internal/domain/payroll"
	"gestor/internal/transport/http/api"
	"gestor/internal/transport/http/middleware"
	"gestor/internal/transport/http/shared"
)

type Handler struct {
	Service     *payroll.Service
	Idempotency *middleware.IdempotencyStore
}

func NewHandler(service *payroll.Service, idempotency *middleware.IdempotencyStore) *Handler {
	return &Handler{Service: service, Idempotency: idempotency}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPayrollRead)).Get("/periods", h.handleListPeriods)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite)).Post("/periods", h.handleCreatePeriod)
		r.With(middleware.RequirePermission(auth.PermPayrollRead)).Get("/periods/{periodID}", h.handleGetPeriod)
		r.With(middleware.RequirePermission(auth.PermPayrollRead)).Get("/periods/{periodID}/inputs", h.handleListInputs)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite)).Post("/periods/{periodID}/inputs", h.handleCreateInput)
		r.With(middleware.RequirePermission(auth.PermPayrollRead)).Get("/periods/{periodID}/results", h.handleListResults)
		r.With(middleware.RequirePermission(auth.PermPayrollRead)).Get("/periods/{periodID}/summary", h.handlePeriodSummary)
		r.With(middleware.RequirePermission(auth.PermPayrollRun)).Post("/periods/{periodID}/run", h.handleRunPeriod)
		r.With(middleware.RequirePermission(auth.PermPayrollFinalize)).Post("/periods/{periodID}/finalize", h.handleFinalizePeriod)
		r.With(middleware.RequirePermission(auth.PermPayrollRead)).Get("/payslips", h.handleListPayslips)
		r.With(middleware.RequirePermission(auth.PermPayrollRead)).Get("/payslips/{payslipID}/download", h.handleDownloadPayslip)
		r.With(middleware.RequirePermission(auth.PermPayrollFinalize)).Post("/payslips/{payslipID}/regenerate", h.handleRegeneratePayslip)
	})
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	pagination := shared.ParsePagination(r, 24, 100)
	periods, count, err := h.Service.ListPeriods(r.Context(), pagination.Limit, pagination.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "periods_list_failed", "failed to list periods", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"items": periods, "total": count}, middleware.GetRequestID(r.Context()))
}

type periodPayload struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (h *Handler) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	var payload periodPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	validator := shared.NewValidator()
	if payload.Year <= 0 {
		validator.Add("year", "must be a positive fiscal year")
	}
	if payload.Month < 1 || payload.Month > 12 {
		validator.Add("month", "must be between 1 and 12")
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	id, err := h.Service.CreatePeriod(r.Context(), payload.Year, payload.Month)
	if errors.Is(err, payroll.ErrPeriodExists) {
		api.Fail(w, http.StatusConflict, "period_exists", "a period for this month already exists", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "period_create_failed", "failed to create period", middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := h.Service.GetPeriod(r.Context(), chi.URLParam(r, "periodID"))
	if errors.Is(err, payroll.ErrPeriodNotFound) {
		api.Fail(w, http.StatusNotFound, "period_not_found", "period not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "period_get_failed", "failed to load period", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListInputs(w http.ResponseWriter, r *http.Request) {
	inputs, err := h.Service.ListInputs(r.Context(), chi.URLParam(r, "periodID"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "inputs_list_failed", "failed to list inputs", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, inputs, middleware.GetRequestID(r.Context()))
}

type inputPayload struct {
	EmployeeID  string `json:"employeeId"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

func (h *Handler) handleCreateInput(w http.ResponseWriter, r *http.Request) {
	var payload inputPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	validator := shared.NewValidator()
	validator.Required("employeeId", payload.EmployeeID, "employee id is required")
	validator.Enum("kind", payload.Kind, []string{payroll.InputKindEarning, payroll.InputKindDeduction}, "must be earning or deduction")
	amount, _ := validator.Amount("amount", payload.Amount)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	id, err := h.Service.AddInput(r.Context(), payroll.Input{
		PeriodID:    chi.URLParam(r, "periodID"),
		EmployeeID:  strings.TrimSpace(payload.EmployeeID),
		Kind:        strings.ToLower(strings.TrimSpace(payload.Kind)),
		Description: strings.TrimSpace(payload.Description),
		Amount:      amount,
	})
	if errors.Is(err, payroll.ErrPeriodNotFound) {
		api.Fail(w, http.StatusNotFound, "period_not_found", "period not found", middleware.GetRequestID(r.Context()))
		return
	}
	if errors.Is(err, payroll.ErrPeriodFinalized) {
		api.Fail(w, http.StatusConflict, "period_finalized", "finalized periods cannot accept inputs", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "input_create_failed", "failed to record input", middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.Service.ListResults(r.Context(), chi.URLParam(r, "periodID"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "results_list_failed", "failed to list results", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, results, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePeriodSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.PeriodSummary(r.Context(), chi.URLParam(r, "periodID"))
	if errors.Is(err, payroll.ErrPeriodNotFound) {
		api.Fail(w, http.StatusNotFound, "period_not_found", "period not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "summary_failed", "failed to summarize period", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

// replayIdempotent returns true when a stored response was replayed or the
// key conflicted. Requests without an Idempotency-Key always run.
func (h *Handler) replayIdempotent(w http.ResponseWriter, r *http.Request, endpoint string) (key, requestHash string, done bool) {
	key = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		return "", "", false
	}
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		return "", "", false
	}
	requestHash = middleware.RequestHash([]byte(endpoint))

	stored, found, err := h.Idempotency.Check(r.Context(), user.UserID, endpoint, key, requestHash)
	if errors.Is(err, middleware.ErrIdempotencyConflict) {
		api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used for a different request", middleware.GetRequestID(r.Context()))
		return key, requestHash, true
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "idempotency_failed", "failed to check idempotency key", middleware.GetRequestID(r.Context()))
		return key, requestHash, true
	}
	if found {
		api.Success(w, stored, middleware.GetRequestID(r.Context()))
		return key, requestHash, true
	}
	return key, requestHash, false
}

func (h *Handler) saveIdempotent(r *http.Request, endpoint, key, requestHash string, response any) {
	if key == "" {
		return
	}
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		return
	}
	raw, err := json.Marshal(response)
	if err != nil {
		return
	}
	_ = h.Idempotency.Save(r.Context(), user.UserID, endpoint, key, requestHash, raw)
}

func (h *Handler) handleRunPeriod(w http.ResponseWriter, r *http.Request) {
	periodID := chi.URLParam(r, "periodID")
	endpoint := "payroll.run:" + periodID

	key, requestHash, done := h.replayIdempotent(w, r, endpoint)
	if done {
		return
	}

	summary, err := h.Service.RunPeriod(r.Context(), periodID)
	if errors.Is(err, payroll.ErrPeriodNotFound) {
		api.Fail(w, http.StatusNotFound, "period_not_found", "period not found", middleware.GetRequestID(r.Context()))
		return
	}
	if errors.Is(err, payroll.ErrPeriodFinalized) {
		api.Fail(w, http.StatusConflict, "period_finalized", "finalized periods cannot be rerun", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "payroll_run_failed", "failed to run payroll", middleware.GetRequestID(r.Context()))
		return
	}

	h.saveIdempotent(r, endpoint, key, requestHash, summary)
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleFinalizePeriod(w http.ResponseWriter, r *http.Request) {
	periodID := chi.URLParam(r, "periodID")
	endpoint := "payroll.finalize:" + periodID

	key, requestHash, done := h.replayIdempotent(w, r, endpoint)
	if done {
		return
	}

	err := h.Service.FinalizePeriod(r.Context(), periodID)
	if errors.Is(err, payroll.ErrPeriodNotFound) {
		api.Fail(w, http.StatusNotFound, "period_not_found", "period not found", middleware.GetRequestID(r.Context()))
		return
	}
	if errors.Is(err, payroll.ErrFinalizeInvalidState) {
		api.Fail(w, http.StatusConflict, "finalize_invalid_state", "period must be computed before finalizing", middleware.GetRequestID(r.Context()))
		return
	}
	if errors.Is(err, payroll.ErrFinalizeNoResults) {
		api.Fail(w, http.StatusConflict, "finalize_no_results", "period has no computed results", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "finalize_failed", "failed to finalize period", middleware.GetRequestID(r.Context()))
		return
	}

	response := map[string]string{"id": periodID, "status": payroll.PeriodStatusFinalized}
	h.saveIdempotent(r, endpoint, key, requestHash, response)
	api.Success(w, response, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPayslips(w http.ResponseWriter, r *http.Request) {
	pagination := shared.ParsePagination(r, 50, 200)
	employeeID := strings.TrimSpace(r.URL.Query().Get("employeeId"))

	payslips, count, err := h.Service.ListPayslips(r.Context(), employeeID, pagination.Limit, pagination.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "payslips_list_failed", "failed to list payslips", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"items": payslips, "total": count}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownloadPayslip(w http.ResponseWriter, r *http.Request) {
	fileURL, err := h.Service.PayslipFileURL(r.Context(), chi.URLParam(r, "payslipID"))
	if errors.Is(err, payroll.ErrPayslipNotFound) {
		api.Fail(w, http.StatusNotFound, "payslip_not_found", "payslip not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "payslip_download_failed", "failed to resolve payslip", middleware.GetRequestID(r.Context()))
		return
	}
	if fileURL == "" {
		api.Fail(w, http.StatusNotFound, "payslip_not_ready", "payslip PDF has not been generated yet", middleware.GetRequestID(r.Context()))
		return
	}
	http.ServeFile(w, r, fileURL)
}

func (h *Handler) handleRegeneratePayslip(w http.ResponseWriter, r *http.Request) {
	fileURL, err := h.Service.RegeneratePayslipPDF(r.Context(), chi.URLParam(r, "payslipID"))
	if errors.Is(err, payroll.ErrPayslipNotFound) {
		api.Fail(w, http.StatusNotFound, "payslip_not_found", "payslip not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "payslip_regenerate_failed", "failed to regenerate payslip", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{"fileUrl": fileURL}, middleware.GetRequestID(r.Context()))
}
