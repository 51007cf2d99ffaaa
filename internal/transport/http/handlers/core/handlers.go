package corehandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gestor/internal/domain/auth"
	"gestor/internal/domain/core"
	"gestor/internal/transport/http/api"
	"gestor/internal/transport/http/middleware"
	"gestor/internal/transport/http/shared"
)

type Handler struct {
	Store *core.Store
}

func NewHandler(store *core.Store) *Handler {
	return &Handler{Store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermEmployeesRead)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermEmployeesRead)).Get("/{employeeID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite)).Put("/{employeeID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite)).Post("/{employeeID}/terminate", h.handleTerminate)
	})
}

type employeePayload struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Position   string `json:"position"`
	BaseSalary string `json:"baseSalary"`
	Currency   string `json:"currency"`
	HiredAt    string `json:"hiredAt"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	pagination := shared.ParsePagination(r, 50, 200)

	count, err := h.Store.CountEmployees(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employees_list_failed", "failed to list employees", middleware.GetRequestID(r.Context()))
		return
	}
	employees, err := h.Store.ListEmployees(r.Context(), pagination.Limit, pagination.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employees_list_failed", "failed to list employees", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"items": employees, "total": count}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	employee, err := h.Store.GetEmployee(r.Context(), chi.URLParam(r, "employeeID"))
	if errors.Is(err, core.ErrEmployeeNotFound) {
		api.Fail(w, http.StatusNotFound, "employee_not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_get_failed", "failed to load employee", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, employee, middleware.GetRequestID(r.Context()))
}

func (h *Handler) parseEmployee(w http.ResponseWriter, r *http.Request) (core.Employee, bool) {
	var payload employeePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return core.Employee{}, false
	}

	validator := shared.NewValidator()
	validator.Required("firstName", payload.FirstName, "first name is required")
	validator.Required("lastName", payload.LastName, "last name is required")
	validator.Required("email", payload.Email, "email is required")
	baseSalary, _ := validator.Amount("baseSalary", payload.BaseSalary)

	hiredAt := time.Now().UTC()
	if payload.HiredAt != "" {
		if parsed, ok := validator.Date("hiredAt", payload.HiredAt); ok {
			hiredAt = parsed
		}
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return core.Employee{}, false
	}

	currency := strings.ToUpper(strings.TrimSpace(payload.Currency))
	if currency == "" {
		currency = "MZN"
	}
	return core.Employee{
		FirstName:  strings.TrimSpace(payload.FirstName),
		LastName:   strings.TrimSpace(payload.LastName),
		Email:      strings.TrimSpace(strings.ToLower(payload.Email)),
		Position:   strings.TrimSpace(payload.Position),
		BaseSalary: baseSalary,
		Currency:   currency,
		HiredAt:    hiredAt,
	}, true
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	employee, ok := h.parseEmployee(w, r)
	if !ok {
		return
	}
	id, err := h.Store.CreateEmployee(r.Context(), employee)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_create_failed", "failed to create employee", middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	employee, ok := h.parseEmployee(w, r)
	if !ok {
		return
	}
	employee.ID = chi.URLParam(r, "employeeID")

	err := h.Store.UpdateEmployee(r.Context(), employee)
	if errors.Is(err, core.ErrEmployeeNotFound) {
		api.Fail(w, http.StatusNotFound, "employee_not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_update_failed", "failed to update employee", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{"id": employee.ID}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTerminate(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	err := h.Store.TerminateEmployee(r.Context(), employeeID)
	if errors.Is(err, core.ErrEmployeeNotFound) {
		api.Fail(w, http.StatusNotFound, "employee_not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_terminate_failed", "failed to terminate employee", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{"id": employeeID, "status": core.EmployeeStatusTerminated}, middleware.GetRequestID(r.Context()))
}
