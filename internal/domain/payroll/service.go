package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"gestor/internal/domain/core"
	"gestor/internal/domain/fiscal"
	"gestor/internal/platform/jobs"
	"gestor/internal/platform/metrics"
)

// FiscalAPI is what a payroll run needs from the fiscal subsystem: taxes for
// a gross figure and the retention bookkeeping around them.
type FiscalAPI interface {
	ComputeForPayroll(ctx context.Context, grossSalary decimal.Decimal, period string) (fiscal.PayrollTaxBreakdown, error)
	EmitRetentions(ctx context.Context, documentType, documentRef, period string, date time.Time, breakdown fiscal.PayrollTaxBreakdown) ([]fiscal.TaxRetention, error)
	InvalidateRetentions(ctx context.Context, documentType, documentRef, period string) error
	ApplyPeriodRetentions(ctx context.Context, period, documentType string) (int64, error)
}

type EmployeeSource interface {
	ListActiveForPayroll(ctx context.Context) ([]core.PayrollEmployee, error)
}

type Service struct {
	store      StoreAPI
	fiscal     FiscalAPI
	employees  EmployeeSource
	jobs       *jobs.Service
	metrics    *metrics.Collector
	payslipDir string
}

func NewService(store StoreAPI, fiscalService FiscalAPI, employees EmployeeSource, jobsService *jobs.Service, collector *metrics.Collector, payslipDir string) *Service {
	return &Service{
		store:      store,
		fiscal:     fiscalService,
		employees:  employees,
		jobs:       jobsService,
		metrics:    collector,
		payslipDir: payslipDir,
	}
}

func (s *Service) CreatePeriod(ctx context.Context, year, month int) (string, error) {
	if year < 2000 || year > 2100 {
		return "", fmt.Errorf("year %d out of range", year)
	}
	if month < 1 || month > 12 {
		return "", fmt.Errorf("month %d out of range", month)
	}
	return s.store.CreatePeriod(ctx, year, month)
}

func (s *Service) GetPeriod(ctx context.Context, periodID string) (Period, error) {
	return s.store.GetPeriod(ctx, periodID)
}

func (s *Service) ListPeriods(ctx context.Context, limit, offset int) ([]Period, int, error) {
	count, err := s.store.CountPeriods(ctx)
	if err != nil {
		return nil, 0, err
	}
	periods, err := s.store.ListPeriods(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return periods, count, nil
}

func (s *Service) AddInput(ctx context.Context, input Input) (string, error) {
	period, err := s.store.GetPeriod(ctx, input.PeriodID)
	if err != nil {
		return "", err
	}
	if period.Status == PeriodStatusFinalized {
		return "", ErrPeriodFinalized
	}
	if input.Kind != InputKindEarning && input.Kind != InputKindDeduction {
		return "", fmt.Errorf("unknown input kind %q", input.Kind)
	}
	if input.Amount.IsNegative() {
		return "", fmt.Errorf("input amount must be non-negative")
	}
	return s.store.CreateInput(ctx, input)
}

func (s *Service) ListInputs(ctx context.Context, periodID string) ([]Input, error) {
	return s.store.ListInputs(ctx, periodID)
}

func (s *Service) ListResults(ctx context.Context, periodID string) ([]Result, error) {
	return s.store.ListResults(ctx, periodID)
}

func (s *Service) PeriodSummary(ctx context.Context, periodID string) (PeriodSummary, error) {
	return s.store.PeriodSummary(ctx, periodID)
}

// RunPeriod computes every active employee's taxes and net pay for a period.
// Re-running a non-finalized period replaces the previous results and their
// pending retentions instead of stacking duplicate audit records.
func (s *Service) RunPeriod(ctx context.Context, periodID string) (PeriodSummary, error) {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return PeriodSummary{}, err
	}
	if period.Status == PeriodStatusFinalized {
		return PeriodSummary{}, ErrPeriodFinalized
	}

	fiscalPeriod := period.FiscalPeriod()
	staleIDs, err := s.store.DeleteResultsForPeriod(ctx, periodID)
	if err != nil {
		return PeriodSummary{}, err
	}
	for _, staleID := range staleIDs {
		if err := s.fiscal.InvalidateRetentions(ctx, fiscal.DocumentTypePayslip, staleID, fiscalPeriod); err != nil {
			return PeriodSummary{}, fmt.Errorf("invalidate retentions for %s: %w", staleID, err)
		}
	}

	employees, err := s.employees.ListActiveForPayroll(ctx)
	if err != nil {
		return PeriodSummary{}, err
	}

	retentionDate := periodEnd(period)
	for _, employee := range employees {
		lines, err := s.store.InputLines(ctx, periodID, employee.ID)
		if err != nil {
			return PeriodSummary{}, err
		}
		gross, extraDeductions := ComputeGross(employee.BaseSalary, lines)

		breakdown, err := s.fiscal.ComputeForPayroll(ctx, gross, fiscalPeriod)
		if err != nil {
			return PeriodSummary{}, fmt.Errorf("compute taxes for employee %s: %w", employee.ID, err)
		}

		totalDeductions := breakdown.TotalDeductions.Add(extraDeductions)
		net := gross.Sub(totalDeductions)

		var warnings []string
		if net.IsNegative() {
			warnings = append(warnings, WarningNegativeNet)
		}
		if breakdown.MatchedBracket == nil && gross.IsPositive() {
			warnings = append(warnings, WarningNoBracketMatched)
		}

		resultID, err := s.store.UpsertResult(ctx, Result{
			PeriodID:               periodID,
			EmployeeID:             employee.ID,
			Gross:                  gross,
			IncomeTax:              breakdown.IncomeTax,
			EmployeeSocialSecurity: breakdown.EmployeeSocialSecurity,
			EmployerSocialSecurity: breakdown.EmployerSocialSecurity,
			TotalDeductions:        totalDeductions,
			Net:                    net,
			Currency:               employee.Currency,
			Warnings:               warnings,
		})
		if err != nil {
			return PeriodSummary{}, err
		}

		if _, err := s.fiscal.EmitRetentions(ctx, fiscal.DocumentTypePayslip, resultID, fiscalPeriod, retentionDate, breakdown); err != nil {
			return PeriodSummary{}, err
		}
	}

	if err := s.store.UpdatePeriodStatus(ctx, periodID, PeriodStatusComputed); err != nil {
		return PeriodSummary{}, err
	}
	s.metrics.RecordPayrollRun()

	return s.store.PeriodSummary(ctx, periodID)
}

// FinalizePeriod locks a computed period, marks its retentions applied and
// queues payslip PDF generation in the background.
func (s *Service) FinalizePeriod(ctx context.Context, periodID string) error {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	if period.Status != PeriodStatusComputed {
		return ErrFinalizeInvalidState
	}
	count, err := s.store.CountResults(ctx, periodID)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrFinalizeNoResults
	}

	if err := s.store.UpdatePeriodStatus(ctx, periodID, PeriodStatusFinalized); err != nil {
		return err
	}
	if _, err := s.fiscal.ApplyPeriodRetentions(ctx, period.FiscalPeriod(), fiscal.DocumentTypePayslip); err != nil {
		return err
	}

	payslips, err := s.store.CreatePayslipsForPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	for _, payslip := range payslips {
		s.enqueuePayslipPDF(payslip.ID)
	}
	return nil
}

func (s *Service) ListPayslips(ctx context.Context, employeeID string, limit, offset int) ([]Payslip, int, error) {
	count, err := s.store.CountPayslips(ctx, employeeID)
	if err != nil {
		return nil, 0, err
	}
	payslips, err := s.store.ListPayslips(ctx, employeeID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return payslips, count, nil
}

func (s *Service) PayslipFileURL(ctx context.Context, payslipID string) (string, error) {
	return s.store.PayslipFileURL(ctx, payslipID)
}

// RegeneratePayslipPDF rebuilds one payslip PDF synchronously.
func (s *Service) RegeneratePayslipPDF(ctx context.Context, payslipID string) (string, error) {
	return s.generatePayslipPDF(ctx, payslipID)
}

func (s *Service) enqueuePayslipPDF(payslipID string) {
	if s.jobs == nil {
		return
	}
	s.jobs.Enqueue(jobs.JobPayslipPDF, payslipID, func(ctx context.Context) (any, error) {
		path, err := s.generatePayslipPDF(ctx, payslipID)
		if err != nil {
			return nil, err
		}
		return map[string]string{"path": path}, nil
	})
}

func (s *Service) generatePayslipPDF(ctx context.Context, payslipID string) (string, error) {
	data, err := s.store.PayslipPDFData(ctx, payslipID)
	if err != nil {
		return "", err
	}
	path, err := WritePayslipPDF(s.payslipDir, payslipID, data)
	if err != nil {
		return "", err
	}
	if err := s.store.UpdatePayslipFileURL(ctx, payslipID, path); err != nil {
		return "", err
	}
	return path, nil
}

func periodEnd(period Period) time.Time {
	return time.Date(period.Year, time.Month(period.Month)+1, 0, 0, 0, 0, 0, time.UTC)
}
