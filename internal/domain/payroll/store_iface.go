package payroll

import "context"

type StoreAPI interface {
	CreatePeriod(ctx context.Context, year, month int) (string, error)
	GetPeriod(ctx context.Context, periodID string) (Period, error)
	CountPeriods(ctx context.Context) (int, error)
	ListPeriods(ctx context.Context, limit, offset int) ([]Period, error)
	UpdatePeriodStatus(ctx context.Context, periodID, status string) error

	CreateInput(ctx context.Context, input Input) (string, error)
	ListInputs(ctx context.Context, periodID string) ([]Input, error)
	InputLines(ctx context.Context, periodID, employeeID string) ([]InputLine, error)

	UpsertResult(ctx context.Context, result Result) (string, error)
	ListResults(ctx context.Context, periodID string) ([]Result, error)
	CountResults(ctx context.Context, periodID string) (int, error)
	DeleteResultsForPeriod(ctx context.Context, periodID string) ([]string, error)
	PeriodSummary(ctx context.Context, periodID string) (PeriodSummary, error)

	CreatePayslipsForPeriod(ctx context.Context, periodID string) ([]Payslip, error)
	CountPayslips(ctx context.Context, employeeID string) (int, error)
	ListPayslips(ctx context.Context, employeeID string, limit, offset int) ([]Payslip, error)
	UpdatePayslipFileURL(ctx context.Context, payslipID, fileURL string) error
	PayslipFileURL(ctx context.Context, payslipID string) (string, error)
	PayslipPDFData(ctx context.Context, payslipID string) (PayslipPDFData, error)
}
