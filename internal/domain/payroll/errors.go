package payroll

import "errors"

var (
	ErrPeriodNotFound       = errors.New("payroll period not found")
	ErrPeriodExists         = errors.New("payroll period already exists")
	ErrPeriodFinalized      = errors.New("payroll period is finalized")
	ErrFinalizeInvalidState = errors.New("payroll period must be computed before finalize")
	ErrFinalizeNoResults    = errors.New("payroll period has no results")
	ErrPayslipNotFound      = errors.New("payslip not found")
)
