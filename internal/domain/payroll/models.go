package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Period struct {
	ID        string    `json:"id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// FiscalPeriod renders the period as the YYYY-MM identifier retentions and
// declarations are grouped by.
func (p Period) FiscalPeriod() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

type Input struct {
	ID          string          `json:"id"`
	PeriodID    string          `json:"periodId"`
	EmployeeID  string          `json:"employeeId"`
	Kind        string          `json:"kind"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type InputLine struct {
	Kind   string
	Amount decimal.Decimal
}

type Result struct {
	ID                     string          `json:"id"`
	PeriodID               string          `json:"periodId"`
	EmployeeID             string          `json:"employeeId"`
	Gross                  decimal.Decimal `json:"gross"`
	IncomeTax              decimal.Decimal `json:"incomeTax"`
	EmployeeSocialSecurity decimal.Decimal `json:"employeeSocialSecurity"`
	EmployerSocialSecurity decimal.Decimal `json:"employerSocialSecurity"`
	TotalDeductions        decimal.Decimal `json:"totalDeductions"`
	Net                    decimal.Decimal `json:"net"`
	Currency               string          `json:"currency"`
	Warnings               []string        `json:"warnings"`
}

type Payslip struct {
	ID         string    `json:"id"`
	PeriodID   string    `json:"periodId"`
	EmployeeID string    `json:"employeeId"`
	FileURL    string    `json:"fileUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}

type PayslipPDFData struct {
	FirstName              string
	LastName               string
	Email                  string
	Period                 string
	Gross                  decimal.Decimal
	IncomeTax              decimal.Decimal
	EmployeeSocialSecurity decimal.Decimal
	TotalDeductions        decimal.Decimal
	Net                    decimal.Decimal
	Currency               string
}

type PeriodSummary struct {
	TotalGross      decimal.Decimal `json:"totalGross"`
	TotalDeductions decimal.Decimal `json:"totalDeductions"`
	TotalNet        decimal.Decimal `json:"totalNet"`
	EmployeeCount   int             `json:"employeeCount"`
	Warnings        map[string]int  `json:"warnings"`
}
