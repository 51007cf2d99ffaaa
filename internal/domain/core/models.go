package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EmployeeStatusActive     = "active"
	EmployeeStatusTerminated = "terminated"
)

type Employee struct {
	ID         string          `json:"id"`
	FirstName  string          `json:"firstName"`
	LastName   string          `json:"lastName"`
	Email      string          `json:"email"`
	Position   string          `json:"position"`
	BaseSalary decimal.Decimal `json:"baseSalary"`
	Currency   string          `json:"currency"`
	Status     string          `json:"status"`
	HiredAt    time.Time       `json:"hiredAt"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// PayrollEmployee is the slice of employee data a payroll run needs.
type PayrollEmployee struct {
	ID         string
	BaseSalary decimal.Decimal
	Currency   string
}
