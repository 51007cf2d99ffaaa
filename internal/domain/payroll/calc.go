package payroll

import "github.com/shopspring/decimal"

// ComputeGross folds manual input lines into the base salary: earnings raise
// the gross, deductions are collected separately and land on top of the tax
// deductions. Unknown kinds are ignored.
func ComputeGross(baseSalary decimal.Decimal, inputs []InputLine) (gross, extraDeductions decimal.Decimal) {
	gross = baseSalary
	extraDeductions = decimal.Zero
	for _, input := range inputs {
		switch input.Kind {
		case InputKindEarning:
			gross = gross.Add(input.Amount)
		case InputKindDeduction:
			extraDeductions = extraDeductions.Add(input.Amount)
		}
	}
	return gross, extraDeductions
}
