package fiscal

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type ProgressiveTaxResult struct {
	Tax            decimal.Decimal
	EffectiveRate  decimal.Decimal
	MatchedBracket *TaxBracket
}

// PayrollTaxBreakdown carries every figure a payroll line needs: the employee
// deductions, the employer-side obligation (tracked for reporting, never
// subtracted from net pay) and the rates that produced them.
type PayrollTaxBreakdown struct {
	GrossSalary            decimal.Decimal
	IncomeTax              decimal.Decimal
	EmployeeSocialSecurity decimal.Decimal
	EmployerSocialSecurity decimal.Decimal
	TotalDeductions        decimal.Decimal
	NetSalary              decimal.Decimal
	EmployeeSSRate         decimal.Decimal
	EmployerSSRate         decimal.Decimal
	MatchedBracket         *TaxBracket
}

// CalculateProgressiveTax selects the single active bracket covering
// grossIncome and computes tax = gross * rate/100 - fixedDeduction, clamped
// at zero. Fixed deductions are calibrated per bracket to keep the piecewise
// function continuous at boundaries; without the clamp a misconfigured table
// could yield negative tax just above a bracket floor.
//
// An empty or gapped table matches nothing and yields zero tax with a nil
// MatchedBracket. Callers that treat that as a misconfiguration rather than a
// tax exemption are expected to check MatchedBracket.
func CalculateProgressiveTax(grossIncome decimal.Decimal, brackets []TaxBracket) ProgressiveTaxResult {
	active := make([]TaxBracket, 0, len(brackets))
	for _, bracket := range brackets {
		if bracket.IsActive {
			active = append(active, bracket)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].MinIncome.LessThan(active[j].MinIncome)
	})

	for i := range active {
		bracket := active[i]
		if grossIncome.LessThan(bracket.MinIncome) {
			continue
		}
		if bracket.MaxIncome != nil && grossIncome.GreaterThan(*bracket.MaxIncome) {
			continue
		}

		tax := grossIncome.Mul(bracket.RatePercent).Div(hundred).Sub(bracket.FixedDeduction)
		if tax.IsNegative() {
			tax = decimal.Zero
		}
		effectiveRate := decimal.Zero
		if grossIncome.IsPositive() {
			effectiveRate = tax.Div(grossIncome).Mul(hundred)
		}
		return ProgressiveTaxResult{Tax: tax, EffectiveRate: effectiveRate, MatchedBracket: &active[i]}
	}

	return ProgressiveTaxResult{Tax: decimal.Zero, EffectiveRate: decimal.Zero}
}

// CalculateFlatTax is base * rate/100. It does not validate the base; callers
// own non-negativity of gross figures.
func CalculateFlatTax(baseAmount, ratePercent decimal.Decimal) decimal.Decimal {
	return baseAmount.Mul(ratePercent).Div(hundred)
}

// ComputePayrollTaxes combines the progressive income tax with both
// social-security contributions. The employer contribution is a separate
// employer-side obligation and is not part of the employee's deductions, so
// netSalary + totalDeductions always equals grossSalary exactly.
func ComputePayrollTaxes(grossSalary decimal.Decimal, brackets []TaxBracket, employeeSSRate, employerSSRate decimal.Decimal) PayrollTaxBreakdown {
	progressive := CalculateProgressiveTax(grossSalary, brackets)
	employeeSS := CalculateFlatTax(grossSalary, employeeSSRate)
	employerSS := CalculateFlatTax(grossSalary, employerSSRate)
	totalDeductions := progressive.Tax.Add(employeeSS)

	return PayrollTaxBreakdown{
		GrossSalary:            grossSalary,
		IncomeTax:              progressive.Tax,
		EmployeeSocialSecurity: employeeSS,
		EmployerSocialSecurity: employerSS,
		TotalDeductions:        totalDeductions,
		NetSalary:              grossSalary.Sub(totalDeductions),
		EmployeeSSRate:         employeeSSRate,
		EmployerSSRate:         employerSSRate,
		MatchedBracket:         progressive.MatchedBracket,
	}
}
