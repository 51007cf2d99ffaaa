package fiscal

import (
	"testing"

	"github.com/shopspring/decimal"
)

func bracket(min, max, rate, deduction string) TaxBracket {
	b := TaxBracket{
		Year:           2024,
		MinIncome:      decimal.RequireFromString(min),
		RatePercent:    decimal.RequireFromString(rate),
		FixedDeduction: decimal.RequireFromString(deduction),
		IsActive:       true,
	}
	if max != "" {
		capped := decimal.RequireFromString(max)
		b.MaxIncome = &capped
	}
	return b
}

func table2024() []TaxBracket {
	return []TaxBracket{
		bracket("0", "22780", "10", "0"),
		bracket("22781", "42560", "15", "1139"),
		bracket("42561", "100800", "20", "3267"),
		bracket("100801", "243040", "25", "8307"),
		bracket("243041", "", "32", "25340"),
	}
}

func TestCalculateProgressiveTaxCanonicalTable(t *testing.T) {
	result := CalculateProgressiveTax(decimal.NewFromInt(50000), table2024())

	if !result.Tax.Equal(decimal.NewFromInt(6733)) {
		t.Fatalf("expected tax 6733, got %s", result.Tax)
	}
	if result.MatchedBracket == nil {
		t.Fatal("expected a matched bracket")
	}
	if !result.MatchedBracket.RatePercent.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected the 20%% bracket, got %s", result.MatchedBracket.RatePercent)
	}
}

func TestCalculateProgressiveTaxZeroIncome(t *testing.T) {
	result := CalculateProgressiveTax(decimal.Zero, table2024())

	if !result.Tax.IsZero() {
		t.Fatalf("expected zero tax, got %s", result.Tax)
	}
	if !result.EffectiveRate.IsZero() {
		t.Fatalf("expected zero effective rate, got %s", result.EffectiveRate)
	}
}

func TestCalculateProgressiveTaxBracketBoundaries(t *testing.T) {
	brackets := table2024()

	upper := CalculateProgressiveTax(decimal.NewFromInt(22780), brackets)
	if upper.MatchedBracket == nil || !upper.MatchedBracket.RatePercent.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected income 22780 to match the 10%% bracket, got %+v", upper.MatchedBracket)
	}
	if !upper.Tax.Equal(decimal.NewFromInt(2278)) {
		t.Fatalf("expected tax 2278 at the upper boundary, got %s", upper.Tax)
	}

	lower := CalculateProgressiveTax(decimal.NewFromInt(22781), brackets)
	if lower.MatchedBracket == nil || !lower.MatchedBracket.RatePercent.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected income 22781 to match the 15%% bracket, got %+v", lower.MatchedBracket)
	}
	if !lower.Tax.Equal(decimal.RequireFromString("2278.15")) {
		t.Fatalf("expected tax 2278.15 at the lower boundary, got %s", lower.Tax)
	}
}

func TestCalculateProgressiveTaxNoMatchDegradesToZero(t *testing.T) {
	result := CalculateProgressiveTax(decimal.NewFromInt(1000), nil)

	if !result.Tax.IsZero() {
		t.Fatalf("expected zero tax on an empty table, got %s", result.Tax)
	}
	if result.MatchedBracket != nil {
		t.Fatalf("expected nil matched bracket, got %+v", result.MatchedBracket)
	}
}

func TestCalculateProgressiveTaxIgnoresInactiveBrackets(t *testing.T) {
	brackets := table2024()
	brackets[0].IsActive = false

	result := CalculateProgressiveTax(decimal.NewFromInt(1000), brackets)
	if result.MatchedBracket != nil {
		t.Fatalf("expected no match below the first active bracket, got %+v", result.MatchedBracket)
	}
}

func TestCalculateProgressiveTaxClampsNegativeTax(t *testing.T) {
	brackets := []TaxBracket{bracket("0", "", "10", "5000")}

	result := CalculateProgressiveTax(decimal.NewFromInt(1000), brackets)
	if !result.Tax.IsZero() {
		t.Fatalf("expected clamped zero tax, got %s", result.Tax)
	}
}

func TestCalculateProgressiveTaxNeverNegative(t *testing.T) {
	brackets := table2024()
	for _, income := range []int64{0, 1, 22780, 22781, 42560, 42561, 100800, 100801, 243040, 243041, 1000000} {
		result := CalculateProgressiveTax(decimal.NewFromInt(income), brackets)
		if result.Tax.IsNegative() {
			t.Fatalf("income %d produced negative tax %s", income, result.Tax)
		}
		if result.MatchedBracket == nil {
			t.Fatalf("income %d matched no bracket on a contiguous table", income)
		}
	}
}

func TestCalculateProgressiveTaxIdempotent(t *testing.T) {
	brackets := table2024()
	first := CalculateProgressiveTax(decimal.NewFromInt(75000), brackets)
	second := CalculateProgressiveTax(decimal.NewFromInt(75000), brackets)

	if !first.Tax.Equal(second.Tax) || !first.EffectiveRate.Equal(second.EffectiveRate) {
		t.Fatalf("expected identical results, got %s/%s and %s/%s",
			first.Tax, first.EffectiveRate, second.Tax, second.EffectiveRate)
	}
}

func TestCalculateFlatTaxLinear(t *testing.T) {
	rate := decimal.RequireFromString("16")
	for _, base := range []int64{0, 1, 250, 30000} {
		single := CalculateFlatTax(decimal.NewFromInt(base), rate)
		double := CalculateFlatTax(decimal.NewFromInt(2*base), rate)
		if !double.Equal(single.Mul(decimal.NewFromInt(2))) {
			t.Fatalf("flat tax not linear at base %d: %s vs %s", base, double, single)
		}
	}
}

func TestCalculateFlatTaxZeroBase(t *testing.T) {
	if got := CalculateFlatTax(decimal.Zero, decimal.NewFromInt(17)); !got.IsZero() {
		t.Fatalf("expected zero tax on zero base, got %s", got)
	}
}

func TestComputePayrollTaxesRoundTrip(t *testing.T) {
	breakdown := ComputePayrollTaxes(
		decimal.NewFromInt(30000),
		table2024(),
		decimal.NewFromInt(3),
		decimal.NewFromInt(4),
	)

	if !breakdown.IncomeTax.Equal(decimal.NewFromInt(3361)) {
		t.Fatalf("expected income tax 3361, got %s", breakdown.IncomeTax)
	}
	if !breakdown.EmployeeSocialSecurity.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("expected employee INSS 900, got %s", breakdown.EmployeeSocialSecurity)
	}
	if !breakdown.EmployerSocialSecurity.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("expected employer INSS 1200, got %s", breakdown.EmployerSocialSecurity)
	}
	if !breakdown.TotalDeductions.Equal(decimal.NewFromInt(4261)) {
		t.Fatalf("expected total deductions 4261, got %s", breakdown.TotalDeductions)
	}
	if !breakdown.NetSalary.Equal(decimal.NewFromInt(25739)) {
		t.Fatalf("expected net 25739, got %s", breakdown.NetSalary)
	}
	if !breakdown.NetSalary.Add(breakdown.TotalDeductions).Equal(breakdown.GrossSalary) {
		t.Fatalf("net %s + deductions %s does not round-trip to gross %s",
			breakdown.NetSalary, breakdown.TotalDeductions, breakdown.GrossSalary)
	}
}

func TestComputePayrollTaxesEmployerShareNotDeducted(t *testing.T) {
	breakdown := ComputePayrollTaxes(
		decimal.NewFromInt(10000),
		table2024(),
		decimal.Zero,
		decimal.NewFromInt(4),
	)

	if !breakdown.TotalDeductions.Equal(breakdown.IncomeTax) {
		t.Fatalf("employer INSS leaked into deductions: %s", breakdown.TotalDeductions)
	}
}
