package shared

import (
	"testing"
)

func TestValidatorPeriod(t *testing.T) {
	validator := NewValidator()
	period, ok := validator.Period("period", "2024-06")
	if !ok || period != "2024-06" {
		t.Fatalf("expected valid period, got %q ok=%v", period, ok)
	}

	if _, ok := validator.Period("period", "2024-13"); ok {
		t.Fatal("expected month 13 to be rejected")
	}
	if _, ok := validator.Period("period", "202406"); ok {
		t.Fatal("expected missing separator to be rejected")
	}
	if !validator.HasIssues() {
		t.Fatal("expected issues after invalid periods")
	}
}

func TestValidatorAmountAndRate(t *testing.T) {
	validator := NewValidator()

	amount, ok := validator.Amount("amount", "1234.56")
	if !ok || amount.String() != "1234.56" {
		t.Fatalf("expected exact decimal, got %s ok=%v", amount, ok)
	}
	if _, ok := validator.Amount("amount", "-5"); ok {
		t.Fatal("expected negative amount to be rejected")
	}
	if _, ok := validator.Amount("amount", "abc"); ok {
		t.Fatal("expected non-numeric amount to be rejected")
	}

	if _, ok := validator.Rate("rate", "32"); !ok {
		t.Fatal("expected 32 to be a valid rate")
	}
	if _, ok := validator.Rate("rate", "101"); ok {
		t.Fatal("expected rate above 100 to be rejected")
	}
}

func TestValidatorIssuesSorted(t *testing.T) {
	validator := NewValidator()
	validator.Add("zeta", "last")
	validator.Add("alpha", "first")

	issues := validator.Issues()
	if len(issues) != 2 || issues[0].Field != "alpha" || issues[1].Field != "zeta" {
		t.Fatalf("expected issues sorted by field, got %+v", issues)
	}
}
