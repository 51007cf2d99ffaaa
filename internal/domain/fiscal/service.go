package fiscal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"gestor/internal/platform/metrics"
)

// DefaultRates are the documented fallbacks used when no active TaxConfig
// exists for a type. They are injected from configuration at construction so
// the fallback stays visible and testable instead of hidden in the math.
type DefaultRates struct {
	EmployeeINSS decimal.Decimal
	EmployerINSS decimal.Decimal
	IVA          decimal.Decimal
}

type Service struct {
	store    StoreAPI
	defaults DefaultRates
	metrics  *metrics.Collector
}

func NewService(store StoreAPI, defaults DefaultRates, collector *metrics.Collector) *Service {
	return &Service{store: store, defaults: defaults, metrics: collector}
}

func (s *Service) ListBrackets(ctx context.Context, year int, includeInactive bool) ([]TaxBracket, error) {
	return s.store.ListBrackets(ctx, year, includeInactive)
}

func (s *Service) ActiveBrackets(ctx context.Context, year int) ([]TaxBracket, error) {
	return s.store.ActiveBrackets(ctx, year)
}

func (s *Service) CreateBracket(ctx context.Context, bracket TaxBracket) (string, error) {
	if bracket.Year <= 0 {
		return "", fmt.Errorf("bracket year must be positive")
	}
	if bracket.MinIncome.IsNegative() {
		return "", fmt.Errorf("bracket min income must be non-negative")
	}
	if bracket.MaxIncome != nil && bracket.MaxIncome.LessThan(bracket.MinIncome) {
		return "", fmt.Errorf("bracket max income must be at least min income")
	}
	if bracket.RatePercent.IsNegative() || bracket.RatePercent.GreaterThan(hundred) {
		return "", fmt.Errorf("bracket rate must be between 0 and 100")
	}
	if bracket.FixedDeduction.IsNegative() {
		return "", fmt.Errorf("bracket fixed deduction must be non-negative")
	}
	return s.store.CreateBracket(ctx, bracket)
}

func (s *Service) SetBracketActive(ctx context.Context, bracketID string, active bool) error {
	return s.store.SetBracketActive(ctx, bracketID, active)
}

func (s *Service) ListConfigs(ctx context.Context) ([]TaxConfig, error) {
	return s.store.ListConfigs(ctx)
}

func (s *Service) CreateConfig(ctx context.Context, config TaxConfig) (string, error) {
	if !validTaxType(config.Type) {
		return "", ErrUnknownTaxType
	}
	if config.RatePercent.IsNegative() || config.RatePercent.GreaterThan(hundred) {
		return "", fmt.Errorf("config rate must be between 0 and 100")
	}
	switch config.ApplicableTo {
	case ApplicableToInvoices, ApplicableToSalaries, ApplicableToSuppliers, ApplicableToAll:
	default:
		return "", fmt.Errorf("unknown applicability %q", config.ApplicableTo)
	}
	if config.EffectiveFrom.IsZero() {
		config.EffectiveFrom = time.Now().UTC()
	}

	// Activation goes through ActivateConfig so the single-active-per-type
	// rule holds even when the new config is created active.
	wantActive := config.IsActive
	config.IsActive = false
	id, err := s.store.CreateConfig(ctx, config)
	if err != nil {
		return "", err
	}
	if wantActive {
		if err := s.store.ActivateConfig(ctx, id); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (s *Service) ActivateConfig(ctx context.Context, configID string) error {
	return s.store.ActivateConfig(ctx, configID)
}

func (s *Service) DeactivateConfig(ctx context.Context, configID string) error {
	return s.store.DeactivateConfig(ctx, configID)
}

// ActiveRate resolves the authoritative rate for a tax type, falling back to
// the injected default when no config is active.
func (s *Service) ActiveRate(ctx context.Context, taxType string, fallback decimal.Decimal) (decimal.Decimal, error) {
	config, err := s.store.ActiveConfig(ctx, taxType)
	if errors.Is(err, ErrNoActiveConfig) {
		slog.Warn("no active tax config, using fallback rate", "type", taxType, "fallback", fallback.String())
		return fallback, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return config.RatePercent, nil
}

// ComputeForPayroll resolves the bracket table and social-security rates for
// a fiscal period and runs the payroll tax orchestration on them.
func (s *Service) ComputeForPayroll(ctx context.Context, grossSalary decimal.Decimal, period string) (PayrollTaxBreakdown, error) {
	year, _, err := ParsePeriod(period)
	if err != nil {
		return PayrollTaxBreakdown{}, err
	}

	brackets, err := s.store.ActiveBrackets(ctx, year)
	if err != nil {
		return PayrollTaxBreakdown{}, fmt.Errorf("load brackets for %d: %w", year, err)
	}
	employeeRate, err := s.ActiveRate(ctx, TaxTypeINSSEmployee, s.defaults.EmployeeINSS)
	if err != nil {
		return PayrollTaxBreakdown{}, err
	}
	employerRate, err := s.ActiveRate(ctx, TaxTypeINSSEmployer, s.defaults.EmployerINSS)
	if err != nil {
		return PayrollTaxBreakdown{}, err
	}

	breakdown := ComputePayrollTaxes(grossSalary, brackets, employeeRate, employerRate)
	if breakdown.MatchedBracket == nil && grossSalary.IsPositive() {
		s.metrics.RecordDegradedCalculation()
		slog.Warn("no bracket matched gross income, income tax degraded to zero",
			"gross", grossSalary.String(), "year", year, "brackets", len(brackets))
	}
	return breakdown, nil
}

// VATForInvoice applies the active IVA rate to an invoice base amount.
func (s *Service) VATForInvoice(ctx context.Context, baseAmount decimal.Decimal) (amount, rate decimal.Decimal, err error) {
	rate, err = s.ActiveRate(ctx, TaxTypeIVA, s.defaults.IVA)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return CalculateFlatTax(baseAmount, rate), rate, nil
}

// EmitRetentions writes one audit record per nonzero tax component of a
// payroll breakdown. Re-emitting for the same document and period refreshes
// the pending records in place; records that already advanced past pending
// surface ErrRetentionImmutable.
func (s *Service) EmitRetentions(ctx context.Context, documentType, documentRef, period string, date time.Time, breakdown PayrollTaxBreakdown) ([]TaxRetention, error) {
	if _, _, err := ParsePeriod(period); err != nil {
		return nil, err
	}

	incomeTaxRate := decimal.Zero
	if breakdown.MatchedBracket != nil {
		incomeTaxRate = breakdown.MatchedBracket.RatePercent
	}

	components := []TaxRetention{
		{Type: TaxTypeIRPS, RatePercent: incomeTaxRate, RetainedAmount: breakdown.IncomeTax},
		{Type: TaxTypeINSSEmployee, RatePercent: breakdown.EmployeeSSRate, RetainedAmount: breakdown.EmployeeSocialSecurity},
		{Type: TaxTypeINSSEmployer, RatePercent: breakdown.EmployerSSRate, RetainedAmount: breakdown.EmployerSocialSecurity},
	}

	var emitted []TaxRetention
	for _, component := range components {
		if component.RetainedAmount.IsZero() {
			continue
		}
		retention := TaxRetention{
			Type:           component.Type,
			DocumentType:   documentType,
			DocumentRef:    documentRef,
			BaseAmount:     breakdown.GrossSalary,
			RatePercent:    component.RatePercent,
			RetainedAmount: component.RetainedAmount,
			Date:           date,
			Period:         period,
			Status:         RetentionStatusPending,
		}
		id, err := s.store.UpsertRetention(ctx, retention)
		if err != nil {
			return emitted, fmt.Errorf("emit %s retention for %s: %w", component.Type, documentRef, err)
		}
		retention.ID = id
		emitted = append(emitted, retention)
		s.metrics.RecordRetentionIssued()
	}
	return emitted, nil
}

func (s *Service) GetRetention(ctx context.Context, retentionID string) (TaxRetention, error) {
	return s.store.GetRetention(ctx, retentionID)
}

func (s *Service) ListRetentions(ctx context.Context, filter RetentionFilter, limit, offset int) ([]TaxRetention, int, error) {
	count, err := s.store.CountRetentions(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	retentions, err := s.store.ListRetentions(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return retentions, count, nil
}

// TransitionRetention advances a retention one step along
// pending -> applied -> reported -> paid. Backward or skipping moves are
// rejected.
func (s *Service) TransitionRetention(ctx context.Context, retentionID, toStatus string) error {
	toRank, ok := statusRank[toStatus]
	if !ok {
		return ErrInvalidTransition
	}
	current, err := s.store.GetRetention(ctx, retentionID)
	if err != nil {
		return err
	}
	if statusRank[current.Status]+1 != toRank {
		return ErrInvalidTransition
	}
	return s.store.UpdateRetentionStatus(ctx, retentionID, current.Status, toStatus)
}

// ApplyPeriodRetentions marks every pending retention of a document type in
// the period as applied, returning how many were advanced.
func (s *Service) ApplyPeriodRetentions(ctx context.Context, period, documentType string) (int64, error) {
	return s.store.AdvancePeriodRetentions(ctx, period, documentType, RetentionStatusPending, RetentionStatusApplied)
}

// ReportPeriodRetentions marks every applied retention of the period as
// reported, once the period's declaration has been exported.
func (s *Service) ReportPeriodRetentions(ctx context.Context, period string) (int64, error) {
	return s.store.AdvancePeriodRetentions(ctx, period, "", RetentionStatusApplied, RetentionStatusReported)
}

// InvalidateRetentions drops the pending audit records of a document so a
// recalculation cannot duplicate history.
func (s *Service) InvalidateRetentions(ctx context.Context, documentType, documentRef, period string) error {
	return s.store.InvalidatePendingRetentions(ctx, documentType, documentRef, period)
}

func validTaxType(taxType string) bool {
	for _, known := range TaxTypes {
		if taxType == known {
			return true
		}
	}
	return false
}
