package fiscal

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeStore struct {
	brackets   []TaxBracket
	configs    []TaxConfig
	retentions map[string]TaxRetention
	nextID     int
}

func newFakeStore(brackets []TaxBracket) *fakeStore {
	return &fakeStore{brackets: brackets, retentions: map[string]TaxRetention{}}
}

func (f *fakeStore) id() string {
	f.nextID++
	return "id-" + strconv.Itoa(f.nextID)
}

func (f *fakeStore) ListBrackets(_ context.Context, year int, includeInactive bool) ([]TaxBracket, error) {
	var out []TaxBracket
	for _, b := range f.brackets {
		if b.Year == year && (includeInactive || b.IsActive) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveBrackets(ctx context.Context, year int) ([]TaxBracket, error) {
	return f.ListBrackets(ctx, year, false)
}

func (f *fakeStore) CreateBracket(_ context.Context, bracket TaxBracket) (string, error) {
	bracket.ID = f.id()
	f.brackets = append(f.brackets, bracket)
	return bracket.ID, nil
}

func (f *fakeStore) SetBracketActive(_ context.Context, bracketID string, active bool) error {
	for i := range f.brackets {
		if f.brackets[i].ID == bracketID {
			f.brackets[i].IsActive = active
			return nil
		}
	}
	return ErrBracketNotFound
}

func (f *fakeStore) ListConfigs(_ context.Context) ([]TaxConfig, error) {
	return f.configs, nil
}

func (f *fakeStore) CreateConfig(_ context.Context, config TaxConfig) (string, error) {
	config.ID = f.id()
	config.IsActive = false
	f.configs = append(f.configs, config)
	return config.ID, nil
}

func (f *fakeStore) ActivateConfig(_ context.Context, configID string) error {
	var target *TaxConfig
	for i := range f.configs {
		if f.configs[i].ID == configID {
			target = &f.configs[i]
		}
	}
	if target == nil {
		return ErrConfigNotFound
	}
	for i := range f.configs {
		if f.configs[i].Type == target.Type {
			f.configs[i].IsActive = false
		}
	}
	target.IsActive = true
	return nil
}

func (f *fakeStore) DeactivateConfig(_ context.Context, configID string) error {
	for i := range f.configs {
		if f.configs[i].ID == configID {
			f.configs[i].IsActive = false
			return nil
		}
	}
	return ErrConfigNotFound
}

func (f *fakeStore) ActiveConfig(_ context.Context, taxType string) (TaxConfig, error) {
	for _, c := range f.configs {
		if c.Type == taxType && c.IsActive {
			return c, nil
		}
	}
	return TaxConfig{}, ErrNoActiveConfig
}

func (f *fakeStore) retentionKey(r TaxRetention) string {
	return r.DocumentRef + "|" + r.Type + "|" + r.Period
}

func (f *fakeStore) UpsertRetention(_ context.Context, retention TaxRetention) (string, error) {
	key := f.retentionKey(retention)
	if existing, ok := f.retentions[key]; ok {
		if existing.Status != RetentionStatusPending {
			return "", ErrRetentionImmutable
		}
		retention.ID = existing.ID
		retention.Status = RetentionStatusPending
		f.retentions[key] = retention
		return existing.ID, nil
	}
	retention.ID = f.id()
	retention.Status = RetentionStatusPending
	f.retentions[key] = retention
	return retention.ID, nil
}

func (f *fakeStore) GetRetention(_ context.Context, retentionID string) (TaxRetention, error) {
	for _, r := range f.retentions {
		if r.ID == retentionID {
			return r, nil
		}
	}
	return TaxRetention{}, ErrRetentionNotFound
}

func (f *fakeStore) CountRetentions(_ context.Context, filter RetentionFilter) (int, error) {
	count := 0
	for _, r := range f.retentions {
		if retentionMatches(r, filter) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ListRetentions(_ context.Context, filter RetentionFilter, limit, offset int) ([]TaxRetention, error) {
	var out []TaxRetention
	for _, r := range f.retentions {
		if retentionMatches(r, filter) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateRetentionStatus(_ context.Context, retentionID, fromStatus, toStatus string) error {
	for key, r := range f.retentions {
		if r.ID == retentionID && r.Status == fromStatus {
			r.Status = toStatus
			f.retentions[key] = r
			return nil
		}
	}
	return ErrInvalidTransition
}

func (f *fakeStore) AdvancePeriodRetentions(_ context.Context, period, documentType, fromStatus, toStatus string) (int64, error) {
	var advanced int64
	for key, r := range f.retentions {
		if r.Period == period && (documentType == "" || r.DocumentType == documentType) && r.Status == fromStatus {
			r.Status = toStatus
			f.retentions[key] = r
			advanced++
		}
	}
	return advanced, nil
}

func (f *fakeStore) InvalidatePendingRetentions(_ context.Context, documentType, documentRef, period string) error {
	for key, r := range f.retentions {
		if r.DocumentType == documentType && r.DocumentRef == documentRef && r.Period == period && r.Status == RetentionStatusPending {
			delete(f.retentions, key)
		}
	}
	return nil
}

func retentionMatches(r TaxRetention, filter RetentionFilter) bool {
	if filter.Period != "" && r.Period != filter.Period {
		return false
	}
	if filter.Type != "" && r.Type != filter.Type {
		return false
	}
	if filter.Status != "" && r.Status != filter.Status {
		return false
	}
	return true
}

func testDefaults() DefaultRates {
	return DefaultRates{
		EmployeeINSS: decimal.NewFromInt(3),
		EmployerINSS: decimal.NewFromInt(4),
		IVA:          decimal.NewFromInt(16),
	}
}

func TestComputeForPayrollUsesFallbackRates(t *testing.T) {
	service := NewService(newFakeStore(table2024()), testDefaults(), nil)

	breakdown, err := service.ComputeForPayroll(context.Background(), decimal.NewFromInt(30000), "2024-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !breakdown.IncomeTax.Equal(decimal.NewFromInt(3361)) {
		t.Fatalf("expected income tax 3361, got %s", breakdown.IncomeTax)
	}
	if !breakdown.EmployeeSocialSecurity.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("expected fallback employee INSS 900, got %s", breakdown.EmployeeSocialSecurity)
	}
	if !breakdown.NetSalary.Equal(decimal.NewFromInt(25739)) {
		t.Fatalf("expected net 25739, got %s", breakdown.NetSalary)
	}
}

func TestComputeForPayrollPrefersActiveConfig(t *testing.T) {
	store := newFakeStore(table2024())
	service := NewService(store, testDefaults(), nil)

	id, err := service.CreateConfig(context.Background(), TaxConfig{
		Type:         TaxTypeINSSEmployee,
		RatePercent:  decimal.NewFromInt(5),
		ApplicableTo: ApplicableToSalaries,
	})
	if err != nil {
		t.Fatalf("create config failed: %v", err)
	}
	if err := service.ActivateConfig(context.Background(), id); err != nil {
		t.Fatalf("activate config failed: %v", err)
	}

	breakdown, err := service.ComputeForPayroll(context.Background(), decimal.NewFromInt(10000), "2024-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !breakdown.EmployeeSocialSecurity.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected configured 5%% INSS = 500, got %s", breakdown.EmployeeSocialSecurity)
	}
}

func TestComputeForPayrollRejectsBadPeriod(t *testing.T) {
	service := NewService(newFakeStore(table2024()), testDefaults(), nil)
	if _, err := service.ComputeForPayroll(context.Background(), decimal.NewFromInt(1000), "May 2024"); err == nil {
		t.Fatal("expected error for malformed period")
	}
}

func TestActivateConfigEnforcesSingleActivePerType(t *testing.T) {
	store := newFakeStore(nil)
	service := NewService(store, testDefaults(), nil)
	ctx := context.Background()

	first, err := service.CreateConfig(ctx, TaxConfig{Type: TaxTypeIVA, RatePercent: decimal.NewFromInt(16), ApplicableTo: ApplicableToInvoices, IsActive: true})
	if err != nil {
		t.Fatalf("create first config failed: %v", err)
	}
	second, err := service.CreateConfig(ctx, TaxConfig{Type: TaxTypeIVA, RatePercent: decimal.NewFromInt(17), ApplicableTo: ApplicableToInvoices, IsActive: true})
	if err != nil {
		t.Fatalf("create second config failed: %v", err)
	}

	active, err := store.ActiveConfig(ctx, TaxTypeIVA)
	if err != nil {
		t.Fatalf("expected an active config: %v", err)
	}
	if active.ID != second {
		t.Fatalf("expected %s active, got %s", second, active.ID)
	}
	for _, config := range store.configs {
		if config.ID == first && config.IsActive {
			t.Fatal("activating the second config should deactivate the first")
		}
	}
}

func TestEmitRetentionsIdempotent(t *testing.T) {
	store := newFakeStore(table2024())
	service := NewService(store, testDefaults(), nil)
	ctx := context.Background()

	breakdown, err := service.ComputeForPayroll(ctx, decimal.NewFromInt(30000), "2024-05")
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	first, err := service.EmitRetentions(ctx, DocumentTypePayslip, "payslip-1", "2024-05", time.Now(), breakdown)
	if err != nil {
		t.Fatalf("first emission failed: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 retentions (irps, employee and employer inss), got %d", len(first))
	}

	second, err := service.EmitRetentions(ctx, DocumentTypePayslip, "payslip-1", "2024-05", time.Now(), breakdown)
	if err != nil {
		t.Fatalf("second emission failed: %v", err)
	}
	if len(second) != 3 {
		t.Fatalf("expected 3 retentions on re-emission, got %d", len(second))
	}
	if count, _ := store.CountRetentions(ctx, RetentionFilter{}); count != 3 {
		t.Fatalf("re-emission duplicated audit records: %d", count)
	}
}

func TestEmitRetentionsSkipsZeroComponents(t *testing.T) {
	store := newFakeStore(table2024())
	service := NewService(store, testDefaults(), nil)
	ctx := context.Background()

	breakdown := ComputePayrollTaxes(decimal.NewFromInt(1000), table2024(), decimal.Zero, decimal.Zero)
	emitted, err := service.EmitRetentions(ctx, DocumentTypePayslip, "payslip-2", "2024-05", time.Now(), breakdown)
	if err != nil {
		t.Fatalf("emission failed: %v", err)
	}
	if len(emitted) != 1 {
		t.Fatalf("expected only the income tax retention, got %d", len(emitted))
	}
	if emitted[0].Type != TaxTypeIRPS {
		t.Fatalf("expected an irps retention, got %s", emitted[0].Type)
	}
}

func TestEmitRetentionsRefusesAdvancedRecords(t *testing.T) {
	store := newFakeStore(table2024())
	service := NewService(store, testDefaults(), nil)
	ctx := context.Background()

	breakdown, err := service.ComputeForPayroll(ctx, decimal.NewFromInt(30000), "2024-05")
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	emitted, err := service.EmitRetentions(ctx, DocumentTypePayslip, "payslip-3", "2024-05", time.Now(), breakdown)
	if err != nil || len(emitted) == 0 {
		t.Fatalf("emission failed: %v", err)
	}

	advanced, err := service.ApplyPeriodRetentions(ctx, "2024-05", DocumentTypePayslip)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if advanced != int64(len(emitted)) {
		t.Fatalf("expected %d retentions applied, got %d", len(emitted), advanced)
	}

	if _, err := service.EmitRetentions(ctx, DocumentTypePayslip, "payslip-3", "2024-05", time.Now(), breakdown); !errors.Is(err, ErrRetentionImmutable) {
		t.Fatalf("expected ErrRetentionImmutable, got %v", err)
	}
}

func TestTransitionRetentionIsMonotonic(t *testing.T) {
	store := newFakeStore(table2024())
	service := NewService(store, testDefaults(), nil)
	ctx := context.Background()

	breakdown, _ := service.ComputeForPayroll(ctx, decimal.NewFromInt(30000), "2024-05")
	emitted, err := service.EmitRetentions(ctx, DocumentTypePayslip, "payslip-4", "2024-05", time.Now(), breakdown)
	if err != nil || len(emitted) == 0 {
		t.Fatalf("emission failed: %v", err)
	}
	id := emitted[0].ID

	if err := service.TransitionRetention(ctx, id, RetentionStatusReported); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected skip to reported to fail, got %v", err)
	}
	if err := service.TransitionRetention(ctx, id, RetentionStatusApplied); err != nil {
		t.Fatalf("pending->applied failed: %v", err)
	}
	if err := service.TransitionRetention(ctx, id, RetentionStatusPending); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected backward transition to fail, got %v", err)
	}
	if err := service.TransitionRetention(ctx, id, RetentionStatusReported); err != nil {
		t.Fatalf("applied->reported failed: %v", err)
	}
	if err := service.TransitionRetention(ctx, id, RetentionStatusPaid); err != nil {
		t.Fatalf("reported->paid failed: %v", err)
	}
}

func TestVATForInvoiceUsesDefaultRate(t *testing.T) {
	service := NewService(newFakeStore(nil), testDefaults(), nil)

	amount, rate, err := service.VATForInvoice(context.Background(), decimal.NewFromInt(2500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(16)) {
		t.Fatalf("expected default IVA rate 16, got %s", rate)
	}
	if !amount.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected IVA 400, got %s", amount)
	}
}
