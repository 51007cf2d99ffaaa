package fiscal

import "context"

type StoreAPI interface {
	ListBrackets(ctx context.Context, year int, includeInactive bool) ([]TaxBracket, error)
	ActiveBrackets(ctx context.Context, year int) ([]TaxBracket, error)
	CreateBracket(ctx context.Context, bracket TaxBracket) (string, error)
	SetBracketActive(ctx context.Context, bracketID string, active bool) error

	ListConfigs(ctx context.Context) ([]TaxConfig, error)
	CreateConfig(ctx context.Context, config TaxConfig) (string, error)
	ActivateConfig(ctx context.Context, configID string) error
	DeactivateConfig(ctx context.Context, configID string) error
	ActiveConfig(ctx context.Context, taxType string) (TaxConfig, error)

	UpsertRetention(ctx context.Context, retention TaxRetention) (string, error)
	GetRetention(ctx context.Context, retentionID string) (TaxRetention, error)
	CountRetentions(ctx context.Context, filter RetentionFilter) (int, error)
	ListRetentions(ctx context.Context, filter RetentionFilter, limit, offset int) ([]TaxRetention, error)
	UpdateRetentionStatus(ctx context.Context, retentionID, fromStatus, toStatus string) error
	AdvancePeriodRetentions(ctx context.Context, period, documentType, fromStatus, toStatus string) (int64, error)
	InvalidatePendingRetentions(ctx context.Context, documentType, documentRef, period string) error
}
