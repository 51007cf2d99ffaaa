package fiscal

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

func (s *Store) ListBrackets(ctx context.Context, year int, includeInactive bool) ([]TaxBracket, error) {
	query := `
    SELECT id, year, min_income, max_income, rate_percent, fixed_deduction, is_active, created_at
    FROM tax_brackets
    WHERE year = $1
  `
	if !includeInactive {
		query += " AND is_active"
	}
	query += " ORDER BY min_income"

	rows, err := s.DB.Query(ctx, query, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var brackets []TaxBracket
	for rows.Next() {
		var bracket TaxBracket
		if err := rows.Scan(&bracket.ID, &bracket.Year, &bracket.MinIncome, &bracket.MaxIncome,
			&bracket.RatePercent, &bracket.FixedDeduction, &bracket.IsActive, &bracket.CreatedAt); err != nil {
			return nil, err
		}
		brackets = append(brackets, bracket)
	}
	return brackets, rows.Err()
}

func (s *Store) ActiveBrackets(ctx context.Context, year int) ([]TaxBracket, error) {
	return s.ListBrackets(ctx, year, false)
}

func (s *Store) CreateBracket(ctx context.Context, bracket TaxBracket) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO tax_brackets (year, min_income, max_income, rate_percent, fixed_deduction, is_active)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id
  `, bracket.Year, bracket.MinIncome, bracket.MaxIncome, bracket.RatePercent, bracket.FixedDeduction, bracket.IsActive).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) SetBracketActive(ctx context.Context, bracketID string, active bool) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE tax_brackets SET is_active = $2 WHERE id = $1
  `, bracketID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBracketNotFound
	}
	return nil
}

func (s *Store) ListConfigs(ctx context.Context) ([]TaxConfig, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, type, rate_percent, is_active, applicable_to, effective_from, created_at
    FROM tax_configs
    ORDER BY type, effective_from DESC
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []TaxConfig
	for rows.Next() {
		var config TaxConfig
		if err := rows.Scan(&config.ID, &config.Type, &config.RatePercent, &config.IsActive,
			&config.ApplicableTo, &config.EffectiveFrom, &config.CreatedAt); err != nil {
			return nil, err
		}
		configs = append(configs, config)
	}
	return configs, rows.Err()
}

func (s *Store) CreateConfig(ctx context.Context, config TaxConfig) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO tax_configs (type, rate_percent, is_active, applicable_to, effective_from)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, config.Type, config.RatePercent, config.IsActive, config.ApplicableTo, config.EffectiveFrom).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ActivateConfig makes one config authoritative for its type: any previously
// active config of the same type is deactivated in the same transaction.
func (s *Store) ActivateConfig(ctx context.Context, configID string) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var taxType string
	if err := tx.QueryRow(ctx, "SELECT type FROM tax_configs WHERE id = $1", configID).Scan(&taxType); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConfigNotFound
		}
		return err
	}

	if _, err := tx.Exec(ctx, `
    UPDATE tax_configs SET is_active = false WHERE type = $1 AND is_active AND id <> $2
  `, taxType, configID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "UPDATE tax_configs SET is_active = true WHERE id = $1", configID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) DeactivateConfig(ctx context.Context, configID string) error {
	tag, err := s.DB.Exec(ctx, "UPDATE tax_configs SET is_active = false WHERE id = $1", configID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConfigNotFound
	}
	return nil
}

func (s *Store) ActiveConfig(ctx context.Context, taxType string) (TaxConfig, error) {
	var config TaxConfig
	err := s.DB.QueryRow(ctx, `
    SELECT id, type, rate_percent, is_active, applicable_to, effective_from, created_at
    FROM tax_configs
    WHERE type = $1 AND is_active
    ORDER BY effective_from DESC
    LIMIT 1
  `, taxType).Scan(&config.ID, &config.Type, &config.RatePercent, &config.IsActive,
		&config.ApplicableTo, &config.EffectiveFrom, &config.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TaxConfig{}, ErrNoActiveConfig
	}
	if err != nil {
		return TaxConfig{}, err
	}
	return config, nil
}

// UpsertRetention inserts an audit record, or refreshes the existing one for
// the same (document, tax type, period) while it is still pending. A record
// that already advanced past pending is left untouched and reported as
// ErrRetentionImmutable.
func (s *Store) UpsertRetention(ctx context.Context, retention TaxRetention) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO tax_retentions (type, document_type, document_ref, base_amount, rate_percent, retained_amount, date, period, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    ON CONFLICT (document_ref, type, period) DO UPDATE
    SET document_type = EXCLUDED.document_type,
        base_amount = EXCLUDED.base_amount,
        rate_percent = EXCLUDED.rate_percent,
        retained_amount = EXCLUDED.retained_amount,
        date = EXCLUDED.date
    WHERE tax_retentions.status = 'pending'
    RETURNING id
  `, retention.Type, retention.DocumentType, retention.DocumentRef, retention.BaseAmount,
		retention.RatePercent, retention.RetainedAmount, retention.Date, retention.Period,
		RetentionStatusPending).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrRetentionImmutable
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetRetention(ctx context.Context, retentionID string) (TaxRetention, error) {
	var retention TaxRetention
	err := s.DB.QueryRow(ctx, `
    SELECT id, type, document_type, document_ref, base_amount, rate_percent, retained_amount, date, period, status, created_at
    FROM tax_retentions
    WHERE id = $1
  `, retentionID).Scan(&retention.ID, &retention.Type, &retention.DocumentType, &retention.DocumentRef,
		&retention.BaseAmount, &retention.RatePercent, &retention.RetainedAmount, &retention.Date,
		&retention.Period, &retention.Status, &retention.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TaxRetention{}, ErrRetentionNotFound
	}
	if err != nil {
		return TaxRetention{}, err
	}
	return retention, nil
}

func retentionFilterClause(filter RetentionFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Period != "" {
		args = append(args, filter.Period)
		clauses = append(clauses, "period = $"+strconv.Itoa(len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		clauses = append(clauses, "type = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, "status = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) CountRetentions(ctx context.Context, filter RetentionFilter) (int, error) {
	where, args := retentionFilterClause(filter)
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM tax_retentions"+where, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ListRetentions(ctx context.Context, filter RetentionFilter, limit, offset int) ([]TaxRetention, error) {
	where, args := retentionFilterClause(filter)
	args = append(args, limit, offset)
	query := `
    SELECT id, type, document_type, document_ref, base_amount, rate_percent, retained_amount, date, period, status, created_at
    FROM tax_retentions` + where + `
    ORDER BY period DESC, created_at DESC
    LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var retentions []TaxRetention
	for rows.Next() {
		var retention TaxRetention
		if err := rows.Scan(&retention.ID, &retention.Type, &retention.DocumentType, &retention.DocumentRef,
			&retention.BaseAmount, &retention.RatePercent, &retention.RetainedAmount, &retention.Date,
			&retention.Period, &retention.Status, &retention.CreatedAt); err != nil {
			return nil, err
		}
		retentions = append(retentions, retention)
	}
	return retentions, rows.Err()
}

func (s *Store) UpdateRetentionStatus(ctx context.Context, retentionID, fromStatus, toStatus string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE tax_retentions SET status = $3 WHERE id = $1 AND status = $2
  `, retentionID, fromStatus, toStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// AdvancePeriodRetentions moves every retention of the period (optionally
// narrowed to one document type) from one status to the next.
func (s *Store) AdvancePeriodRetentions(ctx context.Context, period, documentType, fromStatus, toStatus string) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE tax_retentions SET status = $4
    WHERE period = $1 AND ($2 = '' OR document_type = $2) AND status = $3
  `, period, documentType, fromStatus, toStatus)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) InvalidatePendingRetentions(ctx context.Context, documentType, documentRef, period string) error {
	_, err := s.DB.Exec(ctx, `
    DELETE FROM tax_retentions
    WHERE document_type = $1 AND document_ref = $2 AND period = $3 AND status = 'pending'
  `, documentType, documentRef, period)
	return err
}
