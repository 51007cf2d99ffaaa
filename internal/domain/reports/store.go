package reports

import (
	"context"

	"github.com/shopspring/decimal"

	"gestor/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

type TypeTotal struct {
	Type      string          `json:"type"`
	BaseTotal decimal.Decimal `json:"baseTotal"`
	Retained  decimal.Decimal `json:"retained"`
	Count     int             `json:"count"`
}

type RetentionSummary struct {
	Period   string         `json:"period"`
	ByType   []TypeTotal    `json:"byType"`
	ByStatus map[string]int `json:"byStatus"`
}

type DeclarationRow struct {
	Type           string
	DocumentType   string
	DocumentRef    string
	BaseAmount     decimal.Decimal
	RatePercent    decimal.Decimal
	RetainedAmount decimal.Decimal
	Status         string
}

func (s *Store) RetentionSummary(ctx context.Context, period string) (RetentionSummary, error) {
	summary := RetentionSummary{Period: period, ByStatus: map[string]int{}}

	rows, err := s.DB.Query(ctx, `
    SELECT type, COALESCE(SUM(base_amount), 0), COALESCE(SUM(retained_amount), 0), COUNT(1)
    FROM tax_retentions
    WHERE period = $1
    GROUP BY type
    ORDER BY type
  `, period)
	if err != nil {
		return RetentionSummary{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var total TypeTotal
		if err := rows.Scan(&total.Type, &total.BaseTotal, &total.Retained, &total.Count); err != nil {
			return RetentionSummary{}, err
		}
		summary.ByType = append(summary.ByType, total)
	}
	if err := rows.Err(); err != nil {
		return RetentionSummary{}, err
	}

	statusRows, err := s.DB.Query(ctx, `
    SELECT status, COUNT(1)
    FROM tax_retentions
    WHERE period = $1
    GROUP BY status
  `, period)
	if err != nil {
		return RetentionSummary{}, err
	}
	defer statusRows.Close()

	for statusRows.Next() {
		var status string
		var count int
		if err := statusRows.Scan(&status, &count); err != nil {
			return RetentionSummary{}, err
		}
		summary.ByStatus[status] = count
	}
	return summary, statusRows.Err()
}

// DeclarationRows returns the applied and reported retentions of a period in
// a stable order for export.
func (s *Store) DeclarationRows(ctx context.Context, period string) ([]DeclarationRow, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT type, document_type, document_ref, base_amount, rate_percent, retained_amount, status
    FROM tax_retentions
    WHERE period = $1 AND status IN ('applied', 'reported')
    ORDER BY type, document_ref
  `, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var declaration []DeclarationRow
	for rows.Next() {
		var row DeclarationRow
		if err := rows.Scan(&row.Type, &row.DocumentType, &row.DocumentRef, &row.BaseAmount,
			&row.RatePercent, &row.RetainedAmount, &row.Status); err != nil {
			return nil, err
		}
		declaration = append(declaration, row)
	}
	return declaration, rows.Err()
}
