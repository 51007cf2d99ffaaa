package reports

import (
	"context"
	"encoding/csv"
	"io"
)

// RetentionReporter is the slice of the fiscal service the declaration
// export needs: advancing applied retentions to reported.
type RetentionReporter interface {
	ReportPeriodRetentions(ctx context.Context, period string) (int64, error)
}

type Service struct {
	store  *Store
	fiscal RetentionReporter
}

func NewService(store *Store, fiscal RetentionReporter) *Service {
	return &Service{store: store, fiscal: fiscal}
}

func (s *Service) RetentionSummary(ctx context.Context, period string) (RetentionSummary, error) {
	return s.store.RetentionSummary(ctx, period)
}

// WriteDeclarationCSV streams the period's retention declaration and marks
// the exported retentions as reported. Returns the number of data rows
// written.
func (s *Service) WriteDeclarationCSV(ctx context.Context, period string, w io.Writer) (int, error) {
	declaration, err := s.store.DeclarationRows(ctx, period)
	if err != nil {
		return 0, err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"period", "type", "document_type", "document_ref", "base_amount", "rate_percent", "retained_amount", "status"}); err != nil {
		return 0, err
	}
	for _, row := range declaration {
		record := []string{
			period,
			row.Type,
			row.DocumentType,
			row.DocumentRef,
			row.BaseAmount.StringFixed(2),
			row.RatePercent.StringFixed(2),
			row.RetainedAmount.StringFixed(2),
			row.Status,
		}
		if err := writer.Write(record); err != nil {
			return 0, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, err
	}

	if len(declaration) > 0 {
		if _, err := s.fiscal.ReportPeriodRetentions(ctx, period); err != nil {
			return len(declaration), err
		}
	}
	return len(declaration), nil
}
