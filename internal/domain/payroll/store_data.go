package payroll

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func (s *Store) CreatePeriod(ctx context.Context, year, month int) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO payroll_periods (year, month, status)
    VALUES ($1,$2,$3)
    RETURNING id
  `, year, month, PeriodStatusDraft).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return "", ErrPeriodExists
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetPeriod(ctx context.Context, periodID string) (Period, error) {
	var period Period
	err := s.DB.QueryRow(ctx, `
    SELECT id, year, month, status, created_at
    FROM payroll_periods
    WHERE id = $1
  `, periodID).Scan(&period.ID, &period.Year, &period.Month, &period.Status, &period.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrPeriodNotFound
	}
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

func (s *Store) CountPeriods(ctx context.Context) (int, error) {
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM payroll_periods").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ListPeriods(ctx context.Context, limit, offset int) ([]Period, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, year, month, status, created_at
    FROM payroll_periods
    ORDER BY year DESC, month DESC
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []Period
	for rows.Next() {
		var period Period
		if err := rows.Scan(&period.ID, &period.Year, &period.Month, &period.Status, &period.CreatedAt); err != nil {
			return nil, err
		}
		periods = append(periods, period)
	}
	return periods, rows.Err()
}

func (s *Store) UpdatePeriodStatus(ctx context.Context, periodID, status string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE payroll_periods SET status = $2 WHERE id = $1
  `, periodID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

func (s *Store) CreateInput(ctx context.Context, input Input) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO payroll_inputs (period_id, employee_id, kind, description, amount)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, input.PeriodID, input.EmployeeID, input.Kind, input.Description, input.Amount).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) ListInputs(ctx context.Context, periodID string) ([]Input, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, period_id, employee_id, kind, description, amount, created_at
    FROM payroll_inputs
    WHERE period_id = $1
    ORDER BY created_at
  `, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var inputs []Input
	for rows.Next() {
		var input Input
		if err := rows.Scan(&input.ID, &input.PeriodID, &input.EmployeeID, &input.Kind,
			&input.Description, &input.Amount, &input.CreatedAt); err != nil {
			return nil, err
		}
		inputs = append(inputs, input)
	}
	return inputs, rows.Err()
}

func (s *Store) InputLines(ctx context.Context, periodID, employeeID string) ([]InputLine, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT kind, amount
    FROM payroll_inputs
    WHERE period_id = $1 AND employee_id = $2
  `, periodID, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []InputLine
	for rows.Next() {
		var line InputLine
		if err := rows.Scan(&line.Kind, &line.Amount); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (s *Store) UpsertResult(ctx context.Context, result Result) (string, error) {
	warningsJSON, err := json.Marshal(result.Warnings)
	if err != nil {
		return "", err
	}

	var id string
	err = s.DB.QueryRow(ctx, `
    INSERT INTO payroll_results (period_id, employee_id, gross, income_tax, employee_ss, employer_ss, total_deductions, net, currency, warnings_json)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    ON CONFLICT (period_id, employee_id) DO UPDATE
    SET gross = EXCLUDED.gross,
        income_tax = EXCLUDED.income_tax,
        employee_ss = EXCLUDED.employee_ss,
        employer_ss = EXCLUDED.employer_ss,
        total_deductions = EXCLUDED.total_deductions,
        net = EXCLUDED.net,
        currency = EXCLUDED.currency,
        warnings_json = EXCLUDED.warnings_json
    RETURNING id
  `, result.PeriodID, result.EmployeeID, result.Gross, result.IncomeTax,
		result.EmployeeSocialSecurity, result.EmployerSocialSecurity,
		result.TotalDeductions, result.Net, result.Currency, warningsJSON).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) ListResults(ctx context.Context, periodID string) ([]Result, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, period_id, employee_id, gross, income_tax, employee_ss, employer_ss, total_deductions, net, currency, warnings_json
    FROM payroll_results
    WHERE period_id = $1
    ORDER BY employee_id
  `, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var result Result
		var warningsJSON []byte
		if err := rows.Scan(&result.ID, &result.PeriodID, &result.EmployeeID, &result.Gross,
			&result.IncomeTax, &result.EmployeeSocialSecurity, &result.EmployerSocialSecurity,
			&result.TotalDeductions, &result.Net, &result.Currency, &warningsJSON); err != nil {
			return nil, err
		}
		if len(warningsJSON) > 0 {
			if err := json.Unmarshal(warningsJSON, &result.Warnings); err != nil {
				return nil, err
			}
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func (s *Store) CountResults(ctx context.Context, periodID string) (int, error) {
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM payroll_results WHERE period_id = $1", periodID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) DeleteResultsForPeriod(ctx context.Context, periodID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    DELETE FROM payroll_results WHERE period_id = $1 RETURNING id
  `, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) PeriodSummary(ctx context.Context, periodID string) (PeriodSummary, error) {
	results, err := s.ListResults(ctx, periodID)
	if err != nil {
		return PeriodSummary{}, err
	}

	summary := PeriodSummary{Warnings: map[string]int{}}
	for _, result := range results {
		summary.TotalGross = summary.TotalGross.Add(result.Gross)
		summary.TotalDeductions = summary.TotalDeductions.Add(result.TotalDeductions)
		summary.TotalNet = summary.TotalNet.Add(result.Net)
		summary.EmployeeCount++
		for _, warning := range result.Warnings {
			summary.Warnings[warning]++
		}
	}
	return summary, nil
}
