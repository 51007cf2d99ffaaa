package payroll

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreatePayslipsForPeriod(ctx context.Context, periodID string) ([]Payslip, error) {
	rows, err := s.DB.Query(ctx, `
    INSERT INTO payslips (period_id, employee_id)
    SELECT period_id, employee_id
    FROM payroll_results
    WHERE period_id = $1
    ON CONFLICT (period_id, employee_id) DO NOTHING
    RETURNING id, period_id, employee_id, file_url, created_at
  `, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payslips []Payslip
	for rows.Next() {
		var payslip Payslip
		if err := rows.Scan(&payslip.ID, &payslip.PeriodID, &payslip.EmployeeID, &payslip.FileURL, &payslip.CreatedAt); err != nil {
			return nil, err
		}
		payslips = append(payslips, payslip)
	}
	return payslips, rows.Err()
}

func (s *Store) CountPayslips(ctx context.Context, employeeID string) (int, error) {
	var count int
	if err := s.DB.QueryRow(ctx,
		"SELECT COUNT(1) FROM payslips WHERE ($1 = '' OR employee_id::text = $1)", employeeID,
	).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ListPayslips(ctx context.Context, employeeID string, limit, offset int) ([]Payslip, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, period_id, employee_id, file_url, created_at
    FROM payslips
    WHERE ($1 = '' OR employee_id::text = $1)
    ORDER BY created_at DESC
    LIMIT $2 OFFSET $3
  `, employeeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payslips []Payslip
	for rows.Next() {
		var payslip Payslip
		if err := rows.Scan(&payslip.ID, &payslip.PeriodID, &payslip.EmployeeID, &payslip.FileURL, &payslip.CreatedAt); err != nil {
			return nil, err
		}
		payslips = append(payslips, payslip)
	}
	return payslips, rows.Err()
}

func (s *Store) UpdatePayslipFileURL(ctx context.Context, payslipID, fileURL string) error {
	tag, err := s.DB.Exec(ctx, "UPDATE payslips SET file_url = $2 WHERE id = $1", payslipID, fileURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPayslipNotFound
	}
	return nil
}

func (s *Store) PayslipFileURL(ctx context.Context, payslipID string) (string, error) {
	var fileURL string
	err := s.DB.QueryRow(ctx, "SELECT COALESCE(file_url, '') FROM payslips WHERE id = $1", payslipID).Scan(&fileURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrPayslipNotFound
	}
	if err != nil {
		return "", err
	}
	return fileURL, nil
}

func (s *Store) PayslipPDFData(ctx context.Context, payslipID string) (PayslipPDFData, error) {
	var data PayslipPDFData
	var year, month int
	err := s.DB.QueryRow(ctx, `
    SELECT e.first_name, e.last_name, e.email,
           r.gross, r.income_tax, r.employee_ss, r.total_deductions, r.net, r.currency,
           p.year, p.month
    FROM payslips ps
    JOIN payroll_results r ON r.period_id = ps.period_id AND r.employee_id = ps.employee_id
    JOIN employees e ON e.id = ps.employee_id
    JOIN payroll_periods p ON p.id = ps.period_id
    WHERE ps.id = $1
  `, payslipID).Scan(&data.FirstName, &data.LastName, &data.Email,
		&data.Gross, &data.IncomeTax, &data.EmployeeSocialSecurity,
		&data.TotalDeductions, &data.Net, &data.Currency, &year, &month)
	if errors.Is(err, pgx.ErrNoRows) {
		return PayslipPDFData{}, ErrPayslipNotFound
	}
	if err != nil {
		return PayslipPDFData{}, err
	}
	data.Period = Period{Year: year, Month: month}.FiscalPeriod()
	return data, nil
}
