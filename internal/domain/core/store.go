package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"gestor/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) CountEmployees(ctx context.Context) (int, error) {
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employees").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ListEmployees(ctx context.Context, limit, offset int) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, first_name, last_name, email, position, base_salary, currency, status, hired_at, created_at
    FROM employees
    ORDER BY last_name, first_name
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var employee Employee
		if err := rows.Scan(&employee.ID, &employee.FirstName, &employee.LastName, &employee.Email,
			&employee.Position, &employee.BaseSalary, &employee.Currency, &employee.Status,
			&employee.HiredAt, &employee.CreatedAt); err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	return employees, rows.Err()
}

func (s *Store) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	var employee Employee
	err := s.DB.QueryRow(ctx, `
    SELECT id, first_name, last_name, email, position, base_salary, currency, status, hired_at, created_at
    FROM employees
    WHERE id = $1
  `, employeeID).Scan(&employee.ID, &employee.FirstName, &employee.LastName, &employee.Email,
		&employee.Position, &employee.BaseSalary, &employee.Currency, &employee.Status,
		&employee.HiredAt, &employee.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	if err != nil {
		return Employee{}, err
	}
	return employee, nil
}

func (s *Store) CreateEmployee(ctx context.Context, employee Employee) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (first_name, last_name, email, position, base_salary, currency, status, hired_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING id
  `, employee.FirstName, employee.LastName, employee.Email, employee.Position,
		employee.BaseSalary, employee.Currency, EmployeeStatusActive, employee.HiredAt).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateEmployee(ctx context.Context, employee Employee) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE employees
    SET first_name = $2, last_name = $3, email = $4, position = $5, base_salary = $6, currency = $7
    WHERE id = $1
  `, employee.ID, employee.FirstName, employee.LastName, employee.Email,
		employee.Position, employee.BaseSalary, employee.Currency)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

func (s *Store) TerminateEmployee(ctx context.Context, employeeID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE employees SET status = $2 WHERE id = $1
  `, employeeID, EmployeeStatusTerminated)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

func (s *Store) ListActiveForPayroll(ctx context.Context) ([]PayrollEmployee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, base_salary, currency
    FROM employees
    WHERE status = $1
    ORDER BY id
  `, EmployeeStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []PayrollEmployee
	for rows.Next() {
		var employee PayrollEmployee
		if err := rows.Scan(&employee.ID, &employee.BaseSalary, &employee.Currency); err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	return employees, rows.Err()
}
