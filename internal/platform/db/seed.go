package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"gestor/internal/domain/auth"
	"gestor/internal/domain/fiscal"
	"gestor/internal/platform/config"
)

// Seed provisions the initial admin user, the published IRPS bracket table
// and the default tax configs. Every step is idempotent.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensureAdminUser(ctx, pool, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		return err
	}
	if err := ensureBrackets(ctx, pool); err != nil {
		return err
	}
	return ensureTaxConfigs(ctx, pool, cfg)
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&id)
	if err == nil {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return pool.QueryRow(ctx, `
    INSERT INTO users (email, name, password_hash, role, status)
    VALUES ($1, 'Administrator', $2, $3, 'active')
    RETURNING id
  `, email, hash, auth.RoleAdmin).Scan(&id)
}

type seedBracket struct {
	min, max, rate, deduction string
}

// Published progressive income tax table for 2024. The last band is open
// ended.
var brackets2024 = []seedBracket{
	{"0", "22780", "10", "0"},
	{"22781", "42560", "15", "1139"},
	{"42561", "100800", "20", "3267"},
	{"100801", "243040", "25", "8307"},
	{"243041", "", "32", "25340"},
}

func ensureBrackets(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(1) FROM tax_brackets WHERE year = 2024").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, bracket := range brackets2024 {
		var max *decimal.Decimal
		if bracket.max != "" {
			parsed, err := decimal.NewFromString(bracket.max)
			if err != nil {
				return err
			}
			max = &parsed
		}
		if _, err := pool.Exec(ctx, `
      INSERT INTO tax_brackets (year, min_income, max_income, rate_percent, fixed_deduction, is_active)
      VALUES (2024, $1, $2, $3, $4, true)
    `, decimal.RequireFromString(bracket.min), max,
			decimal.RequireFromString(bracket.rate), decimal.RequireFromString(bracket.deduction)); err != nil {
			return err
		}
	}
	return nil
}

func ensureTaxConfigs(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	defaults := []struct {
		taxType      string
		rate         decimal.Decimal
		applicableTo string
	}{
		{fiscal.TaxTypeIVA, cfg.DefaultIVARate, fiscal.ApplicableToInvoices},
		{fiscal.TaxTypeINSSEmployee, cfg.DefaultEmployeeINSSRate, fiscal.ApplicableToSalaries},
		{fiscal.TaxTypeINSSEmployer, cfg.DefaultEmployerINSSRate, fiscal.ApplicableToSalaries},
	}

	for _, def := range defaults {
		var count int
		if err := pool.QueryRow(ctx,
			"SELECT COUNT(1) FROM tax_configs WHERE type = $1", def.taxType,
		).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if _, err := pool.Exec(ctx, `
      INSERT INTO tax_configs (type, rate_percent, is_active, applicable_to, effective_from)
      VALUES ($1, $2, true, $3, now())
    `, def.taxType, def.rate, def.applicableTo); err != nil {
			return err
		}
	}
	return nil
}
