package fiscal

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TaxBracket is one row of a progressive income-tax table. MaxIncome is nil
// for the unbounded top bracket. Brackets are versioned by year and are never
// deleted, only deactivated.
type TaxBracket struct {
	ID             string           `json:"id"`
	Year           int              `json:"year"`
	MinIncome      decimal.Decimal  `json:"minIncome"`
	MaxIncome      *decimal.Decimal `json:"maxIncome"`
	RatePercent    decimal.Decimal  `json:"ratePercent"`
	FixedDeduction decimal.Decimal  `json:"fixedDeduction"`
	IsActive       bool             `json:"isActive"`
	CreatedAt      time.Time        `json:"createdAt"`
}

type TaxConfig struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	RatePercent   decimal.Decimal `json:"ratePercent"`
	IsActive      bool            `json:"isActive"`
	ApplicableTo  string          `json:"applicableTo"`
	EffectiveFrom time.Time       `json:"effectiveFrom"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// TaxRetention is an audit record of a tax amount withheld for a specific
// document and fiscal period. Only the status ever changes after creation.
type TaxRetention struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	DocumentType   string          `json:"documentType"`
	DocumentRef    string          `json:"documentRef"`
	BaseAmount     decimal.Decimal `json:"baseAmount"`
	RatePercent    decimal.Decimal `json:"ratePercent"`
	RetainedAmount decimal.Decimal `json:"retainedAmount"`
	Date           time.Time       `json:"date"`
	Period         string          `json:"period"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type RetentionFilter struct {
	Period string
	Type   string
	Status string
}

// ParsePeriod validates a fiscal period identifier in YYYY-MM form.
func ParsePeriod(period string) (year, month int, err error) {
	parsed, err := time.Parse("2006-01", period)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid fiscal period %q: %w", period, err)
	}
	return parsed.Year(), int(parsed.Month()), nil
}
