package payroll

const (
	PeriodStatusDraft     = "draft"
	PeriodStatusComputed  = "computed"
	PeriodStatusFinalized = "finalized"

	WarningNegativeNet      = "negative_net"
	WarningNoBracketMatched = "no_bracket_matched"

	InputKindEarning   = "earning"
	InputKindDeduction = "deduction"
)
