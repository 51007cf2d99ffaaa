package fiscal

import "errors"

var (
	ErrBracketNotFound    = errors.New("tax bracket not found")
	ErrConfigNotFound     = errors.New("tax config not found")
	ErrRetentionNotFound  = errors.New("tax retention not found")
	ErrRetentionImmutable = errors.New("tax retention already advanced past pending")
	ErrInvalidTransition  = errors.New("invalid retention status transition")
	ErrUnknownTaxType     = errors.New("unknown tax type")
	ErrNoActiveConfig     = errors.New("no active tax config for type")
)
