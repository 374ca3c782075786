package app

import "errors"

// Business-rule errors raised by the service layer. Storage-level failures
// (duplicate completion, quota exhaustion, insufficient balance, missing
// rows) surface as the sentinels defined in internal/store.
var (
	ErrAccountBanned = errors.New("account is banned")
	ErrInvalidKind   = errors.New("unknown completion kind")
	ErrInvalidPoints = errors.New("points must be positive")
	ErrBelowMinimum  = errors.New("amount is below the withdrawal minimum")
	ErrAboveMaximum  = errors.New("amount is above the withdrawal maximum")
	ErrRateLimited   = errors.New("too many requests")
)
