package domain

import "time"

// DelayedClaimStatus is the state of a time-gated reward claim. The only
// transition is pending -> completed; there is no expiry or cancellation.
type DelayedClaimStatus string

const (
	ClaimPending   DelayedClaimStatus = "pending"
	ClaimCompleted DelayedClaimStatus = "completed"
)

// DelayedClaim is a reward that matures after a fixed delay before it may be
// credited. One row per (account, source); maturation is checked lazily when
// the claim is read, never by a timer.
type DelayedClaim struct {
	AccountID   int64              `json:"account_id"`
	SourceID    string             `json:"source_id"`
	Status      DelayedClaimStatus `json:"status"`
	Points      int64              `json:"points"`
	RequestedAt time.Time          `json:"requested_at"`
	AvailableAt time.Time          `json:"available_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// Due reports whether a pending claim has matured at the given instant.
func (c *DelayedClaim) Due(now time.Time) bool {
	return c.Status == ClaimPending && !now.Before(c.AvailableAt)
}

// DelayedClaimRequest is the DTO for requesting a new delayed claim.
type DelayedClaimRequest struct {
	AccountID int64  `json:"account_id"`
	SourceID  string `json:"source_id"`
	Points    int64  `json:"points"`
}

// DelayedClaimStatusResponse is returned by the request and poll endpoints.
type DelayedClaimStatusResponse struct {
	Status       DelayedClaimStatus `json:"status"`
	AvailableAt  time.Time          `json:"available_at"`
	PointsEarned *int64             `json:"points_earned,omitempty"`
}
