package domain

import (
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus is the state of a withdrawal request. Pending requests hold
// the debited amount until an admin decision lands.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalRejected  WithdrawalStatus = "rejected"
)

// WithdrawalRequest escrows points for payout. The balance is debited at
// creation time (pessimistic hold); rejection refunds it, approval changes
// nothing further.
type WithdrawalRequest struct {
	ID          uuid.UUID        `json:"id"`
	AccountID   int64            `json:"account_id"`
	Amount      int64            `json:"amount"`
	Status      WithdrawalStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty"`
}

// CreateWithdrawalRequest is the DTO for requesting a withdrawal.
type CreateWithdrawalRequest struct {
	AccountID int64 `json:"account_id"`
	Amount    int64 `json:"amount"`
}

// WithdrawalDecisionRequest is the DTO for the admin approve/reject endpoint.
type WithdrawalDecisionRequest struct {
	Approve bool `json:"approve"`
}
