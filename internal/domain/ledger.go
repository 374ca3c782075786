package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntry is one immutable row of the append-only balance-change history.
// Debits carry negative points. The table is the audit source for leaderboard
// reconstruction.
type LedgerEntry struct {
	ID        uuid.UUID      `json:"id"`
	AccountID int64          `json:"account_id"`
	Kind      CompletionKind `json:"kind"`
	Points    int64          `json:"points"`
	CreatedAt time.Time      `json:"created_at"`
}

// Ledger entry kinds for balance changes that are not task completions.
const (
	KindWithdrawalHold   CompletionKind = "withdrawal_hold"
	KindWithdrawalRefund CompletionKind = "withdrawal_refund"
)
