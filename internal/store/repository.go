/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the rewards-service. By defining an interface,
 * we decouple the ledger engine's business logic from the specific database
 * implementation (PostgreSQL), making the code more modular and easier to test.
 *
 * Every balance-affecting method is a single atomic unit of work: it either
 * commits all of its sub-steps or none of them. The uniqueness constraint on
 * completions and the conditional quota upsert are the serialization points
 * for concurrent credit attempts; callers never do read-then-write across
 * two repository calls.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For withdrawal request identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskpoints/rewards-service/internal/domain"
)

// CreditParams describes one attempt to reward a completion. Day and Limit are
// only consulted when RequiresQuota is set; Limit is the effective limit for
// the pool computed by the engine at call time.
type CreditParams struct {
	AccountID     int64
	Kind          domain.CompletionKind
	Reference     string
	Points        int64
	RequiresQuota bool
	Pool          domain.QuotaPool
	Day           time.Time
	Limit         int
}

// CreditResult reports the committed outcome of an atomic credit.
type CreditResult struct {
	NewBalance int64
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Account methods. Accounts are created on first contact.
	FindOrCreateAccount(ctx context.Context, userID int64) (*domain.Account, error)
	FindAccountByID(ctx context.Context, userID int64) (*domain.Account, error)
	UpdatePayoutDetails(ctx context.Context, userID int64, details string) error
	SetAccountBanned(ctx context.Context, userID int64, banned bool) error

	// Completion registry methods.
	CompletionExists(ctx context.Context, accountID int64, kind domain.CompletionKind, reference string) (bool, error)

	// CreditAtomic registers the completion, consumes quota when required,
	// credits balance and lifetime earned, and appends a ledger entry, all in
	// one transaction. Returns ErrDuplicateCompletion when the tuple was
	// already rewarded (no side effects) and ErrQuotaExceeded when the daily
	// pool is exhausted (no side effects).
	CreditAtomic(ctx context.Context, params CreditParams) (*CreditResult, error)

	// DebitAccount decrements the balance, clamped at zero. Lifetime earned is
	// never touched. The applied (possibly clamped) amount is appended to the
	// ledger under the given kind.
	DebitAccount(ctx context.Context, accountID int64, points int64, kind domain.CompletionKind) (*CreditResult, error)

	// Referral methods. LinkReferrerAtomic sets the referrer link only if it
	// is still unset and increments the referrer's counter; it reports false
	// without error when the link was already set or the referrer row does
	// not exist.
	LinkReferrerAtomic(ctx context.Context, accountID, referrerID int64) (bool, error)

	// Delayed claim methods. CreateDelayedClaim is idempotent: when a claim
	// already exists for (account, source) the existing row is returned
	// unchanged.
	CreateDelayedClaim(ctx context.Context, claim *domain.DelayedClaim) (*domain.DelayedClaim, error)
	FindDelayedClaim(ctx context.Context, accountID int64, sourceID string) (*domain.DelayedClaim, error)
	FindDueDelayedClaims(ctx context.Context, accountID int64, now time.Time) ([]domain.DelayedClaim, error)

	// FinalizeDelayedClaimAtomic transitions one pending, matured claim to
	// completed and performs the credit sub-steps in the same transaction.
	// Returns ErrClaimNotFound, ErrClaimAlreadyCompleted, ErrClaimNotDue, or
	// ErrDuplicateCompletion; in every failure case no mutation is committed.
	FinalizeDelayedClaimAtomic(ctx context.Context, accountID int64, sourceID string, now time.Time) (*CreditResult, error)

	// Withdrawal escrow methods. CreateWithdrawalAtomic validates payout
	// details, balance sufficiency and the one-pending-per-day rule under a
	// row lock, then debits the balance and inserts the pending request.
	CreateWithdrawalAtomic(ctx context.Context, req *domain.WithdrawalRequest) error
	DecideWithdrawalAtomic(ctx context.Context, requestID uuid.UUID, approve bool, now time.Time) (*domain.WithdrawalRequest, error)
	FindWithdrawalByID(ctx context.Context, requestID uuid.UUID) (*domain.WithdrawalRequest, error)

	// Audit and ranking methods.
	ListLedgerEntries(ctx context.Context, accountID int64, limit, offset int) ([]domain.LedgerEntry, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}
