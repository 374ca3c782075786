/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL needed to operate the rewards ledger: account rows,
 * the completion registry, daily quota counters, delayed claims, withdrawal
 * escrow, and the append-only ledger history.
 *
 * Concurrency notes:
 * - The UNIQUE(account_id, kind, reference) constraint on completions is the
 *   serialization point for concurrent credit attempts; the losing writer
 *   observes ErrDuplicateCompletion, never a partial write.
 * - Quota consumption is a single conditional upsert on
 *   (account_id, day, pool); the consumed < limit predicate makes the
 *   check-and-increment one serialized statement.
 * - Balance mutations lock the account row with FOR UPDATE so operations on
 *   one account are linearizable while different accounts never share a lock.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskpoints/rewards-service/internal/domain"
)

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrDuplicateCompletion   = errors.New("completion already registered")
	ErrQuotaExceeded         = errors.New("daily quota exceeded")
	ErrInsufficientFunds     = errors.New("insufficient points balance")
	ErrMissingPayoutDetails  = errors.New("payout details not set")
	ErrPendingWithdrawal     = errors.New("a pending withdrawal already exists for today")
	ErrWithdrawalNotFound    = errors.New("withdrawal request not found")
	ErrWithdrawalNotPending  = errors.New("withdrawal request already processed")
	ErrClaimNotFound         = errors.New("delayed claim not found")
	ErrClaimAlreadyCompleted = errors.New("delayed claim already completed")
	ErrClaimNotDue           = errors.New("delayed claim has not matured")
)

const uniqueViolationCode = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// dayStart normalizes a timestamp to the UTC calendar day used to key quota
// counters and the one-pending-withdrawal-per-day rule.
func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// FindOrCreateAccount returns the account row for userID, creating it with
// zeroed counters on first contact.
func (r *PostgresRepository) FindOrCreateAccount(ctx context.Context, userID int64) (*domain.Account, error) {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure account row: %w", err)
	}
	return r.FindAccountByID(ctx, userID)
}

// FindAccountByID retrieves an account from the database by its external user id.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, userID int64) (*domain.Account, error) {
	var account domain.Account
	query := `
		SELECT user_id, balance, lifetime_earned, referral_count, banned, referrer_id, payout_details, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&account.UserID,
		&account.Balance,
		&account.LifetimeEarned,
		&account.ReferralCount,
		&account.Banned,
		&account.ReferrerID,
		&account.PayoutDetails,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// UpdatePayoutDetails stores the payout destination used by withdrawal requests.
func (r *PostgresRepository) UpdatePayoutDetails(ctx context.Context, userID int64, details string) error {
	result, err := r.db.Exec(ctx, `UPDATE accounts SET payout_details = $1, updated_at = NOW() WHERE user_id = $2`, details, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetAccountBanned flips the banned flag for an account.
func (r *PostgresRepository) SetAccountBanned(ctx context.Context, userID int64, banned bool) error {
	result, err := r.db.Exec(ctx, `UPDATE accounts SET banned = $1, updated_at = NOW() WHERE user_id = $2`, banned, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// CompletionExists reports whether a (account, kind, reference) tuple has
// already been rewarded.
func (r *PostgresRepository) CompletionExists(ctx context.Context, accountID int64, kind domain.CompletionKind, reference string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM completions WHERE account_id = $1 AND kind = $2 AND reference = $3)`
	if err := r.db.QueryRow(ctx, query, accountID, kind, reference).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CreditAtomic performs the five credit sub-steps in one transaction:
// completion insert, quota consumption, balance increment, lifetime-earned
// increment, and the ledger history append. All commit together or none do.
func (r *PostgresRepository) CreditAtomic(ctx context.Context, params CreditParams) (*CreditResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Register the completion. The unique constraint is the serialization
	// point: a losing concurrent writer sees zero rows affected here.
	insertCompletion := `
		INSERT INTO completions (account_id, kind, reference, points, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (account_id, kind, reference) DO NOTHING
	`
	result, err := tx.Exec(ctx, insertCompletion, params.AccountID, params.Kind, params.Reference, params.Points)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCompletion
		}
		return nil, fmt.Errorf("failed to register completion: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrDuplicateCompletion
	}

	// 2. Consume quota with a single conditional upsert; the consumed < limit
	// predicate closes the check-then-act race.
	if params.RequiresQuota {
		if params.Limit <= 0 {
			return nil, ErrQuotaExceeded
		}
		consumeQuota := `
			INSERT INTO daily_quota_counters (account_id, day, pool, consumed)
			VALUES ($1, $2, $3, 1)
			ON CONFLICT (account_id, day, pool)
			DO UPDATE SET consumed = daily_quota_counters.consumed + 1
			WHERE daily_quota_counters.consumed < $4
		`
		result, err = tx.Exec(ctx, consumeQuota, params.AccountID, dayStart(params.Day), params.Pool, params.Limit)
		if err != nil {
			return nil, fmt.Errorf("failed to consume quota: %w", err)
		}
		if result.RowsAffected() == 0 {
			return nil, ErrQuotaExceeded
		}
	}

	// 3. Credit the account.
	var newBalance int64
	creditAccount := `
		UPDATE accounts
		SET balance = balance + $1, lifetime_earned = lifetime_earned + $1, updated_at = NOW()
		WHERE user_id = $2
		RETURNING balance
	`
	err = tx.QueryRow(ctx, creditAccount, params.Points, params.AccountID).Scan(&newBalance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}

	// 4. Append the immutable ledger entry.
	if err := appendLedgerEntry(ctx, tx, params.AccountID, params.Kind, params.Points); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit credit: %w", err)
	}
	return &CreditResult{NewBalance: newBalance}, nil
}

// DebitAccount decrements the balance, clamped at zero. Lifetime earned is
// never reduced by debits.
func (r *PostgresRepository) DebitAccount(ctx context.Context, accountID int64, points int64, kind domain.CompletionKind) (*CreditResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE user_id = $1 FOR UPDATE`, accountID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	applied := points
	if applied > balance {
		applied = balance
	}

	if applied > 0 {
		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance - $1, updated_at = NOW() WHERE user_id = $2`, applied, accountID); err != nil {
			return nil, fmt.Errorf("failed to debit account: %w", err)
		}
		if err := appendLedgerEntry(ctx, tx, accountID, kind, -applied); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit debit: %w", err)
	}
	return &CreditResult{NewBalance: balance - applied}, nil
}

// LinkReferrerAtomic sets the referrer link first-write-wins and increments
// the referrer's counter in the same transaction. Returns false without error
// when the link was already set, when the accounts are the same, or when the
// referrer row does not exist.
func (r *PostgresRepository) LinkReferrerAtomic(ctx context.Context, accountID, referrerID int64) (bool, error) {
	if accountID == referrerID {
		return false, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Only if still unset: a concurrent second referrer loses here.
	setLink := `
		UPDATE accounts
		SET referrer_id = $1, updated_at = NOW()
		WHERE user_id = $2 AND referrer_id IS NULL
	`
	result, err := tx.Exec(ctx, setLink, referrerID, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to set referrer link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	result, err = tx.Exec(ctx, `UPDATE accounts SET referral_count = referral_count + 1, updated_at = NOW() WHERE user_id = $1`, referrerID)
	if err != nil {
		return false, fmt.Errorf("failed to increment referral count: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Referrer does not resolve to an account; abort the link as well.
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit referral link: %w", err)
	}
	return true, nil
}

// CreateDelayedClaim inserts a pending claim if none exists for
// (account, source) and returns the stored row either way.
func (r *PostgresRepository) CreateDelayedClaim(ctx context.Context, claim *domain.DelayedClaim) (*domain.DelayedClaim, error) {
	insert := `
		INSERT INTO delayed_claims (account_id, source_id, status, points, requested_at, available_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, source_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, insert,
		claim.AccountID,
		claim.SourceID,
		domain.ClaimPending,
		claim.Points,
		claim.RequestedAt,
		claim.AvailableAt,
	)
	if err != nil && !isUniqueViolation(err) {
		return nil, fmt.Errorf("failed to create delayed claim: %w", err)
	}
	return r.FindDelayedClaim(ctx, claim.AccountID, claim.SourceID)
}

// FindDelayedClaim retrieves a single claim by its (account, source) key.
func (r *PostgresRepository) FindDelayedClaim(ctx context.Context, accountID int64, sourceID string) (*domain.DelayedClaim, error) {
	var claim domain.DelayedClaim
	query := `
		SELECT account_id, source_id, status, points, requested_at, available_at, completed_at
		FROM delayed_claims
		WHERE account_id = $1 AND source_id = $2
	`
	err := r.db.QueryRow(ctx, query, accountID, sourceID).Scan(
		&claim.AccountID,
		&claim.SourceID,
		&claim.Status,
		&claim.Points,
		&claim.RequestedAt,
		&claim.AvailableAt,
		&claim.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return &claim, nil
}

// FindDueDelayedClaims lists the pending claims for an account that have
// matured by now. Callers finalize each one individually.
func (r *PostgresRepository) FindDueDelayedClaims(ctx context.Context, accountID int64, now time.Time) ([]domain.DelayedClaim, error) {
	query := `
		SELECT account_id, source_id, status, points, requested_at, available_at, completed_at
		FROM delayed_claims
		WHERE account_id = $1 AND status = $2 AND available_at <= $3
		ORDER BY available_at
	`
	rows, err := r.db.Query(ctx, query, accountID, domain.ClaimPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []domain.DelayedClaim
	for rows.Next() {
		var claim domain.DelayedClaim
		if err := rows.Scan(
			&claim.AccountID,
			&claim.SourceID,
			&claim.Status,
			&claim.Points,
			&claim.RequestedAt,
			&claim.AvailableAt,
			&claim.CompletedAt,
		); err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

// FinalizeDelayedClaimAtomic transitions a matured pending claim to completed
// and credits it in the same transaction. The FOR UPDATE lock on the claim row
// serializes concurrent finalizers: the loser observes the completed status.
func (r *PostgresRepository) FinalizeDelayedClaimAtomic(ctx context.Context, accountID int64, sourceID string, now time.Time) (*CreditResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status domain.DelayedClaimStatus
	var points int64
	var availableAt time.Time
	lockClaim := `
		SELECT status, points, available_at
		FROM delayed_claims
		WHERE account_id = $1 AND source_id = $2
		FOR UPDATE
	`
	err = tx.QueryRow(ctx, lockClaim, accountID, sourceID).Scan(&status, &points, &availableAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to lock delayed claim: %w", err)
	}
	if status == domain.ClaimCompleted {
		return nil, ErrClaimAlreadyCompleted
	}
	if now.Before(availableAt) {
		return nil, ErrClaimNotDue
	}

	transition := `
		UPDATE delayed_claims
		SET status = $1, completed_at = $2
		WHERE account_id = $3 AND source_id = $4 AND status = $5
	`
	result, err := tx.Exec(ctx, transition, domain.ClaimCompleted, now, accountID, sourceID, domain.ClaimPending)
	if err != nil {
		return nil, fmt.Errorf("failed to complete delayed claim: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrClaimAlreadyCompleted
	}

	// The completion record guards exactly-once crediting even if the same
	// source was already rewarded through another path; in that case the
	// status transition rolls back with the rest of the unit.
	insertCompletion := `
		INSERT INTO completions (account_id, kind, reference, points, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (account_id, kind, reference) DO NOTHING
	`
	result, err = tx.Exec(ctx, insertCompletion, accountID, domain.KindSocial, sourceID, points)
	if err != nil {
		return nil, fmt.Errorf("failed to register claim completion: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrDuplicateCompletion
	}

	var newBalance int64
	creditAccount := `
		UPDATE accounts
		SET balance = balance + $1, lifetime_earned = lifetime_earned + $1, updated_at = NOW()
		WHERE user_id = $2
		RETURNING balance
	`
	err = tx.QueryRow(ctx, creditAccount, points, accountID).Scan(&newBalance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to credit matured claim: %w", err)
	}

	if err := appendLedgerEntry(ctx, tx, accountID, domain.KindSocial, points); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim finalization: %w", err)
	}
	return &CreditResult{NewBalance: newBalance}, nil
}

// CreateWithdrawalAtomic validates and escrows a withdrawal in one
// transaction: the account row lock makes the balance check and the debit a
// single unit, and the pending-today check runs under the same lock.
func (r *PostgresRepository) CreateWithdrawalAtomic(ctx context.Context, req *domain.WithdrawalRequest) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	var payoutDetails *string
	err = tx.QueryRow(ctx, `SELECT balance, payout_details FROM accounts WHERE user_id = $1 FOR UPDATE`, req.AccountID).Scan(&balance, &payoutDetails)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrAccountNotFound
		}
		return err
	}
	if payoutDetails == nil || *payoutDetails == "" {
		return ErrMissingPayoutDetails
	}
	if balance < req.Amount {
		return ErrInsufficientFunds
	}

	var pendingToday bool
	pendingQuery := `
		SELECT EXISTS (
			SELECT 1 FROM withdrawal_requests
			WHERE account_id = $1 AND status = $2 AND created_at >= $3
		)
	`
	if err := tx.QueryRow(ctx, pendingQuery, req.AccountID, domain.WithdrawalPending, dayStart(req.CreatedAt)).Scan(&pendingToday); err != nil {
		return fmt.Errorf("failed to check pending withdrawals: %w", err)
	}
	if pendingToday {
		return ErrPendingWithdrawal
	}

	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance - $1, updated_at = NOW() WHERE user_id = $2`, req.Amount, req.AccountID); err != nil {
		return fmt.Errorf("failed to hold withdrawal amount: %w", err)
	}

	insert := `
		INSERT INTO withdrawal_requests (id, account_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, insert, req.ID, req.AccountID, req.Amount, domain.WithdrawalPending, req.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert withdrawal request: %w", err)
	}

	if err := appendLedgerEntry(ctx, tx, req.AccountID, domain.KindWithdrawalHold, -req.Amount); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit withdrawal request: %w", err)
	}
	return nil
}

// DecideWithdrawalAtomic resolves a pending request. Approval only stamps the
// terminal status (the hold already debited the balance); rejection refunds
// the exact held amount in the same transaction.
func (r *PostgresRepository) DecideWithdrawalAtomic(ctx context.Context, requestID uuid.UUID, approve bool, now time.Time) (*domain.WithdrawalRequest, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var req domain.WithdrawalRequest
	lockRequest := `
		SELECT id, account_id, amount, status, created_at, processed_at
		FROM withdrawal_requests
		WHERE id = $1
		FOR UPDATE
	`
	err = tx.QueryRow(ctx, lockRequest, requestID).Scan(
		&req.ID,
		&req.AccountID,
		&req.Amount,
		&req.Status,
		&req.CreatedAt,
		&req.ProcessedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to lock withdrawal request: %w", err)
	}
	if req.Status != domain.WithdrawalPending {
		return nil, ErrWithdrawalNotPending
	}

	status := domain.WithdrawalCompleted
	if !approve {
		status = domain.WithdrawalRejected
	}
	if _, err := tx.Exec(ctx, `UPDATE withdrawal_requests SET status = $1, processed_at = $2 WHERE id = $3`, status, now, requestID); err != nil {
		return nil, fmt.Errorf("failed to update withdrawal status: %w", err)
	}

	if !approve {
		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE user_id = $2`, req.Amount, req.AccountID); err != nil {
			return nil, fmt.Errorf("failed to refund withdrawal hold: %w", err)
		}
		if err := appendLedgerEntry(ctx, tx, req.AccountID, domain.KindWithdrawalRefund, req.Amount); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit withdrawal decision: %w", err)
	}

	req.Status = status
	req.ProcessedAt = &now
	return &req, nil
}

// FindWithdrawalByID retrieves a withdrawal request by its identifier.
func (r *PostgresRepository) FindWithdrawalByID(ctx context.Context, requestID uuid.UUID) (*domain.WithdrawalRequest, error) {
	var req domain.WithdrawalRequest
	query := `
		SELECT id, account_id, amount, status, created_at, processed_at
		FROM withdrawal_requests
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, requestID).Scan(
		&req.ID,
		&req.AccountID,
		&req.Amount,
		&req.Status,
		&req.CreatedAt,
		&req.ProcessedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &req, nil
}

// ListLedgerEntries returns the newest ledger history rows for an account.
func (r *PostgresRepository) ListLedgerEntries(ctx context.Context, accountID int64, limit, offset int) ([]domain.LedgerEntry, error) {
	query := `
		SELECT id, account_id, kind, points, created_at
		FROM ledger_history
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var entry domain.LedgerEntry
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.Kind, &entry.Points, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Leaderboard ranks accounts by lifetime earned.
func (r *PostgresRepository) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	query := `
		SELECT user_id, lifetime_earned
		FROM accounts
		WHERE banned = FALSE
		ORDER BY lifetime_earned DESC, user_id
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	rank := 0
	for rows.Next() {
		var entry domain.LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.LifetimeEarned); err != nil {
			return nil, err
		}
		rank++
		entry.Rank = rank
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// appendLedgerEntry writes one immutable ledger history row inside the
// caller's transaction.
func appendLedgerEntry(ctx context.Context, tx pgx.Tx, accountID int64, kind domain.CompletionKind, points int64) error {
	query := `
		INSERT INTO ledger_history (id, account_id, kind, points, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	if _, err := tx.Exec(ctx, query, uuid.New(), accountID, kind, points); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}
