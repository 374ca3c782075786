package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskpoints/rewards-service/internal/domain"
	"github.com/taskpoints/rewards-service/internal/store"
)

// fakeRepository is an in-memory store.Repository with the same atomicity and
// uniqueness semantics as the PostgreSQL implementation. A single mutex spans
// every method so each call is one atomic unit, which is exactly the contract
// the interface promises.
type fakeRepository struct {
	mu sync.Mutex

	accounts    map[int64]*domain.Account
	completions map[string]domain.CompletionRecord
	quotas      map[string]int
	claims      map[string]*domain.DelayedClaim
	withdrawals map[uuid.UUID]*domain.WithdrawalRequest
	ledger      []domain.LedgerEntry
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		accounts:    make(map[int64]*domain.Account),
		completions: make(map[string]domain.CompletionRecord),
		quotas:      make(map[string]int),
		claims:      make(map[string]*domain.DelayedClaim),
		withdrawals: make(map[uuid.UUID]*domain.WithdrawalRequest),
	}
}

func completionKey(accountID int64, kind domain.CompletionKind, reference string) string {
	return fmt.Sprintf("%d|%s|%s", accountID, kind, reference)
}

func quotaKey(accountID int64, day time.Time, pool domain.QuotaPool) string {
	d := day.UTC()
	return fmt.Sprintf("%d|%s|%s", accountID, d.Format("2006-01-02"), pool)
}

func claimKey(accountID int64, sourceID string) string {
	return fmt.Sprintf("%d|%s", accountID, sourceID)
}

func (f *fakeRepository) FindOrCreateAccount(ctx context.Context, userID int64) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ensureAccountLocked(userID), nil
}

func (f *fakeRepository) ensureAccountLocked(userID int64) *domain.Account {
	if account, ok := f.accounts[userID]; ok {
		return account
	}
	account := &domain.Account{UserID: userID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.accounts[userID] = account
	return account
}

func (f *fakeRepository) FindAccountByID(ctx context.Context, userID int64) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[userID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (f *fakeRepository) UpdatePayoutDetails(ctx context.Context, userID int64, details string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[userID]
	if !ok {
		return store.ErrAccountNotFound
	}
	account.PayoutDetails = &details
	return nil
}

func (f *fakeRepository) SetAccountBanned(ctx context.Context, userID int64, banned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[userID]
	if !ok {
		return store.ErrAccountNotFound
	}
	account.Banned = banned
	return nil
}

func (f *fakeRepository) CompletionExists(ctx context.Context, accountID int64, kind domain.CompletionKind, reference string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.completions[completionKey(accountID, kind, reference)]
	return ok, nil
}

func (f *fakeRepository) CreditAtomic(ctx context.Context, params store.CreditParams) (*store.CreditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := completionKey(params.AccountID, params.Kind, params.Reference)
	if _, ok := f.completions[key]; ok {
		return nil, store.ErrDuplicateCompletion
	}

	if params.RequiresQuota {
		if params.Limit <= 0 {
			return nil, store.ErrQuotaExceeded
		}
		qk := quotaKey(params.AccountID, params.Day, params.Pool)
		if f.quotas[qk] >= params.Limit {
			return nil, store.ErrQuotaExceeded
		}
		f.quotas[qk]++
	}

	account, ok := f.accounts[params.AccountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}

	f.completions[key] = domain.CompletionRecord{
		AccountID: params.AccountID,
		Kind:      params.Kind,
		Reference: params.Reference,
		Points:    params.Points,
		CreatedAt: time.Now(),
	}
	account.Balance += params.Points
	account.LifetimeEarned += params.Points
	f.appendLedgerLocked(params.AccountID, params.Kind, params.Points)

	return &store.CreditResult{NewBalance: account.Balance}, nil
}

func (f *fakeRepository) DebitAccount(ctx context.Context, accountID int64, points int64, kind domain.CompletionKind) (*store.CreditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	applied := points
	if applied > account.Balance {
		applied = account.Balance
	}
	if applied > 0 {
		account.Balance -= applied
		f.appendLedgerLocked(accountID, kind, -applied)
	}
	return &store.CreditResult{NewBalance: account.Balance}, nil
}

func (f *fakeRepository) LinkReferrerAtomic(ctx context.Context, accountID, referrerID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if accountID == referrerID {
		return false, nil
	}
	account, ok := f.accounts[accountID]
	if !ok || account.ReferrerID != nil {
		return false, nil
	}
	referrer, ok := f.accounts[referrerID]
	if !ok {
		return false, nil
	}
	ref := referrerID
	account.ReferrerID = &ref
	referrer.ReferralCount++
	return true, nil
}

func (f *fakeRepository) CreateDelayedClaim(ctx context.Context, claim *domain.DelayedClaim) (*domain.DelayedClaim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := claimKey(claim.AccountID, claim.SourceID)
	if existing, ok := f.claims[key]; ok {
		copied := *existing
		return &copied, nil
	}
	stored := *claim
	f.claims[key] = &stored
	copied := stored
	return &copied, nil
}

func (f *fakeRepository) FindDelayedClaim(ctx context.Context, accountID int64, sourceID string) (*domain.DelayedClaim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claim, ok := f.claims[claimKey(accountID, sourceID)]
	if !ok {
		return nil, store.ErrClaimNotFound
	}
	copied := *claim
	return &copied, nil
}

func (f *fakeRepository) FindDueDelayedClaims(ctx context.Context, accountID int64, now time.Time) ([]domain.DelayedClaim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []domain.DelayedClaim
	for _, claim := range f.claims {
		if claim.AccountID == accountID && claim.Due(now) {
			due = append(due, *claim)
		}
	}
	return due, nil
}

func (f *fakeRepository) FinalizeDelayedClaimAtomic(ctx context.Context, accountID int64, sourceID string, now time.Time) (*store.CreditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	claim, ok := f.claims[claimKey(accountID, sourceID)]
	if !ok {
		return nil, store.ErrClaimNotFound
	}
	if claim.Status == domain.ClaimCompleted {
		return nil, store.ErrClaimAlreadyCompleted
	}
	if now.Before(claim.AvailableAt) {
		return nil, store.ErrClaimNotDue
	}

	ck := completionKey(accountID, domain.KindSocial, sourceID)
	if _, exists := f.completions[ck]; exists {
		// Same source already rewarded through another path; the whole unit
		// rolls back and the claim stays pending.
		return nil, store.ErrDuplicateCompletion
	}

	account, ok := f.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}

	completedAt := now
	claim.Status = domain.ClaimCompleted
	claim.CompletedAt = &completedAt
	f.completions[ck] = domain.CompletionRecord{
		AccountID: accountID,
		Kind:      domain.KindSocial,
		Reference: sourceID,
		Points:    claim.Points,
		CreatedAt: now,
	}
	account.Balance += claim.Points
	account.LifetimeEarned += claim.Points
	f.appendLedgerLocked(accountID, domain.KindSocial, claim.Points)

	return &store.CreditResult{NewBalance: account.Balance}, nil
}

func (f *fakeRepository) CreateWithdrawalAtomic(ctx context.Context, req *domain.WithdrawalRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[req.AccountID]
	if !ok {
		return store.ErrAccountNotFound
	}
	if account.PayoutDetails == nil || *account.PayoutDetails == "" {
		return store.ErrMissingPayoutDetails
	}
	if account.Balance < req.Amount {
		return store.ErrInsufficientFunds
	}

	day := req.CreatedAt.UTC().Format("2006-01-02")
	for _, existing := range f.withdrawals {
		if existing.AccountID == req.AccountID &&
			existing.Status == domain.WithdrawalPending &&
			existing.CreatedAt.UTC().Format("2006-01-02") == day {
			return store.ErrPendingWithdrawal
		}
	}

	account.Balance -= req.Amount
	stored := *req
	f.withdrawals[req.ID] = &stored
	f.appendLedgerLocked(req.AccountID, domain.KindWithdrawalHold, -req.Amount)
	return nil
}

func (f *fakeRepository) DecideWithdrawalAtomic(ctx context.Context, requestID uuid.UUID, approve bool, now time.Time) (*domain.WithdrawalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	req, ok := f.withdrawals[requestID]
	if !ok {
		return nil, store.ErrWithdrawalNotFound
	}
	if req.Status != domain.WithdrawalPending {
		return nil, store.ErrWithdrawalNotPending
	}

	if approve {
		req.Status = domain.WithdrawalCompleted
	} else {
		req.Status = domain.WithdrawalRejected
		if account, ok := f.accounts[req.AccountID]; ok {
			account.Balance += req.Amount
			f.appendLedgerLocked(req.AccountID, domain.KindWithdrawalRefund, req.Amount)
		}
	}
	processedAt := now
	req.ProcessedAt = &processedAt

	copied := *req
	return &copied, nil
}

func (f *fakeRepository) FindWithdrawalByID(ctx context.Context, requestID uuid.UUID) (*domain.WithdrawalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.withdrawals[requestID]
	if !ok {
		return nil, store.ErrWithdrawalNotFound
	}
	copied := *req
	return &copied, nil
}

func (f *fakeRepository) ListLedgerEntries(ctx context.Context, accountID int64, limit, offset int) ([]domain.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []domain.LedgerEntry
	for i := len(f.ledger) - 1; i >= 0; i-- {
		if f.ledger[i].AccountID == accountID {
			entries = append(entries, f.ledger[i])
		}
	}
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *fakeRepository) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []domain.LeaderboardEntry
	for _, account := range f.accounts {
		if account.Banned {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:         account.UserID,
			LifetimeEarned: account.LifetimeEarned,
		})
	}
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			if entries[j].LifetimeEarned > entries[i].LifetimeEarned ||
				(entries[j].LifetimeEarned == entries[i].LifetimeEarned && entries[j].UserID < entries[i].UserID) {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (f *fakeRepository) appendLedgerLocked(accountID int64, kind domain.CompletionKind, points int64) {
	f.ledger = append(f.ledger, domain.LedgerEntry{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      kind,
		Points:    points,
		CreatedAt: time.Now(),
	})
}

func (f *fakeRepository) quotaConsumed(accountID int64, day time.Time, pool domain.QuotaPool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quotas[quotaKey(accountID, day, pool)]
}

func (f *fakeRepository) completionCount(accountID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, record := range f.completions {
		if record.AccountID == accountID {
			count++
		}
	}
	return count
}

func defaultTestEconomics() Economics {
	return Economics{
		TaskDailyLimit:         5,
		ClaimBaseLimit:         1,
		ReferralsPerBonusBlock: 5,
		BonusClaimsPerBlock:    1,
		ClaimDelay:             15 * time.Minute,
		ClaimMinPoints:         1,
		ClaimMaxPoints:         10,
		ReferralPoints:         20,
		WithdrawalMin:          100,
		WithdrawalMax:          100000,
	}
}

func newTestService(repo *fakeRepository) *Service {
	return NewService(repo, nil, defaultTestEconomics())
}
