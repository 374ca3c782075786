/**
 * @description
 * This file contains the ledger engine for the rewards-service. The `Service`
 * struct is the only component permitted to change account balances: task
 * credits, delayed claims, referral credits and withdrawal escrow all funnel
 * through it so the account row is never mutated by two independent code
 * paths without a shared atomic boundary.
 *
 * Key features:
 * - Implements the credit primitive: at-most-once per (account, kind,
 *   reference), quota-gated, committed as one unit with the ledger append.
 * - Publishes notification events to RabbitMQ after the atomic unit commits,
 *   never inside it.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For the notification event producer.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/taskpoints/rewards-service/internal/domain"
	"github.com/taskpoints/rewards-service/internal/store"
	"github.com/taskpoints/rewards-service/pkg/rabbitmq"
)

// Economics holds the reward tuning knobs loaded from configuration.
type Economics struct {
	TaskDailyLimit         int
	ClaimBaseLimit         int
	ReferralsPerBonusBlock int
	BonusClaimsPerBlock    int
	ClaimDelay             time.Duration
	ClaimMinPoints         int64
	ClaimMaxPoints         int64
	ReferralPoints         int64
	WithdrawalMin          int64
	WithdrawalMax          int64
}

// Service provides the core business logic for the rewards ledger.
type Service struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	economics     Economics

	rateLimiter              RateLimiter
	claimRateLimitPerMinute  int
	creditRateLimitPerMinute int

	// now is replaceable in tests; production code always uses time.Now.
	now func() time.Time
}

// NewService creates a new rewards service instance. The event producer may
// be nil, in which case notifications are skipped.
func NewService(repo store.Repository, producer rabbitmq.Publisher, economics Economics) *Service {
	return &Service{
		repo:          repo,
		eventProducer: producer,
		economics:     economics,
		now:           time.Now,
	}
}

// ConfigureRateLimits sets the per-account fixed-window limits enforced on
// the claim and credit paths. Zero disables a limit.
func (s *Service) ConfigureRateLimits(claimPerMinute, creditPerMinute int) {
	s.claimRateLimitPerMinute = claimPerMinute
	s.creditRateLimitPerMinute = creditPerMinute
}

// SetRateLimiter installs the distributed rate limiter. A nil limiter
// disables rate limiting entirely.
func (s *Service) SetRateLimiter(limiter RateLimiter) {
	s.rateLimiter = limiter
}

var validKinds = map[domain.CompletionKind]bool{
	domain.KindChannelJoin: true,
	domain.KindGroupJoin:   true,
	domain.KindDailyLogin:  true,
	domain.KindSocial:      true,
	domain.KindReferral:    true,
	domain.KindClaim:       true,
}

// Credit attempts to reward a (account, kind, reference) completion. A
// duplicate attempt is not an error: it reports Credited=false with the
// current balance, so retries are safe. Quota-gated kinds consume from their
// pool for the current UTC day; the effective claim-pool limit grows with the
// account's referral count.
func (s *Service) Credit(ctx context.Context, accountID int64, kind domain.CompletionKind, reference string, points int64, requiresQuota bool) (*domain.CreditOutcome, error) {
	if !validKinds[kind] {
		return nil, ErrInvalidKind
	}
	if points <= 0 {
		return nil, ErrInvalidPoints
	}

	account, err := s.repo.FindOrCreateAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account.Banned {
		return nil, ErrAccountBanned
	}

	pool := domain.QuotaPoolForKind(kind)
	limit := s.economics.TaskDailyLimit
	if pool == domain.PoolClaim {
		// Referral count is read at evaluation time, so claim capacity can
		// grow intraday as referrals land.
		limit = effectiveClaimLimit(s.economics.ClaimBaseLimit, account.ReferralCount, s.economics.ReferralsPerBonusBlock, s.economics.BonusClaimsPerBlock)
	}

	result, err := s.repo.CreditAtomic(ctx, store.CreditParams{
		AccountID:     accountID,
		Kind:          kind,
		Reference:     reference,
		Points:        points,
		RequiresQuota: requiresQuota,
		Pool:          pool,
		Day:           s.now(),
		Limit:         limit,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateCompletion) {
			current, readErr := s.repo.FindAccountByID(ctx, accountID)
			if readErr != nil {
				return nil, fmt.Errorf("failed to read balance after duplicate credit: %w", readErr)
			}
			return &domain.CreditOutcome{Credited: false, NewBalance: current.Balance}, nil
		}
		return nil, err
	}

	s.publishEvent(ctx, "reward.credited", rabbitmq.RewardCreditedEvent{
		AccountID: accountID,
		Kind:      string(kind),
		Reference: reference,
		Points:    points,
		Balance:   result.NewBalance,
		Timestamp: s.now(),
	})

	return &domain.CreditOutcome{Credited: true, NewBalance: result.NewBalance}, nil
}

// CreditTask is the rate-limited entry point used by the HTTP credit
// endpoint. Internal callers (referral cascade, delayed claims) use Credit
// directly and are not subject to the per-account window.
func (s *Service) CreditTask(ctx context.Context, accountID int64, kind domain.CompletionKind, reference string, points int64, requiresQuota bool) (*domain.CreditOutcome, error) {
	if err := s.consumeRateLimit(ctx, "credit", accountID, s.creditRateLimitPerMinute); err != nil {
		return nil, err
	}
	return s.Credit(ctx, accountID, kind, reference, points, requiresQuota)
}

// Debit decrements an account balance, clamped at zero. Lifetime earned is
// never affected. Used by fee flows; withdrawal escrow has its own path.
func (s *Service) Debit(ctx context.Context, accountID int64, points int64) (int64, error) {
	if points <= 0 {
		return 0, ErrInvalidPoints
	}
	result, err := s.repo.DebitAccount(ctx, accountID, points, domain.KindWithdrawalHold)
	if err != nil {
		return 0, err
	}
	return result.NewBalance, nil
}

// GetAccount returns the account view, opportunistically finalizing any
// matured delayed claims first so the balance the caller sees is current.
func (s *Service) GetAccount(ctx context.Context, accountID int64) (*domain.AccountView, error) {
	if _, err := s.repo.FindOrCreateAccount(ctx, accountID); err != nil {
		return nil, err
	}

	s.FinalizeDueClaims(ctx, accountID)

	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &domain.AccountView{
		Account: *account,
		EffectiveClaimLimit: effectiveClaimLimit(
			s.economics.ClaimBaseLimit,
			account.ReferralCount,
			s.economics.ReferralsPerBonusBlock,
			s.economics.BonusClaimsPerBlock,
		),
	}, nil
}

// UpdatePayoutDetails stores the payout destination required by withdrawals.
func (s *Service) UpdatePayoutDetails(ctx context.Context, accountID int64, details string) error {
	if _, err := s.repo.FindOrCreateAccount(ctx, accountID); err != nil {
		return err
	}
	return s.repo.UpdatePayoutDetails(ctx, accountID, details)
}

// SetAccountBanned flips the banned flag; banned accounts cannot earn or
// withdraw.
func (s *Service) SetAccountBanned(ctx context.Context, accountID int64, banned bool) error {
	return s.repo.SetAccountBanned(ctx, accountID, banned)
}

// Leaderboard ranks accounts by lifetime earned.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.repo.Leaderboard(ctx, limit)
}

// ListLedgerEntries returns an account's balance-change history, newest first.
func (s *Service) ListLedgerEntries(ctx context.Context, accountID int64, limit, offset int) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListLedgerEntries(ctx, accountID, limit, offset)
}

// publishEvent sends a notification event after a committed unit of work.
// Failures are logged and never propagate: the ledger is already consistent.
func (s *Service) publishEvent(ctx context.Context, routingKey string, body interface{}) {
	if s.eventProducer == nil {
		return
	}
	if err := s.eventProducer.Publish(ctx, rabbitmq.RewardsExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=service msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}
