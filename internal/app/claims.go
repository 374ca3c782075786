/**
 * @description
 * Delayed claim state machine. A claim is created pending with a fixed
 * maturation delay and transitions to completed exactly once, through the
 * ledger engine's credit sub-steps inside the same transaction. Maturation is
 * never driven by a timer: read paths (poll, account view) finalize due
 * claims opportunistically, so invocation is at-least-once while the
 * completion registry keeps the effect exactly-once.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/taskpoints/rewards-service/internal/domain"
	"github.com/taskpoints/rewards-service/internal/store"
	"github.com/taskpoints/rewards-service/pkg/rabbitmq"
)

// RequestDelayedClaim creates a pending claim for (account, source) if none
// exists. A repeated request returns the stored claim's current state without
// side effects.
func (s *Service) RequestDelayedClaim(ctx context.Context, accountID int64, sourceID string, points int64) (*domain.DelayedClaimStatusResponse, error) {
	if points <= 0 {
		return nil, ErrInvalidPoints
	}
	if sourceID == "" {
		return nil, fmt.Errorf("source id must not be empty")
	}

	account, err := s.repo.FindOrCreateAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account.Banned {
		return nil, ErrAccountBanned
	}

	now := s.now()
	claim, err := s.repo.CreateDelayedClaim(ctx, &domain.DelayedClaim{
		AccountID:   accountID,
		SourceID:    sourceID,
		Status:      domain.ClaimPending,
		Points:      points,
		RequestedAt: now,
		AvailableAt: now.Add(s.economics.ClaimDelay),
	})
	if err != nil {
		return nil, err
	}

	return &domain.DelayedClaimStatusResponse{
		Status:      claim.Status,
		AvailableAt: claim.AvailableAt,
	}, nil
}

// PollDelayedClaim reports the claim's status, finalizing it first when it is
// pending and matured. Two concurrent polls finalize at most once: the loser
// observes the completed row.
func (s *Service) PollDelayedClaim(ctx context.Context, accountID int64, sourceID string) (*domain.DelayedClaimStatusResponse, error) {
	claim, err := s.repo.FindDelayedClaim(ctx, accountID, sourceID)
	if err != nil {
		return nil, err
	}

	if claim.Due(s.now()) {
		if err := s.finalizeClaim(ctx, claim); err != nil {
			return nil, err
		}
		claim, err = s.repo.FindDelayedClaim(ctx, accountID, sourceID)
		if err != nil {
			return nil, err
		}
	}

	resp := &domain.DelayedClaimStatusResponse{
		Status:      claim.Status,
		AvailableAt: claim.AvailableAt,
	}
	if claim.Status == domain.ClaimCompleted {
		points := claim.Points
		resp.PointsEarned = &points
	}
	return resp, nil
}

// FinalizeDueClaims credits every matured pending claim for the account.
// Called from read paths; per-claim failures are logged and skipped so one
// bad claim never blocks the rest.
func (s *Service) FinalizeDueClaims(ctx context.Context, accountID int64) {
	due, err := s.repo.FindDueDelayedClaims(ctx, accountID, s.now())
	if err != nil {
		log.Printf("level=warn component=claims msg=\"due claim scan failed\" account_id=%d err=%v", accountID, err)
		return
	}
	for i := range due {
		if err := s.finalizeClaim(ctx, &due[i]); err != nil {
			log.Printf("level=warn component=claims msg=\"claim finalize failed\" account_id=%d source_id=%s err=%v", accountID, due[i].SourceID, err)
		}
	}
}

// finalizeClaim performs the atomic transition-and-credit. A concurrent
// winner is not an error; a duplicate completion means the same source was
// already rewarded through another path, in which case the claim stays
// pending and the condition is surfaced in the log only.
func (s *Service) finalizeClaim(ctx context.Context, claim *domain.DelayedClaim) error {
	result, err := s.repo.FinalizeDelayedClaimAtomic(ctx, claim.AccountID, claim.SourceID, s.now())
	if err != nil {
		if errors.Is(err, store.ErrClaimAlreadyCompleted) {
			return nil
		}
		if errors.Is(err, store.ErrDuplicateCompletion) {
			log.Printf("level=warn component=claims msg=\"claim source already credited elsewhere\" account_id=%d source_id=%s", claim.AccountID, claim.SourceID)
			return nil
		}
		return err
	}

	s.publishEvent(ctx, "claim.matured", rabbitmq.ClaimMaturedEvent{
		AccountID: claim.AccountID,
		SourceID:  claim.SourceID,
		Points:    claim.Points,
		Balance:   result.NewBalance,
		Timestamp: s.now(),
	})
	return nil
}
