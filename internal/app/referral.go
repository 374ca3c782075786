package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/taskpoints/rewards-service/internal/domain"
	"github.com/taskpoints/rewards-service/internal/store"
)

// ApplyReferral links a new account to its referrer exactly once and credits
// the referrer. Returns false without error when the link cannot be applied:
// self-referral, an already-linked account, or a referrer that does not
// resolve. The referral completion record is keyed by the referred account's
// id, so a retried or concurrently duplicated call credits at most once.
func (s *Service) ApplyReferral(ctx context.Context, newAccountID, referrerID int64) (bool, error) {
	if newAccountID == referrerID {
		return false, nil
	}

	newAccount, err := s.repo.FindOrCreateAccount(ctx, newAccountID)
	if err != nil {
		return false, fmt.Errorf("failed to load referred account: %w", err)
	}
	if newAccount.ReferrerID != nil {
		return false, nil
	}

	if _, err := s.repo.FindAccountByID(ctx, referrerID); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}

	linked, err := s.repo.LinkReferrerAtomic(ctx, newAccountID, referrerID)
	if err != nil {
		return false, err
	}
	if !linked {
		return false, nil
	}

	// Keyed by the referred account id: the registry guarantees one credit
	// per referral regardless of retries. A duplicate here means a previous
	// attempt already paid out after linking.
	outcome, err := s.Credit(ctx, referrerID, domain.KindReferral, strconv.FormatInt(newAccountID, 10), s.economics.ReferralPoints, false)
	if err != nil {
		if errors.Is(err, ErrAccountBanned) {
			log.Printf("level=info component=referral msg=\"referrer banned; credit withheld\" referrer_id=%d", referrerID)
			return true, nil
		}
		return false, fmt.Errorf("failed to credit referrer: %w", err)
	}
	if !outcome.Credited {
		log.Printf("level=info component=referral msg=\"referral already credited\" referrer_id=%d referred_id=%d", referrerID, newAccountID)
	}
	return true, nil
}
