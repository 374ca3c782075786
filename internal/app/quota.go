package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/taskpoints/rewards-service/internal/domain"
)

// effectiveClaimLimit computes the claim-pool daily limit: the base limit plus
// one bonus block for every referralsPerBlock referrals (integer floor).
func effectiveClaimLimit(base, referrals, referralsPerBlock, bonusPerBlock int) int {
	if base < 0 {
		base = 0
	}
	if referralsPerBlock <= 0 || bonusPerBlock <= 0 || referrals <= 0 {
		return base
	}
	return base + (referrals/referralsPerBlock)*bonusPerBlock
}

// claimDayReference keys one random claim per UTC calendar day: the day
// string is the completion reference, so the registry rejects a second claim
// for the same day even if the quota counter were bypassed.
func claimDayReference(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DailyClaim rolls a random point value and credits it from the claim pool.
// The quota counter is the gate on claims per day; referrals raise its
// effective limit, so the pool can admit several claims in one day.
func (s *Service) DailyClaim(ctx context.Context, accountID int64) (*domain.CreditOutcome, error) {
	if err := s.consumeRateLimit(ctx, "claim", accountID, s.claimRateLimitPerMinute); err != nil {
		return nil, err
	}

	points := s.rollClaimPoints()
	now := s.now()

	// Each claim gets a unique reference (day plus a nanosecond suffix) so
	// successive claims within the raised limit are distinct completions;
	// the quota counter, not the registry, bounds how many land per day.
	reference := fmt.Sprintf("%s/%d", claimDayReference(now), now.UnixNano())
	return s.Credit(ctx, accountID, domain.KindClaim, reference, points, true)
}

// rollClaimPoints picks a uniform value in [ClaimMinPoints, ClaimMaxPoints].
func (s *Service) rollClaimPoints() int64 {
	min := s.economics.ClaimMinPoints
	max := s.economics.ClaimMaxPoints
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	return min + rand.Int63n(max-min+1)
}
