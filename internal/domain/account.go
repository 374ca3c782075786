/**
 * @description
 * This file defines the core domain models for the rewards-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Accounts are keyed by the stable external user id (the messaging platform's
 *   numeric user id), not by an internal UUID, because every caller of this
 *   service already identifies users that way.
 * - Points are plain int64 values; there is no fractional unit.
 */

package domain

import "time"

// Account is the durable per-user record. Balance is only ever mutated by the
// ledger engine; lifetime earned is monotonic non-decreasing.
type Account struct {
	UserID         int64     `json:"user_id"`
	Balance        int64     `json:"balance"`
	LifetimeEarned int64     `json:"lifetime_earned"`
	ReferralCount  int       `json:"referral_count"`
	Banned         bool      `json:"banned"`
	ReferrerID     *int64    `json:"referrer_id,omitempty"`
	PayoutDetails  *string   `json:"payout_details,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AccountView is the read model returned to callers. EffectiveClaimLimit is
// computed at read time from the account's referral count, so it can grow
// intraday as referrals land.
type AccountView struct {
	Account
	EffectiveClaimLimit int `json:"effective_claim_limit"`
}

// CompletionKind identifies the class of task a completion record belongs to.
type CompletionKind string

const (
	KindChannelJoin CompletionKind = "channel"
	KindGroupJoin   CompletionKind = "group"
	KindDailyLogin  CompletionKind = "login"
	KindSocial      CompletionKind = "social"
	KindReferral    CompletionKind = "referral"
	KindClaim       CompletionKind = "claim"
)

// QuotaPool selects which independent daily counter a quota-consuming credit
// draws from.
type QuotaPool string

const (
	PoolTask  QuotaPool = "task"
	PoolClaim QuotaPool = "claim"
)

// QuotaPoolForKind maps a completion kind to the daily pool it consumes.
// Claim credits draw from the claim pool; everything else shares the task pool.
func QuotaPoolForKind(kind CompletionKind) QuotaPool {
	if kind == KindClaim {
		return PoolClaim
	}
	return PoolTask
}

// CompletionRecord marks that a (account, kind, reference) tuple has been
// rewarded. Created at credit time, never mutated or deleted.
type CompletionRecord struct {
	AccountID int64          `json:"account_id"`
	Kind      CompletionKind `json:"kind"`
	Reference string         `json:"reference"`
	Points    int64          `json:"points"`
	CreatedAt time.Time      `json:"created_at"`
}

// DailyQuotaCounter tracks consumption for one (account, day, pool) bucket.
// Reset is implicit: a new calendar day keys a new row.
type DailyQuotaCounter struct {
	AccountID int64     `json:"account_id"`
	Day       time.Time `json:"day"`
	Pool      QuotaPool `json:"pool"`
	Consumed  int       `json:"consumed"`
}

// CreditRequest is the DTO for the credit API endpoint.
type CreditRequest struct {
	AccountID int64  `json:"account_id"`
	Kind      string `json:"kind"`
	Reference string `json:"reference"`
	Points    int64  `json:"points"`
}

// CreditOutcome reports the result of a credit attempt. Credited is false when
// the (account, kind, reference) tuple had already been rewarded; the balance
// returned is current either way.
type CreditOutcome struct {
	Credited   bool  `json:"credited"`
	NewBalance int64 `json:"new_balance"`
}

// LeaderboardEntry is one row of the lifetime-earned ranking.
type LeaderboardEntry struct {
	Rank           int   `json:"rank"`
	UserID         int64 `json:"user_id"`
	LifetimeEarned int64 `json:"lifetime_earned"`
}
