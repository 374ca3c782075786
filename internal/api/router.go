/**
 * @description
 * This file sets up the HTTP router for the rewards-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RewardRoutes creates and returns a new router for the rewards service.
func RewardRoutes(h *RewardHandlers, internalAPIKey, adminJWTSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require the shared internal key (the bot backend).
	r.Group(func(r chi.Router) {
		r.Use(InternalAPIKeyMiddleware(internalAPIKey))

		r.Post("/credit", h.CreditHandler)
		r.Post("/claim", h.DailyClaimHandler)
		r.Post("/delayed-claims", h.RequestDelayedClaimHandler)
		r.Get("/delayed-claims/{sourceID}", h.PollDelayedClaimHandler)
		r.Post("/referrals", h.ApplyReferralHandler)
		r.Post("/withdrawals", h.RequestWithdrawalHandler)
		r.Get("/accounts/{accountID}", h.GetAccountHandler)
		r.Put("/accounts/{accountID}/payout-details", h.UpdatePayoutDetailsHandler)
		r.Get("/accounts/{accountID}/ledger", h.ListLedgerHandler)
		r.Get("/leaderboard", h.LeaderboardHandler)

		// Admin surface: privileged callers only.
		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(adminJWTSecret))

			r.Post("/withdrawals/{requestID}/decision", h.DecideWithdrawalHandler)
			r.Put("/accounts/{accountID}/ban", h.BanAccountHandler)
		})
	})

	return r
}
