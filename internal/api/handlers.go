/**
 * @description
 * This file contains the HTTP handlers for the rewards-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * Membership verification against the messaging platform happens here, before
 * the ledger engine is invoked; it is never part of the atomic credit path.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 * - pkg/telegramclient: For chat membership checks.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/taskpoints/rewards-service/internal/app"
	"github.com/taskpoints/rewards-service/internal/domain"
	"github.com/taskpoints/rewards-service/internal/store"
	"github.com/taskpoints/rewards-service/pkg/telegramclient"
)

// RewardHandlers holds the application service that handlers will use.
type RewardHandlers struct {
	service    *app.Service
	membership *telegramclient.Client
}

// NewRewardHandlers creates the handler set. membership may be nil, in which
// case join tasks are credited without verification (degraded mode).
func NewRewardHandlers(service *app.Service, membership *telegramclient.Client) *RewardHandlers {
	return &RewardHandlers{service: service, membership: membership}
}

type creditRequestPayload struct {
	AccountID     int64  `json:"account_id"`
	Kind          string `json:"kind"`
	Reference     string `json:"reference"`
	Points        int64  `json:"points"`
	RequiresQuota bool   `json:"requires_quota"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *RewardHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *RewardHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps the error taxonomy onto HTTP statuses. Duplicate
// completions never reach here: the engine reports them as a non-credited
// success.
func (h *RewardHandlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, store.ErrQuotaExceeded):
		h.writeError(w, http.StatusTooManyRequests, "daily quota exceeded")
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusUnprocessableEntity, "insufficient points balance")
	case errors.Is(err, store.ErrMissingPayoutDetails):
		h.writeError(w, http.StatusPreconditionFailed, "payout details not set")
	case errors.Is(err, store.ErrPendingWithdrawal):
		h.writeError(w, http.StatusConflict, "a pending withdrawal already exists for today")
	case errors.Is(err, store.ErrWithdrawalNotFound):
		h.writeError(w, http.StatusNotFound, "withdrawal request not found")
	case errors.Is(err, store.ErrWithdrawalNotPending):
		h.writeError(w, http.StatusConflict, "withdrawal request already processed")
	case errors.Is(err, store.ErrClaimNotFound):
		h.writeError(w, http.StatusNotFound, "delayed claim not found")
	case errors.Is(err, app.ErrAccountBanned):
		h.writeError(w, http.StatusForbidden, "account is banned")
	case errors.Is(err, app.ErrInvalidKind), errors.Is(err, app.ErrInvalidPoints):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrBelowMinimum), errors.Is(err, app.ErrAboveMaximum):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, app.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "too many requests")
	default:
		log.Printf("level=error component=api msg=\"internal error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// CreditHandler rewards a completed task. Join tasks (channel/group) are
// verified against the platform first when a membership client is configured.
func (h *RewardHandlers) CreditHandler(w http.ResponseWriter, r *http.Request) {
	var payload creditRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.AccountID == 0 {
		h.writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	kind := domain.CompletionKind(payload.Kind)
	if h.membership != nil && (kind == domain.KindChannelJoin || kind == domain.KindGroupJoin) {
		member, err := h.membership.IsMember(r.Context(), payload.Reference, payload.AccountID)
		if err != nil {
			log.Printf("level=warn component=api msg=\"membership check failed\" chat=%s account_id=%d err=%v", payload.Reference, payload.AccountID, err)
			h.writeError(w, http.StatusBadGateway, "membership verification unavailable")
			return
		}
		if !member {
			h.writeError(w, http.StatusForbidden, "membership not verified")
			return
		}
	}

	outcome, err := h.service.CreditTask(r.Context(), payload.AccountID, kind, payload.Reference, payload.Points, payload.RequiresQuota)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, outcome)
}

// DailyClaimHandler performs the random-value daily claim.
func (h *RewardHandlers) DailyClaimHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AccountID int64 `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.AccountID == 0 {
		h.writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	outcome, err := h.service.DailyClaim(r.Context(), payload.AccountID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, outcome)
}

// RequestDelayedClaimHandler creates (or idempotently re-reads) a delayed claim.
func (h *RewardHandlers) RequestDelayedClaimHandler(w http.ResponseWriter, r *http.Request) {
	var payload domain.DelayedClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.AccountID == 0 || payload.SourceID == "" {
		h.writeError(w, http.StatusBadRequest, "account_id and source_id are required")
		return
	}

	resp, err := h.service.RequestDelayedClaim(r.Context(), payload.AccountID, payload.SourceID, payload.Points)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// PollDelayedClaimHandler reports claim status, finalizing it when matured.
func (h *RewardHandlers) PollDelayedClaimHandler(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	accountID, err := strconv.ParseInt(r.URL.Query().Get("account_id"), 10, 64)
	if err != nil || accountID == 0 {
		h.writeError(w, http.StatusBadRequest, "account_id query parameter is required")
		return
	}

	resp, err := h.service.PollDelayedClaim(r.Context(), accountID, sourceID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ApplyReferralHandler links a new account to its referrer.
func (h *RewardHandlers) ApplyReferralHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AccountID  int64 `json:"account_id"`
		ReferrerID int64 `json:"referrer_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.AccountID == 0 || payload.ReferrerID == 0 {
		h.writeError(w, http.StatusBadRequest, "account_id and referrer_id are required")
		return
	}

	applied, err := h.service.ApplyReferral(r.Context(), payload.AccountID, payload.ReferrerID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

// RequestWithdrawalHandler escrows a withdrawal.
func (h *RewardHandlers) RequestWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	var payload domain.CreateWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.AccountID == 0 {
		h.writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	req, err := h.service.RequestWithdrawal(r.Context(), payload.AccountID, payload.Amount)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, req)
}

// DecideWithdrawalHandler resolves a pending withdrawal (admin only).
func (h *RewardHandlers) DecideWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	var payload domain.WithdrawalDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.service.DecideWithdrawal(r.Context(), requestID, payload.Approve)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// GetAccountHandler returns the account view, finalizing due claims first.
func (h *RewardHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	view, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// UpdatePayoutDetailsHandler stores the payout destination for withdrawals.
func (h *RewardHandlers) UpdatePayoutDetailsHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var payload struct {
		PayoutDetails string `json:"payout_details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.PayoutDetails == "" {
		h.writeError(w, http.StatusBadRequest, "payout_details is required")
		return
	}

	if err := h.service.UpdatePayoutDetails(r.Context(), accountID, payload.PayoutDetails); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BanAccountHandler flips the banned flag (admin only).
func (h *RewardHandlers) BanAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var payload struct {
		Banned bool `json:"banned"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.SetAccountBanned(r.Context(), accountID, payload.Banned); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LeaderboardHandler returns the lifetime-earned ranking.
func (h *RewardHandlers) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// ListLedgerHandler returns an account's balance-change history.
func (h *RewardHandlers) ListLedgerHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.service.ListLedgerEntries(r.Context(), accountID, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}
