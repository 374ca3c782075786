/**
 * @description
 * Withdrawal escrow. The balance is debited at request time (pessimistic
 * hold) and held for the duration of admin review: approval only stamps the
 * terminal status, rejection refunds the exact held amount. Both the hold and
 * the refund are committed by the repository in single atomic units.
 */

package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/taskpoints/rewards-service/internal/domain"
	"github.com/taskpoints/rewards-service/pkg/rabbitmq"
)

// RequestWithdrawal validates the amount against configured bounds and
// escrows it. Storage enforces payout details, balance sufficiency and the
// one-pending-request-per-day rule under the account row lock.
func (s *Service) RequestWithdrawal(ctx context.Context, accountID int64, amount int64) (*domain.WithdrawalRequest, error) {
	if amount < s.economics.WithdrawalMin {
		return nil, ErrBelowMinimum
	}
	if s.economics.WithdrawalMax > 0 && amount > s.economics.WithdrawalMax {
		return nil, ErrAboveMaximum
	}

	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Banned {
		return nil, ErrAccountBanned
	}

	req := &domain.WithdrawalRequest{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    amount,
		Status:    domain.WithdrawalPending,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateWithdrawalAtomic(ctx, req); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, "withdrawal.requested", rabbitmq.WithdrawalEvent{
		RequestID: req.ID,
		AccountID: accountID,
		Amount:    amount,
		Status:    string(domain.WithdrawalPending),
		Timestamp: req.CreatedAt,
	})
	return req, nil
}

// DecideWithdrawal resolves a pending request on admin decision.
func (s *Service) DecideWithdrawal(ctx context.Context, requestID uuid.UUID, approve bool) (*domain.WithdrawalRequest, error) {
	req, err := s.repo.DecideWithdrawalAtomic(ctx, requestID, approve, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to decide withdrawal %s: %w", requestID, err)
	}

	s.publishEvent(ctx, "withdrawal.decided", rabbitmq.WithdrawalEvent{
		RequestID: req.ID,
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Status:    string(req.Status),
		Timestamp: s.now(),
	})
	return req, nil
}

// GetWithdrawal returns a withdrawal request by id.
func (s *Service) GetWithdrawal(ctx context.Context, requestID uuid.UUID) (*domain.WithdrawalRequest, error) {
	return s.repo.FindWithdrawalByID(ctx, requestID)
}
