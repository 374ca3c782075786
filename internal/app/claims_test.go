package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/taskpoints/rewards-service/internal/domain"
)

func TestDelayedClaim_PendingUntilMatured(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	start := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	resp, err := svc.RequestDelayedClaim(ctx, 20, "video:abc", 50)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.Status != domain.ClaimPending {
		t.Fatalf("expected pending status, got %s", resp.Status)
	}
	if want := start.Add(15 * time.Minute); !resp.AvailableAt.Equal(want) {
		t.Fatalf("expected available_at %v, got %v", want, resp.AvailableAt)
	}

	// Poll before maturity: still pending, no points, no balance change.
	svc.now = func() time.Time { return start.Add(5 * time.Minute) }
	resp, err = svc.PollDelayedClaim(ctx, 20, "video:abc")
	if err != nil {
		t.Fatalf("early poll failed: %v", err)
	}
	if resp.Status != domain.ClaimPending || resp.PointsEarned != nil {
		t.Fatalf("expected pending with no points, got status=%s points=%v", resp.Status, resp.PointsEarned)
	}
	account, err := repo.FindAccountByID(ctx, 20)
	if err != nil {
		t.Fatalf("failed to read account: %v", err)
	}
	if account.Balance != 0 {
		t.Fatalf("balance must stay zero before maturity, got %d", account.Balance)
	}

	// Poll after maturity: finalized with points credited.
	svc.now = func() time.Time { return start.Add(16 * time.Minute) }
	resp, err = svc.PollDelayedClaim(ctx, 20, "video:abc")
	if err != nil {
		t.Fatalf("mature poll failed: %v", err)
	}
	if resp.Status != domain.ClaimCompleted {
		t.Fatalf("expected completed status, got %s", resp.Status)
	}
	if resp.PointsEarned == nil || *resp.PointsEarned != 50 {
		t.Fatalf("expected 50 points earned, got %v", resp.PointsEarned)
	}
	account, err = repo.FindAccountByID(ctx, 20)
	if err != nil {
		t.Fatalf("failed to read account: %v", err)
	}
	if account.Balance != 50 {
		t.Fatalf("expected balance 50 after finalization, got %d", account.Balance)
	}
}

func TestDelayedClaim_RepeatedRequestIsIdempotent(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	start := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	first, err := svc.RequestDelayedClaim(ctx, 21, "video:xyz", 50)
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}

	// A later repeat must return the original schedule, not restart the clock.
	svc.now = func() time.Time { return start.Add(10 * time.Minute) }
	second, err := svc.RequestDelayedClaim(ctx, 21, "video:xyz", 50)
	if err != nil {
		t.Fatalf("repeat request failed: %v", err)
	}
	if !second.AvailableAt.Equal(first.AvailableAt) {
		t.Fatalf("repeat request moved available_at from %v to %v", first.AvailableAt, second.AvailableAt)
	}
}

func TestDelayedClaim_ConcurrentPollsCreditOnce(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	start := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	if _, err := svc.RequestDelayedClaim(ctx, 22, "video:race", 40); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	svc.now = func() time.Time { return start.Add(time.Hour) }

	const pollers = 20
	var wg sync.WaitGroup
	errs := make(chan error, pollers)
	for i := 0; i < pollers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PollDelayedClaim(ctx, 22, "video:race")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("poll failed: %v", err)
		}
	}

	account, err := repo.FindAccountByID(ctx, 22)
	if err != nil {
		t.Fatalf("failed to read account: %v", err)
	}
	if account.Balance != 40 {
		t.Fatalf("expected exactly one credit of 40, got balance %d", account.Balance)
	}
}

func TestDelayedClaim_SourceAlreadyCreditedKeepsClaimPending(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	start := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	// The same source gets rewarded directly before the delayed claim matures.
	if _, err := svc.Credit(ctx, 23, domain.KindSocial, "video:dup", 40, false); err != nil {
		t.Fatalf("direct credit failed: %v", err)
	}
	if _, err := svc.RequestDelayedClaim(ctx, 23, "video:dup", 40); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	svc.now = func() time.Time { return start.Add(time.Hour) }
	resp, err := svc.PollDelayedClaim(ctx, 23, "video:dup")
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if resp.Status != domain.ClaimPending {
		t.Fatalf("claim must stay pending when the source was credited elsewhere, got %s", resp.Status)
	}

	account, err := repo.FindAccountByID(ctx, 23)
	if err != nil {
		t.Fatalf("failed to read account: %v", err)
	}
	if account.Balance != 40 {
		t.Fatalf("expected single credit of 40, got %d", account.Balance)
	}
}

func TestDelayedClaim_RejectsBannedAndInvalidInput(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.RequestDelayedClaim(ctx, 24, "video:x", 0); err == nil {
		t.Fatal("expected error for non-positive points")
	}
	if _, err := svc.RequestDelayedClaim(ctx, 24, "", 10); err == nil {
		t.Fatal("expected error for empty source id")
	}

	if _, err := repo.FindOrCreateAccount(ctx, 25); err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	if err := repo.SetAccountBanned(ctx, 25, true); err != nil {
		t.Fatalf("failed to ban account: %v", err)
	}
	if _, err := svc.RequestDelayedClaim(ctx, 25, "video:x", 10); !errors.Is(err, ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned, got %v", err)
	}
}

func TestGetAccount_FinalizesDueClaims(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	start := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	if _, err := svc.RequestDelayedClaim(ctx, 26, "video:lazy", 30); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	svc.now = func() time.Time { return start.Add(time.Hour) }
	view, err := svc.GetAccount(ctx, 26)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if view.Balance != 30 {
		t.Fatalf("account read must finalize matured claims, got balance %d", view.Balance)
	}
}
