package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, nil), mr
}

func TestTryConsume_QuotaWindow(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < DefaultQuota; i++ {
		allowed, err := limiter.TryConsume(ctx)
		if err != nil {
			t.Fatalf("consume %d: unexpected error: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("consume %d: expected allowed within quota", i+1)
		}
	}

	allowed, err := limiter.TryConsume(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected 6th consume to be refused")
	}

	mr.FastForward(DefaultWindow + time.Second)

	allowed, err = limiter.TryConsume(ctx)
	if err != nil {
		t.Fatalf("unexpected error after window reset: %v", err)
	}
	if !allowed {
		t.Fatalf("expected consume to succeed after window reset")
	}
}

func TestStatus_ReportsRemainingAndBlocked(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	st, err := limiter.Status(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Remaining != DefaultQuota || st.Blocked {
		t.Fatalf("fresh limiter: expected remaining=%d blocked=false, got %+v", DefaultQuota, st)
	}

	for i := 0; i < 2; i++ {
		if _, err := limiter.TryConsume(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	st, err = limiter.Status(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Remaining != DefaultQuota-2 {
		t.Fatalf("expected remaining=%d, got %d", DefaultQuota-2, st.Remaining)
	}
	if st.Blocked {
		t.Fatalf("expected not blocked with quota remaining")
	}
	if st.ResetInMs <= 0 {
		t.Fatalf("expected positive reset time, got %d", st.ResetInMs)
	}

	for i := 0; i < DefaultQuota; i++ {
		_, _ = limiter.TryConsume(ctx)
	}

	st, err = limiter.Status(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.Blocked || st.Remaining != 0 {
		t.Fatalf("expected blocked with remaining=0, got %+v", st)
	}
}

func TestWaitUntilAvailable_ReturnsHoldingSlot(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	limiter.pollInterval = 10 * time.Millisecond
	ctx := context.Background()

	for i := 0; i < DefaultQuota; i++ {
		_, _ = limiter.TryConsume(ctx)
	}

	done := make(chan error, 1)
	go func() {
		done <- limiter.WaitUntilAvailable(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("wait returned before window reset: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	mr.FastForward(DefaultWindow + time.Second)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("wait did not return after window reset")
	}

	st, err := limiter.Status(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Remaining != DefaultQuota-1 {
		t.Fatalf("expected wait to consume a slot, remaining=%d", st.Remaining)
	}
}

func TestWaitUntilAvailable_CancelledContext(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	limiter.pollInterval = 10 * time.Millisecond

	ctx := context.Background()
	for i := 0; i < DefaultQuota; i++ {
		_, _ = limiter.TryConsume(ctx)
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()

	if err := limiter.WaitUntilAvailable(cancelCtx); err == nil {
		t.Fatalf("expected context error from cancelled wait")
	}
}
