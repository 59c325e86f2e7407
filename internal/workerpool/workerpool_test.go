package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestBoundsConcurrency(t *testing.T) {
	ctx := context.Background()
	p := New(2)

	var current, max32 int32
	var mu int32 // spin-guard not needed, atomics suffice
	_ = mu

	for i := 0; i < 8; i++ {
		if err := p.Submit(ctx, func(ctx context.Context) error {
			n := atomic.AddInt32(&current, 1)
			for {
				old := atomic.LoadInt32(&max32)
				if n <= old || atomic.CompareAndSwapInt32(&max32, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return nil
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	if err := p.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if max32 > 2 {
		t.Errorf("observed concurrency %d, want <= 2", max32)
	}
}

func TestWaitReturnsFirstError(t *testing.T) {
	ctx := context.Background()
	p := New(4)
	sentinel := errors.New("boom")

	for i := 0; i < 3; i++ {
		i := i
		if err := p.Submit(ctx, func(ctx context.Context) error {
			if i == 1 {
				return sentinel
			}
			return nil
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	if err := p.Wait(); err == nil {
		t.Fatal("expected an error from Wait")
	}
}

func TestSubmitRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(1)

	if err := p.Submit(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	cancel()
	if err := p.Wait(); err == nil {
		t.Fatal("expected an error after cancellation")
	}
}

// A single task's error must not cancel the context another task
// receives, or a pool serving long-lived connections would stop doing
// useful work after its very first failure.
func TestErrorFromOneTaskDoesNotCancelOthers(t *testing.T) {
	ctx := context.Background()
	p := New(2)
	sentinel := errors.New("boom")

	failing := make(chan struct{})
	if err := p.Submit(ctx, func(context.Context) error {
		close(failing)
		return sentinel
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-failing

	sawCancellation := false
	if err := p.Submit(ctx, func(taskCtx context.Context) error {
		select {
		case <-taskCtx.Done():
			sawCancellation = true
		case <-time.After(20 * time.Millisecond):
		}
		return nil
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := p.Wait(); err != sentinel {
		t.Fatalf("Wait: got %v, want sentinel", err)
	}
	if sawCancellation {
		t.Error("second task's context was cancelled by the first task's error")
	}
}
