package utils

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSeenSetNoDuplicates(t *testing.T) {
	s := NewSeenSet()

	added := s.Add("Espresso Machine X1")
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add("  Espresso Machine X1 ")
	if added {
		t.Error("second Add of same title should return false")
	}

	if !s.Contains("Espresso Machine X1") {
		t.Error("Contains should report the added title")
	}

	if s.Size() != 1 {
		t.Errorf("size: got %d, want 1", s.Size())
	}
}

func TestSeenSetConcurrency(t *testing.T) {
	s := NewSeenSet()
	var added int64

	pool := NewWorkerPool(context.Background(), 10, 0)
	for i := 0; i < 100; i++ {
		pool.Submit(func(context.Context) {
			if s.Add("same title") {
				atomic.AddInt64(&added, 1)
			}
		})
	}
	if err := pool.Wait(); err != nil {
		t.Fatalf("pool wait: %v", err)
	}

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, 0)

	var running, peak int64
	for i := 0; i < 8; i++ {
		pool.Submit(func(context.Context) {
			n := atomic.AddInt64(&running, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&running, -1)
		})
	}
	if err := pool.Wait(); err != nil {
		t.Fatalf("pool wait: %v", err)
	}

	if peak > 2 {
		t.Errorf("peak concurrency: got %d, want <= 2", peak)
	}
}

func TestWorkerPoolRateLimit(t *testing.T) {
	interval := 50 * time.Millisecond
	pool := NewWorkerPool(context.Background(), 1, interval)

	var mu sync.Mutex
	var timestamps []time.Time

	for i := 0; i < 3; i++ {
		pool.Submit(func(context.Context) {
			mu.Lock()
			timestamps = append(timestamps, time.Now())
			mu.Unlock()
		})
	}
	if err := pool.Wait(); err != nil {
		t.Fatalf("pool wait: %v", err)
	}

	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		// allow a little scheduler slack below the nominal interval
		if gap < interval-5*time.Millisecond {
			t.Errorf("gap between job %d and %d: %v < minimum %v", i-1, i, gap, interval)
		}
	}
}

func TestWorkerPoolCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewWorkerPool(ctx, 1, time.Hour)
	var ran int64
	pool.Submit(func(context.Context) { atomic.AddInt64(&ran, 1) })

	if err := pool.Wait(); err == nil {
		t.Error("expected context error from Wait")
	}
	if ran != 0 {
		t.Errorf("job should not run on a cancelled pool, ran %d times", ran)
	}
}
