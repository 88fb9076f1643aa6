package utils

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// WorkerPool runs jobs on a bounded number of goroutines and spaces out job
// starts by a minimum interval.
type WorkerPool struct {
	ctx     context.Context
	group   *errgroup.Group
	limiter *rate.Limiter
}

// NewWorkerPool creates a WorkerPool with the given concurrency and start interval.
// A zero interval disables pacing.
func NewWorkerPool(ctx context.Context, maxWorkers int, interval time.Duration) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	g := &errgroup.Group{}
	g.SetLimit(maxWorkers)

	return &WorkerPool{
		ctx:     ctx,
		group:   g,
		limiter: NewLimiter(interval),
	}
}

// Submit enqueues a job. It blocks while all workers are busy.
func (wp *WorkerPool) Submit(job func(ctx context.Context)) {
	wp.group.Go(func() error {
		if err := wp.limiter.Wait(wp.ctx); err != nil {
			return err
		}
		job(wp.ctx)
		return nil
	})
}

// Wait blocks until all submitted jobs have completed. The error is non-nil
// only when the pool context was cancelled before some job could start.
func (wp *WorkerPool) Wait() error {
	return wp.group.Wait()
}

// NewLimiter returns a limiter allowing one event per interval, or an
// unlimited one when interval is not positive.
func NewLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// SeenSet is a thread-safe set of normalised keys, used to suppress titles
// already collected during one crawl.
type SeenSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewSeenSet creates an empty SeenSet.
func NewSeenSet() *SeenSet {
	return &SeenSet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *SeenSet) Add(key string) bool {
	key = strings.TrimSpace(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains returns true if the key has already been added.
func (s *SeenSet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[strings.TrimSpace(key)]
	return exists
}

// Size returns the number of unique keys tracked.
func (s *SeenSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
