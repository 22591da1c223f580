// Package scheduler drives the billing cycle. Contracts are spread over a
// fixed number of buckets by id; every tick settles one bucket, so each
// contract is billed exactly once per cycle and the load is even.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Biller settles one contract's billing cycle.
type Biller interface {
	Bill(ctx context.Context, contractID uint64) error
}

// BillingLoop distributes contracts over buckets and walks them round-robin.
type BillingLoop struct {
	mu      sync.Mutex
	buckets []map[uint64]struct{}
	tick    uint64

	biller   Biller
	interval time.Duration
	logger   *zap.Logger

	stop chan struct{}
	done chan struct{}
}

// NewBillingLoop creates a loop with bucketCount buckets billing each
// contract once per cycleSeconds.
func NewBillingLoop(biller Biller, cycleSeconds uint64, bucketCount int, logger *zap.Logger) *BillingLoop {
	buckets := make([]map[uint64]struct{}, bucketCount)
	for i := range buckets {
		buckets[i] = make(map[uint64]struct{})
	}
	return &BillingLoop{
		buckets:  buckets,
		biller:   biller,
		interval: time.Duration(cycleSeconds) * time.Second / time.Duration(bucketCount),
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Enqueue adds a contract to its bucket. Idempotent.
func (l *BillingLoop) Enqueue(contractID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[l.bucketFor(contractID)][contractID] = struct{}{}
}

// Remove drops a contract from its bucket. Idempotent.
func (l *BillingLoop) Remove(contractID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets[l.bucketFor(contractID)], contractID)
}

// Rebuild replaces the schedule with the given contract ids, used at startup
// to recover the schedule from storage.
func (l *BillingLoop) Rebuild(ids []uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.buckets {
		l.buckets[i] = make(map[uint64]struct{})
	}
	for _, id := range ids {
		l.buckets[l.bucketFor(id)][id] = struct{}{}
	}
}

// Contains reports whether a contract is scheduled.
func (l *BillingLoop) Contains(contractID uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.buckets[l.bucketFor(contractID)][contractID]
	return ok
}

func (l *BillingLoop) bucketFor(contractID uint64) int {
	return int(contractID % uint64(len(l.buckets)))
}

// Start runs the loop until Stop is called.
func (l *BillingLoop) Start(ctx context.Context) {
	go l.run(ctx)
}

// Stop halts the loop and waits for the in-flight tick to finish.
func (l *BillingLoop) Stop() {
	close(l.stop)
	<-l.done
}

func (l *BillingLoop) run(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.billBucket(ctx)
		}
	}
}

// billBucket settles every contract in the current bucket.
func (l *BillingLoop) billBucket(ctx context.Context) {
	l.mu.Lock()
	bucket := l.buckets[int(l.tick%uint64(len(l.buckets)))]
	ids := make([]uint64, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	l.tick++
	l.mu.Unlock()

	for _, id := range ids {
		if err := l.biller.Bill(ctx, id); err != nil {
			l.logger.Error("billing cycle failed",
				zap.Uint64("contract_id", id),
				zap.Error(err))
		}
	}
}
