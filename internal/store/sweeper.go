package store

import (
	"context"
	"sync"
	"time"

	"vacalyser/internal/errors"
)

// Sweeper purges expired sessions from a store at a fixed interval
type Sweeper struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	logger   *errors.Logger
	now      func() time.Time
	onPurge  func(n int)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper that removes sessions idle for longer than ttl.
// onPurge, if set, is called with the number of sessions removed by each run.
func NewSweeper(s Store, ttl, interval time.Duration, logger *errors.Logger, onPurge func(n int)) *Sweeper {
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}
	return &Sweeper{
		store:    s,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		onPurge:  onPurge,
	}
}

// Start runs the sweep loop in a goroutine until Stop is called or ctx ends
func (sw *Sweeper) Start(ctx context.Context) {
	ctx, sw.cancel = context.WithCancel(ctx)
	sw.wg.Add(1)
	go func() {
		defer sw.wg.Done()
		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sw.Sweep(ctx)
			}
		}
	}()
	sw.logger.Debug("Session sweeper started", "ttl", sw.ttl.String(), "interval", sw.interval.String())
}

// Sweep runs one purge pass
func (sw *Sweeper) Sweep(ctx context.Context) int {
	n, err := sw.store.Purge(ctx, sw.now().Add(-sw.ttl))
	if err != nil {
		sw.logger.LogError(err, "Session sweep failed")
		return 0
	}
	if n > 0 {
		sw.logger.Info("Purged expired sessions", "count", n)
	}
	if sw.onPurge != nil {
		sw.onPurge(n)
	}
	return n
}

// Stop ends the sweep loop and waits for it to exit
func (sw *Sweeper) Stop() {
	if sw.cancel != nil {
		sw.cancel()
	}
	sw.wg.Wait()
}
