package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// PollingScheduler drives the two timers of an online payment session: the
// repeating status check and the expiry countdown. Both are cancelled
// together by a single Stop, so a torn-down session can never keep firing
// network calls. A CAS guard enforces at most one in-flight check.
type PollingScheduler struct {
	checkInterval time.Duration
	countdownTick time.Duration
	budget        time.Duration

	check    func(ctx context.Context)
	onExpire func()
	logger   *zap.Logger

	isChecking atomic.Bool
	remaining  atomic.Int64 // seconds left on the countdown
	stopped    atomic.Bool
	stopOnce   sync.Once
	stopCh     chan struct{}
	cancel     context.CancelFunc
}

// NewPollingScheduler creates a scheduler. check runs every checkInterval
// while the session is polling; onExpire fires once when budget elapses
// without a terminal signal.
func NewPollingScheduler(checkInterval, budget time.Duration, check func(ctx context.Context), onExpire func(), logger *zap.Logger) *PollingScheduler {
	s := &PollingScheduler{
		checkInterval: checkInterval,
		countdownTick: time.Second,
		budget:        budget,
		check:         check,
		onExpire:      onExpire,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
	s.remaining.Store(int64(budget / time.Second))
	return s
}

// Start launches both timers. The countdown never restarts; a retry needs a
// fresh intent and a fresh scheduler.
func (s *PollingScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.runChecks(ctx)
	go s.runCountdown()
}

func (s *PollingScheduler) runChecks(ctx context.Context) {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.stopped.Load() {
				return
			}
			// Skip the tick if the previous check is still in flight.
			if !s.isChecking.CompareAndSwap(false, true) {
				continue
			}
			go func() {
				defer s.isChecking.Store(false)
				s.check(ctx)
			}()
		}
	}
}

func (s *PollingScheduler) runCountdown() {
	ticker := time.NewTicker(s.countdownTick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.stopped.Load() {
				return
			}
			if s.remaining.Add(-1) > 0 {
				continue
			}
			s.logger.Info("Payment countdown reached zero")
			onExpire := s.onExpire
			s.Stop()
			if onExpire != nil {
				onExpire()
			}
			return
		}
	}
}

// Stop cancels both timers. Idempotent; ticks after Stop have no effect.
func (s *PollingScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		close(s.stopCh)
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Stopped reports whether Stop has been called.
func (s *PollingScheduler) Stopped() bool {
	return s.stopped.Load()
}

// SecondsRemaining returns the countdown balance, never below zero.
func (s *PollingScheduler) SecondsRemaining() int {
	remaining := s.remaining.Load()
	if remaining < 0 {
		return 0
	}
	return int(remaining)
}
