package managedcollection

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/ironbee-oss/rulecore/arena"
	"github.com/ironbee-oss/rulecore/logging"
)

// SchedulerConfig configures a background persistence flusher.
type SchedulerConfig struct {
	// Schedule is a 6-field (seconds-first) cron expression, e.g.
	// "*/30 * * * * *" flushes every 30 seconds, or an "@every 30s"
	// descriptor.
	Schedule string
	// FlushesPerSecond caps how often FlushFunc may actually run, so a
	// dense schedule or a burst of manual Flush calls cannot overwhelm the
	// backing store.
	FlushesPerSecond float64
	Burst            int
}

// DefaultSchedulerConfig flushes every 30 seconds, rate-limited to one
// flush per second with a burst of two.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Schedule:         "*/30 * * * * *",
		FlushesPerSecond: 1,
		Burst:            2,
	}
}

// FlushFunc performs one persistence flush outside the normal TX-end
// persist_all path, e.g. for long-lived background collections that
// accumulate writes between rule-engine transactions.
type FlushFunc func(ctx context.Context) error

// Scheduler periodically invokes a FlushFunc on a cron schedule, pacing
// attempts with a token-bucket limiter so a dense schedule cannot flush
// faster than the backing store can absorb.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	limiter *rate.Limiter
	flush   FlushFunc
	logger  *logging.Logger
	lastErr error
}

// NewScheduler builds a scheduler that calls flush on cfg.Schedule, no more
// often than cfg.FlushesPerSecond allows. logger may be nil.
func NewScheduler(cfg SchedulerConfig, flush FlushFunc, logger *logging.Logger) (*Scheduler, error) {
	if cfg.FlushesPerSecond <= 0 {
		cfg.FlushesPerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.FlushesPerSecond)
		if cfg.Burst == 0 {
			cfg.Burst = 1
		}
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		limiter: rate.NewLimiter(rate.Limit(cfg.FlushesPerSecond), cfg.Burst),
		flush:   flush,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, s.runFlush); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the cron schedule in the background. Call Stop to halt it.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron schedule without waiting. The returned context is done
// once any in-flight flush has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Flush runs one flush immediately, subject to the rate limiter, bounded by
// ctx. Useful for an explicit operator-triggered flush outside the cron
// schedule.
func (s *Scheduler) Flush(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.flush(ctx)
}

func (s *Scheduler) runFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.Flush(ctx)

	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil && s.logger != nil {
		s.logger.WithError(err).Error("managed collection scheduled flush failed")
	}
}

// LastError returns the error from the most recent scheduled flush attempt,
// or nil if the last attempt (if any) succeeded.
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// PersistAllFlusher adapts a TX's PersistAll into a FlushFunc, rebuilding
// its arena for each scheduled run since arenas are single-use.
func PersistAllFlusher(tx *TX) FlushFunc {
	return func(ctx context.Context) error {
		ar := arena.New()
		defer ar.Release()
		return tx.PersistAll(ctx, ar)
	}
}
