package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/timothy-holmes/ht-tracker/internal/config"
	"github.com/timothy-holmes/ht-tracker/internal/logging"
	"github.com/timothy-holmes/ht-tracker/internal/metrics"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/fetcher"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/repository"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
)

// CategoryPersistence labels cycles that fetched but failed to commit.
const CategoryPersistence = "persistence"

// Store is the write side of the temperature repository.
type Store interface {
	Append(ctx context.Context, readings []types.Reading, devices []types.Device) error
}

// Publisher receives committed batches. Failures are logged and never fail a cycle.
type Publisher interface {
	PublishReadings(readings []types.Reading) error
	PublishStatus(status Status) error
}

// Scheduler runs fetch cycles on a fixed interval and on demand. Cycles never
// overlap; a failed cycle is simply followed by the next one.
type Scheduler struct {
	interval  time.Duration
	timeout   time.Duration
	fetcher   fetcher.Fetcher
	store     Store
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	cron *gocron.Scheduler

	cycleMu sync.Mutex

	mu     sync.RWMutex
	status Status
}

// New builds a scheduler. publisher may be nil.
func New(cfg config.Config, f fetcher.Fetcher, store Store, publisher Publisher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	interval := cfg.UpdateInterval
	if interval <= 0 {
		interval = config.DefaultUpdateInterval
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scheduler{
		interval:  interval,
		timeout:   timeout,
		fetcher:   f,
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		cron:      gocron.NewScheduler(time.UTC),
		status:    Status{State: StateIdle, Interval: interval.String()},
	}
}

// Start schedules a cycle every interval, the first one immediately, and
// returns without waiting for it.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.Every(s.interval).SingletonMode().Do(func() {
		// Errors are recorded in Status and logged by Tick; the next tick retries.
		_ = s.Tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule fetch job: %w", err)
	}
	s.cron.StartAsync()
	s.logger.Info("scheduler started", "interval", s.interval.String())
	return nil
}

// Stop cancels future ticks. A cycle already running is allowed to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

// Status returns a snapshot safe to read from any goroutine.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Tick runs one fetch cycle and returns its error, if any. The cycle is
// detached from ctx cancellation and bounded by the fetch timeout.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	cycleID := uuid.NewString()
	start := s.now()
	logger := s.logger.With("cycle_id", cycleID)

	s.update(func(st *Status) {
		st.State = StateFetching
		st.LastCycleID = cycleID
		st.LastAttempt = start
		st.Cycles++
	})

	res, err := s.fetcher.Fetch(ctx)
	if err != nil {
		category := fetcher.CategoryOf(err)
		s.fail(logger, start, category, err)
		return fmt.Errorf("fetch: %w", err)
	}

	s.update(func(st *Status) { st.State = StateCommitting })

	if err := s.store.Append(ctx, res.Readings, res.Devices); err != nil {
		s.fail(logger, start, CategoryPersistence, err)
		return fmt.Errorf("append: %w", err)
	}

	done := s.now()
	s.update(func(st *Status) {
		st.State = StateIdle
		st.LastSuccess = done
		st.LastError = ""
		st.LastReadings = len(res.Readings)
	})

	metrics.ObserveFetchCycle(metrics.ResultSuccess, done.Sub(start))
	metrics.AddReadingsIngested(len(res.Readings))
	metrics.SetLastSuccess(done)

	logger.Info("fetch cycle committed",
		"readings", len(res.Readings),
		"devices", len(res.Devices),
		"duration_ms", done.Sub(start).Milliseconds(),
	)

	s.publish(logger, res.Readings)
	return nil
}

func (s *Scheduler) fail(logger *slog.Logger, start time.Time, category string, err error) {
	end := s.now()
	s.update(func(st *Status) {
		st.State = StateFailed
		st.LastFailure = end
		st.LastError = err.Error()
		st.Failures++
	})

	metrics.ObserveFetchCycle(metrics.ResultError, end.Sub(start))
	metrics.IncFetchError(category)

	var pe *repository.PersistenceError
	if errors.As(err, &pe) {
		logger.Error("fetch cycle failed to commit", "op", pe.Op, "error", err)
	} else {
		logger.Error("fetch cycle failed", "category", category, "error", err)
	}

	s.update(func(st *Status) { st.State = StateIdle })
	s.publishStatus(logger)
}

func (s *Scheduler) publish(logger *slog.Logger, readings []types.Reading) {
	if s.publisher == nil {
		return
	}
	if len(readings) > 0 {
		if err := s.publisher.PublishReadings(readings); err != nil {
			logger.Warn("publish readings failed", "error", err)
		}
	}
	s.publishStatus(logger)
}

func (s *Scheduler) publishStatus(logger *slog.Logger) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishStatus(s.Status()); err != nil {
		logger.Warn("publish status failed", "error", err)
	}
}

func (s *Scheduler) update(fn func(*Status)) {
	s.mu.Lock()
	fn(&s.status)
	s.mu.Unlock()
}
