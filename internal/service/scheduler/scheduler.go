package scheduler

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kapu/fclog-bot-go/internal/constants"
	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/kapu/fclog-bot-go/internal/metrics"
	"github.com/kapu/fclog-bot-go/internal/service/cache"
	"github.com/kapu/fclog-bot-go/internal/service/reconcile"
	"github.com/kapu/fclog-bot-go/internal/service/roster"
	"github.com/kapu/fclog-bot-go/internal/service/store"
	"github.com/kapu/fclog-bot-go/internal/util"
	"github.com/kapu/fclog-bot-go/pkg/errors"
	"go.uber.org/zap"
)

// ErrCycleInProgress is returned when a cycle is requested while another one
// still holds the lock.
var ErrCycleInProgress = stderrors.New("cycle already in progress")

// SnapshotStore is the persistence the scheduler drives.
type SnapshotStore interface {
	IsBootstrap(ctx context.Context) (bool, error)
	LoadSnapshot(ctx context.Context) ([]*domain.Member, error)
	Commit(ctx context.Context, req store.CommitRequest) error
}

// EventNotifier delivers committed events.
type EventNotifier interface {
	NotifyAll(ctx context.Context, events []*domain.ChangeEvent, cfg *domain.NotificationConfig)
}

// ConfigSource yields the notification config for the current cycle.
type ConfigSource interface {
	Current(ctx context.Context) (*domain.NotificationConfig, error)
}

// Locker guards against cycles running in other processes.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context), error)
}

// CycleRecorder keeps the last cycle report for operators.
type CycleRecorder interface {
	RecordCycle(ctx context.Context, organizationID string, report *domain.CycleReport) error
}

type Options struct {
	OrganizationID string
	Interval       time.Duration
	FetchTimeout   time.Duration
	PersistTimeout time.Duration
	LockTTL        time.Duration
	RunOnStart     bool
}

// Dependencies groups the collaborators. Locker, Recorder and Metrics are
// optional.
type Dependencies struct {
	Fetcher  roster.Fetcher
	Store    SnapshotStore
	Notifier EventNotifier
	Config   ConfigSource
	Locker   Locker
	Recorder CycleRecorder
	Metrics  *metrics.Metrics
	Clock    util.Clock
}

// Scheduler runs one reconciliation cycle per interval.
type Scheduler struct {
	deps   Dependencies
	opts   Options
	logger *zap.Logger

	running  sync.Mutex
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewScheduler(deps Dependencies, opts Options, logger *zap.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = constants.SchedulerConfig.DefaultInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = constants.SchedulerConfig.FetchTimeout
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = constants.SchedulerConfig.PersistTimeout
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = constants.SchedulerConfig.LockTTL
	}
	if deps.Clock == nil {
		deps.Clock = util.UTCNow
	}
	return &Scheduler{
		deps:   deps,
		opts:   opts,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start runs cycles in the background until Stop is called or ctx is done.
// Cancelling ctx does not abort a cycle that is already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.ticker = time.NewTicker(s.opts.Interval)

	s.logger.Info("Roster scheduler started",
		zap.String("organization_id", s.opts.OrganizationID),
		zap.String("source", s.deps.Fetcher.Source()),
		zap.Duration("interval", s.opts.Interval),
		zap.Bool("run_on_start", s.opts.RunOnStart),
	)

	cycleCtx := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if s.opts.RunOnStart {
			s.tick(cycleCtx)
		}

		for {
			select {
			case <-s.ticker.C:
				s.tick(cycleCtx)
			case <-s.stopCh:
				s.logger.Info("Roster scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Roster scheduler context cancelled")
				return
			}
		}
	}()
}

// Stop halts the ticker and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunCycle(ctx); err != nil && !stderrors.Is(err, ErrCycleInProgress) {
		s.logger.Debug("Cycle ended with error", zap.Error(err))
	}
}

// RunCycle performs fetch, reconcile, commit and notify once. A fetch or
// persistence failure aborts the cycle before anything is delivered.
func (s *Scheduler) RunCycle(ctx context.Context) (*domain.CycleReport, error) {
	report := &domain.CycleReport{
		CycleID:   uuid.NewString(),
		StartedAt: s.deps.Clock(),
	}
	logger := s.logger.With(
		zap.String("cycle_id", report.CycleID),
		zap.String("organization_id", s.opts.OrganizationID),
	)

	if !s.running.TryLock() {
		return s.skip(report, logger, "previous cycle still running"), ErrCycleInProgress
	}
	defer s.running.Unlock()

	if s.deps.Locker != nil {
		release, err := s.deps.Locker.AcquireLock(ctx, s.opts.OrganizationID, s.opts.LockTTL)
		switch {
		case stderrors.Is(err, cache.ErrLockHeld):
			return s.skip(report, logger, "cycle lock held by another process"), ErrCycleInProgress
		case err != nil:
			logger.Warn("Cycle lock unavailable; continuing with in-process guard only", zap.Error(err))
		default:
			defer release(context.WithoutCancel(ctx))
		}
	}

	err := s.runCycle(ctx, report, logger)
	s.finish(ctx, report, logger)
	return report, err
}

func (s *Scheduler) runCycle(ctx context.Context, report *domain.CycleReport, logger *zap.Logger) error {
	fetchCtx, cancelFetch := context.WithTimeout(ctx, s.opts.FetchTimeout)
	fetched, err := s.deps.Fetcher.Fetch(fetchCtx, s.opts.OrganizationID)
	cancelFetch()
	if err != nil {
		if !errors.IsFetchError(err) {
			err = errors.NewFetchError("roster fetch failed", s.opts.OrganizationID, s.deps.Fetcher.Source(), err)
		}
		report.Outcome = domain.CycleFetchFailed
		report.Error = err.Error()
		logger.Error("Roster fetch failed; cycle aborted",
			zap.String("source", s.deps.Fetcher.Source()),
			zap.Error(err),
		)
		return err
	}
	report.Fetched = len(fetched)

	persistCtx, cancelPersist := context.WithTimeout(ctx, s.opts.PersistTimeout)
	defer cancelPersist()

	bootstrap, err := s.deps.Store.IsBootstrap(persistCtx)
	if err != nil {
		return s.persistFailed(report, logger, err)
	}
	previous, err := s.deps.Store.LoadSnapshot(persistCtx)
	if err != nil {
		return s.persistFailed(report, logger, err)
	}
	report.Bootstrap = bootstrap

	at := s.deps.Clock()
	result := reconcile.Reconcile(previous, fetched, bootstrap, at)

	if err := s.deps.Store.Commit(persistCtx, store.CommitRequest{
		Members:        result.Members,
		Events:         result.Events,
		HistoryUpdates: result.HistoryUpdates,
		At:             at,
	}); err != nil {
		return s.persistFailed(report, logger, err)
	}
	report.Events = result.Counts()
	s.deps.Metrics.SetRosterSize(len(result.Members))

	if bootstrap {
		logger.Info("Bootstrap snapshot recorded", zap.Int("members", len(result.Members)))
	}

	if len(result.Events) > 0 {
		cfg, err := s.deps.Config.Current(ctx)
		if err != nil {
			logger.Warn("Notification config unavailable; events recorded without delivery",
				zap.Int("events", len(result.Events)),
				zap.Error(err),
			)
		} else {
			s.deps.Notifier.NotifyAll(ctx, result.Events, cfg)
		}
	}

	report.Outcome = domain.CycleCompleted
	return nil
}

func (s *Scheduler) persistFailed(report *domain.CycleReport, logger *zap.Logger, err error) error {
	if !errors.IsPersistenceError(err) {
		err = errors.NewPersistenceError("store unavailable", "cycle", err)
	}
	report.Outcome = domain.CyclePersistFailed
	report.Error = err.Error()
	logger.Error("Snapshot store failure; cycle aborted without notifications",
		zap.String("severity", "critical"),
		zap.Error(err),
	)
	return err
}

func (s *Scheduler) skip(report *domain.CycleReport, logger *zap.Logger, reason string) *domain.CycleReport {
	report.Outcome = domain.CycleSkipped
	report.FinishedAt = s.deps.Clock()
	logger.Info("Cycle skipped", zap.String("reason", reason))
	s.deps.Metrics.ObserveCycle(report)
	return report
}

func (s *Scheduler) finish(ctx context.Context, report *domain.CycleReport, logger *zap.Logger) {
	report.FinishedAt = s.deps.Clock()
	s.deps.Metrics.ObserveCycle(report)

	fields := []zap.Field{
		zap.String("outcome", string(report.Outcome)),
		zap.Bool("bootstrap", report.Bootstrap),
		zap.Int("fetched", report.Fetched),
		zap.Duration("duration", report.Duration()),
	}
	for kind, n := range report.Events {
		fields = append(fields, zap.Int(kind.String(), n))
	}
	logger.Info("Cycle finished", fields...)

	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.RecordCycle(context.WithoutCancel(ctx), s.opts.OrganizationID, report); err != nil {
			logger.Warn("Failed to record cycle status", zap.Error(err))
		}
	}
}
