package casework

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/domain/casework"
	"caseflow/internal/errs"
	"caseflow/internal/ports"
)

const (
	defaultMonitorBatch   = 200
	defaultMonitorLockKey = "caseflow:deadline-monitor"
	defaultMonitorLockTTL = 50 * time.Second
)

var errMonitorRunning = errors.New("deadline monitor already running")

type MonitorConfig struct {
	Schedule  cron.Schedule
	BatchSize int
	// Lock is optional; without it every replica scans on every tick.
	Lock    ports.MonitorLock
	LockKey string
	LockTTL time.Duration
	Retry   RetryPolicy
	Now     func() time.Time
}

// MonitorResult counts what one scan did. Raced cases were moved by another
// actor between the scan and the write; Skipped cases failed and are picked up
// again on the next tick.
type MonitorResult struct {
	Expired        int
	TimedOut       int
	ReworkExpired  int
	ReworkReverted int
	Raced          int
	Skipped        int
	LockHeld       bool
}

// DeadlineMonitor fires timeout and rework_timeout for cases whose windows
// have passed. Every event goes through Service.TransitionCase.
type DeadlineMonitor struct {
	svc     *Service
	cfg     MonitorConfig
	running atomic.Bool
}

func NewDeadlineMonitor(svc *Service, cfg MonitorConfig) *DeadlineMonitor {
	if cfg.Schedule == nil {
		cfg.Schedule = EverySchedule(time.Minute)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultMonitorBatch
	}
	if cfg.LockKey == "" {
		cfg.LockKey = defaultMonitorLockKey
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultMonitorLockTTL
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &DeadlineMonitor{svc: svc, cfg: cfg}
}

// Start scans on the configured schedule until ctx is cancelled.
func (m *DeadlineMonitor) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m.svc == nil {
		return errors.New("case service is required")
	}
	if !m.running.CompareAndSwap(false, true) {
		return errMonitorRunning
	}
	defer m.running.Store(false)

	ctx = logging.WithAttrs(ctx, slog.String("component", "usecase.deadline_monitor"))
	logging.Info(ctx, "deadline monitor started")

	for {
		now := m.now()
		next := m.cfg.Schedule.Next(now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			logging.Info(ctx, "deadline monitor stopped")
			return nil
		case <-timer.C:
		}

		result, err := m.RunOnce(ctx, m.now())
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logging.Error(ctx, "deadline monitor scan failed", slog.Any("err", errs.Loggable(err)))
		}
		if result.TimedOut+result.ReworkReverted+result.Raced+result.Skipped > 0 {
			logging.Info(ctx, "deadline monitor tick",
				slog.Int("timed_out", result.TimedOut),
				slog.Int("rework_reverted", result.ReworkReverted),
				slog.Int("raced", result.Raced),
				slog.Int("skipped", result.Skipped),
			)
		}
	}
}

// RunOnce performs one scan as of now. A failed listing is returned as an
// error after the other scan has run; per-case failures only count as Skipped.
func (m *DeadlineMonitor) RunOnce(ctx context.Context, now time.Time) (MonitorResult, error) {
	var result MonitorResult
	if err := m.svc.checkReady(ctx); err != nil {
		return result, err
	}
	ctx = logging.WithAttrs(ctx, slog.String("component", "usecase.deadline_monitor"))
	now = now.UTC()

	if m.cfg.Lock != nil {
		release, err := m.cfg.Lock.Acquire(ctx, m.cfg.LockKey, m.cfg.LockTTL)
		if errors.Is(err, ports.ErrLockHeld) {
			logging.Debug(ctx, "deadline monitor lock held elsewhere")
			result.LockHeld = true
			return result, nil
		}
		if err != nil {
			return result, errs.Wrap(err, "acquire monitor lock")
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logging.Warn(ctx, "release monitor lock failed", slog.Any("err", errs.Loggable(err)))
			}
		}()
	}

	var scanErrs []error

	var expired []casework.Case
	err := retry(ctx, m.cfg.Retry, func(ctx context.Context) error {
		var err error
		expired, err = m.svc.repo.ListCasesWithExpiredAllocation(ctx, now, m.cfg.BatchSize)
		return err
	})
	if err != nil {
		scanErrs = append(scanErrs, errs.Wrap(err, "list expired allocations"))
	}
	result.Expired = len(expired)
	for _, c := range expired {
		if err := ctx.Err(); err != nil {
			return result, interrupted(scanErrs, err)
		}
		_, err := m.svc.TransitionCase(ctx, c.ID, casework.Event{
			Type:  casework.EventTimeout,
			Actor: casework.SystemActor,
			At:    now,
		})
		m.count(ctx, &result, c.ID, err, &result.TimedOut)
	}

	window := m.svc.Policy().ReworkWindow
	var rework []casework.Case
	err = retry(ctx, m.cfg.Retry, func(ctx context.Context) error {
		var err error
		rework, err = m.svc.repo.ListCasesWithExpiredRework(ctx, now, window, m.cfg.BatchSize)
		return err
	})
	if err != nil {
		scanErrs = append(scanErrs, errs.Wrap(err, "list expired rework"))
	}
	result.ReworkExpired = len(rework)
	for _, c := range rework {
		if err := ctx.Err(); err != nil {
			return result, interrupted(scanErrs, err)
		}
		_, err := m.svc.TransitionCase(ctx, c.ID, casework.Event{
			Type:  casework.EventReworkTimeout,
			Actor: casework.SystemActor,
			At:    now,
		})
		m.count(ctx, &result, c.ID, err, &result.ReworkReverted)
	}

	return result, errors.Join(scanErrs...)
}

func interrupted(scanErrs []error, err error) error {
	return errors.Join(append(scanErrs, errs.Wrap(err, "deadline scan interrupted"))...)
}

func (m *DeadlineMonitor) count(ctx context.Context, result *MonitorResult, caseID string, err error, done *int) {
	switch {
	case err == nil:
		*done++
	case casework.IsBenignRace(err):
		result.Raced++
	default:
		result.Skipped++
		logging.Warn(ctx, "deadline monitor skipped case",
			slog.String("case_id", caseID),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

func (m *DeadlineMonitor) now() time.Time {
	if m.cfg.Now != nil {
		return m.cfg.Now()
	}
	return m.svc.clock()
}
