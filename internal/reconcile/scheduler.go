// Package reconcile periodically recomputes materialized counters from their
// source tables and prunes expired password reset tokens.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tutorx/internal/observability"
	"tutorx/internal/repository"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule is used when RECONCILE_SCHEDULE is empty.
const DefaultSchedule = "@every 15m"

// ErrAlreadyRunning is returned by RunOnce while another pass is in flight.
var ErrAlreadyRunning = errors.New("reconciliation already running")

// ResetTokenPruner deletes reset tokens that expired before a cutoff.
type ResetTokenPruner interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Report counts the rows corrected by one pass.
type Report struct {
	TutorAggregates    int           `json:"tutorAggregates"`
	LikeCounters       int           `json:"likeCounters"`
	FollowCounters     int           `json:"followCounters"`
	CommentRefs        int           `json:"commentRefs"`
	ExpiredResetTokens int64         `json:"expiredResetTokens"`
	Duration           time.Duration `json:"duration"`
}

// Scheduler runs reconciliation passes on a cron schedule.
type Scheduler struct {
	repo     repository.ReconcileRepository
	resets   ResetTokenPruner
	schedule string
	logger   *slog.Logger
	now      func() time.Time

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	busy    atomic.Bool
}

// New builds a Scheduler. resets may be nil.
func New(repo repository.ReconcileRepository, resets ResetTokenPruner, schedule string, logger *slog.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		repo:     repo,
		resets:   resets,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
		cron:     cron.New(),
	}
}

// Schedule returns the cron expression in use.
func (s *Scheduler) Schedule() string { return s.schedule }

// Start registers the job and starts the cron loop. It stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			s.logger.Error("reconciliation failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("schedule reconcile job: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("reconciliation scheduled", slog.String("schedule", s.schedule))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the cron loop and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
}

// RunOnce performs a single pass. Every step runs even if an earlier one
// fails; the returned error joins all step failures.
func (s *Scheduler) RunOnce(ctx context.Context) (*Report, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer s.busy.Store(false)

	start := s.now()
	report := &Report{}
	var errs []error

	steps := []struct {
		kind string
		run  func(context.Context) (int, error)
		dst  *int
	}{
		{"tutor_aggregates", s.repo.RecomputeTutorAggregates, &report.TutorAggregates},
		{"like_counters", s.repo.RecomputeLikeCounters, &report.LikeCounters},
		{"follow_counters", s.repo.RecomputeFollowCounters, &report.FollowCounters},
		{"comment_refs", s.repo.RepairCommentRefs, &report.CommentRefs},
	}
	for _, step := range steps {
		n, err := step.run(ctx)
		*step.dst = n
		if n > 0 {
			observability.ReconcileFixes.WithLabelValues(step.kind).Add(float64(n))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.kind, err))
		}
	}

	if s.resets != nil {
		n, err := s.resets.DeleteExpired(ctx, s.now())
		report.ExpiredResetTokens = n
		if err != nil {
			errs = append(errs, fmt.Errorf("expired reset tokens: %w", err))
		}
	}

	report.Duration = s.now().Sub(start)
	err := errors.Join(errs...)
	if err != nil {
		observability.ReconcileRuns.WithLabelValues("error").Inc()
	} else {
		observability.ReconcileRuns.WithLabelValues("ok").Inc()
	}

	s.logger.Info("reconciliation pass finished",
		slog.Int("tutor_aggregates", report.TutorAggregates),
		slog.Int("like_counters", report.LikeCounters),
		slog.Int("follow_counters", report.FollowCounters),
		slog.Int("comment_refs", report.CommentRefs),
		slog.Int64("expired_reset_tokens", report.ExpiredResetTokens),
		slog.Duration("duration", report.Duration),
	)
	return report, err
}
