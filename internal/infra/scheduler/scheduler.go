package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"birthday_notification_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrRunInProgress is returned by the manual triggers when a refresh or
// delivery run is already executing; the caller no-ops rather than
// queueing.
var ErrRunInProgress = fmt.Errorf("a scheduled run is already in progress")

// State is the process-wide schedule bookkeeping. LastDeliveryRunDate
// is a local calendar date string, which is what makes the once-per-day
// guarantee robust to restarts and DST transitions.
type State struct {
	LastRefreshAt       time.Time `json:"last_refresh_at"`
	LastDeliveryRunDate string    `json:"last_delivery_run_date"`
}

// BirthdayScheduler drives the two timers: the periodic window refresh
// and the once-per-local-day delivery run. Both cron jobs and both
// manual triggers share a single TryLock re-entrancy guard.
type BirthdayScheduler struct {
	cronEngine      *cron.Cron
	svc             *app.BirthdayService
	logger          *logrus.Logger
	location        *time.Location
	refreshInterval time.Duration
	deliveryHour    int
	deliveryMinute  int
	now             func() time.Time

	runMu   sync.Mutex // re-entrancy guard, TryLock only
	stateMu sync.Mutex
	state   State
}

func NewBirthdayScheduler(
	svc *app.BirthdayService,
	logger *logrus.Logger,
	location *time.Location,
	refreshInterval time.Duration,
	deliveryHour, deliveryMinute int,
) *BirthdayScheduler {
	return &BirthdayScheduler{
		cronEngine:      cron.New(cron.WithLocation(location)),
		svc:             svc,
		logger:          logger,
		location:        location,
		refreshInterval: refreshInterval,
		deliveryHour:    deliveryHour,
		deliveryMinute:  deliveryMinute,
		now:             func() time.Time { return time.Now().In(location) },
	}
}

func (s *BirthdayScheduler) Start() {
	s.logger.Info("Starting birthday scheduler...")

	// Refresh once at process start so the dashboard is populated
	// immediately.
	if err := s.runRefresh(); err != nil {
		s.logger.Errorf("Initial refresh failed: %v", err)
	}

	spec := fmt.Sprintf("@every %s", s.refreshInterval)
	if _, err := s.cronEngine.AddFunc(spec, func() {
		s.logger.Info("Cron job triggered for window refresh.")
		if err := s.runRefresh(); err != nil && err != ErrRunInProgress {
			s.logger.Errorf("Error during scheduled refresh: %v", err)
		}
	}); err != nil {
		s.logger.Fatalf("FATAL: Could not add refresh cron job: %v", err)
	}

	// The delivery job runs every minute but only proceeds once per
	// local calendar day, at or after the configured send time.
	if _, err := s.cronEngine.AddFunc("* * * * *", func() {
		now := s.now()
		s.stateMu.Lock()
		lastRun := s.state.LastDeliveryRunDate
		s.stateMu.Unlock()

		if !ShouldRunDelivery(now, lastRun, s.deliveryHour, s.deliveryMinute) {
			return
		}
		s.logger.Infof("Delivery gate open for %s. Running delivery.", now.Format("2006-01-02"))
		if err := s.runDelivery(); err != nil && err != ErrRunInProgress {
			s.logger.Errorf("Error during scheduled delivery: %v", err)
		}
	}); err != nil {
		s.logger.Fatalf("FATAL: Could not add delivery cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Info("Birthday scheduler started with jobs.")
}

// ShouldRunDelivery implements the once-per-local-day gate: the current
// local date must differ from the last run date and the local
// time-of-day must have reached the configured send time.
func ShouldRunDelivery(now time.Time, lastRunDate string, hour, minute int) bool {
	today := now.Format("2006-01-02")
	if today == lastRunDate {
		return false
	}
	sendAt := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	return !now.Before(sendAt)
}

// RunRefreshNow is the manual trigger used by the dashboard. It runs
// the same refresh logic synchronously under the same guard.
func (s *BirthdayScheduler) RunRefreshNow() error {
	return s.runRefresh()
}

// RunDeliveryNow is the manual delivery trigger. It shares the guard
// and the once-per-day bookkeeping with the cron path; the sent ledger
// still deduplicates individual messages.
func (s *BirthdayScheduler) RunDeliveryNow() error {
	return s.runDelivery()
}

func (s *BirthdayScheduler) runRefresh() error {
	if !s.runMu.TryLock() {
		s.logger.Info("Refresh trigger fired while a run is in progress. Skipping.")
		return ErrRunInProgress
	}
	defer s.runMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := s.svc.Refresh(ctx); err != nil {
		return err
	}
	s.stateMu.Lock()
	s.state.LastRefreshAt = s.now()
	s.stateMu.Unlock()
	return nil
}

func (s *BirthdayScheduler) runDelivery() error {
	if !s.runMu.TryLock() {
		s.logger.Info("Delivery trigger fired while a run is in progress. Skipping.")
		return ErrRunInProgress
	}
	defer s.runMu.Unlock()

	// Mark the day before doing the work: at most one delivery run per
	// local date even if the process restarts mid-run. Individual
	// messages stay protected by the sent ledger either way.
	now := s.now()
	s.stateMu.Lock()
	s.state.LastDeliveryRunDate = now.Format("2006-01-02")
	s.stateMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Refresh first so today's messages exist before sending.
	if err := s.svc.Refresh(ctx); err != nil {
		s.logger.Errorf("Refresh before delivery failed, delivering from existing window: %v", err)
	} else {
		s.stateMu.Lock()
		s.state.LastRefreshAt = s.now()
		s.stateMu.Unlock()
	}

	return s.svc.Deliver(ctx)
}

// State returns a copy of the schedule bookkeeping for the status API.
func (s *BirthdayScheduler) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *BirthdayScheduler) Stop() {
	s.logger.Info("Stopping birthday scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Birthday scheduler gracefully stopped.")
}
