// Package checks contains the scheduled monitoring jobs. Each check owns a
// run loop started by App and records its executions as CheckRun rows.
package checks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	app_errors "player-watch/internal/errors"
	"player-watch/internal/models"
	"player-watch/internal/notify"
	"player-watch/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TriggerChannel is the pub/sub channel used to request an immediate run.
// The payload is the check name.
const TriggerChannel = "checks:trigger"

// Check is the lifecycle contract every scheduled check satisfies.
type Check interface {
	Name() string
	Start()
	Stop(ctx context.Context)
	// TryRun requests an immediate run. Returns ErrTaskInProgress when a
	// run of this check is already in flight.
	TryRun() error
}

// RunStats is filled in by a check execution and persisted on its CheckRun.
type RunStats struct {
	DevicesSeen int
	RowsWritten int
}

// service carries the scheduling machinery shared by all checks: the ticker
// loop, the run-now subscription, the in-flight guard and run bookkeeping.
type service struct {
	name     string
	interval time.Duration
	db       *gorm.DB
	store    store.Store
	alerter  notify.Alerter
	execute  func(ctx context.Context, stats *RunStats) error
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  atomic.Bool
}

func newService(name string, interval time.Duration, db *gorm.DB, s store.Store, alerter notify.Alerter, execute func(context.Context, *RunStats) error) *service {
	return &service{
		name:     name,
		interval: interval,
		db:       db,
		store:    s,
		alerter:  alerter,
		execute:  execute,
		stopChan: make(chan struct{}),
	}
}

// Name returns the check name used in run history and trigger payloads.
func (s *service) Name() string {
	return s.name
}

// Start begins the periodic execution loop.
func (s *service) Start() {
	logrus.Debugf("Starting check %s (every %s)...", s.name, s.interval)
	s.wg.Add(1)
	go s.runLoop()
}

// Stop stops the loop, respecting the context for shutdown timeout.
func (s *service) Stop(ctx context.Context) {
	close(s.stopChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logrus.Infof("Check %s stopped gracefully.", s.name)
	case <-ctx.Done():
		logrus.Warnf("Check %s stop timed out.", s.name)
	}
}

// TryRun publishes a run-now trigger for this check.
func (s *service) TryRun() error {
	if s.running.Load() {
		return app_errors.ErrTaskInProgress
	}
	if err := s.store.Publish(TriggerChannel, []byte(s.name)); err != nil {
		return app_errors.ErrInternalServer
	}
	return nil
}

func (s *service) runLoop() {
	defer s.wg.Done()

	var triggers <-chan *store.Message
	sub, err := s.store.Subscribe(TriggerChannel)
	if err != nil {
		logrus.Errorf("Check %s: failed to subscribe to trigger channel: %v", s.name, err)
	} else {
		defer sub.Close()
		triggers = sub.Channel()
	}

	s.runOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case msg, ok := <-triggers:
			if !ok {
				triggers = nil
				continue
			}
			if string(msg.Payload) == s.name {
				s.runOnce()
			}
		case <-s.stopChan:
			return
		}
	}
}

// runOnce executes the check exactly once, skipping when a previous run has
// not finished yet.
func (s *service) runOnce() {
	if !s.running.CompareAndSwap(false, true) {
		logrus.Warnf("Check %s: previous run still in progress, skipping.", s.name)
		return
	}
	defer s.running.Store(false)

	run := &models.CheckRun{
		RunID:     uuid.NewString(),
		CheckName: s.name,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now(),
	}
	if err := s.db.Create(run).Error; err != nil {
		logrus.Errorf("Check %s: failed to record run start: %v", s.name, err)
	}

	log := logrus.WithFields(logrus.Fields{"check": s.name, "run_id": run.RunID})
	log.Info("Check run started")

	stats := &RunStats{}
	execErr := s.execute(context.Background(), stats)

	finishedAt := time.Now()
	run.FinishedAt = &finishedAt
	run.DevicesSeen = stats.DevicesSeen
	run.RowsWritten = stats.RowsWritten
	if execErr != nil {
		run.Status = models.RunStatusFailed
		run.Error = execErr.Error()
		log.Errorf("Check run failed after %s: %v", finishedAt.Sub(run.StartedAt), execErr)
		if s.alerter != nil {
			alertCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			if err := s.alerter.Alert(alertCtx, fmt.Sprintf("Check %s failed: %v", s.name, execErr)); err != nil {
				log.Errorf("Failed to send failure alert: %v", err)
			}
			cancel()
		}
	} else {
		run.Status = models.RunStatusFinished
		log.WithFields(logrus.Fields{
			"devices_seen": stats.DevicesSeen,
			"rows_written": stats.RowsWritten,
			"duration":     finishedAt.Sub(run.StartedAt).String(),
		}).Info("Check run finished")
	}
	if err := s.db.Save(run).Error; err != nil {
		logrus.Errorf("Check %s: failed to record run result: %v", s.name, err)
	}
}
