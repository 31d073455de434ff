// Package scheduler периодически обновляет и сохраняет рабочие наборы источников
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/flybeeper/balises-backend/internal/models"
	"github.com/flybeeper/balises-backend/pkg/utils"
)

// Job цель периодических задач. Реализуется service.Refresher.
type Job interface {
	RefreshStations(ctx context.Context) error
	RefreshReadings(ctx context.Context) ([]*models.Reading, error)
	Persist(ctx context.Context) error
}

// Intervals периодичность задач
type Intervals struct {
	Readings time.Duration
	Stations time.Duration
	Persist  time.Duration
	Timeout  time.Duration // Таймаут одного запуска
}

// Scheduler запускает обновления по расписанию. Каждая задача работает в
// режиме singleton: новый запуск не начинается, пока не закончился предыдущий.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       Job
	intervals Intervals
	logger    *utils.Logger
}

// New создает планировщик
func New(job Job, intervals Intervals, logger *utils.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if intervals.Timeout <= 0 {
		intervals.Timeout = 30 * time.Second
	}
	return &Scheduler{
		scheduler: s,
		job:       job,
		intervals: intervals,
		logger:    logger.WithField("component", "scheduler"),
	}
}

// Start регистрирует задачи и запускает планировщик. Станции и
// наблюдения загружаются сразу, сохранение начинается через интервал.
func (s *Scheduler) Start() error {
	if s.intervals.Readings <= 0 || s.intervals.Stations <= 0 || s.intervals.Persist <= 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}

	if _, err := s.scheduler.Every(s.intervals.Stations).Tag("stations").Do(s.run("stations", s.job.RefreshStations)); err != nil {
		return fmt.Errorf("failed to schedule stations refresh: %w", err)
	}

	if _, err := s.scheduler.Every(s.intervals.Readings).Tag("readings").Do(s.run("readings", func(ctx context.Context) error {
		changed, err := s.job.RefreshReadings(ctx)
		if err == nil && len(changed) > 0 {
			s.logger.WithField("changed", len(changed)).Debug("Readings changed")
		}
		return err
	})); err != nil {
		return fmt.Errorf("failed to schedule readings refresh: %w", err)
	}

	if _, err := s.scheduler.Every(s.intervals.Persist).WaitForSchedule().Tag("persist").Do(s.run("persist", s.job.Persist)); err != nil {
		return fmt.Errorf("failed to schedule persist: %w", err)
	}

	s.scheduler.StartAsync()
	s.logger.WithFields(map[string]interface{}{
		"readings": s.intervals.Readings.String(),
		"stations": s.intervals.Stations.String(),
		"persist":  s.intervals.Persist.String(),
	}).Info("Scheduler started")
	return nil
}

func (s *Scheduler) run(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.intervals.Timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			s.logger.WithFields(map[string]interface{}{
				"job":   name,
				"error": err,
			}).Warn("Scheduled job failed")
		}
	}
}

// Stop останавливает планировщик и ждет завершения запущенных задач
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
