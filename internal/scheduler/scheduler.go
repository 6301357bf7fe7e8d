package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Scheduler управляет запуском периодических задач
type Scheduler struct {
	logger *zap.Logger
	jobs   []Job
}

// Job интерфейс для периодических задач
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// NewScheduler создает новый планировщик задач
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger: logger,
		jobs:   make([]Job, 0),
	}
}

// AddJob добавляет задачу в планировщик
func (s *Scheduler) AddJob(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start запускает задачи через firstRun, затем каждые interval, пока ctx не отменен.
// Задачи выполняются последовательно, следующий запуск не начинается до завершения предыдущего.
func (s *Scheduler) Start(ctx context.Context, firstRun, interval time.Duration) {
	s.logger.Info("запуск планировщика задач",
		zap.Duration("first_run", firstRun),
		zap.Duration("interval", interval),
		zap.Int("jobs_count", len(s.jobs)))

	timer := time.NewTimer(firstRun)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.logger.Info("остановка планировщика задач")
		return
	case <-timer.C:
		s.runJobs(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("остановка планировщика задач")
			return
		case <-ticker.C:
			s.runJobs(ctx)
		}
	}
}

// runJobs запускает все зарегистрированные задачи
func (s *Scheduler) runJobs(ctx context.Context) {
	for _, job := range s.jobs {
		s.logger.Debug("запуск задачи", zap.String("job", job.Name()))

		if err := s.runJob(ctx, job); err != nil {
			s.logger.Error("ошибка выполнения задачи",
				zap.Error(err),
				zap.String("job", job.Name()))
		}
	}
}

// runJob изолирует панику задачи, чтобы планировщик продолжил работу
func (s *Scheduler) runJob(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("паника в задаче %s: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}
