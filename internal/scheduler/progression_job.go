package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angel0101P/Bot-SusuSemanal/internal/lock"
	"github.com/angel0101P/Bot-SusuSemanal/internal/metrics"
	"github.com/angel0101P/Bot-SusuSemanal/internal/plan"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SweepLockKey ключ блокировки еженедельного прохода
const SweepLockKey = "sweep:weekly"

// ProgressionJob еженедельно продвигает активные планы
type ProgressionJob struct {
	engine  *plan.Engine
	locker  lock.Locker
	metrics *metrics.Metrics
	logger  *zap.Logger
	ttl     time.Duration
}

// NewProgressionJob создает задачу продвижения планов
func NewProgressionJob(engine *plan.Engine, locker lock.Locker, m *metrics.Metrics, ttl time.Duration, logger *zap.Logger) *ProgressionJob {
	return &ProgressionJob{
		engine:  engine,
		locker:  locker,
		metrics: m,
		logger:  logger,
		ttl:     ttl,
	}
}

// Name имя задачи
func (j *ProgressionJob) Name() string {
	return "weekly_progression"
}

// Run выполняет один проход. Если проход уже идет, запуск пропускается.
func (j *ProgressionJob) Run(ctx context.Context) error {
	runID := uuid.New()
	logger := j.logger.With(zap.String("run_id", runID.String()))

	release, err := j.locker.TryLock(ctx, SweepLockKey, j.ttl)
	if errors.Is(err, lock.ErrAlreadyLocked) {
		j.metrics.RecordSweepSkipped()
		logger.Warn("проход счетчика уже выполняется, запуск пропущен")
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка блокировки прохода: %w", err)
	}
	defer release()

	started := time.Now()
	logger.Info("запуск еженедельного прохода")

	result, err := j.engine.Progress(ctx, plan.ScopeAutomatic)
	j.metrics.ObserveSweep(time.Since(started))
	if err != nil {
		return fmt.Errorf("ошибка еженедельного прохода: %w", err)
	}

	if result.Paused {
		logger.Info("счетчик на паузе, планы не продвинуты")
		return nil
	}
	logger.Info("еженедельный проход завершен",
		zap.Int("advanced", len(result.Advanced)),
		zap.Int("completed", len(result.Completed)),
		zap.Duration("duration", time.Since(started)))
	return nil
}
