// Package plan реализует движок планов еженедельных платежей: назначение,
// пересчет, продвижение счетчика недель и глобальную паузу.
//
// Все изменяющие операции выполняются в одной транзакции и первыми берут
// блокировку строки global_config, поэтому проход счетчика и пересчет недель
// никогда не пересекаются. Внутри процесса их дополнительно сериализует мьютекс.
package plan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angel0101P/Bot-SusuSemanal/internal/metrics"
	"github.com/angel0101P/Bot-SusuSemanal/internal/store"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"go.uber.org/zap"
)

// Scope режим продвижения счетчика
type Scope string

const (
	// ScopeAutomatic еженедельный проход планировщика
	ScopeAutomatic Scope = "automatic"
	// ScopeManual ручное продвижение с учетом паузы
	ScopeManual Scope = "manual"
	// ScopeForced ручное продвижение без учета паузы
	ScopeForced Scope = "forced"
)

// Notifier получает уведомления о продвижении планов.
// Вызывается после фиксации транзакции.
type Notifier interface {
	PlanProgressed(ctx context.Context, plan *models.PaymentPlan, scope Scope)
	PlanCompleted(ctx context.Context, plan *models.PaymentPlan)
}

// ProgressResult итог одного прохода
type ProgressResult struct {
	Scope     Scope
	Paused    bool
	Advanced  []*models.PaymentPlan
	Completed []*models.PaymentPlan
}

// Affected количество затронутых планов
func (r *ProgressResult) Affected() int {
	return len(r.Advanced) + len(r.Completed)
}

// AssignResult итог назначения товаров клиенту
type AssignResult struct {
	Plan     *models.PaymentPlan
	Replaced bool
}

// Status состояние счетчика для панели администратора
type Status struct {
	Config models.GlobalConfig
	Stats  models.PlanStats
}

// Engine движок планов
type Engine struct {
	store    store.Store
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewEngine создает движок планов
func NewEngine(st store.Store, notifier Notifier, m *metrics.Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		store:    st,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock подменяет источник времени
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Assign назначает клиенту товары, заменяя активный план и обнуляя прогресс
func (e *Engine) Assign(ctx context.Context, userID int64, quantities models.Quantities) (*AssignResult, error) {
	for id, n := range quantities {
		if n < 0 {
			return nil, fmt.Errorf("%w: отрицательное количество товара %d", models.ErrInvalidInput, id)
		}
	}
	items := quantities.Positive()
	if len(items) == 0 {
		return nil, fmt.Errorf("назначение пользователю %d: %w", userID, models.ErrInvalidAssignment)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var result *AssignResult
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		cfg, err := tx.Config().GetForUpdate(ctx)
		if err != nil {
			return err
		}

		if _, err := tx.User().GetByID(ctx, userID); err != nil {
			return err
		}

		prices, err := tx.Product().ActivePrices(ctx, items.ProductIDs())
		if err != nil {
			return err
		}
		for id := range items {
			if _, ok := prices[id]; !ok {
				return fmt.Errorf("%w: товар %d не найден или снят с продажи", models.ErrInvalidInput, id)
			}
		}

		total, weekly := Calculate(items, prices, cfg.WeeksDefault)
		now := e.now()

		existing, err := tx.Plan().GetActiveByUser(ctx, userID)
		switch {
		case errors.Is(err, models.ErrNotFound):
			p := &models.PaymentPlan{
				UserID:             userID,
				Quantities:         items,
				Total:              total,
				WeeksTotal:         cfg.WeeksDefault,
				WeeklyPayment:      weekly,
				Status:             models.PlanStatusActive,
				PausedIndividually: !cfg.CounterActive,
				StartedAt:          now,
			}
			if err := tx.Plan().Create(ctx, p); err != nil {
				return err
			}
			result = &AssignResult{Plan: p}
			return nil
		case err != nil:
			return err
		}

		existing.Quantities = items
		existing.Total = total
		existing.WeeksTotal = cfg.WeeksDefault
		existing.WeeklyPayment = weekly
		existing.WeeksCompleted = 0
		existing.StartedAt = now
		existing.LastProgressAt = nil
		if err := tx.Plan().Update(ctx, existing); err != nil {
			return err
		}
		result = &AssignResult{Plan: existing, Replaced: true}
		return nil
	})
	if err != nil {
		e.logger.Error("ошибка назначения плана", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("ошибка назначения плана: %w", err)
	}

	e.logger.Info("план назначен",
		zap.Int64("user_id", userID),
		zap.Int64("plan_id", result.Plan.ID),
		zap.Bool("replaced", result.Replaced),
		zap.String("total", result.Plan.Total.StringFixed(2)),
		zap.Int("weeks", result.Plan.WeeksTotal))

	return result, nil
}

// Progress продвигает активные планы на одну неделю
func (e *Engine) Progress(ctx context.Context, scope Scope) (*ProgressResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := &ProgressResult{Scope: scope}
	active := 0
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		result.Advanced, result.Completed, result.Paused = nil, nil, false

		cfg, err := tx.Config().GetForUpdate(ctx)
		if err != nil {
			return err
		}
		if scope != ScopeForced && !cfg.CounterActive {
			result.Paused = true
			return nil
		}

		plans, err := tx.Plan().ListActive(ctx)
		if err != nil {
			return err
		}
		active = len(plans)

		now := e.now()
		for _, p := range plans {
			if scope != ScopeForced && p.PausedIndividually {
				continue
			}
			if p.WeeksCompleted >= p.WeeksTotal {
				continue
			}

			p.WeeksCompleted++
			p.LastProgressAt = &now
			if p.WeeksCompleted == p.WeeksTotal {
				p.Status = models.PlanStatusCompleted
			}
			if err := tx.Plan().Update(ctx, p); err != nil {
				return err
			}

			if p.Status == models.PlanStatusCompleted {
				result.Completed = append(result.Completed, p)
			} else {
				result.Advanced = append(result.Advanced, p)
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Error("ошибка продвижения планов", zap.String("scope", string(scope)), zap.Error(err))
		return nil, fmt.Errorf("ошибка продвижения планов: %w", err)
	}

	if result.Paused {
		e.logger.Info("счетчик на паузе, продвижение пропущено", zap.String("scope", string(scope)))
		return result, nil
	}

	e.metrics.RecordProgress(string(scope), result.Affected(), len(result.Completed))
	e.metrics.SetActivePlans(active - len(result.Completed))
	e.logger.Info("планы продвинуты",
		zap.String("scope", string(scope)),
		zap.Int("advanced", len(result.Advanced)),
		zap.Int("completed", len(result.Completed)))

	if e.notifier != nil {
		for _, p := range result.Advanced {
			e.notifier.PlanProgressed(ctx, p, scope)
		}
		for _, p := range result.Completed {
			e.notifier.PlanCompleted(ctx, p)
		}
	}

	return result, nil
}

// PauseGlobal ставит счетчик на паузу вместе со всеми активными планами
func (e *Engine) PauseGlobal(ctx context.Context) (int, error) {
	return e.setCounter(ctx, false)
}

// ResumeGlobal снимает паузу со счетчика и всех активных планов
func (e *Engine) ResumeGlobal(ctx context.Context) (int, error) {
	return e.setCounter(ctx, true)
}

func (e *Engine) setCounter(ctx context.Context, active bool) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	affected := 0
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		cfg, err := tx.Config().GetForUpdate(ctx)
		if err != nil {
			return err
		}
		cfg.CounterActive = active
		cfg.UpdatedAt = e.now()
		if err := tx.Config().Update(ctx, cfg); err != nil {
			return err
		}
		affected, err = tx.Plan().SetPausedForActive(ctx, !active)
		return err
	})
	if err != nil {
		e.logger.Error("ошибка изменения паузы счетчика", zap.Bool("active", active), zap.Error(err))
		return 0, fmt.Errorf("ошибка изменения паузы счетчика: %w", err)
	}

	e.logger.Info("состояние счетчика изменено", zap.Bool("active", active), zap.Int("plans", affected))
	return affected, nil
}

// ReconfigureWeeks меняет количество недель и пересчитывает все активные планы
// по текущим ценам. Прогресс всех планов обнуляется.
func (e *Engine) ReconfigureWeeks(ctx context.Context, weeks int) (int, error) {
	if weeks < 1 {
		return 0, fmt.Errorf("%w: количество недель должно быть не меньше 1, получено %d", models.ErrInvalidInput, weeks)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	updated := 0
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		updated = 0

		cfg, err := tx.Config().GetForUpdate(ctx)
		if err != nil {
			return err
		}
		now := e.now()
		cfg.WeeksDefault = weeks
		cfg.UpdatedAt = now
		if err := tx.Config().Update(ctx, cfg); err != nil {
			return err
		}

		plans, err := tx.Plan().ListActive(ctx)
		if err != nil {
			return err
		}

		ids := make(map[int64]struct{})
		for _, p := range plans {
			for id := range p.Quantities {
				ids[id] = struct{}{}
			}
		}
		all := make([]int64, 0, len(ids))
		for id := range ids {
			all = append(all, id)
		}
		prices, err := tx.Product().Prices(ctx, all)
		if err != nil {
			return err
		}

		for _, p := range plans {
			p.Total, p.WeeklyPayment = Calculate(p.Quantities, prices, weeks)
			p.WeeksTotal = weeks
			p.WeeksCompleted = 0
			p.LastProgressAt = nil
			if err := tx.Plan().Update(ctx, p); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		e.logger.Error("ошибка изменения количества недель", zap.Int("weeks", weeks), zap.Error(err))
		return 0, fmt.Errorf("ошибка изменения количества недель: %w", err)
	}

	e.logger.Info("количество недель изменено", zap.Int("weeks", weeks), zap.Int("plans", updated))
	return updated, nil
}

// Status возвращает состояние счетчика и статистику планов
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	cfg, err := e.store.Config().Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации: %w", err)
	}
	stats, err := e.store.Plan().Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики планов: %w", err)
	}
	e.metrics.SetActivePlans(stats.Active)
	return &Status{Config: *cfg, Stats: *stats}, nil
}

// ActivePlan возвращает активный план пользователя
func (e *Engine) ActivePlan(ctx context.Context, userID int64) (*models.PaymentPlan, error) {
	return e.store.Plan().GetActiveByUser(ctx, userID)
}

// ActivePlans возвращает все активные планы
func (e *Engine) ActivePlans(ctx context.Context) ([]*models.PaymentPlan, error) {
	plans, err := e.store.Plan().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения активных планов: %w", err)
	}
	return plans, nil
}
