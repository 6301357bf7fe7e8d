package store

import (
	"context"

	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"go.uber.org/zap"
)

// configRepository реализует ConfigRepository
type configRepository struct {
	db     querier
	logger *zap.Logger
}

// NewConfigRepository создает репозиторий глобальной конфигурации
func NewConfigRepository(db querier, logger *zap.Logger) ConfigRepository {
	return &configRepository{
		db:     db,
		logger: logger,
	}
}

// Get читает конфигурацию
func (r *configRepository) Get(ctx context.Context) (*models.GlobalConfig, error) {
	return r.get(ctx, `SELECT weeks_default, counter_active, updated_at FROM global_config WHERE id = 1`)
}

// GetForUpdate читает конфигурацию с блокировкой строки.
// Все изменяющие операции над планами берут эту блокировку первой.
func (r *configRepository) GetForUpdate(ctx context.Context) (*models.GlobalConfig, error) {
	return r.get(ctx, `SELECT weeks_default, counter_active, updated_at FROM global_config WHERE id = 1 FOR UPDATE`)
}

func (r *configRepository) get(ctx context.Context, query string) (*models.GlobalConfig, error) {
	cfg := &models.GlobalConfig{}
	if err := r.db.QueryRow(ctx, query).Scan(&cfg.WeeksDefault, &cfg.CounterActive, &cfg.UpdatedAt); err != nil {
		return nil, wrapErr("ошибка чтения конфигурации", err)
	}
	return cfg, nil
}

// Update сохраняет конфигурацию
func (r *configRepository) Update(ctx context.Context, cfg *models.GlobalConfig) error {
	query := `UPDATE global_config SET weeks_default = $1, counter_active = $2, updated_at = $3 WHERE id = 1`

	if _, err := r.db.Exec(ctx, query, cfg.WeeksDefault, cfg.CounterActive, cfg.UpdatedAt); err != nil {
		return wrapErr("ошибка обновления конфигурации", err)
	}

	r.logger.Info("конфигурация обновлена",
		zap.Int("weeks_default", cfg.WeeksDefault),
		zap.Bool("counter_active", cfg.CounterActive))
	return nil
}
