package store

import (
	"context"
	"fmt"

	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// planRepository реализует PlanRepository
type planRepository struct {
	db     querier
	logger *zap.Logger
}

// NewPlanRepository создает новый репозиторий планов
func NewPlanRepository(db querier, logger *zap.Logger) PlanRepository {
	return &planRepository{
		db:     db,
		logger: logger,
	}
}

const planColumns = `id, user_id, quantities, total, weeks_total, weekly_payment, weeks_completed,
	status, paused_individually, started_at, last_progress_at`

func scanPlan(row pgx.Row) (*models.PaymentPlan, error) {
	p := &models.PaymentPlan{}
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Quantities,
		&p.Total,
		&p.WeeksTotal,
		&p.WeeklyPayment,
		&p.WeeksCompleted,
		&p.Status,
		&p.PausedIndividually,
		&p.StartedAt,
		&p.LastProgressAt,
	)
	return p, err
}

// GetActiveByUser получает активный план пользователя
func (r *planRepository) GetActiveByUser(ctx context.Context, userID int64) (*models.PaymentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM payment_plans WHERE user_id = $1 AND status = 'active'`

	p, err := scanPlan(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("ошибка получения плана пользователя %d", userID), err)
	}
	return p, nil
}

// ListActive возвращает все активные планы
func (r *planRepository) ListActive(ctx context.Context) ([]*models.PaymentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM payment_plans WHERE status = 'active' ORDER BY id`
	return r.list(ctx, query)
}

// ListByUser возвращает планы пользователя кроме удаленных
func (r *planRepository) ListByUser(ctx context.Context, userID int64) ([]*models.PaymentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM payment_plans
		WHERE user_id = $1 AND status <> 'deleted' ORDER BY started_at DESC`
	return r.list(ctx, query, userID)
}

// Create создает план
func (r *planRepository) Create(ctx context.Context, plan *models.PaymentPlan) error {
	query := `
		INSERT INTO payment_plans (
			user_id, quantities, total, weeks_total, weekly_payment, weeks_completed,
			status, paused_individually, started_at, last_progress_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		plan.UserID,
		plan.Quantities,
		plan.Total,
		plan.WeeksTotal,
		plan.WeeklyPayment,
		plan.WeeksCompleted,
		plan.Status,
		plan.PausedIndividually,
		plan.StartedAt,
		plan.LastProgressAt,
	).Scan(&plan.ID)
	if err != nil {
		return wrapErr("ошибка создания плана", err)
	}

	r.logger.Info("план создан",
		zap.Int64("plan_id", plan.ID),
		zap.Int64("user_id", plan.UserID),
		zap.String("total", plan.Total.StringFixed(2)))
	return nil
}

// Update перезаписывает план целиком
func (r *planRepository) Update(ctx context.Context, plan *models.PaymentPlan) error {
	query := `
		UPDATE payment_plans SET
			quantities = $2, total = $3, weeks_total = $4, weekly_payment = $5,
			weeks_completed = $6, status = $7, paused_individually = $8,
			started_at = $9, last_progress_at = $10
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		plan.ID,
		plan.Quantities,
		plan.Total,
		plan.WeeksTotal,
		plan.WeeklyPayment,
		plan.WeeksCompleted,
		plan.Status,
		plan.PausedIndividually,
		plan.StartedAt,
		plan.LastProgressAt,
	)
	if err != nil {
		return wrapErr("ошибка обновления плана", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("план %d: %w", plan.ID, models.ErrNotFound)
	}
	return nil
}

// SetPausedForActive выставляет флаг паузы всем активным планам
func (r *planRepository) SetPausedForActive(ctx context.Context, paused bool) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE payment_plans SET paused_individually = $1 WHERE status = 'active'`, paused)
	if err != nil {
		return 0, wrapErr("ошибка изменения паузы планов", err)
	}
	return int(tag.RowsAffected()), nil
}

// MarkDeletedByUser переводит планы пользователя в статус deleted
func (r *planRepository) MarkDeletedByUser(ctx context.Context, userID int64) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE payment_plans SET status = 'deleted' WHERE user_id = $1 AND status <> 'deleted'`, userID)
	if err != nil {
		return 0, wrapErr("ошибка удаления планов пользователя", err)
	}
	return int(tag.RowsAffected()), nil
}

// Stats возвращает статистику планов
func (r *planRepository) Stats(ctx context.Context) (*models.PlanStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'active' AND paused_individually),
			COUNT(*) FILTER (WHERE status = 'completed')
		FROM payment_plans`

	stats := &models.PlanStats{}
	if err := r.db.QueryRow(ctx, query).Scan(&stats.Active, &stats.Paused, &stats.Completed); err != nil {
		return nil, wrapErr("ошибка получения статистики планов", err)
	}
	return stats, nil
}

func (r *planRepository) list(ctx context.Context, query string, args ...any) ([]*models.PaymentPlan, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("ошибка получения планов", err)
	}
	defer rows.Close()

	var plans []*models.PaymentPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, wrapErr("ошибка сканирования плана", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("ошибка чтения планов", err)
	}
	return plans, nil
}
