package store

import (
	"context"
	"fmt"

	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"go.uber.org/zap"
)

// pointsRepository реализует PointsRepository
type pointsRepository struct {
	db     querier
	logger *zap.Logger
}

// NewPointsRepository создает репозиторий баллов
func NewPointsRepository(db querier, logger *zap.Logger) PointsRepository {
	return &pointsRepository{
		db:     db,
		logger: logger,
	}
}

// GetAccount получает счет баллов пользователя
func (r *pointsRepository) GetAccount(ctx context.Context, userID int64) (*models.PointsAccount, error) {
	query := `SELECT user_id, total_points, available_points, updated_at FROM points_accounts WHERE user_id = $1`

	acc := &models.PointsAccount{}
	err := r.db.QueryRow(ctx, query, userID).Scan(&acc.UserID, &acc.TotalPoints, &acc.AvailablePoints, &acc.UpdatedAt)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("ошибка получения счета %d", userID), err)
	}
	return acc, nil
}

// LockAccount создает счет при отсутствии и блокирует его
func (r *pointsRepository) LockAccount(ctx context.Context, userID int64) (*models.PointsAccount, error) {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO points_accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, wrapErr("ошибка создания счета баллов", err)
	}

	query := `SELECT user_id, total_points, available_points, updated_at
		FROM points_accounts WHERE user_id = $1 FOR UPDATE`

	acc := &models.PointsAccount{}
	err := r.db.QueryRow(ctx, query, userID).Scan(&acc.UserID, &acc.TotalPoints, &acc.AvailablePoints, &acc.UpdatedAt)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("ошибка блокировки счета %d", userID), err)
	}
	return acc, nil
}

// UpdateAccount сохраняет балансы
func (r *pointsRepository) UpdateAccount(ctx context.Context, account *models.PointsAccount) error {
	query := `UPDATE points_accounts SET total_points = $2, available_points = $3, updated_at = $4 WHERE user_id = $1`

	tag, err := r.db.Exec(ctx, query, account.UserID, account.TotalPoints, account.AvailablePoints, account.UpdatedAt)
	if err != nil {
		return wrapErr("ошибка обновления счета баллов", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("счет %d: %w", account.UserID, models.ErrNotFound)
	}
	return nil
}

// AppendEntry добавляет запись в журнал
func (r *pointsRepository) AppendEntry(ctx context.Context, entry *models.LedgerEntry) error {
	query := `
		INSERT INTO points_ledger (user_id, kind, delta, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.QueryRow(ctx, query, entry.UserID, entry.Kind, entry.Delta, entry.Reason, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return wrapErr("ошибка записи в журнал баллов", err)
	}
	return nil
}

// ListEntries возвращает последние записи журнала пользователя
func (r *pointsRepository) ListEntries(ctx context.Context, userID int64, limit int) ([]*models.LedgerEntry, error) {
	query := `
		SELECT id, user_id, kind, delta, reason, created_at
		FROM points_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, wrapErr("ошибка получения журнала баллов", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		e := &models.LedgerEntry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Delta, &e.Reason, &e.CreatedAt); err != nil {
			return nil, wrapErr("ошибка сканирования записи журнала", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("ошибка чтения журнала баллов", err)
	}
	return entries, nil
}

// Ranking возвращает пользователей с наибольшим количеством баллов
func (r *pointsRepository) Ranking(ctx context.Context, limit int) ([]*models.RankingEntry, error) {
	query := `
		SELECT a.user_id, COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.username, ''),
			a.total_points, a.available_points
		FROM points_accounts a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.total_points > 0
		ORDER BY a.total_points DESC, a.user_id
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, wrapErr("ошибка получения рейтинга", err)
	}
	defer rows.Close()

	var ranking []*models.RankingEntry
	for rows.Next() {
		e := &models.RankingEntry{}
		if err := rows.Scan(&e.UserID, &e.Name, &e.TotalPoints, &e.AvailablePoints); err != nil {
			return nil, wrapErr("ошибка сканирования рейтинга", err)
		}
		ranking = append(ranking, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("ошибка чтения рейтинга", err)
	}
	return ranking, nil
}
