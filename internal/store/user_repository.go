package store

import (
	"context"
	"fmt"

	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// userRepository реализует UserRepository
type userRepository struct {
	db     querier
	logger *zap.Logger
}

// NewUserRepository создает новый репозиторий пользователей
func NewUserRepository(db querier, logger *zap.Logger) UserRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, username, first_name, last_name, phone, registered_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.RegisteredAt,
	)
	return user, err
}

// Create создает нового пользователя
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, first_name, last_name, phone, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.RegisteredAt,
	)
	if err != nil {
		r.logger.Error("ошибка создания пользователя", zap.Int64("user_id", user.ID), zap.Error(err))
		return wrapErr("ошибка создания пользователя", err)
	}

	r.logger.Info("пользователь создан", zap.Int64("user_id", user.ID))
	return nil
}

// GetByID получает пользователя по Telegram ID
func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("ошибка получения пользователя %d", id), err)
	}
	return user, nil
}

// List возвращает всех пользователей, новые первыми
func (r *userRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY registered_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, wrapErr("ошибка получения пользователей", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, wrapErr("ошибка сканирования пользователя", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("ошибка чтения пользователей", err)
	}

	return users, nil
}

// Delete удаляет пользователя
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return wrapErr("ошибка удаления пользователя", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("пользователь %d: %w", id, models.ErrNotFound)
	}

	r.logger.Info("пользователь удален", zap.Int64("user_id", id))
	return nil
}
