package store

import (
	"context"
	"fmt"

	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// PostgresReferralRepository реализует ReferralRepository для PostgreSQL
type PostgresReferralRepository struct {
	db     querier
	logger *zap.Logger
}

// NewReferralRepository создает новый репозиторий рефералов
func NewReferralRepository(db querier, logger *zap.Logger) ReferralRepository {
	return &PostgresReferralRepository{
		db:     db,
		logger: logger,
	}
}

const referralColumns = `id, referrer_id, referred_id, referred_name, referred_phone, status, points_granted, created_at`

func scanReferral(row pgx.Row) (*models.Referral, error) {
	ref := &models.Referral{}
	err := row.Scan(
		&ref.ID,
		&ref.ReferrerID,
		&ref.ReferredID,
		&ref.ReferredName,
		&ref.ReferredPhone,
		&ref.Status,
		&ref.PointsGranted,
		&ref.CreatedAt,
	)
	return ref, err
}

// Create создает новую реферальную связь
func (r *PostgresReferralRepository) Create(ctx context.Context, referral *models.Referral) error {
	query := `
		INSERT INTO referrals (referrer_id, referred_id, referred_name, referred_phone, status, points_granted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.db.QueryRow(
		ctx, query,
		referral.ReferrerID,
		referral.ReferredID,
		referral.ReferredName,
		referral.ReferredPhone,
		referral.Status,
		referral.PointsGranted,
		referral.CreatedAt,
	).Scan(&referral.ID)
	if err != nil {
		return wrapErr("ошибка создания реферала", err)
	}

	r.logger.Info("реферал создан",
		zap.Int64("referral_id", referral.ID),
		zap.Int64("referrer_id", referral.ReferrerID))
	return nil
}

// GetByID получает реферал по ID
func (r *PostgresReferralRepository) GetByID(ctx context.Context, id int64) (*models.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE id = $1`

	ref, err := scanReferral(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("ошибка получения реферала %d", id), err)
	}
	return ref, nil
}

// GetForUpdate получает реферал с блокировкой строки
func (r *PostgresReferralRepository) GetForUpdate(ctx context.Context, id int64) (*models.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE id = $1 FOR UPDATE`

	ref, err := scanReferral(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("ошибка блокировки реферала %d", id), err)
	}
	return ref, nil
}

// GetByReferred получает реферал по ID приглашенного пользователя
func (r *PostgresReferralRepository) GetByReferred(ctx context.Context, referredID int64) (*models.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE referred_id = $1`

	ref, err := scanReferral(r.db.QueryRow(ctx, query, referredID))
	if err != nil {
		return nil, wrapErr("ошибка получения реферала по приглашенному", err)
	}
	return ref, nil
}

// Update сохраняет статус и флаг начисления
func (r *PostgresReferralRepository) Update(ctx context.Context, referral *models.Referral) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE referrals SET status = $2, points_granted = $3 WHERE id = $1`,
		referral.ID, referral.Status, referral.PointsGranted)
	if err != nil {
		return wrapErr("ошибка обновления реферала", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("реферал %d: %w", referral.ID, models.ErrNotFound)
	}

	r.logger.Info("статус реферала обновлен",
		zap.Int64("referral_id", referral.ID),
		zap.String("status", string(referral.Status)))
	return nil
}

// ListByReferrer возвращает рефералы пригласившего
func (r *PostgresReferralRepository) ListByReferrer(ctx context.Context, referrerID int64) ([]*models.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE referrer_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, referrerID)
}

// ListPending возвращает рефералы, ожидающие проверки
func (r *PostgresReferralRepository) ListPending(ctx context.Context) ([]*models.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE status = 'pending' ORDER BY created_at`
	return r.list(ctx, query)
}

func (r *PostgresReferralRepository) list(ctx context.Context, query string, args ...any) ([]*models.Referral, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("ошибка получения рефералов", err)
	}
	defer rows.Close()

	var referrals []*models.Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, wrapErr("ошибка сканирования реферала", err)
		}
		referrals = append(referrals, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("ошибка чтения рефералов", err)
	}
	return referrals, nil
}
