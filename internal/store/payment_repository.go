package store

import (
	"context"
	"fmt"

	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// PostgresPaymentRepository реализует PaymentRepository для PostgreSQL
type PostgresPaymentRepository struct {
	db     querier
	logger *zap.Logger
}

// NewPaymentRepository создает новый репозиторий платежей
func NewPaymentRepository(db querier, logger *zap.Logger) PaymentRepository {
	return &PostgresPaymentRepository{
		db:     db,
		logger: logger,
	}
}

const paymentColumns = `id, user_id, payer_name, reference, receipt_file_id, amount, status, submitted_at`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	p := &models.Payment{}
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.PayerName,
		&p.Reference,
		&p.ReceiptFileID,
		&p.Amount,
		&p.Status,
		&p.SubmittedAt,
	)
	return p, err
}

// Create создает новый платеж
func (r *PostgresPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (
			user_id, payer_name, reference, receipt_file_id, amount, status, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.db.QueryRow(
		ctx, query,
		payment.UserID,
		payment.PayerName,
		payment.Reference,
		payment.ReceiptFileID,
		payment.Amount,
		payment.Status,
		payment.SubmittedAt,
	).Scan(&payment.ID)
	if err != nil {
		return wrapErr("ошибка создания платежа", err)
	}

	r.logger.Info("платеж создан в БД",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("user_id", payment.UserID),
		zap.String("reference", payment.Reference))

	return nil
}

// GetByID получает платеж по ID
func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	p, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("ошибка получения платежа %d", id), err)
	}
	return p, nil
}

// GetForUpdate получает платеж и блокирует строку до конца транзакции
func (r *PostgresPaymentRepository) GetForUpdate(ctx context.Context, id int64) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`

	p, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("ошибка блокировки платежа %d", id), err)
	}
	return p, nil
}

// UpdateStatus обновляет статус платежа
func (r *PostgresPaymentRepository) UpdateStatus(ctx context.Context, id int64, status models.PaymentStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE payments SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return wrapErr("ошибка обновления статуса платежа", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("платеж %d: %w", id, models.ErrNotFound)
	}

	r.logger.Info("статус платежа обновлен",
		zap.Int64("payment_id", id),
		zap.String("status", string(status)))
	return nil
}

// ListByStatus возвращает платежи в указанном статусе, старые первыми
func (r *PostgresPaymentRepository) ListByStatus(ctx context.Context, status models.PaymentStatus) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE status = $1 ORDER BY submitted_at`
	return r.list(ctx, query, status)
}

// ListAll возвращает последние платежи
func (r *PostgresPaymentRepository) ListAll(ctx context.Context, limit int) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY submitted_at DESC LIMIT $1`
	return r.list(ctx, query, limit)
}

// ListByUser возвращает последние платежи пользователя
func (r *PostgresPaymentRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = $1 ORDER BY submitted_at DESC LIMIT $2`
	return r.list(ctx, query, userID, limit)
}

// Delete удаляет платеж
func (r *PostgresPaymentRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return wrapErr("ошибка удаления платежа", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("платеж %d: %w", id, models.ErrNotFound)
	}

	r.logger.Info("платеж удален", zap.Int64("payment_id", id))
	return nil
}

func (r *PostgresPaymentRepository) list(ctx context.Context, query string, args ...any) ([]*models.Payment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("ошибка получения платежей", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, wrapErr("ошибка сканирования платежа", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("ошибка чтения платежей", err)
	}
	return payments, nil
}
