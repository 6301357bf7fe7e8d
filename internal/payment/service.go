// Package payment принимает платежи клиентов: данные перевода и снимок чека.
// Одобрение и отклонение выполняет журнал баллов.
package payment

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angel0101P/Bot-SusuSemanal/internal/store"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultListLimit размер списка всех платежей
const DefaultListLimit = 50

// Details данные перевода из текстовой формы
type Details struct {
	PayerName string
	Reference string
	Amount    decimal.Decimal
}

// ParseDetails разбирает форму вида "Nombre: ...", "Referencia: ...", "Monto: ...".
// Ключи без учета регистра, значение отделяется первым двоеточием.
func ParseDetails(text string) (Details, error) {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	var d Details
	d.PayerName = fields["nombre"]
	d.Reference = fields["referencia"]
	rawAmount := fields["monto"]
	if d.PayerName == "" || d.Reference == "" || rawAmount == "" {
		return Details{}, fmt.Errorf("%w: требуются поля Nombre, Referencia и Monto", models.ErrInvalidInput)
	}

	rawAmount = strings.TrimSpace(strings.TrimPrefix(rawAmount, "$"))
	amount, err := decimal.NewFromString(strings.ReplaceAll(rawAmount, ",", "."))
	if err != nil {
		return Details{}, fmt.Errorf("%w: некорректная сумма %q", models.ErrInvalidInput, rawAmount)
	}
	if !amount.IsPositive() {
		return Details{}, fmt.Errorf("%w: сумма должна быть положительной", models.ErrInvalidInput)
	}
	d.Amount = amount.Round(2)
	return d, nil
}

// Service сервис платежей
type Service struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService создает сервис платежей
func NewService(st store.Store, logger *zap.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Submit создает ожидающий платеж с чеком
func (s *Service) Submit(ctx context.Context, userID int64, d Details, receiptFileID string) (*models.Payment, error) {
	if receiptFileID == "" {
		return nil, fmt.Errorf("%w: отсутствует чек", models.ErrInvalidInput)
	}
	p := &models.Payment{
		UserID:        userID,
		PayerName:     d.PayerName,
		Reference:     d.Reference,
		ReceiptFileID: receiptFileID,
		Amount:        d.Amount,
		Status:        models.PaymentStatusPending,
		SubmittedAt:   s.now(),
	}
	if err := s.store.Payment().Create(ctx, p); err != nil {
		return nil, fmt.Errorf("ошибка сохранения платежа: %w", err)
	}

	s.logger.Info("платеж зарегистрирован",
		zap.Int64("payment_id", p.ID),
		zap.Int64("user_id", userID),
		zap.String("amount", p.Amount.StringFixed(2)))
	return p, nil
}

// Get возвращает платеж
func (s *Service) Get(ctx context.Context, paymentID int64) (*models.Payment, error) {
	p, err := s.store.Payment().GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения платежа %d: %w", paymentID, err)
	}
	return p, nil
}

// Pending возвращает платежи на проверке
func (s *Service) Pending(ctx context.Context) ([]*models.Payment, error) {
	payments, err := s.store.Payment().ListByStatus(ctx, models.PaymentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения платежей: %w", err)
	}
	return payments, nil
}

// All возвращает последние платежи всех пользователей
func (s *Service) All(ctx context.Context) ([]*models.Payment, error) {
	payments, err := s.store.Payment().ListAll(ctx, DefaultListLimit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения платежей: %w", err)
	}
	return payments, nil
}

// ByUser возвращает платежи пользователя
func (s *Service) ByUser(ctx context.Context, userID int64) ([]*models.Payment, error) {
	payments, err := s.store.Payment().ListByUser(ctx, userID, DefaultListLimit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения платежей: %w", err)
	}
	return payments, nil
}

// Delete удаляет платеж
func (s *Service) Delete(ctx context.Context, paymentID int64) error {
	if err := s.store.Payment().Delete(ctx, paymentID); err != nil {
		return fmt.Errorf("ошибка удаления платежа %d: %w", paymentID, err)
	}
	s.logger.Info("платеж удален", zap.Int64("payment_id", paymentID))
	return nil
}

// PurgeRejected удаляет отклоненные платежи старше olderThan.
// userID 0 означает всех пользователей. В режиме dryRun только считает.
func (s *Service) PurgeRejected(ctx context.Context, olderThan time.Duration, userID int64, dryRun bool) (int, error) {
	rejected, err := s.store.Payment().ListByStatus(ctx, models.PaymentStatusRejected)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения отклоненных платежей: %w", err)
	}

	cutoff := s.now().Add(-olderThan)
	purged := 0
	for _, p := range rejected {
		if userID != 0 && p.UserID != userID {
			continue
		}
		if !p.SubmittedAt.Before(cutoff) {
			continue
		}
		if !dryRun {
			if err := s.store.Payment().Delete(ctx, p.ID); err != nil {
				return purged, fmt.Errorf("ошибка удаления платежа %d: %w", p.ID, err)
			}
		}
		purged++
	}

	s.logger.Info("очистка отклоненных платежей",
		zap.Int64("user_id", userID),
		zap.Duration("older_than", olderThan),
		zap.Bool("dry_run", dryRun),
		zap.Int("purged", purged))
	return purged, nil
}
