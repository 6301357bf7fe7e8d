// Package points ведет журнал баллов: начисления за платежи и рефералов,
// одобрение рефералов и уведомления о достигнутых бонусах.
package points

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angel0101P/Bot-SusuSemanal/internal/keylock"
	"github.com/angel0101P/Bot-SusuSemanal/internal/metrics"
	"github.com/angel0101P/Bot-SusuSemanal/internal/store"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"go.uber.org/zap"
)

const (
	// AdvanceThreshold минимальная задержка одобрения для категории advance
	AdvanceThreshold = 7 * 24 * time.Hour
	// AdvancePoints баллы за платеж категории advance
	AdvancePoints = 5
	// OnTimePoints баллы за платеж категории on-time
	OnTimePoints = 2
	// ReferralPoints баллы пригласившему за одобренного реферала
	ReferralPoints = 7
	// HistoryLimit размер истории в /mispuntos
	HistoryLimit = 10
)

// Tier категория начисления за платеж
type Tier string

const (
	TierAdvance Tier = "advance"
	TierOnTime  Tier = "on-time"
)

// Benefit бонус за накопленные баллы
type Benefit struct {
	Threshold int
	Title     string
}

// Benefits пороги бонусов по возрастанию
var Benefits = []Benefit{
	{Threshold: 100, Title: "1 semana gratis gym"},
	{Threshold: 200, Title: "15% descuento"},
}

// Notifier получает уведомления журнала. Вызывается после фиксации транзакции.
type Notifier interface {
	BenefitReached(ctx context.Context, userID int64, benefit Benefit, available int)
}

// Award результат одного начисления
type Award struct {
	Entry   *models.LedgerEntry
	Account *models.PointsAccount
	// Crossed бонусы, порог которых пересечен этим начислением
	Crossed []Benefit
}

// PaymentApproval результат одобрения платежа
type PaymentApproval struct {
	Payment *models.Payment
	Tier    Tier
	Award   *Award
}

// Service сервис журнала баллов
type Service struct {
	store    store.Store
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	locks    *keylock.Mutex
	now      func() time.Time
}

// NewService создает сервис баллов
func NewService(st store.Store, notifier Notifier, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		locks:    keylock.New(),
		now:      time.Now,
	}
}

// SetClock подменяет источник времени
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Award начисляет баллы пользователю
func (s *Service) Award(ctx context.Context, userID int64, kind models.PointsKind, delta int, reason string) (*Award, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	var award *Award
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		award, err = s.award(ctx, tx, userID, kind, delta, reason)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка начисления баллов: %w", err)
	}

	s.afterAward(ctx, award)
	return award, nil
}

// award добавляет запись журнала и обновляет счет внутри транзакции
func (s *Service) award(ctx context.Context, tx store.Tx, userID int64, kind models.PointsKind, delta int, reason string) (*Award, error) {
	account, err := tx.Points().LockAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entry := &models.LedgerEntry{
		UserID:    userID,
		Kind:      kind,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: now,
	}
	if err := tx.Points().AppendEntry(ctx, entry); err != nil {
		return nil, err
	}

	before := account.AvailablePoints
	account.TotalPoints += delta
	account.AvailablePoints += delta
	account.UpdatedAt = now
	if err := tx.Points().UpdateAccount(ctx, account); err != nil {
		return nil, err
	}

	return &Award{
		Entry:   entry,
		Account: account,
		Crossed: CrossedBenefits(before, account.AvailablePoints),
	}, nil
}

func (s *Service) afterAward(ctx context.Context, award *Award) {
	s.metrics.RecordAward(string(award.Entry.Kind), award.Entry.Delta)
	s.logger.Info("баллы начислены",
		zap.Int64("user_id", award.Entry.UserID),
		zap.String("kind", string(award.Entry.Kind)),
		zap.Int("delta", award.Entry.Delta),
		zap.Int("available", award.Account.AvailablePoints))

	if s.notifier == nil {
		return
	}
	for _, b := range award.Crossed {
		s.notifier.BenefitReached(ctx, award.Entry.UserID, b, award.Account.AvailablePoints)
	}
}

// CrossedBenefits возвращает бонусы, порог которых лежит в (before, after]
func CrossedBenefits(before, after int) []Benefit {
	var crossed []Benefit
	for _, b := range Benefits {
		if before < b.Threshold && after >= b.Threshold {
			crossed = append(crossed, b)
		}
	}
	return crossed
}

// PaymentTier определяет категорию по задержке между отправкой и одобрением
func PaymentTier(submittedAt, approvedAt time.Time) (Tier, int) {
	if approvedAt.Sub(submittedAt) >= AdvanceThreshold {
		return TierAdvance, AdvancePoints
	}
	return TierOnTime, OnTimePoints
}

// ApprovePayment одобряет ожидающий платеж и начисляет баллы
func (s *Service) ApprovePayment(ctx context.Context, paymentID int64) (*PaymentApproval, error) {
	payment, err := s.store.Payment().GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("ошибка одобрения платежа %d: %w", paymentID, err)
	}

	unlock := s.locks.Lock(payment.UserID)
	defer unlock()

	var approval *PaymentApproval
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		p, err := tx.Payment().GetForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != models.PaymentStatusPending {
			return fmt.Errorf("платеж %d в статусе %s: %w", paymentID, p.Status, models.ErrNotFound)
		}
		if err := tx.Payment().UpdateStatus(ctx, paymentID, models.PaymentStatusApproved); err != nil {
			return err
		}
		p.Status = models.PaymentStatusApproved

		tier, delta := PaymentTier(p.SubmittedAt, s.now())
		award, err := s.award(ctx, tx, p.UserID, models.PointsKindPayment, delta, paymentReason(tier, p))
		if err != nil {
			return err
		}
		approval = &PaymentApproval{Payment: p, Tier: tier, Award: award}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка одобрения платежа %d: %w", paymentID, err)
	}

	s.logger.Info("платеж одобрен",
		zap.Int64("payment_id", paymentID),
		zap.Int64("user_id", approval.Payment.UserID),
		zap.String("tier", string(approval.Tier)))
	s.afterAward(ctx, approval.Award)
	return approval, nil
}

func paymentReason(tier Tier, p *models.Payment) string {
	if tier == TierAdvance {
		return "Pago adelantado - $" + p.Amount.StringFixed(2)
	}
	return "Pago puntual - $" + p.Amount.StringFixed(2)
}

// RejectPayment отклоняет ожидающий платеж без начисления
func (s *Service) RejectPayment(ctx context.Context, paymentID int64) (*models.Payment, error) {
	var payment *models.Payment
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		p, err := tx.Payment().GetForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != models.PaymentStatusPending {
			return fmt.Errorf("платеж %d в статусе %s: %w", paymentID, p.Status, models.ErrNotFound)
		}
		if err := tx.Payment().UpdateStatus(ctx, paymentID, models.PaymentStatusRejected); err != nil {
			return err
		}
		p.Status = models.PaymentStatusRejected
		payment = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка отклонения платежа %d: %w", paymentID, err)
	}

	s.logger.Info("платеж отклонен", zap.Int64("payment_id", paymentID), zap.Int64("user_id", payment.UserID))
	return payment, nil
}

// Account возвращает счет пользователя; отсутствующий счет считается нулевым
func (s *Service) Account(ctx context.Context, userID int64) (*models.PointsAccount, error) {
	acc, err := s.store.Points().GetAccount(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return &models.PointsAccount{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения баллов: %w", err)
	}
	return acc, nil
}

// History возвращает последние записи журнала пользователя
func (s *Service) History(ctx context.Context, userID int64) ([]*models.LedgerEntry, error) {
	entries, err := s.store.Points().ListEntries(ctx, userID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории баллов: %w", err)
	}
	return entries, nil
}

// Ranking возвращает рейтинг пользователей по баллам
func (s *Service) Ranking(ctx context.Context, limit int) ([]*models.RankingEntry, error) {
	ranking, err := s.store.Points().Ranking(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения рейтинга: %w", err)
	}
	return ranking, nil
}

// NextBenefit возвращает ближайший недостигнутый бонус
func NextBenefit(available int) (Benefit, bool) {
	for _, b := range Benefits {
		if available < b.Threshold {
			return b, true
		}
	}
	return Benefit{}, false
}
