package points

import (
	"context"
	"errors"
	"fmt"

	"github.com/angel0101P/Bot-SusuSemanal/internal/store"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"go.uber.org/zap"
)

// ReferralDecision результат решения администратора по рефералу
type ReferralDecision struct {
	Referral *models.Referral
	Award    *Award
}

// RecordReferral создает ожидающий реферал при регистрации по коду.
// Выполняется внутри транзакции регистрации. Код самого себя или
// несуществующего пользователя игнорируется.
func (s *Service) RecordReferral(ctx context.Context, tx store.Tx, code string, referred *models.User) (*models.Referral, error) {
	referrerID, err := models.ParseReferralCode(code)
	if err != nil {
		s.logger.Debug("некорректный реферальный код", zap.String("code", code))
		return nil, nil
	}
	if referrerID == referred.ID {
		return nil, nil
	}

	if _, err := tx.User().GetByID(ctx, referrerID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("пригласивший не найден", zap.Int64("referrer_id", referrerID))
			return nil, nil
		}
		return nil, err
	}

	if _, err := tx.Referral().GetByReferred(ctx, referred.ID); err == nil {
		return nil, nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	referredID := referred.ID
	ref := &models.Referral{
		ReferrerID:    referrerID,
		ReferredID:    &referredID,
		ReferredName:  referred.DisplayName(),
		ReferredPhone: referred.Phone,
		Status:        models.ReferralStatusPending,
		CreatedAt:     s.now(),
	}
	if err := tx.Referral().Create(ctx, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

// ApproveReferral одобряет ожидающий реферал и один раз начисляет баллы пригласившему
func (s *Service) ApproveReferral(ctx context.Context, referralID int64) (*ReferralDecision, error) {
	ref, err := s.store.Referral().GetByID(ctx, referralID)
	if err != nil {
		return nil, fmt.Errorf("ошибка одобрения реферала %d: %w", referralID, err)
	}

	unlock := s.locks.Lock(ref.ReferrerID)
	defer unlock()

	var decision *ReferralDecision
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		ref, err := tx.Referral().GetForUpdate(ctx, referralID)
		if err != nil {
			return err
		}
		if ref.Status != models.ReferralStatusPending {
			return fmt.Errorf("реферал %d в статусе %s: %w", referralID, ref.Status, models.ErrNotFound)
		}

		decision = &ReferralDecision{Referral: ref}
		ref.Status = models.ReferralStatusApproved
		if !ref.PointsGranted {
			award, err := s.award(ctx, tx, ref.ReferrerID, models.PointsKindReferral, ReferralPoints,
				"Referido aprobado: "+ref.ReferredName)
			if err != nil {
				return err
			}
			ref.PointsGranted = true
			decision.Award = award
		}
		return tx.Referral().Update(ctx, ref)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка одобрения реферала %d: %w", referralID, err)
	}

	s.logger.Info("реферал одобрен",
		zap.Int64("referral_id", referralID),
		zap.Int64("referrer_id", decision.Referral.ReferrerID),
		zap.Bool("awarded", decision.Award != nil))
	if decision.Award != nil {
		s.afterAward(ctx, decision.Award)
	}
	return decision, nil
}

// RejectReferral отклоняет ожидающий реферал без начисления
func (s *Service) RejectReferral(ctx context.Context, referralID int64) (*models.Referral, error) {
	var rejected *models.Referral
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		ref, err := tx.Referral().GetForUpdate(ctx, referralID)
		if err != nil {
			return err
		}
		if ref.Status != models.ReferralStatusPending {
			return fmt.Errorf("реферал %d в статусе %s: %w", referralID, ref.Status, models.ErrNotFound)
		}
		ref.Status = models.ReferralStatusRejected
		rejected = ref
		return tx.Referral().Update(ctx, ref)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка отклонения реферала %d: %w", referralID, err)
	}

	s.logger.Info("реферал отклонен", zap.Int64("referral_id", referralID))
	return rejected, nil
}

// PendingReferrals возвращает рефералы на проверке
func (s *Service) PendingReferrals(ctx context.Context) ([]*models.Referral, error) {
	refs, err := s.store.Referral().ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения рефералов: %w", err)
	}
	return refs, nil
}

// ReferralsOf возвращает рефералы пользователя и статистику по ним
func (s *Service) ReferralsOf(ctx context.Context, referrerID int64) ([]*models.Referral, *models.ReferralStats, error) {
	refs, err := s.store.Referral().ListByReferrer(ctx, referrerID)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка получения рефералов: %w", err)
	}

	stats := &models.ReferralStats{Total: len(refs)}
	for _, r := range refs {
		switch r.Status {
		case models.ReferralStatusApproved:
			stats.Approved++
		case models.ReferralStatusPending:
			stats.Pending++
		case models.ReferralStatusRejected:
			stats.Rejected++
		}
	}
	return refs, stats, nil
}
