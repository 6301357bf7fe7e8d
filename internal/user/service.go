package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angel0101P/Bot-SusuSemanal/internal/points"
	"github.com/angel0101P/Bot-SusuSemanal/internal/store"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"go.uber.org/zap"
)

// Service представляет сервис для работы с пользователями
type Service struct {
	store  store.Store
	points *points.Service
	logger *zap.Logger
	now    func() time.Time
}

// Registration итог регистрации
type Registration struct {
	User     *models.User
	Referral *models.Referral
}

// NewService создает новый сервис пользователей
func NewService(store store.Store, points *points.Service, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		points: points,
		logger: logger,
		now:    time.Now,
	}
}

// Register создает пользователя по телефону и, если код валиден, ожидающий реферал.
// Обе записи создаются в одной транзакции.
func (s *Service) Register(ctx context.Context, profile models.Profile, phone, referralCode string) (*Registration, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: пустой номер телефона", models.ErrInvalidInput)
	}

	reg := &Registration{}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.User().GetByID(ctx, profile.UserID); err == nil {
			return fmt.Errorf("пользователь %d: %w", profile.UserID, models.ErrAlreadyExists)
		} else if !errors.Is(err, models.ErrNotFound) {
			return err
		}

		user := &models.User{
			ID:           profile.UserID,
			Username:     profile.Username,
			FirstName:    profile.FirstName,
			LastName:     profile.LastName,
			Phone:        phone,
			RegisteredAt: s.now(),
		}
		if err := tx.User().Create(ctx, user); err != nil {
			return err
		}
		reg.User = user

		if referralCode == "" || s.points == nil {
			return nil
		}
		ref, err := s.points.RecordReferral(ctx, tx, referralCode, user)
		if err != nil {
			return err
		}
		reg.Referral = ref
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка регистрации пользователя: %w", err)
	}

	s.logger.Info("создан новый пользователь",
		zap.Int64("user_id", reg.User.ID),
		zap.String("username", reg.User.Username),
		zap.Bool("referred", reg.Referral != nil))

	return reg, nil
}

// Get возвращает пользователя по Telegram ID
func (s *Service) Get(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.store.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return user, nil
}

// IsRegistered проверяет, зарегистрирован ли пользователь
func (s *Service) IsRegistered(ctx context.Context, userID int64) (bool, error) {
	_, err := s.store.User().GetByID(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, models.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("ошибка проверки регистрации: %w", err)
	}
}

// List возвращает всех пользователей
func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.store.User().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователей: %w", err)
	}
	return users, nil
}

// Plans возвращает планы пользователя, кроме удаленных
func (s *Service) Plans(ctx context.Context, userID int64) ([]*models.PaymentPlan, error) {
	plans, err := s.store.Plan().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения планов: %w", err)
	}
	return plans, nil
}

// Payments возвращает последние платежи пользователя
func (s *Service) Payments(ctx context.Context, userID int64, limit int) ([]*models.Payment, error) {
	payments, err := s.store.Payment().ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения платежей: %w", err)
	}
	return payments, nil
}

// Delete удаляет пользователя. Его планы помечаются удаленными под блокировкой
// конфигурации, чтобы не пересечься с проходом счетчика.
func (s *Service) Delete(ctx context.Context, userID int64) (*models.User, error) {
	var deleted *models.User
	var plans int
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Config().GetForUpdate(ctx); err != nil {
			return err
		}
		user, err := tx.User().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		plans, err = tx.Plan().MarkDeletedByUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := tx.User().Delete(ctx, userID); err != nil {
			return err
		}
		deleted = user
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка удаления пользователя %d: %w", userID, err)
	}

	s.logger.Info("пользователь удален",
		zap.Int64("user_id", userID),
		zap.Int("plans", plans))
	return deleted, nil
}
