// Package assignment ведет черновики назначения товаров клиенту.
// Администратор открывает черновик, меняет количества кнопками +/- и
// подтверждает его, после чего движок планов заменяет активный план клиента.
package assignment

import (
	"context"
	"errors"
	"fmt"

	"github.com/angel0101P/Bot-SusuSemanal/internal/plan"
	"github.com/angel0101P/Bot-SusuSemanal/internal/session"
	"github.com/angel0101P/Bot-SusuSemanal/internal/store"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// View представление черновика для клавиатуры назначения
type View struct {
	User       *models.User
	Products   []*models.Product
	Quantities models.Quantities
	Total      decimal.Decimal
	Weekly     decimal.Decimal
	Weeks      int
}

// Quantity количество товара в черновике
func (v *View) Quantity(productID int64) int {
	return v.Quantities[productID]
}

// Service сервис черновиков назначения
type Service struct {
	tracker *session.Tracker
	engine  *plan.Engine
	store   store.Store
	logger  *zap.Logger
}

// NewService создает сервис назначения
func NewService(tracker *session.Tracker, engine *plan.Engine, st store.Store, logger *zap.Logger) *Service {
	return &Service{
		tracker: tracker,
		engine:  engine,
		store:   st,
		logger:  logger,
	}
}

// Open открывает черновик: продолжает существующий или заполняет его из активного плана клиента
func (s *Service) Open(ctx context.Context, adminID, targetID int64) (*View, error) {
	user, err := s.store.User().GetByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия назначения для %d: %w", targetID, err)
	}

	key := session.DraftKey{AdminID: adminID, TargetID: targetID}
	q, err := s.ensureDraft(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, user, q)
}

// Adjust меняет количество товара на delta. Количество не опускается ниже нуля.
func (s *Service) Adjust(ctx context.Context, adminID, targetID, productID int64, delta int) (*View, error) {
	user, err := s.store.User().GetByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("ошибка изменения назначения для %d: %w", targetID, err)
	}
	product, err := s.store.Product().GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: товар %d не найден", models.ErrInvalidInput, productID)
		}
		return nil, err
	}
	// Снятый с продажи товар можно только убрать из черновика
	if !product.Active && delta > 0 {
		return nil, fmt.Errorf("%w: товар %d неактивен", models.ErrInvalidInput, productID)
	}

	key := session.DraftKey{AdminID: adminID, TargetID: targetID}
	if _, err := s.ensureDraft(ctx, key); err != nil {
		return nil, err
	}
	q, _ := s.tracker.UpdateDraft(key, func(q models.Quantities) {
		n := q[productID] + delta
		if n <= 0 {
			delete(q, productID)
			return
		}
		q[productID] = n
	})
	return s.view(ctx, user, q)
}

// Reset очищает черновик. Очищенный черновик не загружает план повторно.
func (s *Service) Reset(ctx context.Context, adminID, targetID int64) (*View, error) {
	user, err := s.store.User().GetByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("ошибка сброса назначения для %d: %w", targetID, err)
	}
	q := models.Quantities{}
	s.tracker.PutDraft(session.DraftKey{AdminID: adminID, TargetID: targetID}, q)
	return s.view(ctx, user, q)
}

// Confirm передает черновик движку планов и удаляет его
func (s *Service) Confirm(ctx context.Context, adminID, targetID int64) (*plan.AssignResult, error) {
	key := session.DraftKey{AdminID: adminID, TargetID: targetID}
	q, ok := s.tracker.Draft(key)
	if !ok || len(q.Positive()) == 0 {
		return nil, models.ErrEmptyAssignment
	}

	result, err := s.engine.Assign(ctx, targetID, q)
	if err != nil {
		return nil, err
	}
	s.tracker.DropDraft(key)

	s.logger.Info("назначение подтверждено",
		zap.Int64("admin_id", adminID),
		zap.Int64("user_id", targetID),
		zap.Int("units", q.Units()),
		zap.Bool("replaced", result.Replaced))
	return result, nil
}

// Cancel удаляет черновик без изменений плана
func (s *Service) Cancel(adminID, targetID int64) {
	s.tracker.DropDraft(session.DraftKey{AdminID: adminID, TargetID: targetID})
}

func (s *Service) ensureDraft(ctx context.Context, key session.DraftKey) (models.Quantities, error) {
	if q, ok := s.tracker.Draft(key); ok {
		return q, nil
	}

	q := models.Quantities{}
	active, err := s.engine.ActivePlan(ctx, key.TargetID)
	switch {
	case err == nil:
		q = active.Quantities.Positive()
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("ошибка загрузки плана %d: %w", key.TargetID, err)
	}
	s.tracker.PutDraft(key, q)
	return q, nil
}

func (s *Service) view(ctx context.Context, user *models.User, q models.Quantities) (*View, error) {
	products, err := s.store.Product().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения каталога: %w", err)
	}
	listed := make(map[int64]bool, len(products))
	for _, p := range products {
		listed[p.ID] = true
	}
	// Товары из плана, снятые с продажи, остаются видимыми, пока их не уберут
	for _, id := range q.Positive().ProductIDs() {
		if listed[id] {
			continue
		}
		p, err := s.store.Product().GetByID(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка получения товара %d: %w", id, err)
		}
		products = append(products, p)
	}
	cfg, err := s.store.Config().Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации: %w", err)
	}

	prices := make(map[int64]decimal.Decimal, len(products))
	for _, p := range products {
		prices[p.ID] = p.Price
	}
	total, weekly := plan.Calculate(q, prices, cfg.WeeksDefault)

	return &View{
		User:       user,
		Products:   products,
		Quantities: q,
		Total:      total,
		Weekly:     weekly,
		Weeks:      cfg.WeeksDefault,
	}, nil
}
