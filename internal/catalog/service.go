// Package catalog управляет каталогом товаров: добавление, редактирование
// отдельных полей и мягкое удаление.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angel0101P/Bot-SusuSemanal/internal/store"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NewProduct данные нового товара из формы администратора
type NewProduct struct {
	Name        string
	Price       decimal.Decimal
	Description string
	Category    string
}

// Service сервис каталога
type Service struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService создает сервис каталога
func NewService(st store.Store, logger *zap.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// ParsePrice разбирает цену. Цена должна быть положительной.
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	price, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: некорректная цена %q", models.ErrInvalidInput, s)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: цена должна быть положительной", models.ErrInvalidInput)
	}
	return price.Round(2), nil
}

// Add добавляет активный товар
func (s *Service) Add(ctx context.Context, np NewProduct) (*models.Product, error) {
	name := strings.TrimSpace(np.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: пустое название товара", models.ErrInvalidInput)
	}
	if !np.Price.IsPositive() {
		return nil, fmt.Errorf("%w: цена должна быть положительной", models.ErrInvalidInput)
	}
	category := strings.TrimSpace(np.Category)
	if category == "" {
		category = models.DefaultCategory
	}

	product := &models.Product{
		Name:        name,
		Description: strings.TrimSpace(np.Description),
		Price:       np.Price.Round(2),
		Category:    category,
		Active:      true,
		CreatedAt:   s.now(),
	}
	if err := s.store.Product().Create(ctx, product); err != nil {
		return nil, fmt.Errorf("ошибка добавления товара: %w", err)
	}

	s.logger.Info("товар добавлен",
		zap.Int64("product_id", product.ID),
		zap.String("name", product.Name),
		zap.String("price", product.Price.StringFixed(2)))
	return product, nil
}

// EditField меняет одно поле товара
func (s *Service) EditField(ctx context.Context, productID int64, field models.ProductField, value string) (*models.Product, error) {
	if !field.IsValid() {
		return nil, fmt.Errorf("%w: неизвестное поле %q", models.ErrInvalidInput, field)
	}
	value = strings.TrimSpace(value)

	product, err := s.store.Product().GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения товара %d: %w", productID, err)
	}

	switch field {
	case models.ProductFieldName:
		if value == "" {
			return nil, fmt.Errorf("%w: пустое название товара", models.ErrInvalidInput)
		}
		product.Name = value
	case models.ProductFieldPrice:
		price, err := ParsePrice(value)
		if err != nil {
			return nil, err
		}
		product.Price = price
	case models.ProductFieldDescription:
		product.Description = value
	case models.ProductFieldCategory:
		if value == "" {
			value = models.DefaultCategory
		}
		product.Category = value
	}

	if err := s.store.Product().Update(ctx, product); err != nil {
		return nil, fmt.Errorf("ошибка обновления товара %d: %w", productID, err)
	}

	s.logger.Info("товар обновлен",
		zap.Int64("product_id", productID),
		zap.String("field", string(field)))
	return product, nil
}

// Deactivate скрывает товар из каталога. Существующие планы не пересчитываются.
func (s *Service) Deactivate(ctx context.Context, productID int64) (*models.Product, error) {
	product, err := s.store.Product().GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения товара %d: %w", productID, err)
	}
	if err := s.store.Product().Deactivate(ctx, productID); err != nil {
		return nil, fmt.Errorf("ошибка удаления товара %d: %w", productID, err)
	}
	product.Active = false

	s.logger.Info("товар удален из каталога", zap.Int64("product_id", productID))
	return product, nil
}

// Get возвращает товар
func (s *Service) Get(ctx context.Context, productID int64) (*models.Product, error) {
	product, err := s.store.Product().GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения товара %d: %w", productID, err)
	}
	return product, nil
}

// ListActive возвращает активные товары
func (s *Service) ListActive(ctx context.Context) ([]*models.Product, error) {
	products, err := s.store.Product().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения каталога: %w", err)
	}
	return products, nil
}

// Names возвращает названия товаров по ID, включая неактивные
func (s *Service) Names(ctx context.Context, ids []int64) map[int64]string {
	names := make(map[int64]string, len(ids))
	for _, id := range ids {
		p, err := s.store.Product().GetByID(ctx, id)
		if err != nil {
			names[id] = fmt.Sprintf("#%d", id)
			continue
		}
		names[id] = p.Name
	}
	return names
}
