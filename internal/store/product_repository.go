package store

import (
	"context"
	"fmt"

	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// productRepository реализует ProductRepository
type productRepository struct {
	db     querier
	logger *zap.Logger
}

// NewProductRepository создает новый репозиторий товаров
func NewProductRepository(db querier, logger *zap.Logger) ProductRepository {
	return &productRepository{
		db:     db,
		logger: logger,
	}
}

const productColumns = `id, name, description, price, category, active, created_at`

func scanProduct(row pgx.Row) (*models.Product, error) {
	p := &models.Product{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Active, &p.CreatedAt)
	return p, err
}

// Create добавляет товар в каталог
func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, category, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		product.Name,
		product.Description,
		product.Price,
		product.Category,
		product.Active,
		product.CreatedAt,
	).Scan(&product.ID)
	if err != nil {
		return wrapErr("ошибка создания товара", err)
	}

	r.logger.Info("товар создан", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	return nil
}

// GetByID получает товар по ID
func (r *productRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("ошибка получения товара %d", id), err)
	}
	return p, nil
}

// ListActive возвращает активные товары, сгруппированные по категории
func (r *productRepository) ListActive(ctx context.Context) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE active ORDER BY category, name, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, wrapErr("ошибка получения каталога", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, wrapErr("ошибка сканирования товара", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("ошибка чтения каталога", err)
	}
	return products, nil
}

// Update обновляет редактируемые поля товара
func (r *productRepository) Update(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, category = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.Category,
	)
	if err != nil {
		return wrapErr("ошибка обновления товара", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("товар %d: %w", product.ID, models.ErrNotFound)
	}
	return nil
}

// Deactivate скрывает товар из каталога
func (r *productRepository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET active = FALSE WHERE id = $1 AND active`, id)
	if err != nil {
		return wrapErr("ошибка деактивации товара", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("активный товар %d: %w", id, models.ErrNotFound)
	}

	r.logger.Info("товар деактивирован", zap.Int64("product_id", id))
	return nil
}

// Prices возвращает цены по списку ID, включая снятые с продажи товары
func (r *productRepository) Prices(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	return r.prices(ctx, `SELECT id, price FROM products WHERE id = ANY($1)`, ids)
}

// ActivePrices возвращает цены только активных товаров
func (r *productRepository) ActivePrices(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	return r.prices(ctx, `SELECT id, price FROM products WHERE id = ANY($1) AND active`, ids)
}

func (r *productRepository) prices(ctx context.Context, query string, ids []int64) (map[int64]decimal.Decimal, error) {
	prices := make(map[int64]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, wrapErr("ошибка получения цен", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			price decimal.Decimal
		)
		if err := rows.Scan(&id, &price); err != nil {
			return nil, wrapErr("ошибка сканирования цены", err)
		}
		prices[id] = price
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("ошибка чтения цен", err)
	}
	return prices, nil
}
