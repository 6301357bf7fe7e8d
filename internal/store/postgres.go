package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angel0101P/Bot-SusuSemanal/internal/config"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Tx набор репозиториев, работающих в рамках одной транзакции
type Tx interface {
	User() UserRepository
	Product() ProductRepository
	Payment() PaymentRepository
	Plan() PlanRepository
	Config() ConfigRepository
	Points() PointsRepository
	Referral() ReferralRepository
}

// Store представляет интерфейс для работы с базой данных.
// Репозитории самого Store работают вне транзакции, InTx выполняет fn атомарно.
type Store interface {
	Tx
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// UserRepository интерфейс для работы с пользователями
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Delete(ctx context.Context, id int64) error
}

// ProductRepository интерфейс для работы с каталогом
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	ListActive(ctx context.Context) ([]*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Deactivate(ctx context.Context, id int64) error
	// Prices возвращает текущие цены для существующих товаров, включая неактивные
	Prices(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error)
	ActivePrices(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error)
}

// PaymentRepository интерфейс для работы с платежами
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id int64) (*models.Payment, error)
	GetForUpdate(ctx context.Context, id int64) (*models.Payment, error)
	UpdateStatus(ctx context.Context, id int64, status models.PaymentStatus) error
	ListByStatus(ctx context.Context, status models.PaymentStatus) ([]*models.Payment, error)
	ListAll(ctx context.Context, limit int) ([]*models.Payment, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Payment, error)
	Delete(ctx context.Context, id int64) error
}

// PlanRepository интерфейс для работы с планами рассрочки
type PlanRepository interface {
	GetActiveByUser(ctx context.Context, userID int64) (*models.PaymentPlan, error)
	ListActive(ctx context.Context) ([]*models.PaymentPlan, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.PaymentPlan, error)
	Create(ctx context.Context, plan *models.PaymentPlan) error
	Update(ctx context.Context, plan *models.PaymentPlan) error
	SetPausedForActive(ctx context.Context, paused bool) (int, error)
	MarkDeletedByUser(ctx context.Context, userID int64) (int, error)
	Stats(ctx context.Context) (*models.PlanStats, error)
}

// ConfigRepository интерфейс для глобальной конфигурации счетчика
type ConfigRepository interface {
	Get(ctx context.Context) (*models.GlobalConfig, error)
	// GetForUpdate блокирует строку конфигурации до конца транзакции
	GetForUpdate(ctx context.Context) (*models.GlobalConfig, error)
	Update(ctx context.Context, cfg *models.GlobalConfig) error
}

// PointsRepository интерфейс для баллов и журнала начислений
type PointsRepository interface {
	GetAccount(ctx context.Context, userID int64) (*models.PointsAccount, error)
	// LockAccount создает счет при необходимости и блокирует его строку
	LockAccount(ctx context.Context, userID int64) (*models.PointsAccount, error)
	UpdateAccount(ctx context.Context, account *models.PointsAccount) error
	AppendEntry(ctx context.Context, entry *models.LedgerEntry) error
	ListEntries(ctx context.Context, userID int64, limit int) ([]*models.LedgerEntry, error)
	Ranking(ctx context.Context, limit int) ([]*models.RankingEntry, error)
}

// ReferralRepository определяет интерфейс для работы с рефералами
type ReferralRepository interface {
	Create(ctx context.Context, referral *models.Referral) error
	GetByID(ctx context.Context, id int64) (*models.Referral, error)
	GetForUpdate(ctx context.Context, id int64) (*models.Referral, error)
	GetByReferred(ctx context.Context, referredID int64) (*models.Referral, error)
	Update(ctx context.Context, referral *models.Referral) error
	ListByReferrer(ctx context.Context, referrerID int64) ([]*models.Referral, error)
	ListPending(ctx context.Context) ([]*models.Referral, error)
}

// querier общий интерфейс пула и транзакции pgx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// repositories реализует Tx поверх произвольного querier
type repositories struct {
	user     UserRepository
	product  ProductRepository
	payment  PaymentRepository
	plan     PlanRepository
	config   ConfigRepository
	points   PointsRepository
	referral ReferralRepository
}

func newRepositories(db querier, logger *zap.Logger) *repositories {
	return &repositories{
		user:     NewUserRepository(db, logger),
		product:  NewProductRepository(db, logger),
		payment:  NewPaymentRepository(db, logger),
		plan:     NewPlanRepository(db, logger),
		config:   NewConfigRepository(db, logger),
		points:   NewPointsRepository(db, logger),
		referral: NewReferralRepository(db, logger),
	}
}

func (r *repositories) User() UserRepository         { return r.user }
func (r *repositories) Product() ProductRepository   { return r.product }
func (r *repositories) Payment() PaymentRepository   { return r.payment }
func (r *repositories) Plan() PlanRepository         { return r.plan }
func (r *repositories) Config() ConfigRepository     { return r.config }
func (r *repositories) Points() PointsRepository     { return r.points }
func (r *repositories) Referral() ReferralRepository { return r.referral }

// store реализует интерфейс Store
type store struct {
	*repositories
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewStore создает новое подключение к базе данных
func NewStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка проверки подключения к базе данных: %w", err)
	}

	logger.Info("успешное подключение к базе данных PostgreSQL")

	return &store{
		repositories: newRepositories(db, logger),
		db:           db,
		logger:       logger,
	}, nil
}

// InTx выполняет fn в одной транзакции. Ошибка fn откатывает транзакцию.
func (s *store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	var fnErr error
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		fnErr = fn(newRepositories(tx, s.logger))
		return fnErr
	})
	if err != nil && fnErr == nil {
		s.logger.Error("ошибка транзакции", zap.Error(err))
		return fmt.Errorf("ошибка транзакции: %w: %w", models.ErrStoreUnavailable, err)
	}
	return err
}

// Ping проверяет доступность базы данных
func (s *store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close закрывает подключение к базе данных
func (s *store) Close() error {
	s.db.Close()
	return nil
}

// wrapErr приводит ошибки драйвера к таксономии models
func wrapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, models.ErrAlreadyExists)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
}
