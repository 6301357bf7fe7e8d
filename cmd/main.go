package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angel0101P/Bot-SusuSemanal/internal/assignment"
	"github.com/angel0101P/Bot-SusuSemanal/internal/auth"
	"github.com/angel0101P/Bot-SusuSemanal/internal/bot"
	"github.com/angel0101P/Bot-SusuSemanal/internal/catalog"
	"github.com/angel0101P/Bot-SusuSemanal/internal/config"
	"github.com/angel0101P/Bot-SusuSemanal/internal/lock"
	"github.com/angel0101P/Bot-SusuSemanal/internal/metrics"
	"github.com/angel0101P/Bot-SusuSemanal/internal/migrations"
	"github.com/angel0101P/Bot-SusuSemanal/internal/payment"
	"github.com/angel0101P/Bot-SusuSemanal/internal/plan"
	"github.com/angel0101P/Bot-SusuSemanal/internal/points"
	"github.com/angel0101P/Bot-SusuSemanal/internal/scheduler"
	"github.com/angel0101P/Bot-SusuSemanal/internal/session"
	"github.com/angel0101P/Bot-SusuSemanal/internal/store"
	"github.com/angel0101P/Bot-SusuSemanal/internal/user"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера
	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("запуск бота Susu Semanal",
		zap.String("env", cfg.App.Env),
		zap.Int64("admin_id", cfg.Admin.ID))

	// Инициализация базы данных
	st, err := store.NewStore(cfg, logger)
	if err != nil {
		logger.Fatal("ошибка инициализации базы данных", zap.Error(err))
	}
	defer st.Close()

	// Применение миграций
	if err := migrations.RunMigrations(cfg, logger); err != nil {
		logger.Fatal("ошибка применения миграций", zap.Error(err))
	}

	// Инициализация метрик
	metricsSystem := metrics.New(logger)
	metricsHandler := metrics.NewHandler(metricsSystem, st, logger)

	// Инициализация Telegram бота
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Fatal("ошибка инициализации Telegram бота", zap.Error(err))
	}
	botAPI.Debug = cfg.Telegram.Debug

	logger.Info("Telegram бот инициализирован",
		zap.String("username", botAPI.Self.UserName),
		zap.Int64("id", botAPI.Self.ID))

	// Инициализация сервисов
	notifier := bot.NewNotifier(botAPI, cfg.Admin.ID, metricsSystem, logger)
	pointsService := points.NewService(st, notifier, metricsSystem, logger)
	engine := plan.NewEngine(st, notifier, metricsSystem, logger)
	tracker := session.NewTracker()

	services := bot.Services{
		Users:      user.NewService(st, pointsService, logger),
		Catalog:    catalog.NewService(st, logger),
		Payments:   payment.NewService(st, logger),
		Plans:      engine,
		Points:     pointsService,
		Assignment: assignment.NewService(tracker, engine, st, logger),
	}

	handler, err := bot.NewHandler(botAPI, services, tracker, auth.NewPolicy(cfg.Admin.ID), notifier, metricsSystem, logger)
	if err != nil {
		logger.Fatal("ошибка инициализации обработчика", zap.Error(err))
	}

	// Создание канала для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Блокировка еженедельного прохода
	locker, closeLocker := newLocker(ctx, cfg, logger)
	defer closeLocker()

	// Инициализация планировщика задач
	taskScheduler := scheduler.NewScheduler(logger)
	taskScheduler.AddJob(scheduler.NewProgressionJob(engine, locker, metricsSystem, cfg.Scheduler.LockTTL, logger))

	// Обработка сигналов для graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Запуск HTTP сервера для метрик
	go startMetricsServer(ctx, cfg.App.MetricsPort, metricsHandler, logger)

	// Запуск еженедельного счетчика
	go taskScheduler.Start(ctx, cfg.Scheduler.FirstRun, cfg.Scheduler.Interval)

	// Запуск обработки обновлений
	go handleUpdates(ctx, botAPI, bot.NewDispatcher(handler, logger), logger)

	logger.Info("приложение запущено и готово к работе",
		zap.String("metrics", fmt.Sprintf("http://localhost:%d/metrics", cfg.App.MetricsPort)),
		zap.Duration("sweep_interval", cfg.Scheduler.Interval))

	// Ожидание сигнала завершения
	<-sigChan
	logger.Info("получен сигнал завершения, начинаем graceful shutdown")

	// Останавливаем получение обновлений
	botAPI.StopReceivingUpdates()
	cancel()

	logger.Info("приложение завершено")
}

// initLogger инициализирует логгер
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.Level = cfg.App.GetLogLevel()
	zapConfig.OutputPaths = []string{"stdout", "logs/app.log"}
	zapConfig.ErrorOutputPaths = []string{"stderr", "logs/error.log"}

	// Создаем директорию для логов если её нет
	if err := os.MkdirAll("logs", 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории логов: %w", err)
	}

	return zapConfig.Build()
}

// newLocker выбирает Redis при REDIS_ENABLED, иначе блокировку в памяти процесса
func newLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (lock.Locker, func()) {
	if !cfg.Redis.Enabled {
		logger.Info("используется локальная блокировка прохода")
		return lock.NewLocalLocker(), func() {}
	}

	client, err := lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("ошибка подключения к Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	logger.Info("используется блокировка прохода в Redis", zap.String("addr", cfg.Redis.Addr))

	return lock.NewRedisLocker(client, "susu:", logger), func() {
		if err := client.Close(); err != nil {
			logger.Warn("ошибка закрытия Redis", zap.Error(err))
		}
	}
}

// handleUpdates обрабатывает обновления от Telegram
func handleUpdates(ctx context.Context, botAPI *tgbotapi.BotAPI, dispatcher *bot.Dispatcher, logger *zap.Logger) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := botAPI.GetUpdatesChan(updateConfig)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			// Пропускаем пустые обновления
			if update.Message == nil && update.CallbackQuery == nil {
				continue
			}

			// Очередь пользователя сохраняет порядок его обновлений
			dispatcher.Dispatch(ctx, update)

		case <-ctx.Done():
			logger.Info("остановка обработки обновлений")
			dispatcher.Wait()
			return
		}
	}
}

// startMetricsServer запускает HTTP сервер для метрик
func startMetricsServer(ctx context.Context, port int, handler *metrics.Handler, logger *zap.Logger) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("HTTP сервер метрик запущен", zap.String("address", server.Addr))

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ошибка HTTP сервера метрик", zap.Error(err))
		}
	}()

	// Ожидание сигнала завершения
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("ошибка остановки HTTP сервера", zap.Error(err))
	}
}
