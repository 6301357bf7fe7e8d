package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/angel0101P/Bot-SusuSemanal/internal/config"
	"github.com/angel0101P/Bot-SusuSemanal/internal/migrations"
	"github.com/angel0101P/Bot-SusuSemanal/internal/payment"
	"github.com/angel0101P/Bot-SusuSemanal/internal/store"

	"go.uber.org/zap"
)

func main() {
	var (
		days   = flag.Int("days", 30, "Удалять отклоненные платежи старше указанного числа дней")
		userID = flag.Int64("user", 0, "ID пользователя для очистки (0 = все пользователи)")
		dryRun = flag.Bool("dry-run", false, "Показать что будет удалено без фактического удаления")
		status = flag.Bool("status", false, "Только вывести статус миграций")
	)
	flag.Parse()

	// Инициализация логгера
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Ошибка инициализации логгера:", err)
	}
	defer logger.Sync()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	if *status {
		if err := migrations.GetMigrationStatus(cfg, logger); err != nil {
			logger.Fatal("Ошибка получения статуса миграций", zap.Error(err))
		}
		return
	}

	if *days < 1 {
		logger.Fatal("Число дней должно быть положительным", zap.Int("days", *days))
	}

	// Подключение к базе данных
	st, err := store.NewStore(cfg, logger)
	if err != nil {
		logger.Fatal("Ошибка подключения к базе данных", zap.Error(err))
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	purged, err := payment.NewService(st, logger).PurgeRejected(ctx, time.Duration(*days)*24*time.Hour, *userID, *dryRun)
	if err != nil {
		logger.Fatal("Ошибка очистки платежей", zap.Error(err))
	}

	if *dryRun {
		logger.Info("DRY RUN: Будет удалено платежей", zap.Int("count", purged))
		return
	}
	logger.Info("Очистка платежей завершена успешно", zap.Int("deleted_count", purged))
}
