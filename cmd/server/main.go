package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Spok95/school-attendance/internal/app"
	"github.com/Spok95/school-attendance/internal/config"
	"github.com/Spok95/school-attendance/internal/db"
	"github.com/Spok95/school-attendance/internal/jobs"
	"github.com/Spok95/school-attendance/internal/logging"
	"github.com/Spok95/school-attendance/internal/observability"
)

func main() {
	// Загрузка переменных окружения
	if err := godotenv.Load(); err != nil {
		log.Println("Не удалось загрузить .env файл, используем переменные окружения")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer lg.Closer()
	logger := lg.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, cfg.Release)
	if err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer func() { _ = database.Close() }()

	if err := db.Migrate(ctx, database); err != nil {
		observability.CaptureErr(err)
		logger.Fatal("migrations failed", zap.Error(err))
	}

	svc := app.NewService(database, logger, app.Options{
		Threshold:     cfg.RiskThreshold,
		ResolveWindow: cfg.ResolveWindow,
		OutboxBatch:   cfg.OutboxBatch,
		Location:      cfg.Location,
	})

	runner := jobs.New(ctx)
	jobs.StartOutboxLoop(runner, svc, cfg.OutboxInterval, cfg.OutboxBatch, logger)

	srv := app.StartHTTP(ctx, cfg.HTTPAddr, app.NewRouter(svc, database, logger), logger)
	logger.Info("server started", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Env))

	<-ctx.Done()
	logger.Info("shutting down")
	srv.Wait()
}
