package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/playerhoods/match-system/config"
	"github.com/playerhoods/match-system/db"
	"github.com/playerhoods/match-system/handlers"
	"github.com/playerhoods/match-system/live"
	"github.com/playerhoods/match-system/repositories"
	api "github.com/playerhoods/match-system/routes"
	"github.com/playerhoods/match-system/services"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Инициализация WebSocket Hub
	wsHub := live.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	historyRepo := repositories.NewPostgresParticipantHistoryRepository(dbConn)
	guestRepo := repositories.NewPostgresGuestRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	txBeginner := services.NewSQLTxBeginner(dbConn)
	evaluator := services.NewFormationEvaluator(participantRepo, guestRepo)
	emailService := services.NewEmailService(cfg, logger)
	notifier := services.NewFormationNotifier(
		matchRepo,
		participantRepo,
		guestRepo,
		userRepo,
		evaluator,
		emailService,
		cfg.PublicURL,
		logger,
	)

	authService := services.NewAuthService(userRepo)
	participantService := services.NewParticipantService(
		txBeginner,
		matchRepo,
		participantRepo,
		historyRepo,
		evaluator,
		notifier,
		wsHub,
		logger,
	)
	guestService := services.NewGuestService(
		txBeginner,
		matchRepo,
		participantRepo,
		guestRepo,
		evaluator,
		notifier,
		wsHub,
		logger,
	)
	matchService := services.NewMatchService(
		txBeginner,
		matchRepo,
		participantRepo,
		historyRepo,
		guestRepo,
		userRepo,
		evaluator,
		notifier,
		wsHub,
		logger,
	)
	logger.Info("Services initialized")

	// Инициализация обработчиков HTTP
	h := api.Handlers{
		Auth:        handlers.NewAuthHandler(authService, cfg.JWTSecretKey),
		Match:       handlers.NewMatchHandler(matchService),
		Participant: handlers.NewParticipantHandler(participantService),
		Guest:       handlers.NewGuestHandler(guestService),
		WebSocket:   handlers.NewWebSocketHandler(wsHub, matchService),
	}
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := api.SetupRoutes(h, cfg.JWTSecretKey)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
