package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fi44er/otp_store/config"
	"github.com/Fi44er/otp_store/db"
	"github.com/Fi44er/otp_store/internal/bot"
	"github.com/Fi44er/otp_store/internal/handler"
	"github.com/Fi44er/otp_store/internal/pay0"
	"github.com/Fi44er/otp_store/internal/repository"
	"github.com/Fi44er/otp_store/internal/service"
	"github.com/Fi44er/otp_store/internal/smsman"
	"github.com/Fi44er/otp_store/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := utils.InitLogger()
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		logger.Fatal("Failed to load config: ", err)
	}
	logger.SetLevelString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.ConnectDb(cfg.DB_URL, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer db.Close(database, logger)

	if err := db.Migrate(database, cfg.DBAutoMigrate, logger); err != nil {
		logger.Fatal(err)
	}

	repo := repository.NewRepository(database, logger)
	aggregator := smsman.NewClient(cfg.SmsManBaseURL, cfg.SmsManAPIKey, cfg.PriceCacheTTL, logger)
	gateway := pay0.NewClient(cfg.Pay0BaseURL, cfg.Pay0UserToken, logger)
	svc := service.NewService(repo, aggregator, gateway, &cfg, logger)

	if cfg.TelegramBotToken != "" {
		api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			logger.Fatal("Failed to create bot API: ", err)
		}
		adminBot := bot.NewBot(api, svc, logger, cfg.AdminChatID)
		svc.SetNotifier(adminBot)
		go adminBot.Start(ctx)
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN is empty, admin bot disabled")
	}

	tokens, err := handler.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Fatal("Failed to create token manager: ", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHandler(svc, repo, tokens, logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.AcquireTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case err := <-errCh:
		logger.Errorf("HTTP server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
}
