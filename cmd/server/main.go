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

	"github.com/joho/godotenv"

	"github.com/limpopoconnect/classifieds-api/internal/config"
	"github.com/limpopoconnect/classifieds-api/internal/logger"
	"github.com/limpopoconnect/classifieds-api/internal/mail"
	"github.com/limpopoconnect/classifieds-api/internal/server"
	"github.com/limpopoconnect/classifieds-api/internal/storage"
	"github.com/limpopoconnect/classifieds-api/internal/storage/mongo"
	"github.com/limpopoconnect/classifieds-api/internal/storage/postgres"
	"github.com/limpopoconnect/classifieds-api/internal/storage/sqlite"
)

const serviceName = "classifieds-api"

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(serviceName, logger.ParseLevel(cfg.LogLevel))
	slog.SetDefault(log)
	if envErr != nil {
		log.Info("no .env file found; relying on existing environment")
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("init store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg, store, mailSender(cfg, log), log)

	go func() {
		log.Info("LimpopoConnect API listening", "addr", srv.Addr(), "store", cfg.StoreDriver)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Warn("graceful shutdown error", "error", err)
	}
	if err := store.Close(); err != nil {
		log.Warn("close store", "error", err)
	}
	log.Info("shutdown complete")
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DatabaseURL)
	case config.DriverMongo:
		return mongo.Open(ctx, cfg.MongoURL, cfg.MongoDatabase)
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func mailSender(cfg config.Config, log *slog.Logger) mail.Sender {
	if cfg.SendGridAPIKey == "" {
		log.Info("SENDGRID_API_KEY not set; password reset mail is logged only")
		return mail.NewLogSender(log)
	}
	return mail.NewSendGridSender(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName)
}
