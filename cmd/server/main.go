package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/taskkez-be/internal/accounts"
	"github.com/hongminglow/taskkez-be/internal/auth"
	"github.com/hongminglow/taskkez-be/internal/blob"
	"github.com/hongminglow/taskkez-be/internal/config"
	"github.com/hongminglow/taskkez-be/internal/http/handlers"
	"github.com/hongminglow/taskkez-be/internal/ledger"
	"github.com/hongminglow/taskkez-be/internal/metrics"
	"github.com/hongminglow/taskkez-be/internal/notify"
	"github.com/hongminglow/taskkez-be/internal/profiles"
	"github.com/hongminglow/taskkez-be/internal/server"
	"github.com/hongminglow/taskkez-be/internal/storage"
	"github.com/hongminglow/taskkez-be/internal/storage/memory"
	"github.com/hongminglow/taskkez-be/internal/storage/postgres"
	"github.com/hongminglow/taskkez-be/internal/verification"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx := context.Background()
	checks := map[string]handlers.Check{}

	var store storage.Store
	if cfg.DatabaseURL != "" {
		pg, err := postgres.NewStore(ctx, cfg.DatabaseURL, postgres.Options{UniqueEmail: cfg.UniqueEmail})
		if err != nil {
			logger.Fatal("init database", zap.Error(err))
		}
		defer pg.Close()
		store = pg
		checks["database"] = pg.Ping
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory store")
		store = memory.NewStore(cfg.UniqueEmail)
	}

	var tokenLedger ledger.Ledger
	if len(cfg.RedisAddrs) > 0 {
		rl := ledger.NewRedisLedger(cfg.RedisAddrs, cfg.RedisPassword)
		defer rl.Close()
		if err := rl.Ping(ctx); err != nil {
			logger.Fatal("connect to redis", zap.Error(err))
		}
		tokenLedger = rl
		checks["redis"] = rl.Ping
	} else {
		logger.Warn("REDIS_ADDR not set; token ledger is process-local")
		tokenLedger = ledger.NewMemoryLedger()
	}

	var notifier notify.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		kn := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaNotifyTopic, logger)
		defer kn.Close()
		notifier = kn
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	blobs, err := blob.NewStore(cfg.MediaRoot, cfg.MaxUploadBytes, cfg.PictureMaxDimension, logger)
	if err != nil {
		logger.Fatal("init media store", zap.Error(err))
	}
	blobs.LimitPixels(cfg.MaxImagePixels)

	m := metrics.New()
	acc := accounts.NewService(accounts.Deps{
		Store:    store,
		Hasher:   auth.NewBcryptHasher(bcrypt.DefaultCost),
		Sessions: auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL),
		Tokens:   verification.NewService(cfg.JWTSecret, cfg.JWTIssuer, cfg.EmailConfirmTTL, cfg.PasswordResetTTL, tokenLedger),
		Ledger:   tokenLedger,
		Notifier: notifier,
		Metrics:  m,
		Logger:   logger,
	}, accounts.Policy{
		Method:       cfg.AuthMethod,
		Verification: cfg.EmailVerification,
		UniqueEmail:  cfg.UniqueEmail,
		PhoneRegion:  cfg.DefaultPhoneRegion,
	})
	prof := profiles.NewService(store, acc, blobs, m, logger, profiles.Options{
		IDNumberMaxLength: cfg.IDNumberMaxLength,
		MediaURL:          cfg.MediaURL,
	})

	srv := server.New(cfg, server.Deps{
		Accounts: acc,
		Profiles: prof,
		Metrics:  m,
		Logger:   logger,
		Checks:   checks,
	})

	go func() {
		logger.Info("taskkez backend listening", zap.String("addr", cfg.HTTPAddress()))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("graceful shutdown error", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
