package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"gstpos/backend/internal/cache"
	"gstpos/backend/internal/config"
	"gstpos/backend/internal/httpapi"
	"gstpos/backend/internal/lock"
	"gstpos/backend/internal/logging"
	"gstpos/backend/internal/service"
	"gstpos/backend/internal/store"
	"gstpos/backend/internal/store/memory"
	mongostore "gstpos/backend/internal/store/mongo"
	pgstore "gstpos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.EnvFileLoaded {
		logger.Info("loaded .env file")
	}
	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatalf("invalid security configuration: %v", err)
	}
	location, err := storeLocation(cfg.StoreTimezone)
	if err != nil {
		logger.Fatalf("invalid STORE_TIMEZONE: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)
	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("repository %s unavailable: %v", cfg.StoreBackend, err)
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}
	if err := ensureAccounts(ctx, repo, logger); err != nil {
		logger.Fatalf("seed accounts: %v", err)
	}

	productCache := cache.ProductCache(cache.NoopProductCache{})
	locker := lock.Locker(lock.NewLocal())
	if cfg.RedisAddr != "" {
		rdb := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		redisCache := cache.NewRedisProductCache(rdb)
		if err := redisCache.Ping(ctx); err != nil {
			logger.WithError(err).Warn("redis unavailable, using noop cache and in-process locks")
			_ = rdb.Close()
		} else {
			productCache = redisCache
			locker = lock.NewRedis(rdb, "gstpos:lock:", 30*time.Second)
			closers = append(closers, rdb.Close)
			logger.Info("cache and locks: redis")
		}
	} else {
		logger.Info("cache: noop, locks: in-process")
	}

	svc := service.New(repo, service.Options{
		Logger:         logger,
		Locker:         locker,
		ProductCache:   productCache,
		CacheTTL:       time.Duration(cfg.ProductCacheTTLSeconds) * time.Second,
		BillPrefix:     cfg.BillPrefix,
		TotalTolerance: cfg.TotalTolerance,
		Location:       location,
	})
	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.Address()).Info("GST POS backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.WithError(err).Error("close error")
		}
	}

	logger.Info("server stopped")
}

// openRepository builds the configured backend. A configured database that
// cannot be reached is fatal; there is no silent fallback to memory.
func openRepository(ctx context.Context, cfg config.Config, logger *logrus.Logger) (store.Repository, func() error, error) {
	switch cfg.StoreBackend {
	case config.BackendFile:
		if cfg.DataDir == "" {
			return nil, nil, errors.New("DATA_DIR is required for the file backend")
		}
		repo, err := memory.Open(cfg.DataDir, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("dir", cfg.DataDir).Info("repository: file")
		return repo, nil, nil
	case config.BackendMongo:
		if cfg.MongoURI == "" {
			return nil, nil, errors.New("MONGO_URI is required for the mongo backend")
		}
		repo, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("db", cfg.MongoDB).Info("repository: mongo")
		return repo, repo.Close, nil
	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
		repo, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("repository: postgres")
		return repo, repo.Close, nil
	default:
		logger.Info("repository: in-memory demo catalog")
		return memory.NewSeeded(), nil, nil
	}
}

// ensureAccounts gives an empty user table its admin and employee accounts.
func ensureAccounts(ctx context.Context, repo store.Repository, logger logrus.FieldLogger) error {
	users, err := repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}
	for _, account := range memory.DefaultAccounts(logger) {
		if err := repo.CreateUser(ctx, account); err != nil && !errors.Is(err, store.ErrConflict) {
			return err
		}
		logger.WithField("username", account.Username).Info("seeded account")
	}
	return nil
}

func storeLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

var weakSecrets = []string{"dev-change-me", "changeme", "change-me", "secret", "password", "gstpos"}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if err := validateSecretStrength(cfg.AuthSecret); err != nil {
		return fmt.Errorf("AUTH_SECRET is too weak: %w", err)
	}
	if cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must name an origin, not *")
	}
	return nil
}

// validateSecretStrength rejects secrets built from a known placeholder or
// from too few distinct characters.
func validateSecretStrength(secret string) error {
	lower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if strings.Trim(strings.ReplaceAll(lower, weak, ""), "-_0123456789") == "" {
			return fmt.Errorf("secret is a repeated placeholder value")
		}
	}

	distinct := map[rune]bool{}
	for _, r := range secret {
		distinct[r] = true
	}
	if len(distinct) < 8 {
		return fmt.Errorf("secret must use at least 8 distinct characters")
	}
	return nil
}
