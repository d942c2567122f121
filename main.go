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

	"github.com/fazamuttaqien/remitquota/config"
	mysqldb "github.com/fazamuttaqien/remitquota/infra/mysql"
	redisdb "github.com/fazamuttaqien/remitquota/infra/redis"
	"github.com/fazamuttaqien/remitquota/internal/model"
	"github.com/fazamuttaqien/remitquota/pkg/actorstore"
	ratelimiter "github.com/fazamuttaqien/remitquota/pkg/rate-limiter"
	"github.com/fazamuttaqien/remitquota/pkg/telemetry"
	"github.com/fazamuttaqien/remitquota/presenter"
	"github.com/fazamuttaqien/remitquota/router"

	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	slog.Info("Starting application setup...")

	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		slog.Error("No .env file found, using system environment variables", "error", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	tel, err := telemetry.New(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize monitoring: %v", err))
	}

	db, err := mysqldb.InitializeDatabase()
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	redisClient := redisdb.MonitorRedis(cfg)
	if redisClient == nil {
		panic("Failed to connect to Redis (MonitorRedis returned nil)")
	}
	go redisdb.WatchConnectionRedis(&redisClient, cfg)

	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.SHUTDOWN_TIMEOUT)
		defer cancelShutdown()

		zap.L().Info("Closing MySQL Connection...")
		if err := mysqldb.Close(db, shutdownCtx); err != nil {
			zap.L().Error("Error disconnecting from MySQL", zap.Error(err))
		} else {
			zap.L().Info("Disconnected from MySQL.")
		}

		zap.L().Info("Closing Redis connection...")
		if err := redisClient.Close(); err != nil {
			zap.L().Error("Error disconnecting from Redis", zap.Error(err))
		} else {
			zap.L().Info("Disconnected from Redis.")
		}

		zap.L().Info("Shutting down monitoring...")
		if err := tel.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("Error during monitoring shutdown", zap.Error(err))
		} else {
			zap.L().Info("Monitoring shutdown complete.")
		}
	}()

	if err := model.AutoMigrate(db); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migration completed!")

	SeedDefaultLimit(db, cfg)

	if err := mysqldb.Ping(db, ctx); err != nil {
		slog.Error("Database ping failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connection successful!")

	rps := 100.0 / (15 * 60)
	limiter := ratelimiter.NewRateLimiter(redisClient, rps, 100, 15*time.Minute)
	if limiter == nil {
		panic("Failed to initialize rate limiter")
	}

	store := session.New(session.Config{
		Expiration:     30 * time.Minute,
		CookieHTTPOnly: true,
		CookieSameSite: "Strict",
	})
	actorStore := actorstore.New(redisClient, cfg.ADMIN_SESSION_TTL)

	presenter := presenter.NewPresenter(db, cfg, tel)
	router := router.NewRouter(presenter, db, tel, cfg, limiter, store, actorStore)

	presenter.OutboxDispatcher.Start()
	defer presenter.OutboxDispatcher.Stop()

	addr := ":" + cfg.SERVER_PORT

	listenErr := make(chan error, 1)

	go func() {
		zap.L().Info("Server starting", zap.String("address", addr))
		if err := router.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		} else {
			listenErr <- nil
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		zap.L().Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-listenErr:
		if err != nil {
			zap.L().Error("Server listen error", zap.Error(err))
			os.Exit(1)
		}
	}

	zap.L().Info("Starting graceful shutdown...")
	if err := router.ShutdownWithTimeout(cfg.SHUTDOWN_TIMEOUT); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			zap.L().Warn("Server shutdown timed out", zap.Duration("timeout", cfg.SHUTDOWN_TIMEOUT))
		} else {
			zap.L().Error("Server shutdown error", zap.Error(err))
		}
	} else {
		zap.L().Info("Server gracefully stopped.")
	}

	zap.L().Info("Application shutdown complete.")
}

// SeedDefaultLimit installs the bootstrap default limit when the table has
// no active row. Quota resolution fails closed without an active default, so
// a fresh deployment must seed one before taking traffic.
func SeedDefaultLimit(db *gorm.DB, cfg *config.Config) {
	slog.Info("Checking for active default limit...")

	var count int64
	if err := db.Model(&model.DefaultLimit{}).Where("is_active = ?", true).Count(&count).Error; err != nil {
		slog.Error("Error checking for active default limit", "error", err)
		os.Exit(1)
	}

	if count > 0 {
		slog.Info("Active default limit already exists.")
		return
	}

	seed := model.DefaultLimit{
		DailyLimit:   cfg.DEFAULT_DAILY_LIMIT,
		MonthlyLimit: cfg.DEFAULT_MONTHLY_LIMIT,
		SingleLimit:  cfg.DEFAULT_SINGLE_LIMIT,
		Description:  "Bootstrap default limit",
		IsActive:     true,
	}
	if err := db.Create(&seed).Error; err != nil {
		slog.Error("Failed to seed default limit", "error", err)
		os.Exit(1)
	}
	slog.Info("Default limit seeded successfully.")
}
