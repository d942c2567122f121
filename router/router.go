package router

import (
	"errors"
	"time"

	"github.com/fazamuttaqien/remitquota/config"
	mysqldb "github.com/fazamuttaqien/remitquota/infra/mysql"
	"github.com/fazamuttaqien/remitquota/internal/domain"
	"github.com/fazamuttaqien/remitquota/middleware"
	"github.com/fazamuttaqien/remitquota/pkg/actorstore"
	ratelimiter "github.com/fazamuttaqien/remitquota/pkg/rate-limiter"
	"github.com/fazamuttaqien/remitquota/pkg/telemetry"
	"github.com/fazamuttaqien/remitquota/presenter"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewRouter(
	presenter presenter.Presenter,
	db *gorm.DB,
	tel *telemetry.OpenTelemetry,
	cfg *config.Config,
	limiter *ratelimiter.RateLimiter,
	store *session.Store,
	actorStore *actorstore.Store,
) *fiber.App {

	jwtAuth := middleware.NewJWTAuthMiddleware(cfg.JWT_SECRET_KEY)
	customCSRF := middleware.NewCustomCSRFMiddleware(store)
	adminActor := middleware.NewActorMiddleware(actorStore, tel.Log)
	requireUser := middleware.RequireRole(domain.UserRole, domain.AdminRole)

	app := fiber.New(fiber.Config{
		BodyLimit:    10 * 1024 * 1024,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: ErrorCustomHandler(tel.Log),
	})

	// 1. Recovery from panics
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	// 2. Security headers
	app.Use(helmet.New())
	// 3. CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:5000",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Session-Token, X-CSRF-Token",
		AllowMethods: "GET, POST, PUT, DELETE, PATCH, OPTIONS",
	}))

	// (Optional, since Zap already covers this)
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${ip} ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(otelfiber.Middleware(
		otelfiber.WithTracerProvider(tel.TracerProvider),
		otelfiber.WithPropagators(otel.GetTextMapPropagator()),
	))

	if cfg.REQUESTS_METRIC {
		zap.L().Info("Enabling HTTP request metrics middleware")
		app.Use(middleware.NewOtelMiddleware().Handle())
	} else {
		zap.L().Info("HTTP request metrics middleware is disabled")
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := mysqldb.Ping(db, c.Context()); err != nil {
			zap.L().Error("Health check failed: database ping error", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":      "healthy",
			"service":     cfg.SERVICE_NAME,
			"version":     cfg.SERVICE_VERSION,
			"environment": cfg.ENVIRONMENT,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := app.Group("/api/v1")

	api.Use(limiter.RateLimitMiddleware())

	api.Get("/csrf-token", func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Session error"})
		}

		token := sess.Get("csrf_token")
		if token == nil {
			newToken, err := middleware.GenerateCSRFToken()
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate CSRF token"})
			}
			sess.Set("csrf_token", newToken)
			if err := sess.Save(); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Session error"})
			}
			token = newToken
		}
		return c.JSON(fiber.Map{"csrf_token": token})
	})

	quotaAPI := api.Group("/quota", jwtAuth, requireUser)
	{
		quotaAPI.Post("/check-limit", presenter.QuotaPresenter.CheckLimit)
		quotaAPI.Get("/user-limit", presenter.QuotaPresenter.GetUserLimit)
	}

	requestsAPI := api.Group("/limit-requests", jwtAuth, requireUser)
	{
		requestsAPI.Get("/:userId", presenter.RequestPresenter.List)
		requestsAPI.Post("/:userId", customCSRF, presenter.RequestPresenter.Create)
		requestsAPI.Put("/:userId/:requestId", customCSRF, presenter.RequestPresenter.Update)
		requestsAPI.Delete("/:userId/:requestId", customCSRF, presenter.RequestPresenter.Cancel)
	}

	adminAPI := api.Group("/admin", adminActor, customCSRF)
	{
		adminAPI.Post("/limit-requests/search", presenter.AdminPresenter.Search)
		adminAPI.Put("/limit-requests/:id/process", presenter.AdminPresenter.Process)
		adminAPI.Get("/default-limit", presenter.AdminPresenter.GetDefaultLimit)
		adminAPI.Put("/default-limit", presenter.AdminPresenter.ReplaceDefaultLimit)
	}

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Resource not found",
			"path":    c.Path(),
		})
	})

	return app
}

func ErrorCustomHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
		}

		log.Error("Request error occured",
			zap.Error(err),
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.Int("status_code", code),
		)

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": message,
			"code":    code,
		})
	}
}
