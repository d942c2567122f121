package adminhandler

import (
	"context"
	"errors"
	"time"

	"github.com/fazamuttaqien/remitquota/internal/dto"
	"github.com/fazamuttaqien/remitquota/internal/service"
	"github.com/fazamuttaqien/remitquota/pkg/common"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type AdminHandler struct {
	adminService    service.AdminServices
	validate        *validator.Validate
	meter           metric.Meter
	tracer          trace.Tracer
	log             *zap.Logger
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	errorCount      metric.Int64Counter
}

func NewAdminHandler(
	adminService service.AdminServices,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) *AdminHandler {
	requestCount, err := meter.Int64Counter(
		"api.request.count",
		metric.WithDescription("Number of API requests received"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		zap.L().Fatal("Failed to create request count metric", zap.Error(err))
	}

	requestDuration, err := meter.Float64Histogram(
		"api.request.duration",
		metric.WithDescription("Duration of API requests"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		zap.L().Fatal("Failed to create request duration metric", zap.Error(err))
	}

	errorCount, err := meter.Int64Counter(
		"api.error.count",
		metric.WithDescription("Number of API errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		zap.L().Fatal("Failed to create error count metric", zap.Error(err))
	}

	return &AdminHandler{
		adminService:    adminService,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		meter:           meter,
		tracer:          tracer,
		log:             log,
		requestCount:    requestCount,
		requestDuration: requestDuration,
		errorCount:      errorCount,
	}
}

// recordError helper function to record errors with observability
func (a *AdminHandler) recordError(
	ctx context.Context, span trace.Span, c *fiber.Ctx,
	start time.Time, err error, statusCode int, errorType, message string, fields ...zap.Field) error {
	a.errorCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
		attribute.String("error_type", errorType),
		attribute.Int("status_code", statusCode),
	))

	duration := float64(time.Since(start).Nanoseconds()) / 1e6
	a.requestDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
		attribute.Int("status_code", statusCode),
	))

	span.SetAttributes(
		attribute.String("error.type", errorType),
		attribute.String("error.message", err.Error()),
		attribute.Int("http.status_code", statusCode),
	)
	span.RecordError(err)

	logFields := append([]zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.Int("status_code", statusCode),
		zap.String("error_type", errorType),
		zap.Float64("duration_ms", duration),
	}, fields...)

	a.log.Error(message, logFields...)

	return c.Status(statusCode).JSON(fiber.Map{"error": message})
}

// recordSuccess helper function to record successful responses with observability
func (a *AdminHandler) recordSuccess(
	ctx context.Context, span trace.Span, c *fiber.Ctx,
	start time.Time, statusCode int, responseData interface{}, fields ...zap.Field) error {
	duration := float64(time.Since(start).Nanoseconds()) / 1e6
	a.requestDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
		attribute.Int("status_code", statusCode),
	))

	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Float64("request.duration_ms", duration),
	)

	logFields := append([]zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.Int("status_code", statusCode),
		zap.Float64("duration_ms", duration),
	}, fields...)

	a.log.Info("Request completed successfully", logFields...)

	return c.Status(statusCode).JSON(responseData)
}

func (a *AdminHandler) Search(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ctx, span := a.tracer.Start(ctx, "handler.SearchLimitRequests")
	defer span.End()
	start := time.Now()

	span.SetAttributes(
		attribute.String("http.method", c.Method()),
		attribute.String("http.route", c.Path()),
		attribute.String("http.client_ip", c.IP()),
	)

	a.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
	))

	var req dto.SearchRequests
	if err := c.BodyParser(&req); err != nil {
		return a.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
	}
	if err := a.validate.Struct(req); err != nil {
		return a.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
	}

	span.SetAttributes(
		attribute.String("search.status", req.Status),
		attribute.Int64("search.user_id", int64(req.UserID)),
	)

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := a.adminService.Search(serviceCtx, req)
	if err != nil {
		return a.recordError(ctx, span, c, start, err,
			fiber.StatusInternalServerError, "service_error", "Internal server error", zap.Error(err))
	}

	return a.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.String("status", req.Status),
		zap.Int64("total", res.Total),
	)
}

func (a *AdminHandler) Process(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ctx, span := a.tracer.Start(ctx, "handler.ProcessLimitRequest")
	defer span.End()
	start := time.Now()

	span.SetAttributes(
		attribute.String("http.method", c.Method()),
		attribute.String("http.route", c.Path()),
		attribute.String("http.client_ip", c.IP()),
	)

	a.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
	))

	requestID, err := c.ParamsInt("id")
	if err != nil || requestID <= 0 {
		if err == nil {
			err = errors.New("request id must be a positive integer")
		}
		return a.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid request id path parameter")
	}

	var req dto.ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		return a.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
	}
	if err := a.validate.Struct(req); err != nil {
		return a.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
	}

	span.SetAttributes(
		attribute.Int64("request.id", int64(requestID)),
		attribute.String("decision", req.Status),
	)

	serviceCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	res, err := a.adminService.Process(serviceCtx, uint64(requestID), req)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrRequestNotFound):
			return a.recordError(ctx, span, c, start, err,
				fiber.StatusNotFound, "request_not_found", "Limit change request not found",
				zap.Int("request_id", requestID))
		case errors.Is(err, common.ErrRequestNotPending):
			return a.recordError(ctx, span, c, start, err,
				fiber.StatusUnprocessableEntity, "request_not_pending", "Request is not awaiting a decision",
				zap.Int("request_id", requestID))
		case errors.Is(err, common.ErrRequestNotOwned):
			return a.recordError(ctx, span, c, start, err,
				fiber.StatusBadRequest, "user_mismatch", "Decision targets a different user than the request",
				zap.Int("request_id", requestID))
		case errors.Is(err, common.ErrInvalidStatus):
			return a.recordError(ctx, span, c, start, err,
				fiber.StatusBadRequest, "invalid_status", "Unknown decision status",
				zap.String("status", req.Status))
		case errors.Is(err, common.ErrUserNotFound):
			return a.recordError(ctx, span, c, start, err,
				fiber.StatusNotFound, "user_not_found", "Request owner not found",
				zap.Uint64("user_id", req.UserID))
		case errors.Is(err, common.ErrSessionNotFound):
			return a.recordError(ctx, span, c, start, err,
				fiber.StatusUnauthorized, "no_actor", "No admin session")
		default:
			return a.recordError(ctx, span, c, start, err,
				fiber.StatusInternalServerError, "service_error", "Internal server error", zap.Error(err))
		}
	}

	return a.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Int("request_id", requestID),
		zap.String("decision", req.Status),
	)
}

func (a *AdminHandler) GetDefaultLimit(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ctx, span := a.tracer.Start(ctx, "handler.GetDefaultLimit")
	defer span.End()
	start := time.Now()

	span.SetAttributes(
		attribute.String("http.method", c.Method()),
		attribute.String("http.route", c.Path()),
		attribute.String("http.client_ip", c.IP()),
	)

	a.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
	))

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := a.adminService.GetDefaultLimit(serviceCtx)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrDefaultLimitNotSet):
			return a.recordError(ctx, span, c, start, err,
				fiber.StatusNotFound, "default_limit_not_set", "Default limit not configured")
		default:
			return a.recordError(ctx, span, c, start, err,
				fiber.StatusInternalServerError, "service_error", "Internal server error", zap.Error(err))
		}
	}

	return a.recordSuccess(ctx, span, c, start, fiber.StatusOK, res)
}

func (a *AdminHandler) ReplaceDefaultLimit(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ctx, span := a.tracer.Start(ctx, "handler.ReplaceDefaultLimit")
	defer span.End()
	start := time.Now()

	span.SetAttributes(
		attribute.String("http.method", c.Method()),
		attribute.String("http.route", c.Path()),
		attribute.String("http.client_ip", c.IP()),
	)

	a.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
	))

	var req dto.ReplaceDefaultLimit
	if err := c.BodyParser(&req); err != nil {
		return a.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
	}
	if err := a.validate.Struct(req); err != nil {
		return a.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
	}

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := a.adminService.ReplaceDefaultLimit(serviceCtx, req)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrDefaultLimitNotSet):
			return a.recordError(ctx, span, c, start, err,
				fiber.StatusNotFound, "default_limit_not_set", "No active default limit to replace")
		case errors.Is(err, common.ErrSessionNotFound):
			return a.recordError(ctx, span, c, start, err,
				fiber.StatusUnauthorized, "no_actor", "No admin session")
		default:
			return a.recordError(ctx, span, c, start, err,
				fiber.StatusInternalServerError, "service_error", "Internal server error", zap.Error(err))
		}
	}

	return a.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Float64("daily_limit", res.DailyLimit),
		zap.Float64("monthly_limit", res.MonthlyLimit),
	)
}
