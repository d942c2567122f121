package quotahandler

import (
	"context"
	"errors"
	"strconv"
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

type QuotaHandler struct {
	quotaService    service.QuotaServices
	validate        *validator.Validate
	meter           metric.Meter
	tracer          trace.Tracer
	log             *zap.Logger
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	errorCount      metric.Int64Counter
}

func NewQuotaHandler(
	quotaService service.QuotaServices,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) *QuotaHandler {
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

	return &QuotaHandler{
		quotaService:    quotaService,
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
func (q *QuotaHandler) recordError(
	ctx context.Context, span trace.Span, c *fiber.Ctx,
	start time.Time, err error, statusCode int, errorType, message string, fields ...zap.Field) error {
	q.errorCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
		attribute.String("error_type", errorType),
		attribute.Int("status_code", statusCode),
	))

	duration := float64(time.Since(start).Nanoseconds()) / 1e6
	q.requestDuration.Record(ctx, duration, metric.WithAttributes(
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

	q.log.Error(message, logFields...)

	return c.Status(statusCode).JSON(fiber.Map{"error": message})
}

// recordSuccess helper function to record successful responses with observability
func (q *QuotaHandler) recordSuccess(
	ctx context.Context, span trace.Span, c *fiber.Ctx,
	start time.Time, statusCode int, responseData interface{}, fields ...zap.Field) error {
	duration := float64(time.Since(start).Nanoseconds()) / 1e6
	q.requestDuration.Record(ctx, duration, metric.WithAttributes(
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

	q.log.Info("Request completed successfully", logFields...)

	return c.Status(statusCode).JSON(responseData)
}

func (q *QuotaHandler) CheckLimit(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ctx, span := q.tracer.Start(ctx, "handler.CheckLimit")
	defer span.End()
	start := time.Now()

	span.SetAttributes(
		attribute.String("http.method", c.Method()),
		attribute.String("http.route", c.Path()),
		attribute.String("http.client_ip", c.IP()),
	)

	q.log.Debug("Received limit check request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.String("client_ip", c.IP()),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	q.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
	))

	var req dto.CheckLimitRequest
	if err := c.BodyParser(&req); err != nil {
		return q.recordError(
			ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
	}

	if err := q.validate.Struct(req); err != nil {
		return q.recordError(
			ctx, span, c, start, err,
			fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
	}

	span.SetAttributes(
		attribute.Int64("user.id", int64(req.UserID)),
		attribute.Float64("check.amount", req.Amount),
	)

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := q.quotaService.CheckLimit(serviceCtx, req)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrDefaultLimitNotSet):
			return q.recordError(
				ctx, span, c, start, err,
				fiber.StatusNotFound, "default_limit_not_set", "Default limit not configured", zap.Uint64("user_id", req.UserID))
		default:
			return q.recordError(
				ctx, span, c, start, err,
				fiber.StatusInternalServerError, "service_error", "Internal server error", zap.Error(err))
		}
	}

	span.SetAttributes(
		attribute.Bool("check.allowed", res.Allowed),
		attribute.String("check.exceeded_type", string(res.ExceededType)),
	)

	// A denied amount is still a successful check; it only changes the
	// status code so callers can branch without parsing the body.
	if !res.Allowed {
		return q.recordSuccess(ctx, span, c, start, fiber.StatusUnprocessableEntity, res,
			zap.Uint64("user_id", req.UserID),
			zap.String("exceeded_type", string(res.ExceededType)),
		)
	}

	return q.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Uint64("user_id", req.UserID),
		zap.Float64("amount", req.Amount),
	)
}

func (q *QuotaHandler) GetUserLimit(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ctx, span := q.tracer.Start(ctx, "handler.GetUserLimit")
	defer span.End()
	start := time.Now()

	span.SetAttributes(
		attribute.String("http.method", c.Method()),
		attribute.String("http.route", c.Path()),
		attribute.String("http.client_ip", c.IP()),
	)

	q.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
	))

	userID, err := strconv.ParseUint(c.Query("userId"), 10, 64)
	if err != nil || userID == 0 {
		if err == nil {
			err = errors.New("userId query parameter is required")
		}
		return q.recordError(
			ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid userId query parameter", zap.Error(err))
	}

	span.SetAttributes(attribute.Int64("user.id", int64(userID)))

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := q.quotaService.GetUserLimit(serviceCtx, userID)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrDefaultLimitNotSet):
			return q.recordError(
				ctx, span, c, start, err,
				fiber.StatusNotFound, "default_limit_not_set", "Default limit not configured", zap.Uint64("user_id", userID))
		default:
			return q.recordError(
				ctx, span, c, start, err,
				fiber.StatusInternalServerError, "service_error", "Internal server error", zap.Error(err))
		}
	}

	return q.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Uint64("user_id", userID),
		zap.String("limit_type", string(res.LimitType)),
	)
}
