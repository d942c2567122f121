package requesthandler

import (
	"context"
	"errors"
	"mime/multipart"
	"time"

	"github.com/fazamuttaqien/remitquota/internal/domain"
	"github.com/fazamuttaqien/remitquota/internal/dto"
	"github.com/fazamuttaqien/remitquota/internal/service"
	"github.com/fazamuttaqien/remitquota/middleware"
	"github.com/fazamuttaqien/remitquota/pkg/common"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type RequestHandler struct {
	requestService  service.RequestServices
	validate        *validator.Validate
	meter           metric.Meter
	tracer          trace.Tracer
	log             *zap.Logger
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	errorCount      metric.Int64Counter
}

func NewRequestHandler(
	requestService service.RequestServices,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) *RequestHandler {
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

	return &RequestHandler{
		requestService:  requestService,
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
func (h *RequestHandler) recordError(
	ctx context.Context, span trace.Span, c *fiber.Ctx,
	start time.Time, err error, statusCode int, errorType, message string, fields ...zap.Field) error {
	h.errorCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
		attribute.String("error_type", errorType),
		attribute.Int("status_code", statusCode),
	))

	duration := float64(time.Since(start).Nanoseconds()) / 1e6
	h.requestDuration.Record(ctx, duration, metric.WithAttributes(
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

	h.log.Error(message, logFields...)

	return c.Status(statusCode).JSON(fiber.Map{"error": message})
}

// recordSuccess helper function to record successful responses with observability
func (h *RequestHandler) recordSuccess(
	ctx context.Context, span trace.Span, c *fiber.Ctx,
	start time.Time, statusCode int, responseData interface{}, fields ...zap.Field) error {
	duration := float64(time.Since(start).Nanoseconds()) / 1e6
	h.requestDuration.Record(ctx, duration, metric.WithAttributes(
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

	h.log.Info("Request completed successfully", logFields...)

	if responseData == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(responseData)
}

// authorizeOwner rejects callers operating on someone else's requests.
// Admins may act on any user.
func (h *RequestHandler) authorizeOwner(c *fiber.Ctx, userID uint64) error {
	claims, err := middleware.GetClaimsFromLocals(c)
	if err != nil {
		return err
	}
	if claims.Role != domain.AdminRole && claims.UserID != userID {
		return common.ErrRequestNotOwned
	}
	return nil
}

// collectFiles picks up whichever attachment parts the multipart body
// carries. Absent parts are simply not in the map.
func collectFiles(c *fiber.Ctx) map[domain.AttachmentSlot]*multipart.FileHeader {
	files := make(map[domain.AttachmentSlot]*multipart.FileHeader)
	for _, slot := range domain.Slots {
		if file, err := c.FormFile(string(slot)); err == nil && file != nil {
			files[slot] = file
		}
	}
	return files
}

func (h *RequestHandler) mapServiceError(
	ctx context.Context, span trace.Span, c *fiber.Ctx,
	start time.Time, err error, fields ...zap.Field) error {
	switch {
	case errors.Is(err, common.ErrRequestNotFound):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusNotFound, "request_not_found", "Limit change request not found", fields...)
	case errors.Is(err, common.ErrRequestNotOwned):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusForbidden, "request_not_owned", "Request belongs to another user", fields...)
	case errors.Is(err, common.ErrRequestNotEditable):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusUnprocessableEntity, "request_not_editable", "Request is no longer editable", fields...)
	case errors.Is(err, common.ErrRequestNotPending):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusUnprocessableEntity, "request_not_pending", "Request is not pending", fields...)
	case errors.Is(err, common.ErrOverrideExists):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusConflict, "override_exists", "Request already produced an override", fields...)
	default:
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusInternalServerError, "service_error", "Internal server error", append(fields, zap.Error(err))...)
	}
}

func (h *RequestHandler) Create(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ctx, span := h.tracer.Start(ctx, "handler.CreateLimitRequest")
	defer span.End()
	start := time.Now()

	span.SetAttributes(
		attribute.String("http.method", c.Method()),
		attribute.String("http.route", c.Path()),
		attribute.String("http.client_ip", c.IP()),
	)

	h.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
	))

	userID, err := c.ParamsInt("userId")
	if err != nil || userID <= 0 {
		if err == nil {
			err = errors.New("userId must be a positive integer")
		}
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid userId path parameter")
	}
	if err := h.authorizeOwner(c, uint64(userID)); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusForbidden, "not_owner", "Cannot create requests for another user",
			zap.Int("user_id", userID))
	}

	var form dto.LimitRequestForm
	if err := c.BodyParser(&form); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Cannot parse request form", zap.Error(err))
	}
	if err := h.validate.Struct(form); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
	}

	files := collectFiles(c)

	span.SetAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int("request.attachments", len(files)),
	)

	serviceCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := h.requestService.Create(serviceCtx, uint64(userID), form, files)
	if err != nil {
		return h.mapServiceError(ctx, span, c, start, err, zap.Int("user_id", userID))
	}

	span.SetAttributes(attribute.Int64("request.id", int64(res.ID)))

	return h.recordSuccess(ctx, span, c, start, fiber.StatusCreated, res,
		zap.Int("user_id", userID),
		zap.Uint64("request_id", res.ID),
	)
}

func (h *RequestHandler) Update(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ctx, span := h.tracer.Start(ctx, "handler.UpdateLimitRequest")
	defer span.End()
	start := time.Now()

	span.SetAttributes(
		attribute.String("http.method", c.Method()),
		attribute.String("http.route", c.Path()),
		attribute.String("http.client_ip", c.IP()),
	)

	h.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
	))

	userID, err := c.ParamsInt("userId")
	if err != nil || userID <= 0 {
		if err == nil {
			err = errors.New("userId must be a positive integer")
		}
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid userId path parameter")
	}
	requestID, err := c.ParamsInt("requestId")
	if err != nil || requestID <= 0 {
		if err == nil {
			err = errors.New("requestId must be a positive integer")
		}
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid requestId path parameter")
	}
	if err := h.authorizeOwner(c, uint64(userID)); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusForbidden, "not_owner", "Cannot update requests of another user",
			zap.Int("user_id", userID))
	}

	var form dto.LimitRequestForm
	if err := c.BodyParser(&form); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Cannot parse request form", zap.Error(err))
	}
	if err := h.validate.Struct(form); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
	}

	files := collectFiles(c)

	span.SetAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("request.id", int64(requestID)),
		attribute.Bool("request.rerequest", form.IsRerequest),
	)

	serviceCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := h.requestService.Update(serviceCtx, uint64(userID), uint64(requestID), form, files)
	if err != nil {
		return h.mapServiceError(ctx, span, c, start, err,
			zap.Int("user_id", userID), zap.Int("request_id", requestID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Int("user_id", userID),
		zap.Int("request_id", requestID),
		zap.Bool("rerequest", form.IsRerequest),
	)
}

func (h *RequestHandler) Cancel(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ctx, span := h.tracer.Start(ctx, "handler.CancelLimitRequest")
	defer span.End()
	start := time.Now()

	span.SetAttributes(
		attribute.String("http.method", c.Method()),
		attribute.String("http.route", c.Path()),
		attribute.String("http.client_ip", c.IP()),
	)

	h.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
	))

	userID, err := c.ParamsInt("userId")
	if err != nil || userID <= 0 {
		if err == nil {
			err = errors.New("userId must be a positive integer")
		}
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid userId path parameter")
	}
	requestID, err := c.ParamsInt("requestId")
	if err != nil || requestID <= 0 {
		if err == nil {
			err = errors.New("requestId must be a positive integer")
		}
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid requestId path parameter")
	}
	if err := h.authorizeOwner(c, uint64(userID)); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusForbidden, "not_owner", "Cannot cancel requests of another user",
			zap.Int("user_id", userID))
	}

	span.SetAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("request.id", int64(requestID)),
	)

	serviceCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := h.requestService.Cancel(serviceCtx, uint64(userID), uint64(requestID)); err != nil {
		return h.mapServiceError(ctx, span, c, start, err,
			zap.Int("user_id", userID), zap.Int("request_id", requestID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, fiber.Map{"message": "Request cancelled"},
		zap.Int("user_id", userID),
		zap.Int("request_id", requestID),
	)
}

func (h *RequestHandler) List(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ctx, span := h.tracer.Start(ctx, "handler.ListLimitRequests")
	defer span.End()
	start := time.Now()

	span.SetAttributes(
		attribute.String("http.method", c.Method()),
		attribute.String("http.route", c.Path()),
		attribute.String("http.client_ip", c.IP()),
	)

	h.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
	))

	userID, err := c.ParamsInt("userId")
	if err != nil || userID <= 0 {
		if err == nil {
			err = errors.New("userId must be a positive integer")
		}
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid userId path parameter")
	}
	if err := h.authorizeOwner(c, uint64(userID)); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusForbidden, "not_owner", "Cannot list requests of another user",
			zap.Int("user_id", userID))
	}

	params := domain.Params{
		Status: c.Query("status"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 10),
	}
	if params.Status != "" {
		if _, ok := domain.ParseRequestStatus(params.Status); !ok {
			err := common.ErrInvalidStatus
			return h.recordError(ctx, span, c, start, err,
				fiber.StatusBadRequest, "validation_error", "Unknown status filter",
				zap.String("status", params.Status))
		}
	}

	span.SetAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int("pagination.page", params.Page),
		attribute.Int("pagination.limit", params.Limit),
	)

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := h.requestService.ListByUser(serviceCtx, uint64(userID), params)
	if err != nil {
		return h.mapServiceError(ctx, span, c, start, err, zap.Int("user_id", userID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Int("user_id", userID),
		zap.Int64("total", res.Total),
	)
}
