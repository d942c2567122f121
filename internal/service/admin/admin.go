package adminsrv

import (
	"context"
	"math"
	"time"

	"github.com/fazamuttaqien/remitquota/internal/domain"
	"github.com/fazamuttaqien/remitquota/internal/dto"
	"github.com/fazamuttaqien/remitquota/internal/model"
	"github.com/fazamuttaqien/remitquota/internal/repository"
	"github.com/fazamuttaqien/remitquota/internal/service"
	"github.com/fazamuttaqien/remitquota/pkg/common"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type adminService struct {
	db                *gorm.DB
	requestRepository repository.RequestRepository
	limitRepository   repository.LimitRepository
	userRepository    repository.UserRepository
	outboxRepository  repository.OutboxRepository

	meter             metric.Meter
	tracer            trace.Tracer
	log               *zap.Logger
	operationDuration metric.Float64Histogram
	operationCount    metric.Int64Counter
	errorCount        metric.Int64Counter
	requestsApproved  metric.Int64Counter
	requestsRejected  metric.Int64Counter
}

func (a *adminService) recordError(ctx context.Context, span trace.Span, start time.Time, operation, errorType, message string, err error, fields ...zap.Field) {
	span.SetStatus(codes.Error, message)
	span.RecordError(err)

	fields = append(fields,
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.Error(err),
	)
	a.log.Error(message, fields...)

	a.errorCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("service", "admin"),
			attribute.String("error_type", errorType),
		),
	)

	a.operationDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("service", "admin"),
			attribute.String("status", "error"),
		),
	)
}

func (a *adminService) recordSuccess(ctx context.Context, span trace.Span, start time.Time, operation, message string, fields ...zap.Field) {
	duration := float64(time.Since(start).Milliseconds())
	a.operationDuration.Record(ctx, duration,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("service", "admin"),
			attribute.String("status", "success"),
		),
	)

	fields = append(fields,
		zap.Float64("duration_ms", duration),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)
	a.log.Info(message, fields...)

	span.SetStatus(codes.Ok, message)
}

// Process implements AdminServices. The request update, the override upsert
// and the notification enqueue commit in a single transaction: a decision
// either fully lands or not at all, and notification delivery (handled by
// the outbox dispatcher) can never roll it back.
func (a *adminService) Process(ctx context.Context, requestID uint64, req dto.ProcessRequest) (*dto.LimitRequestResponse, error) {
	ctx, span := a.tracer.Start(ctx, "service.ProcessLimitRequest")
	defer span.End()

	start := time.Now()

	a.operationCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", "process_request"),
			attribute.String("service", "admin"),
		),
	)

	span.SetAttributes(
		attribute.Int64("request.id", int64(requestID)),
		attribute.String("decision", req.Status),
		attribute.String("service", "admin"),
	)

	actor, ok := domain.ActorFrom(ctx)
	if !ok {
		err := common.ErrSessionNotFound
		a.recordError(ctx, span, start, "process_request", "no_actor",
			"No admin actor in request context", err, zap.Uint64("request_id", requestID))
		return nil, err
	}
	span.SetAttributes(attribute.Int64("actor.id", int64(actor.ID)))

	decision, ok := domain.ParseRequestStatus(req.Status)
	if !ok || decision == domain.RequestPending {
		err := common.ErrInvalidStatus
		a.recordError(ctx, span, start, "process_request", "invalid_status",
			"Unknown decision status", err,
			zap.Uint64("request_id", requestID), zap.String("status", req.Status))
		return nil, err
	}

	request, err := a.requestRepository.FindByID(ctx, requestID)
	if err != nil {
		a.recordError(ctx, span, start, "process_request", "not_found",
			"Limit change request not found", err, zap.Uint64("request_id", requestID))
		return nil, err
	}
	if request.UserID != req.UserID {
		err := common.ErrRequestNotOwned
		a.recordError(ctx, span, start, "process_request", "user_mismatch",
			"Decision targets a different user than the request", err,
			zap.Uint64("request_id", requestID),
			zap.Uint64("request_user_id", request.UserID),
			zap.Uint64("decision_user_id", req.UserID),
		)
		return nil, err
	}
	if !request.Status.CanTransition(decision) {
		err := common.ErrRequestNotPending
		a.recordError(ctx, span, start, "process_request", "invalid_transition",
			"Request is not awaiting a decision", err,
			zap.Uint64("request_id", requestID), zap.String("status", string(request.Status)))
		return nil, err
	}

	recipient, err := a.userRepository.FindByID(ctx, request.UserID)
	if err != nil {
		a.recordError(ctx, span, start, "process_request", "user_lookup_failed",
			"Failed to look up request owner", err, zap.Uint64("user_id", request.UserID))
		return nil, err
	}

	grantedLimits := req.Limits()
	now := time.Now()
	adminID := actor.ID

	tx := a.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		a.recordError(ctx, span, start, "process_request", "transaction_begin_error",
			"Failed to begin transaction", tx.Error, zap.Uint64("request_id", requestID))
		return nil, tx.Error
	}
	defer tx.Rollback()

	// The status guard in the WHERE clause makes the decision first-wins:
	// a concurrent admin who lost the race affects zero rows.
	res := tx.Model(&model.LimitChangeRequest{}).
		Where("id = ? AND status = ?", requestID, string(domain.RequestPending)).
		Updates(map[string]any{
			"status":        string(decision),
			"admin_id":      adminID,
			"admin_comment": req.AdminComment,
			"processed_at":  &now,
		})
	if res.Error != nil {
		a.recordError(ctx, span, start, "process_request", "update_failed",
			"Failed to update limit change request", res.Error, zap.Uint64("request_id", requestID))
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		err := common.ErrRequestNotPending
		a.recordError(ctx, span, start, "process_request", "concurrent_decision",
			"Request was decided concurrently", err, zap.Uint64("request_id", requestID))
		return nil, err
	}

	if decision == domain.RequestApproved {
		override := model.UserLimitOverride{
			UserID:       request.UserID,
			DailyLimit:   grantedLimits.Daily,
			MonthlyLimit: grantedLimits.Monthly,
			SingleLimit:  grantedLimits.Single,
			RequestID:    requestID,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"daily_limit", "monthly_limit", "single_limit", "request_id", "updated_at",
			}),
		}).Create(&override).Error
		if err != nil {
			a.recordError(ctx, span, start, "process_request", "override_upsert_failed",
				"Failed to upsert user limit override", err, zap.Uint64("user_id", request.UserID))
			return nil, err
		}
	}

	notice := domain.DecisionNotice{
		RequestID: requestID,
		Recipient: recipient.Email,
		Name:      recipient.Name,
		Decision:  decision,
		Comment:   req.AdminComment,
		Limits:    grantedLimits,
	}
	if err := a.outboxRepository.Enqueue(ctx, tx, notice); err != nil {
		a.recordError(ctx, span, start, "process_request", "notice_enqueue_failed",
			"Failed to enqueue decision notice", err, zap.Uint64("request_id", requestID))
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		a.recordError(ctx, span, start, "process_request", "transaction_commit_error",
			"Failed to commit decision", err, zap.Uint64("request_id", requestID))
		return nil, err
	}

	if decision == domain.RequestApproved {
		a.requestsApproved.Add(ctx, 1, metric.WithAttributes(attribute.String("service", "admin")))
	} else {
		a.requestsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("service", "admin")))
	}

	request.Status = decision
	request.AdminID = &adminID
	request.AdminComment = req.AdminComment
	request.ProcessedAt = &now
	request.Requested = grantedLimits

	a.recordSuccess(ctx, span, start, "process_request", "Limit change request processed",
		zap.Uint64("request_id", requestID),
		zap.Uint64("user_id", request.UserID),
		zap.Uint64("admin_id", adminID),
		zap.String("decision", string(decision)),
	)

	response := dto.LimitRequestFromEntity(request)
	return &response, nil
}

// Search implements AdminServices
func (a *adminService) Search(ctx context.Context, req dto.SearchRequests) (*domain.Paginated, error) {
	ctx, span := a.tracer.Start(ctx, "service.SearchLimitRequests")
	defer span.End()

	start := time.Now()

	a.operationCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", "search_requests"),
			attribute.String("service", "admin"),
		),
	)

	params := domain.Params{
		Status: req.Status,
		UserID: req.UserID,
		Page:   req.Page,
		Limit:  req.Limit,
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = 10
	}

	span.SetAttributes(
		attribute.String("search.status", req.Status),
		attribute.Int64("search.user_id", int64(req.UserID)),
		attribute.Int("pagination.page", params.Page),
		attribute.Int("pagination.limit", params.Limit),
		attribute.String("service", "admin"),
	)

	requests, total, err := a.requestRepository.FindPaginated(ctx, params)
	if err != nil {
		a.recordError(ctx, span, start, "search_requests", "repository_error",
			"Failed to search limit change requests", err)
		return nil, err
	}

	responses := make([]dto.LimitRequestResponse, len(requests))
	for i := range requests {
		responses[i] = dto.LimitRequestFromEntity(&requests[i])
	}

	totalPages := 0
	if params.Limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(params.Limit)))
	}

	a.recordSuccess(ctx, span, start, "search_requests", "Limit change requests searched",
		zap.Int64("total", total),
		zap.Int("page", params.Page),
	)
	span.SetAttributes(attribute.Int64("requests.total", total))

	return &domain.Paginated{
		Data:       responses,
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages,
	}, nil
}

// GetDefaultLimit implements AdminServices
func (a *adminService) GetDefaultLimit(ctx context.Context) (*dto.DefaultLimitResponse, error) {
	ctx, span := a.tracer.Start(ctx, "service.GetDefaultLimit")
	defer span.End()

	start := time.Now()

	a.operationCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", "get_default_limit"),
			attribute.String("service", "admin"),
		),
	)

	defaultLimit, err := a.limitRepository.GetActiveDefault(ctx)
	if err != nil {
		a.recordError(ctx, span, start, "get_default_limit", "repository_error",
			"Failed to fetch default limit", err)
		return nil, err
	}
	if defaultLimit == nil {
		err := common.ErrDefaultLimitNotSet
		a.recordError(ctx, span, start, "get_default_limit", "default_limit_not_set",
			"No active default limit configured", err)
		return nil, err
	}

	a.recordSuccess(ctx, span, start, "get_default_limit", "Default limit retrieved",
		zap.Uint64("default_limit_id", defaultLimit.ID))

	return &dto.DefaultLimitResponse{
		DailyLimit:   defaultLimit.Limits.Daily,
		MonthlyLimit: defaultLimit.Limits.Monthly,
		SingleLimit:  defaultLimit.Limits.Single,
		Description:  defaultLimit.Description,
		UpdatedBy:    defaultLimit.UpdatedBy,
		UpdatedAt:    defaultLimit.UpdatedAt,
	}, nil
}

// ReplaceDefaultLimit implements AdminServices
func (a *adminService) ReplaceDefaultLimit(ctx context.Context, req dto.ReplaceDefaultLimit) (*dto.DefaultLimitResponse, error) {
	ctx, span := a.tracer.Start(ctx, "service.ReplaceDefaultLimit")
	defer span.End()

	start := time.Now()

	a.operationCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", "replace_default_limit"),
			attribute.String("service", "admin"),
		),
	)

	actor, ok := domain.ActorFrom(ctx)
	if !ok {
		err := common.ErrSessionNotFound
		a.recordError(ctx, span, start, "replace_default_limit", "no_actor",
			"No admin actor in request context", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("actor.id", int64(actor.ID)))

	replaced, err := a.limitRepository.ReplaceActiveDefault(ctx, req.Limits(), req.Description, actor.ID)
	if err != nil {
		a.recordError(ctx, span, start, "replace_default_limit", "replace_failed",
			"Failed to replace default limit", err, zap.Uint64("actor_id", actor.ID))
		return nil, err
	}

	a.recordSuccess(ctx, span, start, "replace_default_limit", "Default limit replaced",
		zap.Uint64("default_limit_id", replaced.ID),
		zap.Uint64("actor_id", actor.ID),
	)

	return &dto.DefaultLimitResponse{
		DailyLimit:   replaced.Limits.Daily,
		MonthlyLimit: replaced.Limits.Monthly,
		SingleLimit:  replaced.Limits.Single,
		Description:  replaced.Description,
		UpdatedBy:    replaced.UpdatedBy,
		UpdatedAt:    replaced.UpdatedAt,
	}, nil
}

func NewAdminService(
	db *gorm.DB,
	requestRepository repository.RequestRepository,
	limitRepository repository.LimitRepository,
	userRepository repository.UserRepository,
	outboxRepository repository.OutboxRepository,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) service.AdminServices {
	operationDuration, _ := meter.Float64Histogram(
		"service.operation.duration",
		metric.WithDescription("Duration of service operations"),
		metric.WithUnit("ms"),
	)

	operationCount, _ := meter.Int64Counter(
		"service.operation.count",
		metric.WithDescription("Number of service operations"),
		metric.WithUnit("{operation}"),
	)

	errorCount, _ := meter.Int64Counter(
		"service.error.count",
		metric.WithDescription("Number of service errors"),
		metric.WithUnit("{error}"),
	)

	requestsApproved, _ := meter.Int64Counter(
		"service.requests.approved",
		metric.WithDescription("Number of limit change requests approved"),
		metric.WithUnit("{request}"),
	)

	requestsRejected, _ := meter.Int64Counter(
		"service.requests.rejected",
		metric.WithDescription("Number of limit change requests rejected"),
		metric.WithUnit("{request}"),
	)

	return &adminService{
		db:                db,
		requestRepository: requestRepository,
		limitRepository:   limitRepository,
		userRepository:    userRepository,
		outboxRepository:  outboxRepository,

		meter:             meter,
		tracer:            tracer,
		log:               log,
		operationDuration: operationDuration,
		operationCount:    operationCount,
		errorCount:        errorCount,
		requestsApproved:  requestsApproved,
		requestsRejected:  requestsRejected,
	}
}
