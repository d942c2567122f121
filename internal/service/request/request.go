package requestsrv

import (
	"context"
	"math"
	"mime/multipart"
	"time"

	"github.com/fazamuttaqien/remitquota/internal/domain"
	"github.com/fazamuttaqien/remitquota/internal/dto"
	"github.com/fazamuttaqien/remitquota/internal/repository"
	"github.com/fazamuttaqien/remitquota/internal/service"
	"github.com/fazamuttaqien/remitquota/pkg/common"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const attachmentFolder = "limit-requests"

type requestService struct {
	requestRepository repository.RequestRepository
	limitRepository   repository.LimitRepository
	fileStore         service.FileStore

	meter             metric.Meter
	tracer            trace.Tracer
	log               *zap.Logger
	operationDuration metric.Float64Histogram
	operationCount    metric.Int64Counter
	errorCount        metric.Int64Counter
	requestsCreated   metric.Int64Counter
	requestsCancelled metric.Int64Counter
}

func (s *requestService) recordError(ctx context.Context, span trace.Span, start time.Time, operation, errorType, message string, err error, fields ...zap.Field) {
	span.SetStatus(codes.Error, message)
	span.RecordError(err)

	fields = append(fields,
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.Error(err),
	)
	s.log.Error(message, fields...)

	s.errorCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("service", "request"),
			attribute.String("error_type", errorType),
		),
	)

	s.operationDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("service", "request"),
			attribute.String("status", "error"),
		),
	)
}

func (s *requestService) recordSuccess(ctx context.Context, span trace.Span, start time.Time, operation, message string, fields ...zap.Field) {
	duration := float64(time.Since(start).Milliseconds())
	s.operationDuration.Record(ctx, duration,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("service", "request"),
			attribute.String("status", "success"),
		),
	)

	fields = append(fields,
		zap.Float64("duration_ms", duration),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)
	s.log.Info(message, fields...)

	span.SetStatus(codes.Ok, message)
}

// stageUploads uploads the provided files slot by slot. On any failure the
// files staged so far are destroyed so storage never holds orphans of a
// request row that was never written.
func (s *requestService) stageUploads(ctx context.Context, files map[domain.AttachmentSlot]*multipart.FileHeader) (map[domain.AttachmentSlot]domain.Attachment, error) {
	staged := make(map[domain.AttachmentSlot]domain.Attachment, len(files))
	for _, slot := range domain.Slots {
		file, ok := files[slot]
		if !ok || file == nil {
			continue
		}
		attachment, err := s.fileStore.Upload(ctx, file, attachmentFolder)
		if err != nil {
			s.rollbackUploads(ctx, staged)
			return nil, err
		}
		staged[slot] = *attachment
	}
	return staged, nil
}

func (s *requestService) rollbackUploads(ctx context.Context, staged map[domain.AttachmentSlot]domain.Attachment) {
	for slot, attachment := range staged {
		if err := s.fileStore.Destroy(ctx, attachment.PublicID); err != nil {
			s.log.Warn("Failed to roll back staged attachment",
				zap.String("slot", string(slot)),
				zap.String("public_id", attachment.PublicID),
				zap.Error(err),
			)
		}
	}
}

func (s *requestService) destroyAttachments(ctx context.Context, attachments []domain.Attachment) {
	for _, attachment := range attachments {
		if attachment.Empty() {
			continue
		}
		if err := s.fileStore.Destroy(ctx, attachment.PublicID); err != nil {
			s.log.Warn("Failed to destroy attachment",
				zap.String("public_id", attachment.PublicID),
				zap.Error(err),
			)
		}
	}
}

// Create implements RequestServices
func (s *requestService) Create(ctx context.Context, userID uint64, form dto.LimitRequestForm, files map[domain.AttachmentSlot]*multipart.FileHeader) (*dto.LimitRequestResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateLimitRequest")
	defer span.End()

	start := time.Now()

	s.log.Debug("Creating limit change request",
		zap.Uint64("user_id", userID),
		zap.Int("attachments", len(files)),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	s.operationCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", "create_request"),
			attribute.String("service", "request"),
		),
	)

	span.SetAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int("request.attachments", len(files)),
		attribute.String("service", "request"),
	)

	staged, err := s.stageUploads(ctx, files)
	if err != nil {
		s.recordError(ctx, span, start, "create_request", "upload_failed",
			"Failed to upload request attachment", err, zap.Uint64("user_id", userID))
		return nil, err
	}

	request := &domain.LimitChangeRequest{
		UserID:      userID,
		Requested:   form.Limits(),
		Reason:      form.Reason,
		Attachments: staged,
		Status:      domain.RequestPending,
	}

	created, err := s.requestRepository.Create(ctx, request)
	if err != nil {
		s.rollbackUploads(ctx, staged)
		s.recordError(ctx, span, start, "create_request", "create_failed",
			"Failed to create limit change request", err, zap.Uint64("user_id", userID))
		return nil, err
	}

	s.requestsCreated.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("service", "request"),
		),
	)

	s.recordSuccess(ctx, span, start, "create_request", "Limit change request created",
		zap.Uint64("user_id", userID),
		zap.Uint64("request_id", created.ID),
	)
	span.SetAttributes(attribute.Int64("request.id", int64(created.ID)))

	response := dto.LimitRequestFromEntity(created)
	return &response, nil
}

// Update implements RequestServices
func (s *requestService) Update(ctx context.Context, userID uint64, requestID uint64, form dto.LimitRequestForm, files map[domain.AttachmentSlot]*multipart.FileHeader) (*dto.LimitRequestResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.UpdateLimitRequest")
	defer span.End()

	start := time.Now()

	s.operationCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", "update_request"),
			attribute.String("service", "request"),
		),
	)

	span.SetAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("request.id", int64(requestID)),
		attribute.String("service", "request"),
	)

	request, err := s.requestRepository.FindByID(ctx, requestID)
	if err != nil {
		s.recordError(ctx, span, start, "update_request", "not_found",
			"Limit change request not found", err, zap.Uint64("request_id", requestID))
		return nil, err
	}
	if request.UserID != userID {
		err := common.ErrRequestNotOwned
		s.recordError(ctx, span, start, "update_request", "not_owned",
			"Limit change request belongs to another user", err,
			zap.Uint64("request_id", requestID), zap.Uint64("user_id", userID))
		return nil, err
	}
	if request.Status != domain.RequestPending && request.Status != domain.RequestRejected {
		err := common.ErrRequestNotEditable
		s.recordError(ctx, span, start, "update_request", "not_editable",
			"Limit change request is no longer editable", err,
			zap.Uint64("request_id", requestID), zap.String("status", string(request.Status)))
		return nil, err
	}

	staged, err := s.stageUploads(ctx, files)
	if err != nil {
		s.recordError(ctx, span, start, "update_request", "upload_failed",
			"Failed to upload replacement attachment", err, zap.Uint64("request_id", requestID))
		return nil, err
	}

	// Old files are only destroyed after the row commits so a failed update
	// never loses documents that are still referenced.
	var obsolete []domain.Attachment
	removeFlags := form.RemoveFlags()
	for _, slot := range domain.Slots {
		if replacement, ok := staged[slot]; ok {
			if old, had := request.Attachments[slot]; had {
				obsolete = append(obsolete, old)
			}
			request.Attachments[slot] = replacement
			continue
		}
		if removeFlags[slot] {
			if old, had := request.Attachments[slot]; had {
				obsolete = append(obsolete, old)
				delete(request.Attachments, slot)
			}
		}
	}

	request.Requested = form.Limits()
	request.Reason = form.Reason

	rerequest := form.IsRerequest || request.Status == domain.RequestRejected
	if rerequest && request.Status == domain.RequestRejected {
		if !request.Status.CanTransition(domain.RequestPending) {
			err := common.ErrInvalidStatus
			s.rollbackUploads(ctx, staged)
			s.recordError(ctx, span, start, "update_request", "invalid_transition",
				"Request cannot return to pending", err, zap.Uint64("request_id", requestID))
			return nil, err
		}
		request.Status = domain.RequestPending
	}
	if rerequest {
		// A re-request starts a fresh review cycle: the previous decision
		// is wiped and the request re-enters the queue at the back.
		request.AdminID = nil
		request.AdminComment = ""
		request.ProcessedAt = nil
		request.CreatedAt = time.Now()
	}

	if err := s.requestRepository.Update(ctx, request); err != nil {
		s.rollbackUploads(ctx, staged)
		s.recordError(ctx, span, start, "update_request", "update_failed",
			"Failed to update limit change request", err, zap.Uint64("request_id", requestID))
		return nil, err
	}

	s.destroyAttachments(ctx, obsolete)

	s.recordSuccess(ctx, span, start, "update_request", "Limit change request updated",
		zap.Uint64("user_id", userID),
		zap.Uint64("request_id", requestID),
		zap.Bool("rerequest", rerequest),
	)

	response := dto.LimitRequestFromEntity(request)
	return &response, nil
}

// Cancel implements RequestServices
func (s *requestService) Cancel(ctx context.Context, userID uint64, requestID uint64) error {
	ctx, span := s.tracer.Start(ctx, "service.CancelLimitRequest")
	defer span.End()

	start := time.Now()

	s.operationCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", "cancel_request"),
			attribute.String("service", "request"),
		),
	)

	span.SetAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("request.id", int64(requestID)),
		attribute.String("service", "request"),
	)

	request, err := s.requestRepository.FindByID(ctx, requestID)
	if err != nil {
		s.recordError(ctx, span, start, "cancel_request", "not_found",
			"Limit change request not found", err, zap.Uint64("request_id", requestID))
		return err
	}
	if request.UserID != userID {
		err := common.ErrRequestNotOwned
		s.recordError(ctx, span, start, "cancel_request", "not_owned",
			"Limit change request belongs to another user", err,
			zap.Uint64("request_id", requestID), zap.Uint64("user_id", userID))
		return err
	}
	if request.Status != domain.RequestPending {
		err := common.ErrRequestNotPending
		s.recordError(ctx, span, start, "cancel_request", "not_pending",
			"Only pending requests can be cancelled", err,
			zap.Uint64("request_id", requestID), zap.String("status", string(request.Status)))
		return err
	}

	// A concurrent approval may have landed between the user's read and
	// this cancel. Deleting the request while its override lives on would
	// orphan the override, so the cancel is refused as a conflict.
	override, err := s.limitRepository.GetOverride(ctx, userID)
	if err != nil {
		s.recordError(ctx, span, start, "cancel_request", "repository_error",
			"Failed to check existing override", err, zap.Uint64("user_id", userID))
		return err
	}
	if override != nil {
		err := common.ErrOverrideExists
		s.recordError(ctx, span, start, "cancel_request", "override_exists",
			"Request already produced an override", err,
			zap.Uint64("request_id", requestID), zap.Uint64("user_id", userID))
		return err
	}

	if err := s.requestRepository.Delete(ctx, requestID); err != nil {
		s.recordError(ctx, span, start, "cancel_request", "delete_failed",
			"Failed to delete limit change request", err, zap.Uint64("request_id", requestID))
		return err
	}

	attachments := make([]domain.Attachment, 0, len(request.Attachments))
	for _, attachment := range request.Attachments {
		attachments = append(attachments, attachment)
	}
	s.destroyAttachments(ctx, attachments)

	s.requestsCancelled.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("service", "request"),
		),
	)

	s.recordSuccess(ctx, span, start, "cancel_request", "Limit change request cancelled",
		zap.Uint64("user_id", userID),
		zap.Uint64("request_id", requestID),
		zap.Int("attachments_removed", len(attachments)),
	)

	return nil
}

// ListByUser implements RequestServices
func (s *requestService) ListByUser(ctx context.Context, userID uint64, params domain.Params) (*domain.Paginated, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListLimitRequests")
	defer span.End()

	start := time.Now()

	s.operationCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", "list_requests"),
			attribute.String("service", "request"),
		),
	)

	span.SetAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.String("service", "request"),
	)

	params.UserID = userID
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = 10
	}

	requests, total, err := s.requestRepository.FindPaginated(ctx, params)
	if err != nil {
		s.recordError(ctx, span, start, "list_requests", "repository_error",
			"Failed to list limit change requests", err, zap.Uint64("user_id", userID))
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

	s.recordSuccess(ctx, span, start, "list_requests", "Limit change requests listed",
		zap.Uint64("user_id", userID),
		zap.Int64("total", total),
	)

	return &domain.Paginated{
		Data:       responses,
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages,
	}, nil
}

func NewRequestService(
	requestRepository repository.RequestRepository,
	limitRepository repository.LimitRepository,
	fileStore service.FileStore,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) service.RequestServices {
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

	requestsCreated, _ := meter.Int64Counter(
		"service.requests.created",
		metric.WithDescription("Number of limit change requests created"),
		metric.WithUnit("{request}"),
	)

	requestsCancelled, _ := meter.Int64Counter(
		"service.requests.cancelled",
		metric.WithDescription("Number of limit change requests cancelled"),
		metric.WithUnit("{request}"),
	)

	return &requestService{
		requestRepository: requestRepository,
		limitRepository:   limitRepository,
		fileStore:         fileStore,

		meter:             meter,
		tracer:            tracer,
		log:               log,
		operationDuration: operationDuration,
		operationCount:    operationCount,
		errorCount:        errorCount,
		requestsCreated:   requestsCreated,
		requestsCancelled: requestsCancelled,
	}
}
