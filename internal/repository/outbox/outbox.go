package outboxrepo

import (
	"context"
	"time"

	"github.com/fazamuttaqien/remitquota/internal/domain"
	"github.com/fazamuttaqien/remitquota/internal/model"
	"github.com/fazamuttaqien/remitquota/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type outboxRepository struct {
	db *gorm.DB

	meter  metric.Meter
	tracer trace.Tracer
	log    *zap.Logger
}

// Enqueue implements repository.OutboxRepository. The row is written
// through tx so it commits atomically with the decision.
func (r *outboxRepository) Enqueue(ctx context.Context, tx *gorm.DB, notice domain.DecisionNotice) error {
	ctx, span := r.tracer.Start(ctx, "repository.EnqueueNotice")
	defer span.End()

	span.SetAttributes(attribute.Int64("request.id", int64(notice.RequestID)))

	db := tx
	if db == nil {
		db = r.db
	}

	row := model.EmailOutbox{
		RequestID:    notice.RequestID,
		Recipient:    notice.Recipient,
		Name:         notice.Name,
		Decision:     string(notice.Decision),
		Comment:      notice.Comment,
		DailyLimit:   notice.Limits.Daily,
		MonthlyLimit: notice.Limits.Monthly,
		SingleLimit:  notice.Limits.Single,
		State:        model.OutboxPending,
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		span.SetStatus(codes.Error, "Failed to enqueue decision notice")
		span.RecordError(err)
		return err
	}

	return nil
}

// ClaimPending implements repository.OutboxRepository
func (r *outboxRepository) ClaimPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	ctx, span := r.tracer.Start(ctx, "repository.ClaimPendingNotices")
	defer span.End()

	var rows []model.EmailOutbox
	err := r.db.WithContext(ctx).
		Where("state = ?", model.OutboxPending).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		span.SetStatus(codes.Error, "Failed to claim pending notices")
		span.RecordError(err)
		return nil, err
	}

	messages := make([]domain.OutboxMessage, len(rows))
	for i, row := range rows {
		messages[i] = toMessage(row)
	}
	return messages, nil
}

// MarkSent implements repository.OutboxRepository
func (r *outboxRepository) MarkSent(ctx context.Context, id uint64) error {
	ctx, span := r.tracer.Start(ctx, "repository.MarkNoticeSent")
	defer span.End()

	span.SetAttributes(attribute.Int64("outbox.id", int64(id)))

	now := time.Now()
	err := r.db.WithContext(ctx).
		Model(&model.EmailOutbox{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"state":      model.OutboxSent,
			"sent_at":    &now,
			"last_error": "",
		}).Error
	if err != nil {
		span.SetStatus(codes.Error, "Failed to mark notice sent")
		span.RecordError(err)
		return err
	}

	return nil
}

// MarkFailed implements repository.OutboxRepository. The row stays PENDING
// for another delivery attempt until attempts reaches maxAttempts, then it
// parks as FAILED for manual follow-up.
func (r *outboxRepository) MarkFailed(ctx context.Context, id uint64, attemptErr error, maxAttempts int) error {
	ctx, span := r.tracer.Start(ctx, "repository.MarkNoticeFailed")
	defer span.End()

	span.SetAttributes(attribute.Int64("outbox.id", int64(id)))

	var row model.EmailOutbox
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		span.SetStatus(codes.Error, "Failed to fetch notice for failure update")
		span.RecordError(err)
		return err
	}

	row.Attempts++
	row.LastError = attemptErr.Error()
	if row.Attempts >= maxAttempts {
		row.State = model.OutboxFailed
		r.log.Warn("Decision notice exhausted delivery attempts",
			zap.Uint64("outbox_id", id),
			zap.Uint64("request_id", row.RequestID),
			zap.Int("attempts", row.Attempts),
			zap.String("last_error", row.LastError),
		)
	}

	err := r.db.WithContext(ctx).
		Model(&model.EmailOutbox{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"state":      row.State,
			"attempts":   row.Attempts,
			"last_error": row.LastError,
		}).Error
	if err != nil {
		span.SetStatus(codes.Error, "Failed to mark notice failed")
		span.RecordError(err)
		return err
	}

	return nil
}

func toMessage(row model.EmailOutbox) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID: row.ID,
		Notice: domain.DecisionNotice{
			RequestID: row.RequestID,
			Recipient: row.Recipient,
			Name:      row.Name,
			Decision:  domain.RequestStatus(row.Decision),
			Comment:   row.Comment,
			Limits: domain.Limits{
				Daily:   row.DailyLimit,
				Monthly: row.MonthlyLimit,
				Single:  row.SingleLimit,
			},
		},
		State:     domain.OutboxState(row.State),
		Attempts:  row.Attempts,
		LastError: row.LastError,
		CreatedAt: row.CreatedAt,
		SentAt:    row.SentAt,
	}
}

func NewOutboxRepository(
	db *gorm.DB,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) repository.OutboxRepository {
	return &outboxRepository{
		db:     db,
		meter:  meter,
		tracer: tracer,
		log:    log,
	}
}
