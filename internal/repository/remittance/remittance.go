package remittancerepo

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

type remittanceRepository struct {
	db *gorm.DB

	meter  metric.Meter
	tracer trace.Tracer
	log    *zap.Logger
}

// SumCompletedInRange implements repository.RemittanceRepository. The range
// is half-open: [from, to). COALESCE keeps a user with no rows at zero
// instead of NULL.
func (r *remittanceRepository) SumCompletedInRange(ctx context.Context, userID uint64, from, to time.Time) (float64, error) {
	ctx, span := r.tracer.Start(ctx, "repository.SumCompletedInRange")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.String("range.from", from.Format(time.RFC3339)),
		attribute.String("range.to", to.Format(time.RFC3339)),
	)

	var total float64
	err := r.db.WithContext(ctx).
		Model(&model.Remittance{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND status = ? AND created_at >= ? AND created_at < ?",
			userID, string(domain.RemittanceCompleted), from, to).
		Scan(&total).Error
	if err != nil {
		span.SetStatus(codes.Error, "Failed to sum completed remittances")
		span.RecordError(err)
		return 0, err
	}

	return total, nil
}

func NewRemittanceRepository(
	db *gorm.DB,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) repository.RemittanceRepository {
	return &remittanceRepository{
		db:     db,
		meter:  meter,
		tracer: tracer,
		log:    log,
	}
}
