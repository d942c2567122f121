package requestrepo

import (
	"context"
	"errors"

	"github.com/fazamuttaqien/remitquota/internal/domain"
	"github.com/fazamuttaqien/remitquota/internal/model"
	"github.com/fazamuttaqien/remitquota/internal/repository"
	"github.com/fazamuttaqien/remitquota/pkg/common"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type requestRepository struct {
	db *gorm.DB

	meter  metric.Meter
	tracer trace.Tracer
	log    *zap.Logger
}

// Create implements repository.RequestRepository
func (r *requestRepository) Create(ctx context.Context, request *domain.LimitChangeRequest) (*domain.LimitChangeRequest, error) {
	ctx, span := r.tracer.Start(ctx, "repository.CreateRequest")
	defer span.End()

	span.SetAttributes(attribute.Int64("user.id", int64(request.UserID)))

	row := model.RequestFromEntity(request)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		span.SetStatus(codes.Error, "Failed to insert limit change request")
		span.RecordError(err)
		return nil, err
	}

	return model.RequestToEntity(row), nil
}

// FindByID implements repository.RequestRepository
func (r *requestRepository) FindByID(ctx context.Context, id uint64) (*domain.LimitChangeRequest, error) {
	ctx, span := r.tracer.Start(ctx, "repository.FindRequestByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("request.id", int64(id)))

	var row model.LimitChangeRequest
	err := r.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrRequestNotFound
	}
	if err != nil {
		span.SetStatus(codes.Error, "Failed to fetch limit change request")
		span.RecordError(err)
		return nil, err
	}

	return model.RequestToEntity(row), nil
}

// Update implements repository.RequestRepository. Save writes every column,
// which is what re-request needs: AdminID and ProcessedAt go back to NULL
// and CreatedAt is refreshed rather than preserved.
func (r *requestRepository) Update(ctx context.Context, request *domain.LimitChangeRequest) error {
	ctx, span := r.tracer.Start(ctx, "repository.UpdateRequest")
	defer span.End()

	span.SetAttributes(attribute.Int64("request.id", int64(request.ID)))

	row := model.RequestFromEntity(request)
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		span.SetStatus(codes.Error, "Failed to update limit change request")
		span.RecordError(err)
		return err
	}

	return nil
}

// Delete implements repository.RequestRepository
func (r *requestRepository) Delete(ctx context.Context, id uint64) error {
	ctx, span := r.tracer.Start(ctx, "repository.DeleteRequest")
	defer span.End()

	span.SetAttributes(attribute.Int64("request.id", int64(id)))

	res := r.db.WithContext(ctx).Delete(&model.LimitChangeRequest{}, id)
	if res.Error != nil {
		span.SetStatus(codes.Error, "Failed to delete limit change request")
		span.RecordError(res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrRequestNotFound
	}

	return nil
}

// FindPaginated implements repository.RequestRepository
func (r *requestRepository) FindPaginated(ctx context.Context, params domain.Params) ([]domain.LimitChangeRequest, int64, error) {
	ctx, span := r.tracer.Start(ctx, "repository.FindRequestsPaginated")
	defer span.End()

	query := r.db.WithContext(ctx).Model(&model.LimitChangeRequest{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.UserID != 0 {
		query = query.Where("user_id = ?", params.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.SetStatus(codes.Error, "Failed to count limit change requests")
		span.RecordError(err)
		return nil, 0, err
	}

	offset := (params.Page - 1) * params.Limit

	var rows []model.LimitChangeRequest
	err := query.Order("created_at DESC").Offset(offset).Limit(params.Limit).Find(&rows).Error
	if err != nil {
		span.SetStatus(codes.Error, "Failed to list limit change requests")
		span.RecordError(err)
		return nil, 0, err
	}

	return model.RequestsToEntity(rows), total, nil
}

func NewRequestRepository(
	db *gorm.DB,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) repository.RequestRepository {
	return &requestRepository{
		db:     db,
		meter:  meter,
		tracer: tracer,
		log:    log,
	}
}
