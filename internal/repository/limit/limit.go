package limitrepo

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
	"gorm.io/gorm/clause"
)

type limitRepository struct {
	db *gorm.DB

	meter  metric.Meter
	tracer trace.Tracer
	log    *zap.Logger
}

// GetActiveDefault implements repository.LimitRepository
func (r *limitRepository) GetActiveDefault(ctx context.Context) (*domain.DefaultLimit, error) {
	ctx, span := r.tracer.Start(ctx, "repository.GetActiveDefault")
	defer span.End()

	var row model.DefaultLimit
	err := r.db.WithContext(ctx).Where("is_active = ?", true).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		span.SetStatus(codes.Error, "Failed to fetch active default limit")
		span.RecordError(err)
		return nil, err
	}

	return model.DefaultLimitToEntity(row), nil
}

// ReplaceActiveDefault implements repository.LimitRepository
func (r *limitRepository) ReplaceActiveDefault(ctx context.Context, limits domain.Limits, description string, actorID uint64) (*domain.DefaultLimit, error) {
	ctx, span := r.tracer.Start(ctx, "repository.ReplaceActiveDefault")
	defer span.End()

	span.SetAttributes(attribute.Int64("actor.id", int64(actorID)))

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		span.SetStatus(codes.Error, "Failed to begin transaction")
		span.RecordError(tx.Error)
		return nil, tx.Error
	}
	defer tx.Rollback()

	res := tx.Model(&model.DefaultLimit{}).Where("is_active = ?", true).Update("is_active", false)
	if res.Error != nil {
		span.SetStatus(codes.Error, "Failed to deactivate current default limit")
		span.RecordError(res.Error)
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Nothing to replace: a missing default is a configuration error
		// the caller must see, not a silent bootstrap.
		err := common.ErrDefaultLimitNotSet
		span.SetStatus(codes.Error, "No active default limit to replace")
		span.RecordError(err)
		return nil, err
	}

	row := model.DefaultLimit{
		DailyLimit:   limits.Daily,
		MonthlyLimit: limits.Monthly,
		SingleLimit:  limits.Single,
		Description:  description,
		IsActive:     true,
		UpdatedBy:    actorID,
	}
	if err := tx.Create(&row).Error; err != nil {
		span.SetStatus(codes.Error, "Failed to insert replacement default limit")
		span.RecordError(err)
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		span.SetStatus(codes.Error, "Failed to commit default limit replacement")
		span.RecordError(err)
		return nil, err
	}

	r.log.Info("Default limit replaced",
		zap.Uint64("default_limit_id", row.ID),
		zap.Uint64("actor_id", actorID),
		zap.Float64("daily_limit", limits.Daily),
		zap.Float64("monthly_limit", limits.Monthly),
		zap.Float64("single_limit", limits.Single),
	)

	return model.DefaultLimitToEntity(row), nil
}

// GetOverride implements repository.LimitRepository
func (r *limitRepository) GetOverride(ctx context.Context, userID uint64) (*domain.UserLimitOverride, error) {
	ctx, span := r.tracer.Start(ctx, "repository.GetOverride")
	defer span.End()

	span.SetAttributes(attribute.Int64("user.id", int64(userID)))

	var row model.UserLimitOverride
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		span.SetStatus(codes.Error, "Failed to fetch user limit override")
		span.RecordError(err)
		return nil, err
	}

	return model.OverrideToEntity(row), nil
}

// ReplaceOverride implements repository.LimitRepository.
// The unique index on user_id plus ON CONFLICT keeps concurrent approvals
// for the same user from ever leaving zero or two rows.
func (r *limitRepository) ReplaceOverride(ctx context.Context, userID uint64, limits domain.Limits, requestID uint64) error {
	ctx, span := r.tracer.Start(ctx, "repository.ReplaceOverride")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("request.id", int64(requestID)),
	)

	row := model.UserLimitOverride{
		UserID:       userID,
		DailyLimit:   limits.Daily,
		MonthlyLimit: limits.Monthly,
		SingleLimit:  limits.Single,
		RequestID:    requestID,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"daily_limit", "monthly_limit", "single_limit", "request_id", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		span.SetStatus(codes.Error, "Failed to upsert user limit override")
		span.RecordError(err)
		return err
	}

	return nil
}

// ClearOverride implements repository.LimitRepository
func (r *limitRepository) ClearOverride(ctx context.Context, userID uint64) error {
	ctx, span := r.tracer.Start(ctx, "repository.ClearOverride")
	defer span.End()

	span.SetAttributes(attribute.Int64("user.id", int64(userID)))

	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.UserLimitOverride{}).Error
	if err != nil {
		span.SetStatus(codes.Error, "Failed to clear user limit override")
		span.RecordError(err)
		return err
	}

	return nil
}

func NewLimitRepository(
	db *gorm.DB,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) repository.LimitRepository {
	return &limitRepository{
		db:     db,
		meter:  meter,
		tracer: tracer,
		log:    log,
	}
}
