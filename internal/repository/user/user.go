package userrepo

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

type userRepository struct {
	db *gorm.DB

	meter  metric.Meter
	tracer trace.Tracer
	log    *zap.Logger
}

// FindByID implements repository.UserRepository
func (r *userRepository) FindByID(ctx context.Context, id uint64) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "repository.FindUserByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("user.id", int64(id)))

	var row model.User
	err := r.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		span.SetStatus(codes.Error, "Failed to fetch user")
		span.RecordError(err)
		return nil, err
	}

	return &domain.User{
		ID:    row.ID,
		Email: row.Email,
		Name:  row.Name,
	}, nil
}

func NewUserRepository(
	db *gorm.DB,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) repository.UserRepository {
	return &userRepository{
		db:     db,
		meter:  meter,
		tracer: tracer,
		log:    log,
	}
}
