package limitrepo_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/fazamuttaqien/remitquota/internal/domain"
	"github.com/fazamuttaqien/remitquota/internal/model"
	"github.com/fazamuttaqien/remitquota/internal/repository"
	limitrepo "github.com/fazamuttaqien/remitquota/internal/repository/limit"
	"github.com/fazamuttaqien/remitquota/pkg/common"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)

	err = model.AutoMigrate(db)
	assert.NoError(t, err)

	return db
}

func newLimitRepository(db *gorm.DB) repository.LimitRepository {
	return limitrepo.NewLimitRepository(
		db,
		otel.GetMeterProvider().Meter(""),
		otel.GetTracerProvider().Tracer(""),
		zap.L(),
	)
}

func TestGetActiveDefault(t *testing.T) {
	t.Run("Returns nil when none is active", func(t *testing.T) {
		db := setupTestDB(t)
		repo := newLimitRepository(db)

		// Act
		limit, err := repo.GetActiveDefault(context.Background())

		// Assert
		assert.NoError(t, err)
		assert.Nil(t, limit)
	})

	t.Run("Ignores inactive history rows", func(t *testing.T) {
		db := setupTestDB(t)
		assert.NoError(t, db.Create(&model.DefaultLimit{
			DailyLimit: 500_000, MonthlyLimit: 5_000_000, SingleLimit: 250_000, IsActive: false,
		}).Error)
		assert.NoError(t, db.Create(&model.DefaultLimit{
			DailyLimit: 1_000_000, MonthlyLimit: 10_000_000, SingleLimit: 500_000, IsActive: true,
		}).Error)
		repo := newLimitRepository(db)

		// Act
		limit, err := repo.GetActiveDefault(context.Background())

		// Assert
		assert.NoError(t, err)
		assert.NotNil(t, limit)
		assert.Equal(t, float64(1_000_000), limit.Limits.Daily)
	})
}

func TestReplaceActiveDefault(t *testing.T) {
	t.Run("Fails when there is no active row", func(t *testing.T) {
		db := setupTestDB(t)
		repo := newLimitRepository(db)

		// Act
		_, err := repo.ReplaceActiveDefault(context.Background(),
			domain.Limits{Daily: 1, Monthly: 2, Single: 3}, "first", 99)

		// Assert
		assert.ErrorIs(t, err, common.ErrDefaultLimitNotSet)

		var count int64
		db.Model(&model.DefaultLimit{}).Count(&count)
		assert.Zero(t, count)
	})

	t.Run("Deactivates old row and inserts replacement", func(t *testing.T) {
		db := setupTestDB(t)
		assert.NoError(t, db.Create(&model.DefaultLimit{
			DailyLimit: 1_000_000, MonthlyLimit: 10_000_000, SingleLimit: 500_000, IsActive: true,
		}).Error)
		repo := newLimitRepository(db)

		// Act
		replaced, err := repo.ReplaceActiveDefault(context.Background(),
			domain.Limits{Daily: 2_000_000, Monthly: 20_000_000, Single: 1_000_000}, "raised", 99)

		// Assert
		assert.NoError(t, err)
		assert.True(t, replaced.IsActive)
		assert.Equal(t, uint64(99), replaced.UpdatedBy)

		var activeCount, totalCount int64
		db.Model(&model.DefaultLimit{}).Where("is_active = ?", true).Count(&activeCount)
		db.Model(&model.DefaultLimit{}).Count(&totalCount)
		assert.Equal(t, int64(1), activeCount)
		assert.Equal(t, int64(2), totalCount)
	})
}

func TestOverride(t *testing.T) {
	t.Run("GetOverride returns nil for a user without one", func(t *testing.T) {
		db := setupTestDB(t)
		repo := newLimitRepository(db)

		// Act
		override, err := repo.GetOverride(context.Background(), 10)

		// Assert
		assert.NoError(t, err)
		assert.Nil(t, override)
	})

	t.Run("ReplaceOverride upserts on the user_id unique index", func(t *testing.T) {
		db := setupTestDB(t)
		repo := newLimitRepository(db)

		// Act: insert then replace
		err := repo.ReplaceOverride(context.Background(), 10,
			domain.Limits{Daily: 2_000_000, Monthly: 20_000_000, Single: 1_000_000}, 5)
		assert.NoError(t, err)

		err = repo.ReplaceOverride(context.Background(), 10,
			domain.Limits{Daily: 3_000_000, Monthly: 30_000_000, Single: 1_500_000}, 8)
		assert.NoError(t, err)

		// Assert: one row, fully replaced
		var count int64
		db.Model(&model.UserLimitOverride{}).Where("user_id = ?", 10).Count(&count)
		assert.Equal(t, int64(1), count)

		override, err := repo.GetOverride(context.Background(), 10)
		assert.NoError(t, err)
		assert.Equal(t, float64(3_000_000), override.Limits.Daily)
		assert.Equal(t, uint64(8), override.RequestID)
	})

	t.Run("ClearOverride removes the row", func(t *testing.T) {
		db := setupTestDB(t)
		repo := newLimitRepository(db)

		assert.NoError(t, repo.ReplaceOverride(context.Background(), 10,
			domain.Limits{Daily: 1, Monthly: 2, Single: 3}, 5))

		// Act
		assert.NoError(t, repo.ClearOverride(context.Background(), 10))

		// Assert
		override, err := repo.GetOverride(context.Background(), 10)
		assert.NoError(t, err)
		assert.Nil(t, override)
	})
}
