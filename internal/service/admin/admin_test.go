package adminsrv_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/fazamuttaqien/remitquota/internal/domain"
	"github.com/fazamuttaqien/remitquota/internal/dto"
	"github.com/fazamuttaqien/remitquota/internal/model"
	limitrepo "github.com/fazamuttaqien/remitquota/internal/repository/limit"
	outboxrepo "github.com/fazamuttaqien/remitquota/internal/repository/outbox"
	requestrepo "github.com/fazamuttaqien/remitquota/internal/repository/request"
	userrepo "github.com/fazamuttaqien/remitquota/internal/repository/user"
	"github.com/fazamuttaqien/remitquota/internal/service"
	adminsrv "github.com/fazamuttaqien/remitquota/internal/service/admin"
	"github.com/fazamuttaqien/remitquota/pkg/common"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// A named shared-cache memory DB keeps gorm's pooled connections on the
	// same database while isolating tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)

	err = model.AutoMigrate(db)
	assert.NoError(t, err)

	return db
}

func newAdminService(db *gorm.DB) service.AdminServices {
	meter := otel.GetMeterProvider().Meter("")
	tracer := otel.GetTracerProvider().Tracer("")
	log := zap.L()

	return adminsrv.NewAdminService(
		db,
		requestrepo.NewRequestRepository(db, meter, tracer, log),
		limitrepo.NewLimitRepository(db, meter, tracer, log),
		userrepo.NewUserRepository(db, meter, tracer, log),
		outboxrepo.NewOutboxRepository(db, meter, tracer, log),
		meter,
		tracer,
		log,
	)
}

func seedUser(t *testing.T, db *gorm.DB, id uint64) {
	user := model.User{ID: id, Email: fmt.Sprintf("user%d@example.com", id), Name: "Test User"}
	assert.NoError(t, db.Create(&user).Error)
}

func seedRequest(t *testing.T, db *gorm.DB, userID uint64, status domain.RequestStatus) uint64 {
	request := model.LimitChangeRequest{
		UserID:       userID,
		DailyLimit:   2_000_000,
		MonthlyLimit: 20_000_000,
		SingleLimit:  1_000_000,
		Reason:       "Business expansion",
		Status:       string(status),
	}
	assert.NoError(t, db.Create(&request).Error)
	return request.ID
}

func actorContext(id uint64) context.Context {
	return domain.WithActor(context.Background(), domain.Actor{
		ID:     id,
		Email:  "admin@example.com",
		Name:   "Admin",
		Status: "active",
	})
}

func processRequestFor(status string) dto.ProcessRequest {
	return dto.ProcessRequest{
		Status:       status,
		AdminComment: "Reviewed",
		UserID:       10,
		DailyLimit:   2_000_000,
		MonthlyLimit: 20_000_000,
		SingleLimit:  1_000_000,
	}
}

// INTEGRATION TESTS
func TestProcess(t *testing.T) {
	t.Run("Approval writes override and notice atomically", func(t *testing.T) {
		db := setupTestDB(t)
		seedUser(t, db, 10)
		requestID := seedRequest(t, db, 10, domain.RequestPending)
		service := newAdminService(db)

		// Act
		processed, err := service.Process(actorContext(99), requestID, processRequestFor("APPROVED"))

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, domain.RequestApproved, processed.Status)
		assert.Equal(t, uint64(99), *processed.AdminID)
		assert.NotNil(t, processed.ProcessedAt)

		var override model.UserLimitOverride
		assert.NoError(t, db.Where("user_id = ?", 10).First(&override).Error)
		assert.Equal(t, float64(2_000_000), override.DailyLimit)
		assert.Equal(t, requestID, override.RequestID)

		var notice model.EmailOutbox
		assert.NoError(t, db.Where("request_id = ?", requestID).First(&notice).Error)
		assert.Equal(t, "APPROVED", notice.Decision)
		assert.Equal(t, "user10@example.com", notice.Recipient)
		assert.Equal(t, model.OutboxPending, notice.State)
	})

	t.Run("Rejection records the decision without an override", func(t *testing.T) {
		db := setupTestDB(t)
		seedUser(t, db, 10)
		requestID := seedRequest(t, db, 10, domain.RequestPending)
		service := newAdminService(db)

		// Act
		processed, err := service.Process(actorContext(99), requestID, processRequestFor("REJECTED"))

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, domain.RequestRejected, processed.Status)

		var count int64
		db.Model(&model.UserLimitOverride{}).Where("user_id = ?", 10).Count(&count)
		assert.Zero(t, count)

		var notice model.EmailOutbox
		assert.NoError(t, db.Where("request_id = ?", requestID).First(&notice).Error)
		assert.Equal(t, "REJECTED", notice.Decision)
	})

	t.Run("Second approval replaces the existing override", func(t *testing.T) {
		db := setupTestDB(t)
		seedUser(t, db, 10)
		firstID := seedRequest(t, db, 10, domain.RequestPending)
		service := newAdminService(db)

		_, err := service.Process(actorContext(99), firstID, processRequestFor("APPROVED"))
		assert.NoError(t, err)

		secondID := seedRequest(t, db, 10, domain.RequestPending)
		larger := processRequestFor("APPROVED")
		larger.DailyLimit = 5_000_000

		// Act
		_, err = service.Process(actorContext(99), secondID, larger)

		// Assert
		assert.NoError(t, err)

		var count int64
		db.Model(&model.UserLimitOverride{}).Where("user_id = ?", 10).Count(&count)
		assert.Equal(t, int64(1), count)

		var override model.UserLimitOverride
		assert.NoError(t, db.Where("user_id = ?", 10).First(&override).Error)
		assert.Equal(t, float64(5_000_000), override.DailyLimit)
		assert.Equal(t, secondID, override.RequestID)
	})

	t.Run("Already decided request is refused", func(t *testing.T) {
		db := setupTestDB(t)
		seedUser(t, db, 10)
		requestID := seedRequest(t, db, 10, domain.RequestApproved)
		service := newAdminService(db)

		// Act
		_, err := service.Process(actorContext(99), requestID, processRequestFor("REJECTED"))

		// Assert
		assert.ErrorIs(t, err, common.ErrRequestNotPending)
	})

	t.Run("Missing actor context is unauthorized", func(t *testing.T) {
		db := setupTestDB(t)
		service := newAdminService(db)

		// Act
		_, err := service.Process(context.Background(), 1, processRequestFor("APPROVED"))

		// Assert
		assert.ErrorIs(t, err, common.ErrSessionNotFound)
	})

	t.Run("PENDING is not a decision", func(t *testing.T) {
		db := setupTestDB(t)
		service := newAdminService(db)

		// Act
		_, err := service.Process(actorContext(99), 1, processRequestFor("PENDING"))

		// Assert
		assert.ErrorIs(t, err, common.ErrInvalidStatus)
	})

	t.Run("Decision for the wrong user is refused", func(t *testing.T) {
		db := setupTestDB(t)
		seedUser(t, db, 10)
		requestID := seedRequest(t, db, 10, domain.RequestPending)
		service := newAdminService(db)

		mismatched := processRequestFor("APPROVED")
		mismatched.UserID = 11

		// Act
		_, err := service.Process(actorContext(99), requestID, mismatched)

		// Assert
		assert.ErrorIs(t, err, common.ErrRequestNotOwned)
	})

	t.Run("Unknown request owner fails the decision", func(t *testing.T) {
		db := setupTestDB(t)
		requestID := seedRequest(t, db, 10, domain.RequestPending)
		service := newAdminService(db)

		// Act
		_, err := service.Process(actorContext(99), requestID, processRequestFor("APPROVED"))

		// Assert
		assert.ErrorIs(t, err, common.ErrUserNotFound)

		// The request must remain pending.
		var request model.LimitChangeRequest
		assert.NoError(t, db.First(&request, requestID).Error)
		assert.Equal(t, "PENDING", request.Status)
	})
}

func TestDefaultLimit(t *testing.T) {
	t.Run("GetDefaultLimit fails when none is active", func(t *testing.T) {
		db := setupTestDB(t)
		service := newAdminService(db)

		// Act
		_, err := service.GetDefaultLimit(context.Background())

		// Assert
		assert.ErrorIs(t, err, common.ErrDefaultLimitNotSet)
	})

	t.Run("ReplaceDefaultLimit deactivates the previous row", func(t *testing.T) {
		db := setupTestDB(t)
		seed := model.DefaultLimit{
			DailyLimit:   1_000_000,
			MonthlyLimit: 10_000_000,
			SingleLimit:  500_000,
			IsActive:     true,
		}
		assert.NoError(t, db.Create(&seed).Error)
		service := newAdminService(db)

		// Act
		replaced, err := service.ReplaceDefaultLimit(actorContext(99), dto.ReplaceDefaultLimit{
			DailyLimit:   2_000_000,
			MonthlyLimit: 20_000_000,
			SingleLimit:  1_000_000,
			Description:  "Raised for holiday season",
		})

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, float64(2_000_000), replaced.DailyLimit)
		assert.Equal(t, uint64(99), replaced.UpdatedBy)

		var activeCount int64
		db.Model(&model.DefaultLimit{}).Where("is_active = ?", true).Count(&activeCount)
		assert.Equal(t, int64(1), activeCount)

		// History is preserved, not deleted.
		var totalCount int64
		db.Model(&model.DefaultLimit{}).Count(&totalCount)
		assert.Equal(t, int64(2), totalCount)

		current, err := service.GetDefaultLimit(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, float64(2_000_000), current.DailyLimit)
	})

	t.Run("ReplaceDefaultLimit fails with nothing to replace", func(t *testing.T) {
		db := setupTestDB(t)
		service := newAdminService(db)

		// Act
		_, err := service.ReplaceDefaultLimit(actorContext(99), dto.ReplaceDefaultLimit{
			DailyLimit:   2_000_000,
			MonthlyLimit: 20_000_000,
			SingleLimit:  1_000_000,
		})

		// Assert
		assert.ErrorIs(t, err, common.ErrDefaultLimitNotSet)
	})

	t.Run("ReplaceDefaultLimit requires an actor", func(t *testing.T) {
		db := setupTestDB(t)
		service := newAdminService(db)

		// Act
		_, err := service.ReplaceDefaultLimit(context.Background(), dto.ReplaceDefaultLimit{
			DailyLimit: 2_000_000, MonthlyLimit: 20_000_000, SingleLimit: 1_000_000,
		})

		// Assert
		assert.ErrorIs(t, err, common.ErrSessionNotFound)
	})
}

func TestSearch(t *testing.T) {
	t.Run("Filters by status and paginates", func(t *testing.T) {
		db := setupTestDB(t)
		seedUser(t, db, 10)
		for range 3 {
			seedRequest(t, db, 10, domain.RequestPending)
		}
		seedRequest(t, db, 10, domain.RequestRejected)
		service := newAdminService(db)

		// Act
		result, err := service.Search(context.Background(), dto.SearchRequests{
			Status: "PENDING",
			Page:   1,
			Limit:  2,
		})

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, int64(3), result.Total)
		assert.Equal(t, 2, result.TotalPages)
		responses := result.Data.([]dto.LimitRequestResponse)
		assert.Len(t, responses, 2)
	})
}
