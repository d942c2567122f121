package outboxsrv_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fazamuttaqien/remitquota/internal/domain"
	"github.com/fazamuttaqien/remitquota/internal/model"
	outboxrepo "github.com/fazamuttaqien/remitquota/internal/repository/outbox"
	outboxsrv "github.com/fazamuttaqien/remitquota/internal/service/outbox"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockMailer struct {
	MockError error

	Sent []domain.DecisionNotice
}

func (m *mockMailer) SendLimitDecision(ctx context.Context, notice domain.DecisionNotice) error {
	if m.MockError != nil {
		return m.MockError
	}
	m.Sent = append(m.Sent, notice)
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)

	err = model.AutoMigrate(db)
	assert.NoError(t, err)

	return db
}

func newDispatcher(db *gorm.DB, m *mockMailer, maxAttempts int) *outboxsrv.Dispatcher {
	meter := otel.GetMeterProvider().Meter("")
	tracer := otel.GetTracerProvider().Tracer("")
	log := zap.L()

	return outboxsrv.NewDispatcher(
		outboxrepo.NewOutboxRepository(db, meter, tracer, log),
		m,
		time.Second,
		20,
		maxAttempts,
		meter,
		tracer,
		log,
	)
}

func seedNotice(t *testing.T, db *gorm.DB, requestID uint64) uint64 {
	row := model.EmailOutbox{
		RequestID:    requestID,
		Recipient:    "user@example.com",
		Name:         "Test User",
		Decision:     "APPROVED",
		DailyLimit:   2_000_000,
		MonthlyLimit: 20_000_000,
		SingleLimit:  1_000_000,
		State:        model.OutboxPending,
	}
	assert.NoError(t, db.Create(&row).Error)
	return row.ID
}

func TestEnqueue(t *testing.T) {
	meter := otel.GetMeterProvider().Meter("")
	tracer := otel.GetTracerProvider().Tracer("")

	notice := domain.DecisionNotice{
		RequestID: 5,
		Recipient: "user@example.com",
		Name:      "Test User",
		Decision:  domain.RequestApproved,
		Limits:    domain.Limits{Daily: 2_000_000, Monthly: 20_000_000, Single: 1_000_000},
	}

	t.Run("Rides the caller's transaction", func(t *testing.T) {
		db := setupTestDB(t)
		repo := outboxrepo.NewOutboxRepository(db, meter, tracer, zap.L())

		// Act: a rolled-back transaction leaves no notice behind
		tx := db.Begin()
		assert.NoError(t, repo.Enqueue(context.Background(), tx, notice))
		tx.Rollback()

		var count int64
		db.Model(&model.EmailOutbox{}).Count(&count)
		assert.Zero(t, count)

		// Act: a committed transaction does
		tx = db.Begin()
		assert.NoError(t, repo.Enqueue(context.Background(), tx, notice))
		assert.NoError(t, tx.Commit().Error)

		var row model.EmailOutbox
		assert.NoError(t, db.Where("request_id = ?", 5).First(&row).Error)
		assert.Equal(t, model.OutboxPending, row.State)
		assert.Equal(t, "APPROVED", row.Decision)
	})

	t.Run("Nil transaction uses the repository connection", func(t *testing.T) {
		db := setupTestDB(t)
		repo := outboxrepo.NewOutboxRepository(db, meter, tracer, zap.L())

		// Act
		assert.NoError(t, repo.Enqueue(context.Background(), nil, notice))

		// Assert
		var count int64
		db.Model(&model.EmailOutbox{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})
}

func TestDispatchOnce(t *testing.T) {
	t.Run("Delivers pending notices and marks them sent", func(t *testing.T) {
		db := setupTestDB(t)
		noticeID := seedNotice(t, db, 5)
		mail := &mockMailer{}
		dispatcher := newDispatcher(db, mail, 5)

		// Act
		dispatcher.DispatchOnce(context.Background())

		// Assert
		assert.Len(t, mail.Sent, 1)
		assert.Equal(t, uint64(5), mail.Sent[0].RequestID)
		assert.Equal(t, domain.RequestApproved, mail.Sent[0].Decision)

		var row model.EmailOutbox
		assert.NoError(t, db.First(&row, noticeID).Error)
		assert.Equal(t, model.OutboxSent, row.State)
		assert.NotNil(t, row.SentAt)
	})

	t.Run("Failed delivery stays pending for a retry", func(t *testing.T) {
		db := setupTestDB(t)
		noticeID := seedNotice(t, db, 5)
		mail := &mockMailer{MockError: errors.New("smtp unavailable")}
		dispatcher := newDispatcher(db, mail, 5)

		// Act
		dispatcher.DispatchOnce(context.Background())

		// Assert
		var row model.EmailOutbox
		assert.NoError(t, db.First(&row, noticeID).Error)
		assert.Equal(t, model.OutboxPending, row.State)
		assert.Equal(t, 1, row.Attempts)
		assert.Contains(t, row.LastError, "smtp unavailable")
	})

	t.Run("Exhausted attempts park the notice as failed", func(t *testing.T) {
		db := setupTestDB(t)
		noticeID := seedNotice(t, db, 5)
		mail := &mockMailer{MockError: errors.New("smtp unavailable")}
		dispatcher := newDispatcher(db, mail, 2)

		// Act
		dispatcher.DispatchOnce(context.Background())
		dispatcher.DispatchOnce(context.Background())

		// Assert
		var row model.EmailOutbox
		assert.NoError(t, db.First(&row, noticeID).Error)
		assert.Equal(t, model.OutboxFailed, row.State)
		assert.Equal(t, 2, row.Attempts)

		// A parked notice is never claimed again.
		mail.MockError = nil
		dispatcher.DispatchOnce(context.Background())
		assert.Empty(t, mail.Sent)
	})

	t.Run("Sent notices are not delivered twice", func(t *testing.T) {
		db := setupTestDB(t)
		seedNotice(t, db, 5)
		mail := &mockMailer{}
		dispatcher := newDispatcher(db, mail, 5)

		// Act
		dispatcher.DispatchOnce(context.Background())
		dispatcher.DispatchOnce(context.Background())

		// Assert
		assert.Len(t, mail.Sent, 1)
	})
}
