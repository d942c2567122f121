package quotasrv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fazamuttaqien/remitquota/internal/domain"
	"github.com/fazamuttaqien/remitquota/internal/dto"
	"github.com/fazamuttaqien/remitquota/internal/service"
	quotasrv "github.com/fazamuttaqien/remitquota/internal/service/quota"
	"github.com/fazamuttaqien/remitquota/pkg/common"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type mockLimitRepository struct {
	// Fields to control mock behavior
	MockOverrideData *domain.UserLimitOverride
	MockDefaultData  *domain.DefaultLimit
	MockError        error

	// Fields to capture calls
	GetOverrideCalledWith uint64
}

func (m *mockLimitRepository) GetActiveDefault(ctx context.Context) (*domain.DefaultLimit, error) {
	return m.MockDefaultData, m.MockError
}

func (m *mockLimitRepository) ReplaceActiveDefault(ctx context.Context, limits domain.Limits, description string, actorID uint64) (*domain.DefaultLimit, error) {
	return nil, nil
}

func (m *mockLimitRepository) GetOverride(ctx context.Context, userID uint64) (*domain.UserLimitOverride, error) {
	m.GetOverrideCalledWith = userID
	return m.MockOverrideData, m.MockError
}

func (m *mockLimitRepository) ReplaceOverride(ctx context.Context, userID uint64, limits domain.Limits, requestID uint64) error {
	return nil
}

func (m *mockLimitRepository) ClearOverride(ctx context.Context, userID uint64) error {
	return nil
}

type mockRemittanceRepository struct {
	MockDaySum   float64
	MockMonthSum float64
	MockError    error

	// The resolver sums the day window first, then the month window.
	calls         int
	DayCalledFrom time.Time
	MonthCalledTo time.Time
}

func (m *mockRemittanceRepository) SumCompletedInRange(ctx context.Context, userID uint64, from, to time.Time) (float64, error) {
	m.calls++
	if m.calls == 1 {
		m.DayCalledFrom = from
		return m.MockDaySum, m.MockError
	}
	m.MonthCalledTo = to
	return m.MockMonthSum, m.MockError
}

func newQuotaService(limits *mockLimitRepository, usage *mockRemittanceRepository) service.QuotaServices {
	return quotasrv.NewQuotaService(
		limits,
		usage,
		otel.GetMeterProvider().Meter(""),
		otel.GetTracerProvider().Tracer(""),
		zap.L(),
	)
}

// UNIT TESTS
func TestResolve(t *testing.T) {
	t.Run("Default limit applies when no override exists", func(t *testing.T) {
		mockLimits := &mockLimitRepository{
			MockDefaultData: &domain.DefaultLimit{
				Limits: domain.Limits{Daily: 1_000_000, Monthly: 10_000_000, Single: 500_000},
			},
		}
		mockUsage := &mockRemittanceRepository{MockDaySum: 600_000, MockMonthSum: 2_000_000}
		service := newQuotaService(mockLimits, mockUsage)

		asOf := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

		// Act
		resolved, err := service.Resolve(context.Background(), 10, asOf)

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, dto.SourceDefault, resolved.Source)
		assert.Equal(t, float64(1_000_000), resolved.Limits.Daily)
		assert.Equal(t, float64(400_000), resolved.AvailableDaily)     // 1,000,000 - 600,000
		assert.Equal(t, float64(8_000_000), resolved.AvailableMonthly) // 10,000,000 - 2,000,000
		assert.Equal(t, float64(600_000), resolved.UsedToday)
		// The day window starts at UTC midnight of asOf.
		assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), mockUsage.DayCalledFrom)
	})

	t.Run("Windows use UTC regardless of the caller's zone", func(t *testing.T) {
		mockLimits := &mockLimitRepository{
			MockDefaultData: &domain.DefaultLimit{
				Limits: domain.Limits{Daily: 1_000_000, Monthly: 10_000_000, Single: 500_000},
			},
		}
		mockUsage := &mockRemittanceRepository{}
		service := newQuotaService(mockLimits, mockUsage)

		// 2026-03-16 01:30 KST is still 2026-03-15 16:30 UTC.
		kst := time.FixedZone("KST", 9*60*60)
		asOf := time.Date(2026, 3, 16, 1, 30, 0, 0, kst)

		// Act
		_, err := service.Resolve(context.Background(), 10, asOf)

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), mockUsage.DayCalledFrom)
		assert.True(t, mockUsage.MonthCalledTo.Equal(time.Date(2026, 3, 15, 16, 30, 0, 0, time.UTC)))
	})

	t.Run("Override takes precedence over default", func(t *testing.T) {
		mockLimits := &mockLimitRepository{
			MockOverrideData: &domain.UserLimitOverride{
				UserID: 10,
				Limits: domain.Limits{Daily: 5_000_000, Monthly: 50_000_000, Single: 2_000_000},
			},
			MockDefaultData: &domain.DefaultLimit{
				Limits: domain.Limits{Daily: 1_000_000, Monthly: 10_000_000, Single: 500_000},
			},
		}
		mockUsage := &mockRemittanceRepository{}
		service := newQuotaService(mockLimits, mockUsage)

		// Act
		resolved, err := service.Resolve(context.Background(), 10, time.Now())

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, dto.SourceOverride, resolved.Source)
		assert.Equal(t, float64(5_000_000), resolved.Limits.Daily)
		assert.Equal(t, uint64(10), mockLimits.GetOverrideCalledWith)
	})

	t.Run("Usage above the limit clamps availability to zero", func(t *testing.T) {
		mockLimits := &mockLimitRepository{
			MockDefaultData: &domain.DefaultLimit{
				Limits: domain.Limits{Daily: 1_000_000, Monthly: 10_000_000, Single: 500_000},
			},
		}
		mockUsage := &mockRemittanceRepository{MockDaySum: 1_500_000, MockMonthSum: 1_500_000}
		service := newQuotaService(mockLimits, mockUsage)

		// Act
		resolved, err := service.Resolve(context.Background(), 10, time.Now())

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, float64(0), resolved.AvailableDaily)
		assert.Equal(t, float64(8_500_000), resolved.AvailableMonthly)
	})

	t.Run("No override and no default fails", func(t *testing.T) {
		mockLimits := &mockLimitRepository{}
		mockUsage := &mockRemittanceRepository{}
		service := newQuotaService(mockLimits, mockUsage)

		// Act
		_, err := service.Resolve(context.Background(), 10, time.Now())

		// Assert
		assert.Error(t, err)
		assert.ErrorIs(t, err, common.ErrDefaultLimitNotSet)
	})

	t.Run("Repository error propagates", func(t *testing.T) {
		mockLimits := &mockLimitRepository{MockError: errors.New("connection refused")}
		mockUsage := &mockRemittanceRepository{}
		service := newQuotaService(mockLimits, mockUsage)

		// Act
		_, err := service.Resolve(context.Background(), 10, time.Now())

		// Assert
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestGetUserLimit(t *testing.T) {
	t.Run("Returns limit triple with its source", func(t *testing.T) {
		mockLimits := &mockLimitRepository{
			MockOverrideData: &domain.UserLimitOverride{
				UserID: 7,
				Limits: domain.Limits{Daily: 3_000_000, Monthly: 30_000_000, Single: 1_000_000},
			},
		}
		mockUsage := &mockRemittanceRepository{}
		service := newQuotaService(mockLimits, mockUsage)

		// Act
		limit, err := service.GetUserLimit(context.Background(), 7)

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, float64(3_000_000), limit.DailyLimit)
		assert.Equal(t, float64(30_000_000), limit.MonthlyLimit)
		assert.Equal(t, float64(1_000_000), limit.SingleLimit)
		assert.Equal(t, dto.SourceOverride, limit.LimitType)
	})
}

func TestCheckLimit(t *testing.T) {
	defaultLimits := &domain.DefaultLimit{
		Limits: domain.Limits{Daily: 1_000_000, Monthly: 10_000_000, Single: 500_000},
	}

	t.Run("Amount within both bounds is allowed", func(t *testing.T) {
		mockLimits := &mockLimitRepository{MockDefaultData: defaultLimits}
		mockUsage := &mockRemittanceRepository{MockDaySum: 600_000, MockMonthSum: 2_000_000}
		service := newQuotaService(mockLimits, mockUsage)

		// Act
		verdict, err := service.CheckLimit(context.Background(), dto.CheckLimitRequest{UserID: 10, Amount: 300_000})

		// Assert
		assert.NoError(t, err)
		assert.True(t, verdict.Allowed)
		assert.Empty(t, verdict.ExceededType)
		assert.Equal(t, float64(600_000), verdict.TodayAmount)
	})

	t.Run("Daily bound exceeded reports the excess", func(t *testing.T) {
		mockLimits := &mockLimitRepository{MockDefaultData: defaultLimits}
		mockUsage := &mockRemittanceRepository{MockDaySum: 600_000, MockMonthSum: 2_000_000}
		service := newQuotaService(mockLimits, mockUsage)

		// Act: 600,000 used + 500,000 requested = 1,100,000 against a 1,000,000 daily limit
		verdict, err := service.CheckLimit(context.Background(), dto.CheckLimitRequest{UserID: 10, Amount: 500_000})

		// Assert
		assert.NoError(t, err)
		assert.False(t, verdict.Allowed)
		assert.Equal(t, dto.ExceededDaily, verdict.ExceededType)
		assert.Equal(t, float64(100_000), verdict.DailyExceededAmount)
		assert.Equal(t, float64(0), verdict.MonthlyExceededAmount)
	})

	t.Run("Monthly bound exceeded reports the excess", func(t *testing.T) {
		mockLimits := &mockLimitRepository{MockDefaultData: defaultLimits}
		mockUsage := &mockRemittanceRepository{MockDaySum: 0, MockMonthSum: 9_800_000}
		service := newQuotaService(mockLimits, mockUsage)

		// Act
		verdict, err := service.CheckLimit(context.Background(), dto.CheckLimitRequest{UserID: 10, Amount: 300_000})

		// Assert
		assert.NoError(t, err)
		assert.False(t, verdict.Allowed)
		assert.Equal(t, dto.ExceededMonthly, verdict.ExceededType)
		assert.Equal(t, float64(100_000), verdict.MonthlyExceededAmount)
	})

	t.Run("Both bounds exceeded reports both excesses", func(t *testing.T) {
		mockLimits := &mockLimitRepository{MockDefaultData: defaultLimits}
		mockUsage := &mockRemittanceRepository{MockDaySum: 900_000, MockMonthSum: 9_900_000}
		service := newQuotaService(mockLimits, mockUsage)

		// Act
		verdict, err := service.CheckLimit(context.Background(), dto.CheckLimitRequest{UserID: 10, Amount: 200_000})

		// Assert
		assert.NoError(t, err)
		assert.False(t, verdict.Allowed)
		assert.Equal(t, dto.ExceededBoth, verdict.ExceededType)
		assert.Equal(t, float64(100_000), verdict.DailyExceededAmount)
		assert.Equal(t, float64(100_000), verdict.MonthlyExceededAmount)
	})

	t.Run("Amount landing exactly on the limit is allowed", func(t *testing.T) {
		mockLimits := &mockLimitRepository{MockDefaultData: defaultLimits}
		mockUsage := &mockRemittanceRepository{MockDaySum: 600_000, MockMonthSum: 2_000_000}
		service := newQuotaService(mockLimits, mockUsage)

		// Act
		verdict, err := service.CheckLimit(context.Background(), dto.CheckLimitRequest{UserID: 10, Amount: 400_000})

		// Assert
		assert.NoError(t, err)
		assert.True(t, verdict.Allowed)
	})
}
