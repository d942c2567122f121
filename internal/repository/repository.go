package repository

import (
	"context"
	"time"

	"github.com/fazamuttaqien/remitquota/internal/domain"

	"gorm.io/gorm"
)

// LimitRepository is the quota store: the single active system default plus
// at most one override row per user.
type LimitRepository interface {
	// GetActiveDefault returns nil when no active default is configured.
	GetActiveDefault(ctx context.Context) (*domain.DefaultLimit, error)
	// ReplaceActiveDefault deactivates the current active row and inserts
	// the replacement in one transaction. It fails with
	// common.ErrDefaultLimitNotSet when there is nothing to replace.
	ReplaceActiveDefault(ctx context.Context, limits domain.Limits, description string, actorID uint64) (*domain.DefaultLimit, error)
	// GetOverride returns nil when the user has no override.
	GetOverride(ctx context.Context, userID uint64) (*domain.UserLimitOverride, error)
	// ReplaceOverride inserts or fully replaces the user's override as a
	// single upsert keyed on the user_id unique index.
	ReplaceOverride(ctx context.Context, userID uint64, limits domain.Limits, requestID uint64) error
	ClearOverride(ctx context.Context, userID uint64) error
}

// RequestRepository stores limit change requests.
type RequestRepository interface {
	Create(ctx context.Context, request *domain.LimitChangeRequest) (*domain.LimitChangeRequest, error)
	FindByID(ctx context.Context, id uint64) (*domain.LimitChangeRequest, error)
	Update(ctx context.Context, request *domain.LimitChangeRequest) error
	Delete(ctx context.Context, id uint64) error
	FindPaginated(ctx context.Context, params domain.Params) ([]domain.LimitChangeRequest, int64, error)
}

// RemittanceRepository reads completed-transfer usage produced by the
// transfer subsystem.
type RemittanceRepository interface {
	// SumCompletedInRange sums completed amounts over [from, to).
	SumCompletedInRange(ctx context.Context, userID uint64, from, to time.Time) (float64, error)
}

// UserRepository reads account reference data for notification addressing.
type UserRepository interface {
	FindByID(ctx context.Context, id uint64) (*domain.User, error)
}

// OutboxRepository stages and drains decision notifications.
type OutboxRepository interface {
	// Enqueue writes the notification row through tx so it commits
	// atomically with the caller's decision. A nil tx falls back to the
	// repository's own connection.
	Enqueue(ctx context.Context, tx *gorm.DB, notice domain.DecisionNotice) error
	ClaimPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error)
	MarkSent(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, attemptErr error, maxAttempts int) error
}
