package service

import (
	"context"
	"mime/multipart"
	"time"

	"github.com/fazamuttaqien/remitquota/internal/domain"
	"github.com/fazamuttaqien/remitquota/internal/dto"
)

// QuotaServices resolves effective transfer limits and answers advisory
// pre-checks against them.
type QuotaServices interface {
	// Resolve returns the user's effective limit triple, its source, and
	// the remaining daily/monthly headroom as of the given instant.
	Resolve(ctx context.Context, userID uint64, asOf time.Time) (*dto.ResolvedLimit, error)
	GetUserLimit(ctx context.Context, userID uint64) (*dto.UserLimitResponse, error)
	// CheckLimit is advisory: a disallowed amount comes back as a verdict,
	// not an error. Enforcement happens at transfer commit, elsewhere.
	CheckLimit(ctx context.Context, req dto.CheckLimitRequest) (*dto.CheckLimitResponse, error)
}

// RequestServices is the user-facing limit change request workflow.
type RequestServices interface {
	Create(ctx context.Context, userID uint64, form dto.LimitRequestForm, files map[domain.AttachmentSlot]*multipart.FileHeader) (*dto.LimitRequestResponse, error)
	Update(ctx context.Context, userID uint64, requestID uint64, form dto.LimitRequestForm, files map[domain.AttachmentSlot]*multipart.FileHeader) (*dto.LimitRequestResponse, error)
	Cancel(ctx context.Context, userID uint64, requestID uint64) error
	ListByUser(ctx context.Context, userID uint64, params domain.Params) (*domain.Paginated, error)
}

// AdminServices is the back-office side: deciding requests and managing the
// system default limit. The acting admin travels in the context via
// domain.WithActor.
type AdminServices interface {
	Process(ctx context.Context, requestID uint64, req dto.ProcessRequest) (*dto.LimitRequestResponse, error)
	Search(ctx context.Context, req dto.SearchRequests) (*domain.Paginated, error)
	GetDefaultLimit(ctx context.Context) (*dto.DefaultLimitResponse, error)
	ReplaceDefaultLimit(ctx context.Context, req dto.ReplaceDefaultLimit) (*dto.DefaultLimitResponse, error)
}

// FileStore stores request attachments in object storage.
type FileStore interface {
	Upload(ctx context.Context, file *multipart.FileHeader, folder string) (*domain.Attachment, error)
	Destroy(ctx context.Context, publicID string) error
}
