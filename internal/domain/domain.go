package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	AdminRole Role = "admin"
	UserRole  Role = "user"
)

// Limits is the daily/monthly/single ceiling triple shared by the default
// limit, per-user overrides and change requests.
type Limits struct {
	Daily   float64
	Monthly float64
	Single  float64
}

// DefaultLimit is the system-wide fallback ceiling. Exactly zero or one
// active row exists; replacement deactivates the old row and inserts a new
// one, history is never deleted.
type DefaultLimit struct {
	ID          uint64
	Limits      Limits
	Description string
	IsActive    bool
	UpdatedBy   uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserLimitOverride supersedes the default for one user. At most one row
// per user; every approval fully replaces the previous row.
type UserLimitOverride struct {
	UserID    uint64
	Limits    Limits
	RequestID uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// ParseRequestStatus rejects unknown status values at the boundary.
func ParseRequestStatus(s string) (RequestStatus, bool) {
	switch RequestStatus(s) {
	case RequestPending, RequestApproved, RequestRejected:
		return RequestStatus(s), true
	}
	return "", false
}

// CanTransition is the exhaustive transition table for the approval
// workflow. PENDING resolves once per cycle; REJECTED may cycle back to
// PENDING via re-request; APPROVED is terminal.
func (s RequestStatus) CanTransition(to RequestStatus) bool {
	switch s {
	case RequestPending:
		return to == RequestApproved || to == RequestRejected
	case RequestRejected:
		return to == RequestPending
	default:
		return false
	}
}

// AttachmentSlot identifies one of the three supporting-document slots on a
// limit change request.
type AttachmentSlot string

const (
	SlotIncomeProof   AttachmentSlot = "income_proof"
	SlotBankbookProof AttachmentSlot = "bankbook_proof"
	SlotBusinessProof AttachmentSlot = "business_proof"
)

// Slots lists the attachment slots in a stable order.
var Slots = []AttachmentSlot{SlotIncomeProof, SlotBankbookProof, SlotBusinessProof}

// Attachment is a stored supporting document. A zero Attachment means the
// slot is empty.
type Attachment struct {
	URL      string
	PublicID string
}

func (a Attachment) Empty() bool { return a.PublicID == "" }

// LimitChangeRequest is the approval-workflow entity a user submits to
// obtain a custom override.
type LimitChangeRequest struct {
	ID           uint64
	UserID       uint64
	Requested    Limits
	Reason       string
	Attachments  map[AttachmentSlot]Attachment
	Status       RequestStatus
	AdminID      *uint64
	AdminComment string
	ProcessedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type RemittanceStatus string

const (
	RemittancePending   RemittanceStatus = "PENDING"
	RemittanceCompleted RemittanceStatus = "COMPLETED"
	RemittanceFailed    RemittanceStatus = "FAILED"
)

// Remittance is produced by the transfer subsystem; this service only reads
// it to aggregate completed usage.
type Remittance struct {
	ID        uint64
	UserID    uint64
	Amount    float64
	Status    RemittanceStatus
	CreatedAt time.Time
}

// User is reference data owned by the account subsystem; consumed here only
// to address decision notifications.
type User struct {
	ID    uint64
	Email string
	Name  string
}

type JwtCustomClaims struct {
	UserID uint64 `json:"user_id"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

type Params struct {
	Status string
	UserID uint64
	Page   int
	Limit  int
}

type Paginated struct {
	Data       any
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}
