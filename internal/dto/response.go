package dto

import (
	"time"

	"github.com/fazamuttaqien/remitquota/internal/domain"
)

// ExceededType says which period bound a proposed amount violates.
type ExceededType string

const (
	ExceededDaily   ExceededType = "DAILY"
	ExceededMonthly ExceededType = "MONTHLY"
	ExceededBoth    ExceededType = "BOTH"
)

// CheckLimitResponse is the structured advisory verdict. A disallowed
// amount is a normal response, never an error, so callers can render the
// exceeded amounts.
type CheckLimitResponse struct {
	Allowed               bool         `json:"allowed"`
	ExceededType          ExceededType `json:"exceeded_type,omitempty"`
	RequestedAmount       float64      `json:"requested_amount"`
	DailyLimit            float64      `json:"daily_limit"`
	MonthlyLimit          float64      `json:"monthly_limit"`
	DailyExceededAmount   float64      `json:"daily_exceeded_amount,omitempty"`
	MonthlyExceededAmount float64      `json:"monthly_exceeded_amount,omitempty"`
	TodayAmount           float64      `json:"today_amount"`
	MonthAmount           float64      `json:"month_amount"`
}

// LimitSource distinguishes whether a user's effective limit comes from the
// system default or a per-user override.
type LimitSource string

const (
	SourceDefault  LimitSource = "default"
	SourceOverride LimitSource = "override"
)

type UserLimitResponse struct {
	DailyLimit   float64     `json:"daily_limit"`
	MonthlyLimit float64     `json:"monthly_limit"`
	SingleLimit  float64     `json:"single_limit"`
	LimitType    LimitSource `json:"limit_type"`
}

// ResolvedLimit is the full resolver output consumed by CheckLimit.
type ResolvedLimit struct {
	Limits           domain.Limits
	Source           LimitSource
	AvailableDaily   float64
	AvailableMonthly float64
	UsedToday        float64
	UsedThisMonth    float64
}

type AttachmentResponse struct {
	Slot string `json:"slot"`
	URL  string `json:"url"`
}

type LimitRequestResponse struct {
	ID           uint64               `json:"id"`
	UserID       uint64               `json:"user_id"`
	DailyLimit   float64              `json:"daily_limit"`
	MonthlyLimit float64              `json:"monthly_limit"`
	SingleLimit  float64              `json:"single_limit"`
	Reason       string               `json:"reason"`
	Attachments  []AttachmentResponse `json:"attachments"`
	Status       domain.RequestStatus `json:"status"`
	AdminID      *uint64              `json:"admin_id,omitempty"`
	AdminComment string               `json:"admin_comment,omitempty"`
	ProcessedAt  *time.Time           `json:"processed_at,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

func LimitRequestFromEntity(data *domain.LimitChangeRequest) LimitRequestResponse {
	attachments := make([]AttachmentResponse, 0, len(data.Attachments))
	for _, slot := range domain.Slots {
		if a, ok := data.Attachments[slot]; ok {
			attachments = append(attachments, AttachmentResponse{Slot: string(slot), URL: a.URL})
		}
	}
	return LimitRequestResponse{
		ID:           data.ID,
		UserID:       data.UserID,
		DailyLimit:   data.Requested.Daily,
		MonthlyLimit: data.Requested.Monthly,
		SingleLimit:  data.Requested.Single,
		Reason:       data.Reason,
		Attachments:  attachments,
		Status:       data.Status,
		AdminID:      data.AdminID,
		AdminComment: data.AdminComment,
		ProcessedAt:  data.ProcessedAt,
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}
}

type DefaultLimitResponse struct {
	DailyLimit   float64   `json:"daily_limit"`
	MonthlyLimit float64   `json:"monthly_limit"`
	SingleLimit  float64   `json:"single_limit"`
	Description  string    `json:"description"`
	UpdatedBy    uint64    `json:"updated_by"`
	UpdatedAt    time.Time `json:"updated_at"`
}
