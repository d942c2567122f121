package dto

import (
	"github.com/fazamuttaqien/remitquota/internal/domain"
)

type CheckLimitRequest struct {
	UserID uint64  `json:"user_id" validate:"required"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// LimitRequestForm is the multipart body for creating or updating a limit
// change request. The three file parts travel separately and are read by
// the handler with c.FormFile.
type LimitRequestForm struct {
	DailyLimit   float64 `form:"daily_limit" validate:"required,gt=0"`
	MonthlyLimit float64 `form:"monthly_limit" validate:"required,gt=0"`
	SingleLimit  float64 `form:"single_limit" validate:"required,gt=0"`
	Reason       string  `form:"reason" validate:"required,max=500"`

	// Update-only fields.
	IsRerequest         bool `form:"is_rerequest"`
	RemoveIncomeProof   bool `form:"remove_income_proof"`
	RemoveBankbookProof bool `form:"remove_bankbook_proof"`
	RemoveBusinessProof bool `form:"remove_business_proof"`
}

func (f LimitRequestForm) Limits() domain.Limits {
	return domain.Limits{
		Daily:   f.DailyLimit,
		Monthly: f.MonthlyLimit,
		Single:  f.SingleLimit,
	}
}

func (f LimitRequestForm) RemoveFlags() map[domain.AttachmentSlot]bool {
	return map[domain.AttachmentSlot]bool{
		domain.SlotIncomeProof:   f.RemoveIncomeProof,
		domain.SlotBankbookProof: f.RemoveBankbookProof,
		domain.SlotBusinessProof: f.RemoveBusinessProof,
	}
}

type ProcessRequest struct {
	Status       string  `json:"status" validate:"required,oneof=APPROVED REJECTED"`
	AdminComment string  `json:"admin_comment" validate:"max=500"`
	UserID       uint64  `json:"user_id" validate:"required"`
	DailyLimit   float64 `json:"daily_limit" validate:"required,gt=0"`
	MonthlyLimit float64 `json:"monthly_limit" validate:"required,gt=0"`
	SingleLimit  float64 `json:"single_limit" validate:"required,gt=0"`
}

func (r ProcessRequest) Limits() domain.Limits {
	return domain.Limits{
		Daily:   r.DailyLimit,
		Monthly: r.MonthlyLimit,
		Single:  r.SingleLimit,
	}
}

type SearchRequests struct {
	Status string `json:"status" validate:"omitempty,oneof=PENDING APPROVED REJECTED"`
	UserID uint64 `json:"user_id"`
	Page   int    `json:"page" validate:"omitempty,gte=1"`
	Limit  int    `json:"limit" validate:"omitempty,gte=1,lte=100"`
}

type ReplaceDefaultLimit struct {
	DailyLimit   float64 `json:"daily_limit" validate:"required,gt=0"`
	MonthlyLimit float64 `json:"monthly_limit" validate:"required,gt=0"`
	SingleLimit  float64 `json:"single_limit" validate:"required,gt=0"`
	Description  string  `json:"description" validate:"max=255"`
}

func (r ReplaceDefaultLimit) Limits() domain.Limits {
	return domain.Limits{
		Daily:   r.DailyLimit,
		Monthly: r.MonthlyLimit,
		Single:  r.SingleLimit,
	}
}
