package model

import (
	"github.com/fazamuttaqien/remitquota/internal/domain"
)

func DefaultLimitToEntity(data DefaultLimit) *domain.DefaultLimit {
	return &domain.DefaultLimit{
		ID: data.ID,
		Limits: domain.Limits{
			Daily:   data.DailyLimit,
			Monthly: data.MonthlyLimit,
			Single:  data.SingleLimit,
		},
		Description: data.Description,
		IsActive:    data.IsActive,
		UpdatedBy:   data.UpdatedBy,
		CreatedAt:   data.CreatedAt,
		UpdatedAt:   data.UpdatedAt,
	}
}

func OverrideToEntity(data UserLimitOverride) *domain.UserLimitOverride {
	return &domain.UserLimitOverride{
		UserID: data.UserID,
		Limits: domain.Limits{
			Daily:   data.DailyLimit,
			Monthly: data.MonthlyLimit,
			Single:  data.SingleLimit,
		},
		RequestID: data.RequestID,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
}
