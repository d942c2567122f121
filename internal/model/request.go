package model

import (
	"github.com/fazamuttaqien/remitquota/internal/domain"
)

func RequestFromEntity(data *domain.LimitChangeRequest) LimitChangeRequest {
	m := LimitChangeRequest{
		ID:           data.ID,
		UserID:       data.UserID,
		DailyLimit:   data.Requested.Daily,
		MonthlyLimit: data.Requested.Monthly,
		SingleLimit:  data.Requested.Single,
		Reason:       data.Reason,
		Status:       string(data.Status),
		AdminID:      data.AdminID,
		AdminComment: data.AdminComment,
		ProcessedAt:  data.ProcessedAt,
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}
	if a, ok := data.Attachments[domain.SlotIncomeProof]; ok {
		m.IncomeProofURL, m.IncomeProofID = a.URL, a.PublicID
	}
	if a, ok := data.Attachments[domain.SlotBankbookProof]; ok {
		m.BankbookProofURL, m.BankbookProofID = a.URL, a.PublicID
	}
	if a, ok := data.Attachments[domain.SlotBusinessProof]; ok {
		m.BusinessProofURL, m.BusinessProofID = a.URL, a.PublicID
	}
	return m
}

func RequestToEntity(data LimitChangeRequest) *domain.LimitChangeRequest {
	attachments := map[domain.AttachmentSlot]domain.Attachment{}
	if data.IncomeProofID != "" {
		attachments[domain.SlotIncomeProof] = domain.Attachment{URL: data.IncomeProofURL, PublicID: data.IncomeProofID}
	}
	if data.BankbookProofID != "" {
		attachments[domain.SlotBankbookProof] = domain.Attachment{URL: data.BankbookProofURL, PublicID: data.BankbookProofID}
	}
	if data.BusinessProofID != "" {
		attachments[domain.SlotBusinessProof] = domain.Attachment{URL: data.BusinessProofURL, PublicID: data.BusinessProofID}
	}

	return &domain.LimitChangeRequest{
		ID:     data.ID,
		UserID: data.UserID,
		Requested: domain.Limits{
			Daily:   data.DailyLimit,
			Monthly: data.MonthlyLimit,
			Single:  data.SingleLimit,
		},
		Reason:       data.Reason,
		Attachments:  attachments,
		Status:       domain.RequestStatus(data.Status),
		AdminID:      data.AdminID,
		AdminComment: data.AdminComment,
		ProcessedAt:  data.ProcessedAt,
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}
}

func RequestsToEntity(data []LimitChangeRequest) []domain.LimitChangeRequest {
	responses := make([]domain.LimitChangeRequest, len(data))
	for i, r := range data {
		responses[i] = *RequestToEntity(r)
	}
	return responses
}
