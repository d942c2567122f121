package domain_test

import (
	"testing"

	"github.com/fazamuttaqien/remitquota/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestParseRequestStatus(t *testing.T) {
	for _, valid := range []string{"PENDING", "APPROVED", "REJECTED"} {
		status, ok := domain.ParseRequestStatus(valid)
		assert.True(t, ok)
		assert.Equal(t, domain.RequestStatus(valid), status)
	}

	for _, invalid := range []string{"", "pending", "CANCELLED", "approved "} {
		_, ok := domain.ParseRequestStatus(invalid)
		assert.False(t, ok, invalid)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    domain.RequestStatus
		to      domain.RequestStatus
		allowed bool
	}{
		{domain.RequestPending, domain.RequestApproved, true},
		{domain.RequestPending, domain.RequestRejected, true},
		{domain.RequestPending, domain.RequestPending, false},
		{domain.RequestRejected, domain.RequestPending, true},
		{domain.RequestRejected, domain.RequestApproved, false},
		{domain.RequestRejected, domain.RequestRejected, false},
		{domain.RequestApproved, domain.RequestPending, false},
		{domain.RequestApproved, domain.RequestApproved, false},
		{domain.RequestApproved, domain.RequestRejected, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestAttachmentEmpty(t *testing.T) {
	assert.True(t, domain.Attachment{}.Empty())
	assert.False(t, domain.Attachment{URL: "https://cdn.example.com/x", PublicID: "x"}.Empty())
}
