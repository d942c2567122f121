package domain

import "time"

type OutboxState string

const (
	OutboxPending OutboxState = "PENDING"
	OutboxSent    OutboxState = "SENT"
	OutboxFailed  OutboxState = "FAILED"
)

// DecisionNotice is the payload of a decision notification, captured at
// approval time so delivery does not depend on later reference-data reads.
type DecisionNotice struct {
	RequestID uint64
	Recipient string
	Name      string
	Decision  RequestStatus
	Comment   string
	Limits    Limits
}

// OutboxMessage is a decision notification staged for asynchronous
// delivery.
type OutboxMessage struct {
	ID        uint64
	Notice    DecisionNotice
	State     OutboxState
	Attempts  int
	LastError string
	CreatedAt time.Time
	SentAt    *time.Time
}
