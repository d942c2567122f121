package model

import (
	"time"

	"gorm.io/gorm"
)

// DefaultLimit represents the default_limits table. One active row at most;
// replacement deactivates the previous row instead of deleting it.
type DefaultLimit struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	DailyLimit   float64   `gorm:"type:decimal(15,2);not null" json:"daily_limit"`
	MonthlyLimit float64   `gorm:"type:decimal(15,2);not null" json:"monthly_limit"`
	SingleLimit  float64   `gorm:"type:decimal(15,2);not null" json:"single_limit"`
	Description  string    `gorm:"type:varchar(255)" json:"description"`
	IsActive     bool      `gorm:"not null;default:false;index" json:"is_active"`
	UpdatedBy    uint64    `gorm:"not null;default:0" json:"updated_by"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UserLimitOverride represents the user_limit_overrides table. The unique
// index on user_id is what makes ReplaceOverride a single atomic upsert.
type UserLimitOverride struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint64    `gorm:"not null;uniqueIndex" json:"user_id"`
	DailyLimit   float64   `gorm:"type:decimal(15,2);not null" json:"daily_limit"`
	MonthlyLimit float64   `gorm:"type:decimal(15,2);not null" json:"monthly_limit"`
	SingleLimit  float64   `gorm:"type:decimal(15,2);not null" json:"single_limit"`
	RequestID    uint64    `gorm:"not null" json:"request_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// LimitChangeRequest represents the limit_change_requests table.
type LimitChangeRequest struct {
	ID                uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            uint64     `gorm:"not null;index" json:"user_id"`
	DailyLimit        float64    `gorm:"type:decimal(15,2);not null" json:"daily_limit"`
	MonthlyLimit      float64    `gorm:"type:decimal(15,2);not null" json:"monthly_limit"`
	SingleLimit       float64    `gorm:"type:decimal(15,2);not null" json:"single_limit"`
	Reason            string     `gorm:"type:text" json:"reason"`
	IncomeProofURL    string     `gorm:"type:varchar(255)" json:"income_proof_url"`
	IncomeProofID     string     `gorm:"type:varchar(255)" json:"income_proof_id"`
	BankbookProofURL  string     `gorm:"type:varchar(255)" json:"bankbook_proof_url"`
	BankbookProofID   string     `gorm:"type:varchar(255)" json:"bankbook_proof_id"`
	BusinessProofURL  string     `gorm:"type:varchar(255)" json:"business_proof_url"`
	BusinessProofID   string     `gorm:"type:varchar(255)" json:"business_proof_id"`
	Status            string     `gorm:"type:varchar(10);not null;default:'PENDING';index" json:"status"`
	AdminID           *uint64    `json:"admin_id"`
	AdminComment      string     `gorm:"type:varchar(500)" json:"admin_comment"`
	ProcessedAt       *time.Time `json:"processed_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Remittance represents the remittances table. Owned by the transfer
// subsystem; this service only aggregates completed rows.
type Remittance struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64    `gorm:"not null;index:idx_remittances_user_created" json:"user_id"`
	Amount    float64   `gorm:"type:decimal(15,2);not null" json:"amount"`
	Status    string    `gorm:"type:varchar(10);not null;index" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_remittances_user_created" json:"created_at"`
}

// User represents the users reference table owned by the account subsystem.
type User struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Email string `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Name  string `gorm:"type:varchar(255);not null" json:"name"`
}

// EmailOutbox holds decision notifications committed alongside the approval
// decision. A dispatcher delivers rows asynchronously so a mail failure can
// never roll back a decision.
type EmailOutbox struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID    uint64     `gorm:"not null;index" json:"request_id"`
	Recipient    string     `gorm:"type:varchar(255);not null" json:"recipient"`
	Name         string     `gorm:"type:varchar(255)" json:"name"`
	Decision     string     `gorm:"type:varchar(10);not null" json:"decision"`
	Comment      string     `gorm:"type:varchar(500)" json:"comment"`
	DailyLimit   float64    `gorm:"type:decimal(15,2);not null" json:"daily_limit"`
	MonthlyLimit float64    `gorm:"type:decimal(15,2);not null" json:"monthly_limit"`
	SingleLimit  float64    `gorm:"type:decimal(15,2);not null" json:"single_limit"`
	State        string     `gorm:"type:varchar(10);not null;default:'PENDING';index" json:"state"`
	Attempts     int        `gorm:"not null;default:0" json:"attempts"`
	LastError    string     `gorm:"type:varchar(500)" json:"last_error"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	SentAt       *time.Time `json:"sent_at"`
}

const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
	OutboxFailed  = "FAILED"
)

func (DefaultLimit) TableName() string       { return "default_limits" }
func (UserLimitOverride) TableName() string  { return "user_limit_overrides" }
func (LimitChangeRequest) TableName() string { return "limit_change_requests" }
func (Remittance) TableName() string         { return "remittances" }
func (User) TableName() string               { return "users" }
func (EmailOutbox) TableName() string        { return "email_outbox" }

// AutoMigrate creates or updates all tables of the quota subsystem.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&DefaultLimit{},
		&UserLimitOverride{},
		&LimitChangeRequest{},
		&Remittance{},
		&EmailOutbox{},
	)
}
