package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// QuoteStatus gates cost resolution: only accepted quotes may override
// estimate costs.
type QuoteStatus string

const (
	QuoteStatusPending  QuoteStatus = "pending"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusRejected QuoteStatus = "rejected"
	QuoteStatusExpired  QuoteStatus = "expired"
)

func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteStatusPending, QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusExpired:
		return true
	}
	return false
}

// Quote is a vendor or subcontractor bid against a project, optionally
// tied to one estimate revision.
type Quote struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	ProjectID  snowflake.ID  `gorm:"not null;index" json:"project_id"`
	EstimateID *snowflake.ID `gorm:"index" json:"estimate_id,omitempty"`
	PayeeID    snowflake.ID  `gorm:"not null;index" json:"payee_id"`
	Status     QuoteStatus   `gorm:"type:text;not null;default:'pending';index" json:"status"`

	TotalAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_amount"`
	AcceptedAt  *time.Time      `json:"accepted_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	LineItems []QuoteLineItem `gorm:"foreignKey:QuoteID" json:"line_items,omitempty"`
}

// TableName sets the database table name.
func (Quote) TableName() string { return "quotes" }

// QuoteLineItem prices one scope of work. EstimateLineItemID is the
// join key the cost resolver uses to substitute quoted cost for the
// estimate's own cost. It references the estimate line, never owns it.
type QuoteLineItem struct {
	ID                 snowflake.ID  `gorm:"primaryKey" json:"id"`
	QuoteID            snowflake.ID  `gorm:"not null;index" json:"quote_id"`
	EstimateLineItemID *snowflake.ID `gorm:"index" json:"estimate_line_item_id,omitempty"`
	Description        string        `gorm:"type:text" json:"description"`

	Cost decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"cost"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (QuoteLineItem) TableName() string { return "quote_line_items" }
