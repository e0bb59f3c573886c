package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	estimatedomain "github.com/smallbiznis/jobledger/internal/estimate/domain"
)

// ChangeOrderStatus gates participation in totals: only approved change
// orders contribute revenue and cost deltas.
type ChangeOrderStatus string

const (
	ChangeOrderStatusDraft    ChangeOrderStatus = "draft"
	ChangeOrderStatusPending  ChangeOrderStatus = "pending"
	ChangeOrderStatusApproved ChangeOrderStatus = "approved"
	ChangeOrderStatusRejected ChangeOrderStatus = "rejected"
)

func (s ChangeOrderStatus) Valid() bool {
	switch s {
	case ChangeOrderStatusDraft, ChangeOrderStatusPending,
		ChangeOrderStatusApproved, ChangeOrderStatusRejected:
		return true
	}
	return false
}

// ChangeOrder is an out-of-estimate adjustment to a project's contract.
// ClientAmount is the revenue delta, CostImpact the cost delta. When
// IncludesContingency is set the cost impact draws down the estimate's
// contingency budget instead of adding new cost on top of it.
type ChangeOrder struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	ProjectID snowflake.ID      `gorm:"not null;index" json:"project_id"`
	Number    string            `gorm:"type:text;not null" json:"number"`
	Title     string            `gorm:"type:text" json:"title"`
	Status    ChangeOrderStatus `gorm:"type:text;not null;default:'draft';index" json:"status"`

	ClientAmount        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"client_amount"`
	CostImpact          decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"cost_impact"`
	IncludesContingency bool            `gorm:"not null;default:false" json:"includes_contingency"`

	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	LineItems []ChangeOrderLineItem `gorm:"foreignKey:ChangeOrderID" json:"line_items,omitempty"`
}

// TableName sets the database table name.
func (ChangeOrder) TableName() string { return "change_orders" }

// ChangeOrderLineItem itemizes a change order using the shared cost
// category enum.
type ChangeOrderLineItem struct {
	ID            snowflake.ID                `gorm:"primaryKey" json:"id"`
	ChangeOrderID snowflake.ID                `gorm:"not null;index" json:"change_order_id"`
	Category      estimatedomain.CostCategory `gorm:"type:text;not null" json:"category"`
	Description   string                      `gorm:"type:text" json:"description"`

	Amount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"amount"`
	Cost   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"cost"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ChangeOrderLineItem) TableName() string { return "change_order_line_items" }
