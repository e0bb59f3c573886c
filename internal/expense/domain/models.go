package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	estimatedomain "github.com/smallbiznis/jobledger/internal/estimate/domain"
	"gorm.io/datatypes"
)

// ExpenseApprovalStatus is a bookkeeping state; it does not gate
// aggregation. Recorded spend counts against the project as soon as it
// exists.
type ExpenseApprovalStatus string

const (
	ExpenseStatusPending  ExpenseApprovalStatus = "pending"
	ExpenseStatusApproved ExpenseApprovalStatus = "approved"
	ExpenseStatusRejected ExpenseApprovalStatus = "rejected"
)

func (s ExpenseApprovalStatus) Valid() bool {
	switch s {
	case ExpenseStatusPending, ExpenseStatusApproved, ExpenseStatusRejected:
		return true
	}
	return false
}

// Expense is one recorded cost. When IsSplit is set the parent amount is
// excluded from every project total; only its ExpenseSplit rows count.
type Expense struct {
	ID        snowflake.ID                `gorm:"primaryKey" json:"id"`
	ProjectID snowflake.ID                `gorm:"not null;index" json:"project_id"`
	PayeeID   *snowflake.ID               `gorm:"index" json:"payee_id,omitempty"`
	Category  estimatedomain.CostCategory `gorm:"type:text;not null;index" json:"category"`

	Amount      decimal.Decimal       `gorm:"type:numeric(14,2);not null;default:0" json:"amount"`
	ExpenseDate time.Time             `gorm:"not null;index" json:"expense_date"`
	Status      ExpenseApprovalStatus `gorm:"type:text;not null;default:'pending'" json:"status"`
	IsSplit     bool                  `gorm:"not null;default:false;index" json:"is_split"`
	Memo        string                `gorm:"type:text" json:"memo,omitempty"`
	Metadata    datatypes.JSONMap     `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Splits []ExpenseSplit `gorm:"foreignKey:ExpenseID" json:"splits,omitempty"`
}

// TableName sets the database table name.
func (Expense) TableName() string { return "expenses" }

// ExpenseSplit allocates a portion of a parent expense to one project.
// The splits of one expense must sum to the parent amount exactly.
type ExpenseSplit struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ExpenseID snowflake.ID `gorm:"not null;index" json:"expense_id"`
	ProjectID snowflake.ID `gorm:"not null;index" json:"project_id"`

	SplitAmount  decimal.Decimal  `gorm:"type:numeric(14,2);not null;default:0" json:"split_amount"`
	SplitPercent *decimal.Decimal `gorm:"type:numeric(8,4)" json:"split_percent,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ExpenseSplit) TableName() string { return "expense_splits" }
