package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PayeeType distinguishes internal employees from external vendors and
// subcontractors. Internal employees carry the actual-cost hourly rate
// used for the labor cushion.
type PayeeType string

const (
	PayeeTypeVendor        PayeeType = "vendor"
	PayeeTypeSubcontractor PayeeType = "subcontractor"
	PayeeTypeEmployee      PayeeType = "employee"
)

func (t PayeeType) Valid() bool {
	switch t {
	case PayeeTypeVendor, PayeeTypeSubcontractor, PayeeTypeEmployee:
		return true
	}
	return false
}

func (t PayeeType) IsInternal() bool { return t == PayeeTypeEmployee }

// Payee is a vendor, subcontractor or internal employee record.
type Payee struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name       string          `gorm:"type:text;not null;index" json:"name"`
	Type       PayeeType       `gorm:"type:text;not null;default:'vendor'" json:"type"`
	Email      string          `gorm:"type:text" json:"email,omitempty"`
	HourlyRate decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"hourly_rate"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Payee) TableName() string { return "payees" }
