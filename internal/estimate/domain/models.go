package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// EstimateStatus gates participation in financial calculations: only an
// approved, current-version estimate contributes to project totals.
type EstimateStatus string

const (
	EstimateStatusDraft    EstimateStatus = "draft"
	EstimateStatusSent     EstimateStatus = "sent"
	EstimateStatusApproved EstimateStatus = "approved"
	EstimateStatusRejected EstimateStatus = "rejected"
	EstimateStatusExpired  EstimateStatus = "expired"
)

func (s EstimateStatus) Valid() bool {
	switch s {
	case EstimateStatusDraft, EstimateStatusSent, EstimateStatusApproved,
		EstimateStatusRejected, EstimateStatusExpired:
		return true
	}
	return false
}

// CostCategory is the fixed line-item category enum shared by estimate,
// change-order and expense rows.
type CostCategory string

const (
	CategoryLaborInternal  CostCategory = "labor_internal"
	CategorySubcontractors CostCategory = "subcontractors"
	CategoryMaterials      CostCategory = "materials"
	CategoryEquipment      CostCategory = "equipment"
	CategoryPermits        CostCategory = "permits"
	CategoryManagement     CostCategory = "management"
	CategoryOther          CostCategory = "other"
)

func (c CostCategory) Valid() bool {
	switch c {
	case CategoryLaborInternal, CategorySubcontractors, CategoryMaterials,
		CategoryEquipment, CategoryPermits, CategoryManagement, CategoryOther:
		return true
	}
	return false
}

// UsesEstimateCost reports whether the category is priced internally and
// never substituted by vendor quotes.
func (c CostCategory) UsesEstimateCost() bool {
	return c == CategoryLaborInternal || c == CategoryManagement
}

// Estimate is one revision of a project's estimate. Version numbers are
// monotonic per project and exactly one revision may be current.
type Estimate struct {
	ID               snowflake.ID   `gorm:"primaryKey" json:"id"`
	ProjectID        snowflake.ID   `gorm:"not null;index;uniqueIndex:ux_estimates_project_version,priority:1" json:"project_id"`
	Version          int            `gorm:"not null;uniqueIndex:ux_estimates_project_version,priority:2" json:"version"`
	IsCurrentVersion bool           `gorm:"not null;default:false;index" json:"is_current_version"`
	Status           EstimateStatus `gorm:"type:text;not null;default:'draft'" json:"status"`

	TotalAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_amount"`
	TotalCost   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_cost"`

	ContingencyPercent decimal.Decimal `gorm:"type:numeric(8,2);not null;default:0" json:"contingency_percent"`
	ContingencyAmount  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"contingency_amount"`
	ContingencyUsed    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"contingency_used"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	LineItems []EstimateLineItem `gorm:"foreignKey:EstimateID" json:"line_items,omitempty"`
}

// TableName sets the database table name.
func (Estimate) TableName() string { return "estimates" }

// EstimateLineItem is one priced scope of work. TotalCost and
// TotalMarkup are derived at write time from quantity and rates.
//
// For labor_internal lines the cost-per-unit is the client-facing
// billing basis; the spread between BillingRate and ActualCostRate
// times LaborHours is the labor cushion, kept out of TotalMarkup so the
// internal cost rate is never exposed.
type EstimateLineItem struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	EstimateID  snowflake.ID  `gorm:"not null;index" json:"estimate_id"`
	Category    CostCategory  `gorm:"type:text;not null;index" json:"category"`
	Description string        `gorm:"type:text" json:"description"`
	PayeeID     *snowflake.ID `gorm:"index" json:"payee_id,omitempty"`

	Quantity     decimal.Decimal `gorm:"type:numeric(14,4);not null;default:0" json:"quantity"`
	CostPerUnit  decimal.Decimal `gorm:"type:numeric(14,4);not null;default:0" json:"cost_per_unit"`
	PricePerUnit decimal.Decimal `gorm:"type:numeric(14,4);not null;default:0" json:"price_per_unit"`
	TotalCost    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_cost"`
	TotalMarkup  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_markup"`

	LaborHours     decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"labor_hours"`
	BillingRate    decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"billing_rate"`
	ActualCostRate decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"actual_cost_rate"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (EstimateLineItem) TableName() string { return "estimate_line_items" }

// LaborCushion returns the hidden labor profit for the line, zero for
// non-labor categories and for negative rate spreads.
func (l EstimateLineItem) LaborCushion() decimal.Decimal {
	if l.Category != CategoryLaborInternal {
		return decimal.Zero
	}
	spread := l.BillingRate.Sub(l.ActualCostRate)
	if spread.IsNegative() {
		return decimal.Zero
	}
	return l.LaborHours.Mul(spread).Round(2)
}
