package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ProjectStatus tracks the commercial lifecycle of a job.
type ProjectStatus string

const (
	ProjectStatusEstimating ProjectStatus = "estimating"
	ProjectStatusQuoted     ProjectStatus = "quoted"
	ProjectStatusApproved   ProjectStatus = "approved"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusComplete   ProjectStatus = "complete"
	ProjectStatusOnHold     ProjectStatus = "on_hold"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

// forward lists the main-line transitions; on_hold and cancelled are
// reachable from any non-terminal state.
var forward = map[ProjectStatus][]ProjectStatus{
	ProjectStatusEstimating: {ProjectStatusQuoted},
	ProjectStatusQuoted:     {ProjectStatusApproved},
	ProjectStatusApproved:   {ProjectStatusInProgress},
	ProjectStatusInProgress: {ProjectStatusComplete},
	ProjectStatusOnHold:     {ProjectStatusEstimating, ProjectStatusQuoted, ProjectStatusApproved, ProjectStatusInProgress},
}

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusEstimating, ProjectStatusQuoted, ProjectStatusApproved,
		ProjectStatusInProgress, ProjectStatusComplete, ProjectStatusOnHold, ProjectStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a status change is allowed.
func (s ProjectStatus) CanTransition(to ProjectStatus) bool {
	if s == to {
		return false
	}
	if s == ProjectStatusComplete || s == ProjectStatusCancelled {
		return false
	}
	if to == ProjectStatusOnHold || to == ProjectStatusCancelled {
		return true
	}
	for _, next := range forward[s] {
		if next == to {
			return true
		}
	}
	return false
}

// FinancialSnapshot is the materialized result of a recompute. It lives
// on the project row, is replaced wholesale by the finance service and
// is never edited directly.
type FinancialSnapshot struct {
	ContractedAmount          decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"contracted_amount"`
	CurrentMargin             decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"current_margin"`
	MarginPercentage          decimal.Decimal `gorm:"type:numeric(8,2);not null;default:0" json:"margin_percentage"`
	ProjectedMargin           decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"projected_margin"`
	OriginalMargin            decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"original_margin"`
	OriginalEstCosts          decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"original_est_costs"`
	AdjustedEstCosts          decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"adjusted_est_costs"`
	TotalExpenses             decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_expenses"`
	TotalAcceptedQuotes       decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_accepted_quotes"`
	ChangeOrderRevenue        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"change_order_revenue"`
	ChangeOrderCost           decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"change_order_cost"`
	ContingencyAmount         decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"contingency_amount"`
	ContingencyUsed           decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"contingency_used"`
	ContingencyRemaining      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"contingency_remaining"`
	TotalLaborCushion         decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_labor_cushion"`
	MaxGrossProfitPotential   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"max_gross_profit_potential"`
	MaxPotentialMarginPercent decimal.Decimal `gorm:"type:numeric(8,2);not null;default:0" json:"max_potential_margin_percent"`

	// HasEstimate distinguishes "no approved estimate yet" from a
	// genuinely zero-margin project.
	HasEstimate        bool       `gorm:"not null;default:false" json:"has_estimate"`
	SnapshotComputedAt *time.Time `json:"snapshot_computed_at,omitempty"`
}

// Project is one job. Snapshot columns are derived state owned by the
// finance service.
type Project struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	Number     string            `gorm:"type:text;not null;uniqueIndex" json:"number"`
	Name       string            `gorm:"type:text;not null" json:"name"`
	ClientName string            `gorm:"type:text" json:"client_name"`
	Status     ProjectStatus     `gorm:"type:text;not null;default:'estimating';index" json:"status"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	FinancialSnapshot `gorm:"embedded"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Project) TableName() string { return "projects" }
