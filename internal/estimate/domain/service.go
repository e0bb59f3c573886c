package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrEstimateNotFound    = errors.New("estimate_not_found")
	ErrInvalidCategory     = errors.New("invalid_cost_category")
	ErrInvalidStatus       = errors.New("invalid_estimate_status")
	ErrInvalidTransition   = errors.New("invalid_estimate_transition")
	ErrNotLatestVersion    = errors.New("estimate_not_latest_version")
	ErrDuplicateCurrent    = errors.New("duplicate_current_version")
	ErrNoLineItems         = errors.New("estimate_requires_line_items")
	ErrNegativeContingency = errors.New("negative_contingency")
)

type LineItemInput struct {
	Category    CostCategory  `json:"category"`
	Description string        `json:"description"`
	PayeeID     *snowflake.ID `json:"payee_id,string,omitempty"`

	Quantity     decimal.Decimal `json:"quantity"`
	CostPerUnit  decimal.Decimal `json:"cost_per_unit"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`

	LaborHours     decimal.Decimal `json:"labor_hours"`
	BillingRate    decimal.Decimal `json:"billing_rate"`
	ActualCostRate decimal.Decimal `json:"actual_cost_rate"`
}

type CreateEstimateRequest struct {
	ProjectID          snowflake.ID    `json:"project_id,string"`
	ContingencyPercent decimal.Decimal `json:"contingency_percent"`
	ContingencyAmount  decimal.Decimal `json:"contingency_amount"`
	LineItems          []LineItemInput `json:"line_items"`
}

type Service interface {
	// Create inserts a new estimate revision for the project. The new
	// revision gets the next version number and becomes current; the
	// previous current revision is demoted in the same transaction.
	Create(ctx context.Context, req CreateEstimateRequest) (*Estimate, error)

	Get(ctx context.Context, id snowflake.ID) (*Estimate, error)
	ListByProject(ctx context.Context, projectID snowflake.ID) ([]Estimate, error)

	// CurrentApproved returns the estimate participating in financial
	// calculations, or nil when the project has none (a neutral state,
	// not an error).
	CurrentApproved(ctx context.Context, projectID snowflake.ID) (*Estimate, error)

	UpdateStatus(ctx context.Context, id snowflake.ID, to EstimateStatus) (*Estimate, error)

	// MarkCurrent promotes an estimate to current version. Only the most
	// recent revision may be current; promoting an older one is rejected.
	MarkCurrent(ctx context.Context, id snowflake.ID) (*Estimate, error)

	RecordContingencyUse(ctx context.Context, id snowflake.ID, amount decimal.Decimal) (*Estimate, error)
}
