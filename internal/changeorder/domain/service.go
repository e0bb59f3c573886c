package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	estimatedomain "github.com/smallbiznis/jobledger/internal/estimate/domain"
)

var (
	ErrChangeOrderNotFound = errors.New("change_order_not_found")
	ErrInvalidStatus       = errors.New("invalid_change_order_status")
	ErrInvalidTransition   = errors.New("invalid_change_order_transition")
)

type ChangeOrderLineInput struct {
	Category    estimatedomain.CostCategory `json:"category"`
	Description string                      `json:"description"`
	Amount      decimal.Decimal             `json:"amount"`
	Cost        decimal.Decimal             `json:"cost"`
}

type CreateChangeOrderRequest struct {
	ProjectID           snowflake.ID           `json:"project_id,string"`
	Number              string                 `json:"number"`
	Title               string                 `json:"title"`
	ClientAmount        decimal.Decimal        `json:"client_amount"`
	CostImpact          decimal.Decimal        `json:"cost_impact"`
	IncludesContingency bool                   `json:"includes_contingency"`
	LineItems           []ChangeOrderLineInput `json:"line_items"`
}

type Service interface {
	Create(ctx context.Context, req CreateChangeOrderRequest) (*ChangeOrder, error)
	Get(ctx context.Context, id snowflake.ID) (*ChangeOrder, error)
	ListByProject(ctx context.Context, projectID snowflake.ID) ([]ChangeOrder, error)
	Submit(ctx context.Context, id snowflake.ID) (*ChangeOrder, error)
	Approve(ctx context.Context, id snowflake.ID) (*ChangeOrder, error)
	Reject(ctx context.Context, id snowflake.ID) (*ChangeOrder, error)
}
