package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrQuoteNotFound      = errors.New("quote_not_found")
	ErrInvalidStatus      = errors.New("invalid_quote_status")
	ErrInvalidTransition  = errors.New("invalid_quote_transition")
	ErrQuoteScopeConflict = errors.New("quote_scope_conflict")
	ErrNoLineItems        = errors.New("quote_requires_line_items")
)

type QuoteLineInput struct {
	EstimateLineItemID *snowflake.ID   `json:"estimate_line_item_id,string,omitempty"`
	Description        string          `json:"description"`
	Cost               decimal.Decimal `json:"cost"`
}

type CreateQuoteRequest struct {
	ProjectID  snowflake.ID     `json:"project_id,string"`
	EstimateID *snowflake.ID    `json:"estimate_id,string,omitempty"`
	PayeeID    snowflake.ID     `json:"payee_id,string"`
	LineItems  []QuoteLineInput `json:"line_items"`
}

type Service interface {
	Create(ctx context.Context, req CreateQuoteRequest) (*Quote, error)
	Get(ctx context.Context, id snowflake.ID) (*Quote, error)
	ListByProject(ctx context.Context, projectID snowflake.ID) ([]Quote, error)

	// Accept flips a pending quote to accepted. Acceptance is exclusive
	// per estimate-line-item scope: if another accepted quote already
	// covers one of this quote's estimate line items the call fails with
	// ErrQuoteScopeConflict and nothing changes.
	Accept(ctx context.Context, id snowflake.ID) (*Quote, error)

	// Reject withdraws a quote. Rejecting an accepted quote frees its
	// estimate-line-item scope for a competing quote.
	Reject(ctx context.Context, id snowflake.ID) (*Quote, error)
}
