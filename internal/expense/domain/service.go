package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	estimatedomain "github.com/smallbiznis/jobledger/internal/estimate/domain"
)

var (
	ErrExpenseNotFound       = errors.New("expense_not_found")
	ErrInvalidAmount         = errors.New("invalid_expense_amount")
	ErrInvalidTransition     = errors.New("invalid_expense_transition")
	ErrSplitAmountMismatch   = errors.New("split_amount_mismatch")
	ErrSplitPercentMismatch  = errors.New("split_percent_mismatch")
	ErrSplitRequiresProjects = errors.New("split_requires_projects")
)

type SplitInput struct {
	ProjectID snowflake.ID     `json:"project_id,string"`
	Amount    decimal.Decimal  `json:"amount"`
	Percent   *decimal.Decimal `json:"percent,omitempty"`
}

type CreateExpenseRequest struct {
	ProjectID   snowflake.ID                `json:"project_id,string"`
	PayeeID     *snowflake.ID               `json:"payee_id,string,omitempty"`
	Category    estimatedomain.CostCategory `json:"category"`
	Amount      decimal.Decimal             `json:"amount"`
	ExpenseDate time.Time                   `json:"expense_date"`
	Memo        string                      `json:"memo"`
	Metadata    map[string]any              `json:"metadata"`

	// Splits, when present, allocate the amount across projects. Either
	// every split carries an explicit amount summing to Amount, or every
	// split carries a percent summing to 100.
	Splits []SplitInput `json:"splits"`
}

type Service interface {
	Create(ctx context.Context, req CreateExpenseRequest) (*Expense, error)
	Get(ctx context.Context, id snowflake.ID) (*Expense, error)
	ListByProject(ctx context.Context, projectID snowflake.ID) ([]Expense, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, to ExpenseApprovalStatus) (*Expense, error)
	Delete(ctx context.Context, id snowflake.ID) error
}
