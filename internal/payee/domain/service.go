package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrPayeeNotFound    = errors.New("payee_not_found")
	ErrInvalidPayeeType = errors.New("invalid_payee_type")
	ErrInvalidPayeeName = errors.New("invalid_payee_name")
)

type CreatePayeeRequest struct {
	Name       string          `json:"name"`
	Type       PayeeType       `json:"type"`
	Email      string          `json:"email"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
}

type Service interface {
	Create(ctx context.Context, req CreatePayeeRequest) (*Payee, error)
	Get(ctx context.Context, id snowflake.ID) (*Payee, error)
	List(ctx context.Context) ([]Payee, error)
}
