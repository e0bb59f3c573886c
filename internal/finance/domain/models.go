package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Ledger table identifiers used by the recompute dispatcher. Every
// mutation to one of these tables triggers a snapshot recompute for the
// affected project(s).
const (
	TableEstimates            = "estimates"
	TableEstimateLineItems    = "estimate_line_items"
	TableQuotes               = "quotes"
	TableQuoteLineItems       = "quote_line_items"
	TableChangeOrders         = "change_orders"
	TableChangeOrderLineItems = "change_order_line_items"
	TableExpenses             = "expenses"
	TableExpenseSplits        = "expense_splits"
)

// Totals are the raw per-project sums the aggregator derives from the
// ledger. All amounts are currency values rounded to 2 decimal places.
type Totals struct {
	Expenses           decimal.Decimal
	AcceptedQuotes     decimal.Decimal
	ChangeOrderRevenue decimal.Decimal
	ChangeOrderCost    decimal.Decimal
	EstimateTotal      decimal.Decimal
	EstimateCost       decimal.Decimal
}

// ResolvedLine pairs an estimate line item with its resolved "best
// known" cost: the estimate's own cost, or an accepted quote's cost for
// externally quotable categories.
type ResolvedLine struct {
	LineItemID   snowflake.ID
	OriginalCost decimal.Decimal
	ResolvedCost decimal.Decimal
	FromQuote    bool
}
