package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	financedomain "github.com/smallbiznis/jobledger/internal/finance/domain"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestCalculate_ZeroContractNeverDivides(t *testing.T) {
	snap := calculate(nil, nil, financedomain.Totals{
		Expenses:           d("250"),
		AcceptedQuotes:     decimal.Zero,
		ChangeOrderRevenue: decimal.Zero,
		ChangeOrderCost:    decimal.Zero,
		EstimateTotal:      decimal.Zero,
		EstimateCost:       decimal.Zero,
	}, nil, time.Now().UTC())

	assert.False(t, snap.HasEstimate)
	assert.True(t, snap.MarginPercentage.IsZero())
	assert.True(t, snap.CurrentMargin.Equal(d("-250")))
}

func TestCalculate_HeaderOnlyEstimateFallsBackToTotals(t *testing.T) {
	totals := financedomain.Totals{
		Expenses:           decimal.Zero,
		AcceptedQuotes:     decimal.Zero,
		ChangeOrderRevenue: decimal.Zero,
		ChangeOrderCost:    decimal.Zero,
		EstimateTotal:      d("10000"),
		EstimateCost:       d("7500"),
	}

	// No resolved lines: the header cost carries both columns.
	snap := calculate(nil, nil, totals, nil, time.Now().UTC())
	assert.True(t, snap.OriginalEstCosts.Equal(d("7500")))
	assert.True(t, snap.AdjustedEstCosts.Equal(d("7500")))
	assert.True(t, snap.OriginalMargin.Equal(d("2500")))
	assert.True(t, snap.ProjectedMargin.Equal(d("2500")))
}

func TestCalculate_ResolvedLinesDriveAdjustedCosts(t *testing.T) {
	resolved := []financedomain.ResolvedLine{
		{OriginalCost: d("30000"), ResolvedCost: d("30000")},
		{OriginalCost: d("20000"), ResolvedCost: d("15000"), FromQuote: true},
	}
	totals := financedomain.Totals{
		Expenses:           decimal.Zero,
		AcceptedQuotes:     d("15000"),
		ChangeOrderRevenue: decimal.Zero,
		ChangeOrderCost:    decimal.Zero,
		EstimateTotal:      d("75000"),
		EstimateCost:       d("50000"),
	}

	snap := calculate(nil, resolved, totals, nil, time.Now().UTC())
	assert.True(t, snap.OriginalEstCosts.Equal(d("50000")))
	assert.True(t, snap.AdjustedEstCosts.Equal(d("45000")))
	assert.True(t, snap.ProjectedMargin.Equal(d("30000")))
	assert.True(t, snap.OriginalMargin.Equal(d("25000")))
}
