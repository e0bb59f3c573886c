package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	changeorderdomain "github.com/smallbiznis/jobledger/internal/changeorder/domain"
	estimatedomain "github.com/smallbiznis/jobledger/internal/estimate/domain"
	expensedomain "github.com/smallbiznis/jobledger/internal/expense/domain"
	financedomain "github.com/smallbiznis/jobledger/internal/finance/domain"
	quotedomain "github.com/smallbiznis/jobledger/internal/quote/domain"
	"gorm.io/gorm"
)

// aggregate derives the raw per-project sums from the ledger. Sums run
// over fetched rows with decimal arithmetic rather than SQL SUM so the
// currency rounding is identical on every dialect.
func (s *Service) aggregate(
	ctx context.Context,
	tx *gorm.DB,
	projectID snowflake.ID,
	est *estimatedomain.Estimate,
	approvedCOs []changeorderdomain.ChangeOrder,
) (financedomain.Totals, error) {
	totals := financedomain.Totals{
		Expenses:           decimal.Zero,
		AcceptedQuotes:     decimal.Zero,
		ChangeOrderRevenue: decimal.Zero,
		ChangeOrderCost:    decimal.Zero,
		EstimateTotal:      decimal.Zero,
		EstimateCost:       decimal.Zero,
	}

	// Direct expenses. A split parent is excluded outright: counting it
	// alongside its splits would double the spend.
	var expenses []expensedomain.Expense
	if err := tx.WithContext(ctx).
		Where("project_id = ? AND is_split = ?", projectID, false).
		Find(&expenses).Error; err != nil {
		return totals, err
	}
	for _, e := range expenses {
		totals.Expenses = totals.Expenses.Add(e.Amount)
	}

	// Split allocations targeting this project, whoever owns the parent.
	var splits []expensedomain.ExpenseSplit
	if err := tx.WithContext(ctx).
		Where("project_id = ?", projectID).
		Find(&splits).Error; err != nil {
		return totals, err
	}
	for _, split := range splits {
		totals.Expenses = totals.Expenses.Add(split.SplitAmount)
	}

	var quotes []quotedomain.Quote
	if err := tx.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, quotedomain.QuoteStatusAccepted).
		Find(&quotes).Error; err != nil {
		return totals, err
	}
	for _, q := range quotes {
		totals.AcceptedQuotes = totals.AcceptedQuotes.Add(q.TotalAmount)
	}

	for _, co := range approvedCOs {
		totals.ChangeOrderRevenue = totals.ChangeOrderRevenue.Add(co.ClientAmount)
		totals.ChangeOrderCost = totals.ChangeOrderCost.Add(co.CostImpact)
	}

	if est != nil {
		totals.EstimateTotal = est.TotalAmount
		totals.EstimateCost = est.TotalCost
	}

	totals.Expenses = totals.Expenses.Round(2)
	totals.AcceptedQuotes = totals.AcceptedQuotes.Round(2)
	totals.ChangeOrderRevenue = totals.ChangeOrderRevenue.Round(2)
	totals.ChangeOrderCost = totals.ChangeOrderCost.Round(2)
	return totals, nil
}

func (s *Service) loadApprovedChangeOrders(ctx context.Context, tx *gorm.DB, projectID snowflake.ID) ([]changeorderdomain.ChangeOrder, error) {
	var rows []changeorderdomain.ChangeOrder
	err := tx.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, changeorderdomain.ChangeOrderStatusApproved).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// loadCurrentApprovedEstimate returns the single estimate revision that
// participates in calculations, or nil when the project has none.
func (s *Service) loadCurrentApprovedEstimate(ctx context.Context, tx *gorm.DB, projectID snowflake.ID) (*estimatedomain.Estimate, error) {
	var est estimatedomain.Estimate
	err := tx.WithContext(ctx).
		Preload("LineItems").
		Where("project_id = ? AND is_current_version = ? AND status = ?",
			projectID, true, estimatedomain.EstimateStatusApproved).
		First(&est).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &est, nil
}
