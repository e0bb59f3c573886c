package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	estimatedomain "github.com/smallbiznis/jobledger/internal/estimate/domain"
	financedomain "github.com/smallbiznis/jobledger/internal/finance/domain"
	quotedomain "github.com/smallbiznis/jobledger/internal/quote/domain"
	"gorm.io/gorm"
)

type quotedCost struct {
	Cost       decimal.Decimal
	AcceptedAt time.Time
}

type quotedCostRow struct {
	EstimateLineItemID snowflake.ID    `gorm:"column:estimate_line_item_id"`
	Cost               decimal.Decimal `gorm:"column:cost"`
	AcceptedAt         time.Time       `gorm:"column:accepted_at"`
}

// loadQuotedCosts maps estimate line items to the cost of the accepted
// quote covering them. Write-time validation keeps acceptance exclusive
// per line item; if legacy data still carries competitors, the most
// recently accepted quote wins deterministically.
func (s *Service) loadQuotedCosts(ctx context.Context, tx *gorm.DB, projectID snowflake.ID) (map[snowflake.ID]quotedCost, error) {
	var rows []quotedCostRow
	err := tx.WithContext(ctx).
		Model(&quotedomain.QuoteLineItem{}).
		Select("quote_line_items.estimate_line_item_id, quote_line_items.cost, quotes.accepted_at").
		Joins("JOIN quotes ON quotes.id = quote_line_items.quote_id").
		Where("quotes.project_id = ? AND quotes.status = ? AND quote_line_items.estimate_line_item_id IS NOT NULL",
			projectID, quotedomain.QuoteStatusAccepted).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	costs := make(map[snowflake.ID]quotedCost, len(rows))
	for _, row := range rows {
		existing, ok := costs[row.EstimateLineItemID]
		if ok && !row.AcceptedAt.After(existing.AcceptedAt) {
			continue
		}
		costs[row.EstimateLineItemID] = quotedCost{Cost: row.Cost, AcceptedAt: row.AcceptedAt}
	}
	return costs, nil
}

// resolveLines applies the cost-resolution policy per line item:
// internally priced categories (labor_internal, management) always keep
// the estimate's own cost; every other category takes an accepted
// quote's cost when one references the line, falling back to the
// estimate cost otherwise.
func resolveLines(lines []estimatedomain.EstimateLineItem, quoted map[snowflake.ID]quotedCost) []financedomain.ResolvedLine {
	resolved := make([]financedomain.ResolvedLine, 0, len(lines))
	for _, line := range lines {
		r := financedomain.ResolvedLine{
			LineItemID:   line.ID,
			OriginalCost: line.TotalCost,
			ResolvedCost: line.TotalCost,
		}
		if !line.Category.UsesEstimateCost() {
			if qc, ok := quoted[line.ID]; ok {
				r.ResolvedCost = qc.Cost
				r.FromQuote = true
			}
		}
		resolved = append(resolved, r)
	}
	return resolved
}
