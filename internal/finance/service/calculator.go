package service

import (
	"time"

	"github.com/shopspring/decimal"
	changeorderdomain "github.com/smallbiznis/jobledger/internal/changeorder/domain"
	estimatedomain "github.com/smallbiznis/jobledger/internal/estimate/domain"
	financedomain "github.com/smallbiznis/jobledger/internal/finance/domain"
	projectdomain "github.com/smallbiznis/jobledger/internal/project/domain"
)

var hundred = decimal.NewFromInt(100)

// calculate combines resolved costs and ledger totals into the full
// snapshot. It is a pure function of its inputs; it never reads the
// previous snapshot, so re-running it is always safe.
func calculate(
	est *estimatedomain.Estimate,
	resolved []financedomain.ResolvedLine,
	totals financedomain.Totals,
	approvedCOs []changeorderdomain.ChangeOrder,
	now time.Time,
) projectdomain.FinancialSnapshot {
	snap := projectdomain.FinancialSnapshot{
		ContractedAmount:          decimal.Zero,
		CurrentMargin:             decimal.Zero,
		MarginPercentage:          decimal.Zero,
		ProjectedMargin:           decimal.Zero,
		OriginalMargin:            decimal.Zero,
		OriginalEstCosts:          decimal.Zero,
		AdjustedEstCosts:          decimal.Zero,
		TotalExpenses:             totals.Expenses,
		TotalAcceptedQuotes:       totals.AcceptedQuotes,
		ChangeOrderRevenue:        totals.ChangeOrderRevenue,
		ChangeOrderCost:           totals.ChangeOrderCost,
		ContingencyAmount:         decimal.Zero,
		ContingencyUsed:           decimal.Zero,
		ContingencyRemaining:      decimal.Zero,
		TotalLaborCushion:         decimal.Zero,
		MaxGrossProfitPotential:   decimal.Zero,
		MaxPotentialMarginPercent: decimal.Zero,
		HasEstimate:               est != nil,
		SnapshotComputedAt:        &now,
	}

	snap.ContractedAmount = totals.EstimateTotal.Add(totals.ChangeOrderRevenue).Round(2)
	snap.CurrentMargin = snap.ContractedAmount.Sub(totals.Expenses).Round(2)
	if !snap.ContractedAmount.IsZero() {
		snap.MarginPercentage = snap.CurrentMargin.Div(snap.ContractedAmount).Mul(hundred).Round(2)
	}

	originalCosts := decimal.Zero
	adjustedCosts := decimal.Zero
	if len(resolved) > 0 {
		for _, line := range resolved {
			originalCosts = originalCosts.Add(line.OriginalCost)
			adjustedCosts = adjustedCosts.Add(line.ResolvedCost)
		}
	} else {
		// Header-only estimates carry totals without itemization.
		originalCosts = totals.EstimateCost
		adjustedCosts = totals.EstimateCost
	}
	snap.OriginalEstCosts = originalCosts.Round(2)
	snap.AdjustedEstCosts = adjustedCosts.Add(totals.ChangeOrderCost).Round(2)

	snap.OriginalMargin = totals.EstimateTotal.Sub(snap.OriginalEstCosts).Round(2)
	snap.ProjectedMargin = snap.ContractedAmount.Sub(snap.AdjustedEstCosts).Round(2)

	if est != nil {
		snap.ContingencyAmount = est.ContingencyAmount
		snap.ContingencyUsed = est.ContingencyUsed

		contingencyDrawn := decimal.Zero
		for _, co := range approvedCOs {
			if co.IncludesContingency {
				contingencyDrawn = contingencyDrawn.Add(co.CostImpact)
			}
		}
		snap.ContingencyRemaining = est.ContingencyAmount.
			Sub(est.ContingencyUsed).
			Sub(contingencyDrawn).
			Round(2)

		cushion := decimal.Zero
		markup := decimal.Zero
		for _, line := range est.LineItems {
			cushion = cushion.Add(line.LaborCushion())
			markup = markup.Add(line.TotalMarkup)
		}
		snap.TotalLaborCushion = cushion.Round(2)

		// The cushion is additive profit hidden inside the billed labor
		// cost. Max potential profit stacks it on the visible markup; the
		// max potential margin rates that profit against revenue with the
		// cushion removed from the cost basis (true internal cost).
		snap.MaxGrossProfitPotential = markup.Add(cushion).Round(2)
		if !totals.EstimateTotal.IsZero() {
			trueCost := snap.OriginalEstCosts.Sub(cushion)
			snap.MaxPotentialMarginPercent = totals.EstimateTotal.Sub(trueCost).
				Div(totals.EstimateTotal).
				Mul(hundred).
				Round(2)
		}
	}

	return snap
}
