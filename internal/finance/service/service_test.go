package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	changeorderdomain "github.com/smallbiznis/jobledger/internal/changeorder/domain"
	changeorderservice "github.com/smallbiznis/jobledger/internal/changeorder/service"
	estimatedomain "github.com/smallbiznis/jobledger/internal/estimate/domain"
	estimateservice "github.com/smallbiznis/jobledger/internal/estimate/service"
	expensedomain "github.com/smallbiznis/jobledger/internal/expense/domain"
	expenseservice "github.com/smallbiznis/jobledger/internal/expense/service"
	financedomain "github.com/smallbiznis/jobledger/internal/finance/domain"
	projectdomain "github.com/smallbiznis/jobledger/internal/project/domain"
	quotedomain "github.com/smallbiznis/jobledger/internal/quote/domain"
	quoteservice "github.com/smallbiznis/jobledger/internal/quote/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	node     *snowflake.Node
	finance  financedomain.Service
	estimate estimatedomain.Service
	quote    quotedomain.Service
	co       changeorderdomain.Service
	expense  expensedomain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&projectdomain.Project{},
		&estimatedomain.Estimate{},
		&estimatedomain.EstimateLineItem{},
		&quotedomain.Quote{},
		&quotedomain.QuoteLineItem{},
		&changeorderdomain.ChangeOrder{},
		&changeorderdomain.ChangeOrderLineItem{},
		&expensedomain.Expense{},
		&expensedomain.ExpenseSplit{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	fin := NewService(Params{DB: db, Log: log, GenID: node})

	return &testEnv{
		db:       db,
		node:     node,
		finance:  fin,
		estimate: estimateservice.NewService(estimateservice.Params{DB: db, Log: log, GenID: node, Dispatcher: fin}),
		quote:    quoteservice.NewService(quoteservice.Params{DB: db, Log: log, GenID: node, Dispatcher: fin}),
		co:       changeorderservice.NewService(changeorderservice.Params{DB: db, Log: log, GenID: node, Dispatcher: fin}),
		expense:  expenseservice.NewService(expenseservice.Params{DB: db, Log: log, GenID: node, Dispatcher: fin}),
	}
}

func (e *testEnv) createProject(t *testing.T, number string) snowflake.ID {
	t.Helper()
	proj := projectdomain.Project{
		ID:     e.node.Generate(),
		Number: number,
		Name:   "Project " + number,
		Status: projectdomain.ProjectStatusEstimating,
	}
	require.NoError(t, e.db.Create(&proj).Error)
	return proj.ID
}

// approvedEstimate creates and approves an estimate with the standard
// three-line mix used across scenarios: 100k revenue, 70k cost, with a
// 20k subcontractors line quotable for substitution.
func (e *testEnv) approvedEstimate(t *testing.T, projectID snowflake.ID) *estimatedomain.Estimate {
	t.Helper()
	est, err := e.estimate.Create(context.Background(), estimatedomain.CreateEstimateRequest{
		ProjectID: projectID,
		LineItems: []estimatedomain.LineItemInput{
			{
				Category:     estimatedomain.CategoryMaterials,
				Quantity:     decimal.NewFromInt(1),
				CostPerUnit:  decimal.NewFromInt(30000),
				PricePerUnit: decimal.NewFromInt(40000),
			},
			{
				Category:     estimatedomain.CategorySubcontractors,
				Quantity:     decimal.NewFromInt(1),
				CostPerUnit:  decimal.NewFromInt(20000),
				PricePerUnit: decimal.NewFromInt(30000),
			},
			{
				Category:     estimatedomain.CategoryOther,
				Quantity:     decimal.NewFromInt(1),
				CostPerUnit:  decimal.NewFromInt(20000),
				PricePerUnit: decimal.NewFromInt(30000),
			},
		},
	})
	require.NoError(t, err)

	est, err = e.estimate.UpdateStatus(context.Background(), est.ID, estimatedomain.EstimateStatusApproved)
	require.NoError(t, err)
	return est
}

func (e *testEnv) snapshot(t *testing.T, projectID snowflake.ID) *projectdomain.FinancialSnapshot {
	t.Helper()
	snap, err := e.finance.GetSnapshot(context.Background(), projectID)
	require.NoError(t, err)
	return snap
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, label string) {
	t.Helper()
	assert.True(t, got.Equal(decimal.RequireFromString(want)),
		"%s: want %s, got %s", label, want, got)
}

func TestRecompute_NoEstimate(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.createProject(t, "P-1000")

	snap, err := env.finance.Recompute(context.Background(), projectID)
	require.NoError(t, err)

	assert.False(t, snap.HasEstimate)
	assertDecimal(t, "0", snap.ContractedAmount, "contracted amount")
	assertDecimal(t, "0", snap.MarginPercentage, "margin percentage")
	assert.NotNil(t, snap.SnapshotComputedAt)
}

func TestRecompute_NoEstimateWithExpenses(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.createProject(t, "P-1001")

	_, err := env.expense.Create(context.Background(), expensedomain.CreateExpenseRequest{
		ProjectID: projectID,
		Category:  estimatedomain.CategoryMaterials,
		Amount:    decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	snap := env.snapshot(t, projectID)
	assert.False(t, snap.HasEstimate)
	assertDecimal(t, "500", snap.TotalExpenses, "total expenses")
	// No revenue basis means the percentage stays zero, never divides.
	assertDecimal(t, "0", snap.MarginPercentage, "margin percentage")
	assertDecimal(t, "-500", snap.CurrentMargin, "current margin")
}

func TestRecompute_BasicMargins(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.createProject(t, "P-1002")
	env.approvedEstimate(t, projectID)

	snap := env.snapshot(t, projectID)
	assert.True(t, snap.HasEstimate)
	assertDecimal(t, "100000", snap.ContractedAmount, "contracted amount")
	assertDecimal(t, "70000", snap.OriginalEstCosts, "original est costs")
	assertDecimal(t, "70000", snap.AdjustedEstCosts, "adjusted est costs")
	assertDecimal(t, "30000", snap.OriginalMargin, "original margin")
	assertDecimal(t, "30000", snap.ProjectedMargin, "projected margin")
	assertDecimal(t, "100000", snap.CurrentMargin, "current margin")
	assertDecimal(t, "100", snap.MarginPercentage, "margin percentage")
}

func TestRecompute_ExpensesReduceCurrentMargin(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.createProject(t, "P-1003")
	env.approvedEstimate(t, projectID)

	_, err := env.expense.Create(context.Background(), expensedomain.CreateExpenseRequest{
		ProjectID: projectID,
		Category:  estimatedomain.CategoryMaterials,
		Amount:    decimal.NewFromInt(25000),
	})
	require.NoError(t, err)

	snap := env.snapshot(t, projectID)
	assertDecimal(t, "25000", snap.TotalExpenses, "total expenses")
	assertDecimal(t, "75000", snap.CurrentMargin, "current margin")
	assertDecimal(t, "75", snap.MarginPercentage, "margin percentage")
}

func TestRecompute_QuoteSubstitution(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.createProject(t, "P-1004")
	est := env.approvedEstimate(t, projectID)

	var subLine estimatedomain.EstimateLineItem
	for _, line := range est.LineItems {
		if line.Category == estimatedomain.CategorySubcontractors {
			subLine = line
		}
	}
	require.NotZero(t, subLine.ID)

	q, err := env.quote.Create(context.Background(), quotedomain.CreateQuoteRequest{
		ProjectID: projectID,
		PayeeID:   env.node.Generate(),
		LineItems: []quotedomain.QuoteLineInput{
			{EstimateLineItemID: &subLine.ID, Cost: decimal.NewFromInt(15000)},
		},
	})
	require.NoError(t, err)

	// Pending quotes never substitute.
	snap := env.snapshot(t, projectID)
	assertDecimal(t, "70000", snap.AdjustedEstCosts, "adjusted before acceptance")

	_, err = env.quote.Accept(context.Background(), q.ID)
	require.NoError(t, err)

	snap = env.snapshot(t, projectID)
	assertDecimal(t, "65000", snap.AdjustedEstCosts, "adjusted after acceptance")
	assertDecimal(t, "35000", snap.ProjectedMargin, "projected margin")
	assertDecimal(t, "70000", snap.OriginalEstCosts, "original untouched")
	assertDecimal(t, "15000", snap.TotalAcceptedQuotes, "accepted quotes total")

	// Rejecting the quote restores the estimate's own cost.
	_, err = env.quote.Reject(context.Background(), q.ID)
	require.NoError(t, err)

	snap = env.snapshot(t, projectID)
	assertDecimal(t, "70000", snap.AdjustedEstCosts, "adjusted after rejection")
	assertDecimal(t, "0", snap.TotalAcceptedQuotes, "accepted quotes cleared")
}

func TestRecompute_InternalCategoriesNeverSubstituted(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.createProject(t, "P-1005")

	est, err := env.estimate.Create(context.Background(), estimatedomain.CreateEstimateRequest{
		ProjectID: projectID,
		LineItems: []estimatedomain.LineItemInput{
			{
				Category:       estimatedomain.CategoryLaborInternal,
				LaborHours:     decimal.NewFromInt(100),
				BillingRate:    decimal.NewFromInt(80),
				ActualCostRate: decimal.NewFromInt(50),
			},
		},
	})
	require.NoError(t, err)
	_, err = env.estimate.UpdateStatus(context.Background(), est.ID, estimatedomain.EstimateStatusApproved)
	require.NoError(t, err)

	laborLine := est.LineItems[0]
	q, err := env.quote.Create(context.Background(), quotedomain.CreateQuoteRequest{
		ProjectID: projectID,
		PayeeID:   env.node.Generate(),
		LineItems: []quotedomain.QuoteLineInput{
			{EstimateLineItemID: &laborLine.ID, Cost: decimal.NewFromInt(1)},
		},
	})
	require.NoError(t, err)
	_, err = env.quote.Accept(context.Background(), q.ID)
	require.NoError(t, err)

	snap := env.snapshot(t, projectID)
	// 100h at the 80 billing rate, untouched by the accepted quote.
	assertDecimal(t, "8000", snap.AdjustedEstCosts, "labor cost stays internal")
}

func TestRecompute_SplitExpenseNoDoubleCount(t *testing.T) {
	env := newTestEnv(t)
	parentProject := env.createProject(t, "P-1006")
	otherProject := env.createProject(t, "P-1007")

	_, err := env.expense.Create(context.Background(), expensedomain.CreateExpenseRequest{
		ProjectID: parentProject,
		Category:  estimatedomain.CategoryEquipment,
		Amount:    decimal.NewFromInt(1000),
		Splits: []expensedomain.SplitInput{
			{ProjectID: parentProject, Amount: decimal.NewFromInt(600)},
			{ProjectID: otherProject, Amount: decimal.NewFromInt(400)},
		},
	})
	require.NoError(t, err)

	// The parent counts only its split share, never the full 1000.
	snapParent := env.snapshot(t, parentProject)
	assertDecimal(t, "600", snapParent.TotalExpenses, "parent expenses")

	snapOther := env.snapshot(t, otherProject)
	assertDecimal(t, "400", snapOther.TotalExpenses, "other project expenses")
}

func TestRecompute_SplitByPercent(t *testing.T) {
	env := newTestEnv(t)
	a := env.createProject(t, "P-1008")
	b := env.createProject(t, "P-1009")
	c := env.createProject(t, "P-1010")

	pct := func(v string) *decimal.Decimal {
		d := decimal.RequireFromString(v)
		return &d
	}

	_, err := env.expense.Create(context.Background(), expensedomain.CreateExpenseRequest{
		ProjectID: a,
		Category:  estimatedomain.CategoryPermits,
		Amount:    decimal.NewFromInt(100),
		Splits: []expensedomain.SplitInput{
			{ProjectID: a, Percent: pct("33.33")},
			{ProjectID: b, Percent: pct("33.33")},
			{ProjectID: c, Percent: pct("33.34")},
		},
	})
	require.NoError(t, err)

	snapA := env.snapshot(t, a)
	snapB := env.snapshot(t, b)
	snapC := env.snapshot(t, c)
	assertDecimal(t, "33.33", snapA.TotalExpenses, "first split")
	assertDecimal(t, "33.33", snapB.TotalExpenses, "second split")
	// Last split absorbs the rounding remainder; shares sum to the parent.
	assertDecimal(t, "33.34", snapC.TotalExpenses, "last split")
}

func TestRecompute_ChangeOrderDeltas(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.createProject(t, "P-1011")
	env.approvedEstimate(t, projectID)

	co, err := env.co.Create(context.Background(), changeorderdomain.CreateChangeOrderRequest{
		ProjectID:    projectID,
		Number:       "CO-1",
		ClientAmount: decimal.NewFromInt(5000),
		CostImpact:   decimal.NewFromInt(3000),
	})
	require.NoError(t, err)

	// Draft change orders contribute nothing.
	snap := env.snapshot(t, projectID)
	assertDecimal(t, "100000", snap.ContractedAmount, "contracted before approval")

	_, err = env.co.Submit(context.Background(), co.ID)
	require.NoError(t, err)
	_, err = env.co.Approve(context.Background(), co.ID)
	require.NoError(t, err)

	snap = env.snapshot(t, projectID)
	assertDecimal(t, "105000", snap.ContractedAmount, "contracted after approval")
	assertDecimal(t, "5000", snap.ChangeOrderRevenue, "co revenue")
	assertDecimal(t, "3000", snap.ChangeOrderCost, "co cost")
	assertDecimal(t, "73000", snap.AdjustedEstCosts, "adjusted includes co cost")
	// +5k revenue, -3k cost nets a +2k projected margin move.
	assertDecimal(t, "32000", snap.ProjectedMargin, "projected margin")
}

func TestRecompute_ContingencyDrawdown(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.createProject(t, "P-1012")

	est, err := env.estimate.Create(context.Background(), estimatedomain.CreateEstimateRequest{
		ProjectID:         projectID,
		ContingencyAmount: decimal.NewFromInt(10000),
		LineItems: []estimatedomain.LineItemInput{
			{
				Category:     estimatedomain.CategoryMaterials,
				Quantity:     decimal.NewFromInt(1),
				CostPerUnit:  decimal.NewFromInt(50000),
				PricePerUnit: decimal.NewFromInt(80000),
			},
		},
	})
	require.NoError(t, err)
	_, err = env.estimate.UpdateStatus(context.Background(), est.ID, estimatedomain.EstimateStatusApproved)
	require.NoError(t, err)

	snap := env.snapshot(t, projectID)
	assertDecimal(t, "10000", snap.ContingencyAmount, "contingency amount")
	assertDecimal(t, "10000", snap.ContingencyRemaining, "contingency untouched")

	co, err := env.co.Create(context.Background(), changeorderdomain.CreateChangeOrderRequest{
		ProjectID:           projectID,
		Number:              "CO-1",
		ClientAmount:        decimal.Zero,
		CostImpact:          decimal.NewFromInt(3000),
		IncludesContingency: true,
	})
	require.NoError(t, err)
	_, err = env.co.Submit(context.Background(), co.ID)
	require.NoError(t, err)
	_, err = env.co.Approve(context.Background(), co.ID)
	require.NoError(t, err)

	snap = env.snapshot(t, projectID)
	assertDecimal(t, "7000", snap.ContingencyRemaining, "contingency drawn down")

	_, err = env.estimate.RecordContingencyUse(context.Background(), est.ID, decimal.NewFromInt(2000))
	require.NoError(t, err)

	snap = env.snapshot(t, projectID)
	assertDecimal(t, "2000", snap.ContingencyUsed, "contingency used")
	assertDecimal(t, "5000", snap.ContingencyRemaining, "contingency after direct use")
}

func TestRecompute_LaborCushion(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.createProject(t, "P-1013")

	est, err := env.estimate.Create(context.Background(), estimatedomain.CreateEstimateRequest{
		ProjectID: projectID,
		LineItems: []estimatedomain.LineItemInput{
			{
				Category:       estimatedomain.CategoryLaborInternal,
				LaborHours:     decimal.NewFromInt(200),
				BillingRate:    decimal.NewFromInt(75),
				ActualCostRate: decimal.NewFromInt(35),
				PricePerUnit:   decimal.RequireFromString("93.75"),
			},
		},
	})
	require.NoError(t, err)
	_, err = env.estimate.UpdateStatus(context.Background(), est.ID, estimatedomain.EstimateStatusApproved)
	require.NoError(t, err)

	snap := env.snapshot(t, projectID)
	// 200h x (75 - 35) hidden in the billed labor cost.
	assertDecimal(t, "8000", snap.TotalLaborCushion, "labor cushion")
	// Visible markup 200 x (93.75 - 75) = 3750, plus the cushion.
	assertDecimal(t, "11750", snap.MaxGrossProfitPotential, "max gross profit potential")
	// Revenue 18750 against a true internal cost of 7000.
	assertDecimal(t, "62.67", snap.MaxPotentialMarginPercent, "max potential margin percent")
}

func TestRecompute_NegativeLaborSpreadClamped(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.createProject(t, "P-1014")

	est, err := env.estimate.Create(context.Background(), estimatedomain.CreateEstimateRequest{
		ProjectID: projectID,
		LineItems: []estimatedomain.LineItemInput{
			{
				Category:       estimatedomain.CategoryLaborInternal,
				LaborHours:     decimal.NewFromInt(100),
				BillingRate:    decimal.NewFromInt(50),
				ActualCostRate: decimal.NewFromInt(70),
			},
		},
	})
	require.NoError(t, err)
	_, err = env.estimate.UpdateStatus(context.Background(), est.ID, estimatedomain.EstimateStatusApproved)
	require.NoError(t, err)

	snap := env.snapshot(t, projectID)
	assertDecimal(t, "0", snap.TotalLaborCushion, "negative spread contributes nothing")
}

func TestRecompute_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.createProject(t, "P-1015")
	env.approvedEstimate(t, projectID)

	_, err := env.expense.Create(context.Background(), expensedomain.CreateExpenseRequest{
		ProjectID: projectID,
		Category:  estimatedomain.CategoryMaterials,
		Amount:    decimal.NewFromInt(12345),
	})
	require.NoError(t, err)

	first, err := env.finance.Recompute(context.Background(), projectID)
	require.NoError(t, err)
	second, err := env.finance.Recompute(context.Background(), projectID)
	require.NoError(t, err)

	assert.True(t, first.ContractedAmount.Equal(second.ContractedAmount))
	assert.True(t, first.CurrentMargin.Equal(second.CurrentMargin))
	assert.True(t, first.TotalExpenses.Equal(second.TotalExpenses))
	assert.True(t, first.AdjustedEstCosts.Equal(second.AdjustedEstCosts))
	assert.True(t, first.ProjectedMargin.Equal(second.ProjectedMargin))
}

func TestRecompute_NewEstimateVersionReplacesOld(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.createProject(t, "P-1016")
	env.approvedEstimate(t, projectID)

	// A new revision becomes current but starts as draft, so the project
	// drops back to the no-estimate state until it is approved.
	est2, err := env.estimate.Create(context.Background(), estimatedomain.CreateEstimateRequest{
		ProjectID: projectID,
		LineItems: []estimatedomain.LineItemInput{
			{
				Category:     estimatedomain.CategoryMaterials,
				Quantity:     decimal.NewFromInt(1),
				CostPerUnit:  decimal.NewFromInt(60000),
				PricePerUnit: decimal.NewFromInt(90000),
			},
		},
	})
	require.NoError(t, err)

	snap := env.snapshot(t, projectID)
	assert.False(t, snap.HasEstimate)

	_, err = env.estimate.UpdateStatus(context.Background(), est2.ID, estimatedomain.EstimateStatusApproved)
	require.NoError(t, err)

	snap = env.snapshot(t, projectID)
	assert.True(t, snap.HasEstimate)
	assertDecimal(t, "90000", snap.ContractedAmount, "new revision drives totals")
}

func TestRecompute_ProjectNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.finance.Recompute(context.Background(), env.node.Generate())
	assert.ErrorIs(t, err, financedomain.ErrProjectNotFound)
}

func TestGetSnapshot_ReturnsCachedState(t *testing.T) {
	env := newTestEnv(t)
	projectID := env.createProject(t, "P-1017")
	env.approvedEstimate(t, projectID)

	// Corrupt the cached column directly; GetSnapshot must serve it
	// as-is without recomputing.
	require.NoError(t, env.db.Model(&projectdomain.Project{}).
		Where("id = ?", projectID).
		Update("total_expenses", decimal.NewFromInt(999)).Error)

	snap := env.snapshot(t, projectID)
	assertDecimal(t, "999", snap.TotalExpenses, "cached value served")
}
