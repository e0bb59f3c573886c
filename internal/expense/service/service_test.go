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
	estimatedomain "github.com/smallbiznis/jobledger/internal/estimate/domain"
	"github.com/smallbiznis/jobledger/internal/expense/domain"
	financeservice "github.com/smallbiznis/jobledger/internal/finance/service"
	projectdomain "github.com/smallbiznis/jobledger/internal/project/domain"
	quotedomain "github.com/smallbiznis/jobledger/internal/quote/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
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
		&domain.Expense{},
		&domain.ExpenseSplit{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	fin := financeservice.NewService(financeservice.Params{DB: db, Log: log, GenID: node})
	svc := NewService(Params{DB: db, Log: log, GenID: node, Dispatcher: fin})
	return svc, db, node
}

func seedProject(t *testing.T, db *gorm.DB, node *snowflake.Node) snowflake.ID {
	t.Helper()
	proj := projectdomain.Project{
		ID:     node.Generate(),
		Number: "P-" + node.Generate().String(),
		Name:   "Test Project",
		Status: projectdomain.ProjectStatusEstimating,
	}
	require.NoError(t, db.Create(&proj).Error)
	return proj.ID
}

func pct(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestCreate_SimpleExpense(t *testing.T) {
	svc, db, node := setupService(t)
	projectID := seedProject(t, db, node)

	exp, err := svc.Create(context.Background(), domain.CreateExpenseRequest{
		ProjectID: projectID,
		Category:  estimatedomain.CategoryMaterials,
		Amount:    decimal.RequireFromString("1234.56"),
		Memo:      "lumber delivery",
	})
	require.NoError(t, err)

	assert.False(t, exp.IsSplit)
	assert.Equal(t, domain.ExpenseStatusPending, exp.Status)
	assert.True(t, exp.Amount.Equal(decimal.RequireFromString("1234.56")))
	assert.Empty(t, exp.Splits)
}

func TestCreate_RejectsNonPositiveAmount(t *testing.T) {
	svc, db, node := setupService(t)
	projectID := seedProject(t, db, node)

	_, err := svc.Create(context.Background(), domain.CreateExpenseRequest{
		ProjectID: projectID,
		Category:  estimatedomain.CategoryMaterials,
		Amount:    decimal.Zero,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestCreate_SplitAmountsMustSumToParent(t *testing.T) {
	svc, db, node := setupService(t)
	a := seedProject(t, db, node)
	b := seedProject(t, db, node)

	_, err := svc.Create(context.Background(), domain.CreateExpenseRequest{
		ProjectID: a,
		Category:  estimatedomain.CategoryEquipment,
		Amount:    decimal.NewFromInt(1000),
		Splits: []domain.SplitInput{
			{ProjectID: a, Amount: decimal.NewFromInt(600)},
			{ProjectID: b, Amount: decimal.NewFromInt(300)},
		},
	})
	assert.ErrorIs(t, err, domain.ErrSplitAmountMismatch)
}

func TestCreate_SplitPercentsMustSumToHundred(t *testing.T) {
	svc, db, node := setupService(t)
	a := seedProject(t, db, node)
	b := seedProject(t, db, node)

	_, err := svc.Create(context.Background(), domain.CreateExpenseRequest{
		ProjectID: a,
		Category:  estimatedomain.CategoryEquipment,
		Amount:    decimal.NewFromInt(1000),
		Splits: []domain.SplitInput{
			{ProjectID: a, Percent: pct("50")},
			{ProjectID: b, Percent: pct("40")},
		},
	})
	assert.ErrorIs(t, err, domain.ErrSplitPercentMismatch)
}

func TestCreate_SplitModeCannotMix(t *testing.T) {
	svc, db, node := setupService(t)
	a := seedProject(t, db, node)
	b := seedProject(t, db, node)

	_, err := svc.Create(context.Background(), domain.CreateExpenseRequest{
		ProjectID: a,
		Category:  estimatedomain.CategoryEquipment,
		Amount:    decimal.NewFromInt(1000),
		Splits: []domain.SplitInput{
			{ProjectID: a, Percent: pct("50")},
			{ProjectID: b, Amount: decimal.NewFromInt(500)},
		},
	})
	assert.ErrorIs(t, err, domain.ErrSplitPercentMismatch)
}

func TestCreate_PercentSplitsAbsorbRounding(t *testing.T) {
	svc, db, node := setupService(t)
	a := seedProject(t, db, node)
	b := seedProject(t, db, node)
	c := seedProject(t, db, node)

	exp, err := svc.Create(context.Background(), domain.CreateExpenseRequest{
		ProjectID: a,
		Category:  estimatedomain.CategoryPermits,
		Amount:    decimal.NewFromInt(100),
		Splits: []domain.SplitInput{
			{ProjectID: a, Percent: pct("33.33")},
			{ProjectID: b, Percent: pct("33.33")},
			{ProjectID: c, Percent: pct("33.34")},
		},
	})
	require.NoError(t, err)
	require.Len(t, exp.Splits, 3)

	total := decimal.Zero
	for _, split := range exp.Splits {
		total = total.Add(split.SplitAmount)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(100)), "splits sum to parent, got %s", total)
	assert.True(t, exp.IsSplit)
}

func TestCreate_SplitUnknownProject(t *testing.T) {
	svc, db, node := setupService(t)
	a := seedProject(t, db, node)

	_, err := svc.Create(context.Background(), domain.CreateExpenseRequest{
		ProjectID: a,
		Category:  estimatedomain.CategoryEquipment,
		Amount:    decimal.NewFromInt(1000),
		Splits: []domain.SplitInput{
			{ProjectID: a, Amount: decimal.NewFromInt(600)},
			{ProjectID: node.Generate(), Amount: decimal.NewFromInt(400)},
		},
	})
	assert.ErrorIs(t, err, projectdomain.ErrProjectNotFound)
}

func TestUpdateStatus_OnlyFromPending(t *testing.T) {
	svc, db, node := setupService(t)
	projectID := seedProject(t, db, node)

	exp, err := svc.Create(context.Background(), domain.CreateExpenseRequest{
		ProjectID: projectID,
		Category:  estimatedomain.CategoryMaterials,
		Amount:    decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	exp, err = svc.UpdateStatus(context.Background(), exp.ID, domain.ExpenseStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.ExpenseStatusApproved, exp.Status)

	_, err = svc.UpdateStatus(context.Background(), exp.ID, domain.ExpenseStatusRejected)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestDelete_RemovesSplits(t *testing.T) {
	svc, db, node := setupService(t)
	a := seedProject(t, db, node)
	b := seedProject(t, db, node)

	exp, err := svc.Create(context.Background(), domain.CreateExpenseRequest{
		ProjectID: a,
		Category:  estimatedomain.CategoryEquipment,
		Amount:    decimal.NewFromInt(1000),
		Splits: []domain.SplitInput{
			{ProjectID: a, Amount: decimal.NewFromInt(600)},
			{ProjectID: b, Amount: decimal.NewFromInt(400)},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), exp.ID))

	var splitCount int64
	require.NoError(t, db.Model(&domain.ExpenseSplit{}).
		Where("expense_id = ?", exp.ID).
		Count(&splitCount).Error)
	assert.Equal(t, int64(0), splitCount)

	_, err = svc.Get(context.Background(), exp.ID)
	assert.ErrorIs(t, err, domain.ErrExpenseNotFound)
}
