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
	"github.com/smallbiznis/jobledger/internal/estimate/domain"
	expensedomain "github.com/smallbiznis/jobledger/internal/expense/domain"
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
		&domain.Estimate{},
		&domain.EstimateLineItem{},
		&quotedomain.Quote{},
		&quotedomain.QuoteLineItem{},
		&changeorderdomain.ChangeOrder{},
		&expensedomain.Expense{},
		&expensedomain.ExpenseSplit{},
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

func simpleLines() []domain.LineItemInput {
	return []domain.LineItemInput{
		{
			Category:     domain.CategoryMaterials,
			Quantity:     decimal.NewFromInt(10),
			CostPerUnit:  decimal.NewFromInt(100),
			PricePerUnit: decimal.NewFromInt(150),
		},
	}
}

func TestCreate_DerivesTotalsAndVersion(t *testing.T) {
	svc, db, node := setupService(t)
	projectID := seedProject(t, db, node)

	est, err := svc.Create(context.Background(), domain.CreateEstimateRequest{
		ProjectID: projectID,
		LineItems: simpleLines(),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, est.Version)
	assert.True(t, est.IsCurrentVersion)
	assert.Equal(t, domain.EstimateStatusDraft, est.Status)
	assert.True(t, est.TotalAmount.Equal(decimal.NewFromInt(1500)))
	assert.True(t, est.TotalCost.Equal(decimal.NewFromInt(1000)))
	require.Len(t, est.LineItems, 1)
	assert.True(t, est.LineItems[0].TotalMarkup.Equal(decimal.NewFromInt(500)))
}

func TestCreate_RequiresLineItems(t *testing.T) {
	svc, db, node := setupService(t)
	projectID := seedProject(t, db, node)

	_, err := svc.Create(context.Background(), domain.CreateEstimateRequest{ProjectID: projectID})
	assert.ErrorIs(t, err, domain.ErrNoLineItems)
}

func TestCreate_ContingencyFromPercent(t *testing.T) {
	svc, db, node := setupService(t)
	projectID := seedProject(t, db, node)

	est, err := svc.Create(context.Background(), domain.CreateEstimateRequest{
		ProjectID:          projectID,
		ContingencyPercent: decimal.NewFromInt(10),
		LineItems:          simpleLines(),
	})
	require.NoError(t, err)
	assert.True(t, est.ContingencyAmount.Equal(decimal.NewFromInt(150)))
}

func TestCreate_NewRevisionDemotesPrevious(t *testing.T) {
	svc, db, node := setupService(t)
	projectID := seedProject(t, db, node)

	first, err := svc.Create(context.Background(), domain.CreateEstimateRequest{
		ProjectID: projectID,
		LineItems: simpleLines(),
	})
	require.NoError(t, err)

	second, err := svc.Create(context.Background(), domain.CreateEstimateRequest{
		ProjectID: projectID,
		LineItems: simpleLines(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
	assert.True(t, second.IsCurrentVersion)

	var reloaded domain.Estimate
	require.NoError(t, db.First(&reloaded, "id = ?", first.ID).Error)
	assert.False(t, reloaded.IsCurrentVersion)

	// Exactly one current revision per project, always.
	var currentCount int64
	require.NoError(t, db.Model(&domain.Estimate{}).
		Where("project_id = ? AND is_current_version = ?", projectID, true).
		Count(&currentCount).Error)
	assert.Equal(t, int64(1), currentCount)
}

func TestMarkCurrent_RejectsOlderRevision(t *testing.T) {
	svc, db, node := setupService(t)
	projectID := seedProject(t, db, node)

	first, err := svc.Create(context.Background(), domain.CreateEstimateRequest{
		ProjectID: projectID,
		LineItems: simpleLines(),
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), domain.CreateEstimateRequest{
		ProjectID: projectID,
		LineItems: simpleLines(),
	})
	require.NoError(t, err)

	_, err = svc.MarkCurrent(context.Background(), first.ID)
	assert.ErrorIs(t, err, domain.ErrNotLatestVersion)
}

func TestUpdateStatus_Transitions(t *testing.T) {
	svc, db, node := setupService(t)
	projectID := seedProject(t, db, node)

	est, err := svc.Create(context.Background(), domain.CreateEstimateRequest{
		ProjectID: projectID,
		LineItems: simpleLines(),
	})
	require.NoError(t, err)

	est, err = svc.UpdateStatus(context.Background(), est.ID, domain.EstimateStatusSent)
	require.NoError(t, err)
	assert.Equal(t, domain.EstimateStatusSent, est.Status)

	est, err = svc.UpdateStatus(context.Background(), est.ID, domain.EstimateStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.EstimateStatusApproved, est.Status)

	// Approved is terminal.
	_, err = svc.UpdateStatus(context.Background(), est.ID, domain.EstimateStatusRejected)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCurrentApproved_NilWhenNone(t *testing.T) {
	svc, db, node := setupService(t)
	projectID := seedProject(t, db, node)

	est, err := svc.CurrentApproved(context.Background(), projectID)
	require.NoError(t, err)
	assert.Nil(t, est)
}

func TestCreate_UnknownProject(t *testing.T) {
	svc, _, node := setupService(t)

	_, err := svc.Create(context.Background(), domain.CreateEstimateRequest{
		ProjectID: node.Generate(),
		LineItems: simpleLines(),
	})
	assert.ErrorIs(t, err, projectdomain.ErrProjectNotFound)
}

func TestNormalizeLine_LaborDefaults(t *testing.T) {
	line := normalizeLine(domain.LineItemInput{
		Category:       domain.CategoryLaborInternal,
		LaborHours:     decimal.NewFromInt(40),
		BillingRate:    decimal.NewFromInt(90),
		ActualCostRate: decimal.NewFromInt(60),
	})

	assert.True(t, line.Quantity.Equal(decimal.NewFromInt(40)))
	assert.True(t, line.CostPerUnit.Equal(decimal.NewFromInt(90)))
	assert.True(t, line.TotalCost.Equal(decimal.NewFromInt(3600)))
	assert.True(t, line.LaborCushion().Equal(decimal.NewFromInt(1200)))
}
