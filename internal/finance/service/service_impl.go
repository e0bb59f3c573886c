package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	financedomain "github.com/smallbiznis/jobledger/internal/finance/domain"
	"github.com/smallbiznis/jobledger/internal/observability/metrics"
	projectdomain "github.com/smallbiznis/jobledger/internal/project/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var forUpdate = clause.Locking{Strength: "UPDATE"}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	metrics *metrics.Metrics
}

func NewService(p Params) financedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("finance.service"),
		genID:   p.GenID,
		metrics: p.Metrics,
	}
}

// OnLedgerMutation recomputes every affected project inside the
// caller's transaction. A recompute failure fails the mutation itself;
// a snapshot is never allowed to drift from a committed ledger write.
func (s *Service) OnLedgerMutation(ctx context.Context, tx *gorm.DB, table string, projectIDs ...snowflake.ID) error {
	for _, projectID := range uniqueIDs(projectIDs) {
		start := time.Now()
		err := s.recomputeTx(ctx, tx, projectID)
		s.metrics.ObserveRecompute(table, time.Since(start), err)
		if err != nil {
			s.log.Error("snapshot recompute failed",
				zap.String("table", table),
				zap.String("project_id", projectID.String()),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}

// Recompute rebuilds one project's snapshot in its own transaction.
func (s *Service) Recompute(ctx context.Context, projectID snowflake.ID) (*projectdomain.FinancialSnapshot, error) {
	start := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.recomputeTx(ctx, tx, projectID)
	})
	s.metrics.ObserveRecompute("manual", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return s.GetSnapshot(ctx, projectID)
}

func (s *Service) GetSnapshot(ctx context.Context, projectID snowflake.ID) (*projectdomain.FinancialSnapshot, error) {
	var proj projectdomain.Project
	err := s.db.WithContext(ctx).First(&proj, "id = ?", projectID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, financedomain.ErrProjectNotFound
		}
		return nil, err
	}
	return &proj.FinancialSnapshot, nil
}

// recomputeTx re-derives the full snapshot from the ledger and writes
// it onto the project row. Total, not incremental: it never consults
// the previous snapshot, so replays and out-of-order triggers converge
// on the same values.
func (s *Service) recomputeTx(ctx context.Context, tx *gorm.DB, projectID snowflake.ID) error {
	var proj projectdomain.Project
	q := tx.WithContext(ctx).Select("id")
	if tx.Dialector.Name() == "postgres" {
		// Serializes concurrent recomputes of the same project. sqlite
		// has a single writer and rejects FOR UPDATE.
		q = q.Clauses(forUpdate)
	}
	if err := q.First(&proj, "id = ?", projectID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return financedomain.ErrProjectNotFound
		}
		return err
	}

	est, err := s.loadCurrentApprovedEstimate(ctx, tx, projectID)
	if err != nil {
		return err
	}

	approvedCOs, err := s.loadApprovedChangeOrders(ctx, tx, projectID)
	if err != nil {
		return err
	}

	totals, err := s.aggregate(ctx, tx, projectID, est, approvedCOs)
	if err != nil {
		return err
	}

	var resolved []financedomain.ResolvedLine
	if est != nil {
		quoted, err := s.loadQuotedCosts(ctx, tx, projectID)
		if err != nil {
			return err
		}
		resolved = resolveLines(est.LineItems, quoted)
	}

	snap := calculate(est, resolved, totals, approvedCOs, time.Now().UTC())

	return tx.WithContext(ctx).
		Model(&projectdomain.Project{}).
		Where("id = ?", projectID).
		Updates(snapshotColumns(snap)).Error
}

// snapshotColumns maps the snapshot onto explicit columns so zero
// values overwrite stale state; a struct update would skip them.
func snapshotColumns(snap projectdomain.FinancialSnapshot) map[string]any {
	return map[string]any{
		"contracted_amount":            snap.ContractedAmount,
		"current_margin":               snap.CurrentMargin,
		"margin_percentage":            snap.MarginPercentage,
		"projected_margin":             snap.ProjectedMargin,
		"original_margin":              snap.OriginalMargin,
		"original_est_costs":           snap.OriginalEstCosts,
		"adjusted_est_costs":           snap.AdjustedEstCosts,
		"total_expenses":               snap.TotalExpenses,
		"total_accepted_quotes":        snap.TotalAcceptedQuotes,
		"change_order_revenue":         snap.ChangeOrderRevenue,
		"change_order_cost":            snap.ChangeOrderCost,
		"contingency_amount":           snap.ContingencyAmount,
		"contingency_used":             snap.ContingencyUsed,
		"contingency_remaining":        snap.ContingencyRemaining,
		"total_labor_cushion":          snap.TotalLaborCushion,
		"max_gross_profit_potential":   snap.MaxGrossProfitPotential,
		"max_potential_margin_percent": snap.MaxPotentialMarginPercent,
		"has_estimate":                 snap.HasEstimate,
		"snapshot_computed_at":         snap.SnapshotComputedAt,
	}
}

func uniqueIDs(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
