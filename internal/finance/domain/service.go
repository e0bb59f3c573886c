package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	projectdomain "github.com/smallbiznis/jobledger/internal/project/domain"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound = errors.New("project_not_found")
)

// Dispatcher is the mutation hook ledger writers call inside their own
// transaction. The snapshot write commits or rolls back together with
// the triggering mutation.
type Dispatcher interface {
	OnLedgerMutation(ctx context.Context, tx *gorm.DB, table string, projectIDs ...snowflake.ID) error
}

// Service derives and serves the per-project financial snapshot. The
// snapshot is a pure materialized view: every recompute re-derives it in
// full from the ledger, never from the previous snapshot.
type Service interface {
	Dispatcher

	// Recompute rebuilds the snapshot for one project in its own
	// transaction. Exposed for manual backfill and migration.
	Recompute(ctx context.Context, projectID snowflake.ID) (*projectdomain.FinancialSnapshot, error)

	// GetSnapshot returns the cached snapshot without recomputing.
	GetSnapshot(ctx context.Context, projectID snowflake.ID) (*projectdomain.FinancialSnapshot, error)
}
