package migration

import (
	changeorderdomain "github.com/smallbiznis/jobledger/internal/changeorder/domain"
	estimatedomain "github.com/smallbiznis/jobledger/internal/estimate/domain"
	expensedomain "github.com/smallbiznis/jobledger/internal/expense/domain"
	payeedomain "github.com/smallbiznis/jobledger/internal/payee/domain"
	projectdomain "github.com/smallbiznis/jobledger/internal/project/domain"
	quotedomain "github.com/smallbiznis/jobledger/internal/quote/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		// Versioned SQL migrations are postgres-only; sqlite (local and
		// test runs) derives the schema from the models.
		if conn.Dialector.Name() != "postgres" {
			return conn.AutoMigrate(
				&projectdomain.Project{},
				&payeedomain.Payee{},
				&estimatedomain.Estimate{},
				&estimatedomain.EstimateLineItem{},
				&quotedomain.Quote{},
				&quotedomain.QuoteLineItem{},
				&changeorderdomain.ChangeOrder{},
				&changeorderdomain.ChangeOrderLineItem{},
				&expensedomain.Expense{},
				&expensedomain.ExpenseSplit{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
