package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/jobledger/internal/changeorder"
	"github.com/smallbiznis/jobledger/internal/config"
	"github.com/smallbiznis/jobledger/internal/estimate"
	"github.com/smallbiznis/jobledger/internal/expense"
	"github.com/smallbiznis/jobledger/internal/finance"
	"github.com/smallbiznis/jobledger/internal/logger"
	"github.com/smallbiznis/jobledger/internal/migration"
	"github.com/smallbiznis/jobledger/internal/observability"
	"github.com/smallbiznis/jobledger/internal/payee"
	"github.com/smallbiznis/jobledger/internal/project"
	"github.com/smallbiznis/jobledger/internal/quote"
	"github.com/smallbiznis/jobledger/internal/server"
	"github.com/smallbiznis/jobledger/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		// Functional domains
		finance.Module,
		project.Module,
		payee.Module,
		estimate.Module,
		quote.Module,
		changeorder.Module,
		expense.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
