package payee

import (
	"github.com/smallbiznis/jobledger/internal/payee/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payee.service",
	fx.Provide(service.NewService),
)
