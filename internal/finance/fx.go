package finance

import (
	"github.com/smallbiznis/jobledger/internal/finance/domain"
	"github.com/smallbiznis/jobledger/internal/finance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("finance.service",
	fx.Provide(
		service.NewService,
		func(s domain.Service) domain.Dispatcher { return s },
	),
)
