package quote

import (
	"github.com/smallbiznis/jobledger/internal/quote/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quote.service",
	fx.Provide(service.NewService),
)
