package project

import (
	"github.com/smallbiznis/jobledger/internal/project/service"
	"go.uber.org/fx"
)

var Module = fx.Module("project.service",
	fx.Provide(service.NewService),
)
