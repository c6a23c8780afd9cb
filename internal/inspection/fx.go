package inspection

import (
	"github.com/smallbiznis/lubeqc/internal/inspection/service"
	"go.uber.org/fx"
)

var Module = fx.Module("inspection.service",
	fx.Provide(service.New),
)
