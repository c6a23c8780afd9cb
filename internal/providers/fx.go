package providers

import (
	"github.com/smallbiznis/lubeqc/internal/providers/email"
	"github.com/smallbiznis/lubeqc/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	pdf.Module,
	email.Module,
)
