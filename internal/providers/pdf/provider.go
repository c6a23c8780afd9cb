package pdf

import (
	"context"

	"github.com/smallbiznis/lubeqc/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Provider renders the printable documents of the application.
type Provider interface {
	ConsumptionReport(ctx context.Context, data ReportData) ([]byte, error)
	InspectionChecklist(ctx context.Context, data ChecklistData) ([]byte, error)
}

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

type PDFProvider struct {
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(p Params) Provider {
	return &PDFProvider{
		log:     p.Log.Named("providers.pdf"),
		metrics: p.Metrics,
	}
}
