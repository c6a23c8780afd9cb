package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/lubeqc/internal/catalog"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
	"github.com/smallbiznis/lubeqc/internal/observability/metrics"
	"github.com/smallbiznis/lubeqc/internal/report/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Consumption consumptiondomain.Service
	Catalog     catalog.Provider
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	consumption consumptiondomain.Service
	catalog     catalog.Provider
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("report.service"),
		consumption: p.Consumption,
		catalog:     p.Catalog,
		metrics:     p.Metrics,
	}
}

// Records narrows the store to the family's lubricants first, then applies
// the user criteria.
func (s *Service) Records(ctx context.Context, family catalog.Family, criteria consumptiondomain.Criteria) ([]consumptiondomain.Record, error) {
	if _, err := catalog.ParseFamily(string(family)); err != nil {
		return nil, err
	}
	criteria.LubricantIn = s.catalog.Current().Names(family)
	return s.consumption.Query(ctx, criteria)
}

func (s *Service) Build(ctx context.Context, req domain.Request) (domain.Report, error) {
	if req.Period == "" {
		req.Period = domain.PeriodMonth
	}
	if req.GroupBy == "" {
		req.GroupBy = domain.GroupTotal
	}

	records, err := s.Records(ctx, req.Family, req.Criteria)
	if err != nil {
		return domain.Report{}, err
	}

	agg := domain.BuildAggregate(records, req.Period, req.GroupBy)
	report := domain.Report{
		Family:  req.Family,
		Unit:    req.Family.Unit(),
		Period:  req.Period,
		GroupBy: req.GroupBy,
		Labels:  agg.Labels,
		Series:  domain.FilterUnit(agg.Series, req.Family.Unit()),
		Records: len(records),
	}

	if lubricant := strings.TrimSpace(req.Criteria.LubricantType); lubricant != "" {
		cat := s.catalog.Current()
		if points := domain.TargetSeries(cat, lubricant, req.Period, len(agg.Labels)); points != nil {
			annual, _ := cat.AnnualTarget(lubricant)
			report.Target = &domain.Target{
				LubricantType: lubricant,
				Annual:        annual,
				Points:        points,
			}
		}
	}

	s.metrics.RecordReport(ctx, "json", string(req.Family))
	s.log.Debug("report built",
		zap.String("family", string(req.Family)),
		zap.String("period", string(req.Period)),
		zap.String("group_by", string(req.GroupBy)),
		zap.Int("records", len(records)),
		zap.Int("labels", len(report.Labels)),
	)
	return report, nil
}
