package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/lubeqc/internal/clock"
	"github.com/smallbiznis/lubeqc/internal/config"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
	"github.com/smallbiznis/lubeqc/internal/inspection/domain"
	kvdomain "github.com/smallbiznis/lubeqc/internal/kv/domain"
	"github.com/smallbiznis/lubeqc/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg         config.Config
	Log         *zap.Logger
	Clock       clock.Clock
	Store       kvdomain.Store
	Consumption consumptiondomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	clock       clock.Clock
	store       kvdomain.Store
	consumption consumptiondomain.Service
	metrics     *metrics.Metrics
	recipient   string
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("inspection.service"),
		clock:       p.Clock,
		store:       p.Store,
		consumption: p.Consumption,
		metrics:     p.Metrics,
		recipient:   strings.TrimSpace(p.Cfg.ReportRecipient),
	}
}

func (s *Service) Evaluate(_ context.Context, sub domain.Submission) (domain.Outcome, error) {
	sub.Route = domain.ResolveRoute(sub.Route)
	if err := domain.Validate(sub); err != nil {
		return domain.Outcome{}, err
	}

	flags := domain.Flags(sub)
	status := domain.StatusOf(flags)
	subject := domain.Subject(sub, status)
	body := domain.Body(sub, flags)

	outcome := domain.Outcome{
		Status:    status,
		Subject:   subject,
		Body:      body,
		Flags:     flags,
		PDFName:   domain.PDFName(sub),
		RecordIDs: []string{},
	}
	if outcome.Flags == nil {
		outcome.Flags = []string{}
	}
	if s.recipient != "" {
		outcome.Mailto = domain.Mailto(s.recipient, subject, body)
	}
	return outcome, nil
}

// Submit validates the checklist, stores the consumption it reports and keeps
// the last stored entry for prefill.
func (s *Service) Submit(ctx context.Context, sub domain.Submission) (domain.Outcome, error) {
	outcome, err := s.Evaluate(ctx, sub)
	if err != nil {
		s.log.Info("inspection rejected", zap.Error(err), zap.String("wo", strings.TrimSpace(sub.WorkOrder)))
		return domain.Outcome{}, err
	}

	inputs := domain.RecordInputs(sub, domain.ExecutedAt(sub, s.clock.Now()))
	if len(inputs) > 0 {
		records, err := s.consumption.AddBatch(ctx, inputs)
		if err != nil {
			return domain.Outcome{}, err
		}
		for _, r := range records {
			outcome.RecordIDs = append(outcome.RecordIDs, r.ID)
		}
		outcome.Persisted = len(records)

		last := records[len(records)-1].Input()
		if err := kvdomain.SetJSON(ctx, s.store, kvdomain.KeyLastSubmission, last); err != nil {
			s.log.Warn("store last submission", zap.Error(err))
		}
	}

	s.metrics.RecordInspection(ctx, string(outcome.Status))
	s.log.Info("inspection submitted",
		zap.String("wo", strings.TrimSpace(sub.WorkOrder)),
		zap.String("status", string(outcome.Status)),
		zap.Int("flags", len(outcome.Flags)),
		zap.Int("persisted", outcome.Persisted),
	)
	return outcome, nil
}

// Prefill turns the last submission snapshot into a record draft.
func (s *Service) Prefill(ctx context.Context) (consumptiondomain.RecordInput, error) {
	var last consumptiondomain.RecordInput
	ok, err := kvdomain.GetJSON(ctx, s.store, kvdomain.KeyLastSubmission, &last)
	if err != nil {
		s.log.Warn("last submission unreadable", zap.Error(err))
		return consumptiondomain.RecordInput{}, domain.ErrNoRecentSubmission
	}
	if !ok || strings.TrimSpace(last.AssetID) == "" {
		return consumptiondomain.RecordInput{}, domain.ErrNoRecentSubmission
	}
	return last.Normalize(), nil
}

func (s *Service) Routes() []domain.Route {
	return domain.Routes()
}

func (s *Service) Draft(ctx context.Context) (domain.Draft, error) {
	draft := domain.Draft{}
	if _, err := kvdomain.GetJSON(ctx, s.store, kvdomain.KeyFormDraft, &draft); err != nil {
		s.log.Warn("form draft unreadable, discarding", zap.Error(err))
		return domain.Draft{}, nil
	}
	return draft, nil
}

func (s *Service) SaveDraft(ctx context.Context, draft domain.Draft) error {
	clean := make(domain.Draft, len(draft))
	for key, value := range draft {
		key = strings.TrimSpace(key)
		if key == "" {
			return domain.ErrInvalidDraft
		}
		clean[key] = value
	}
	return kvdomain.SetJSON(ctx, s.store, kvdomain.KeyFormDraft, clean)
}

func (s *Service) ClearDraft(ctx context.Context) error {
	return s.store.Delete(ctx, kvdomain.KeyFormDraft)
}
