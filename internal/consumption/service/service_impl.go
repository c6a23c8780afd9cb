package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/lubeqc/internal/catalog"
	"github.com/smallbiznis/lubeqc/internal/clock"
	"github.com/smallbiznis/lubeqc/internal/config"
	"github.com/smallbiznis/lubeqc/internal/consumption/csvio"
	"github.com/smallbiznis/lubeqc/internal/consumption/domain"
	"github.com/smallbiznis/lubeqc/internal/consumption/liveevents"
	kvdomain "github.com/smallbiznis/lubeqc/internal/kv/domain"
	"github.com/smallbiznis/lubeqc/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lockKey = "consumption"

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Repo     domain.Repository
	Catalog  catalog.Provider
	Origin   domain.Origin
	Hub      *liveevents.Hub
	Notifier domain.Notifier  `optional:"true"`
	Locker   kvdomain.Locker  `optional:"true"`
	Metrics  *metrics.Metrics `optional:"true"`
}

// Service owns the canonical record list. Storage is the source of truth:
// reads load it under the read lock, and every mutation reloads, applies the
// change and saves the full list under the write lock.
type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	repo     domain.Repository
	catalog  catalog.Provider
	origin   domain.Origin
	hub      *liveevents.Hub
	notifier domain.Notifier
	locker   kvdomain.Locker
	metrics  *metrics.Metrics
	strict   bool

	mu sync.RWMutex

	subMu  sync.Mutex
	subs   map[uint64]func(domain.ChangeEvent)
	nextID uint64
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("consumption.service"),
		clock:    p.Clock,
		genID:    p.GenID,
		repo:     p.Repo,
		catalog:  p.Catalog,
		origin:   p.Origin,
		hub:      p.Hub,
		notifier: p.Notifier,
		locker:   p.Locker,
		metrics:  p.Metrics,
		strict:   p.Cfg.StrictUnits(),
		subs:     make(map[uint64]func(domain.ChangeEvent)),
	}
}

func (s *Service) List(ctx context.Context) ([]domain.Record, error) {
	return s.snapshot(ctx)
}

func (s *Service) Query(ctx context.Context, criteria domain.Criteria) ([]domain.Record, error) {
	records, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Filter(records, criteria), nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Record{}, domain.ErrInvalidID
	}
	records, err := s.snapshot(ctx)
	if err != nil {
		return domain.Record{}, err
	}
	if idx := indexOf(records, id); idx >= 0 {
		return records[idx], nil
	}
	return domain.Record{}, domain.ErrNotFound
}

func (s *Service) Add(ctx context.Context, in domain.RecordInput) (domain.Record, error) {
	added, err := s.AddBatch(ctx, []domain.RecordInput{in})
	if err != nil {
		return domain.Record{}, err
	}
	return added[0], nil
}

// AddBatch validates every input before touching storage; one invalid input
// rejects the whole batch.
func (s *Service) AddBatch(ctx context.Context, inputs []domain.RecordInput) ([]domain.Record, error) {
	if len(inputs) == 0 {
		return nil, domain.ErrNoValidRows
	}
	created := make([]domain.Record, 0, len(inputs))
	for _, in := range inputs {
		record, err := s.build(ctx, in)
		if err != nil {
			return nil, err
		}
		created = append(created, record)
	}

	event, err := s.mutate(ctx, func(records []domain.Record) ([]domain.Record, *domain.ChangeEvent) {
		next := append(records, created...)
		return next, s.event(domain.ChangeAdded, ids(created))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordChange(ctx, string(domain.ChangeAdded), len(created))
	s.dispatch(ctx, event)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id string, in domain.RecordInput) (domain.Record, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Record{}, false, domain.ErrInvalidID
	}
	in = s.normalize(in)
	if err := s.check(ctx, in); err != nil {
		return domain.Record{}, false, err
	}
	updated, err := domain.NewRecord(id, in)
	if err != nil {
		return domain.Record{}, false, err
	}

	found := false
	event, err := s.mutate(ctx, func(records []domain.Record) ([]domain.Record, *domain.ChangeEvent) {
		idx := indexOf(records, id)
		if idx < 0 {
			return records, nil
		}
		found = true
		records[idx] = updated
		return records, s.event(domain.ChangeUpdated, []string{id})
	})
	if err != nil {
		return domain.Record{}, false, err
	}
	if !found {
		s.log.Debug("update ignored, record not found", zap.String("record_id", id))
		return domain.Record{}, false, nil
	}
	s.metrics.RecordChange(ctx, string(domain.ChangeUpdated), 1)
	s.dispatch(ctx, event)
	return updated, true, nil
}

func (s *Service) Remove(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ErrInvalidID
	}
	event, err := s.mutate(ctx, func(records []domain.Record) ([]domain.Record, *domain.ChangeEvent) {
		idx := indexOf(records, id)
		if idx < 0 {
			return records, nil
		}
		next := make([]domain.Record, 0, len(records)-1)
		next = append(next, records[:idx]...)
		next = append(next, records[idx+1:]...)
		return next, s.event(domain.ChangeRemoved, []string{id})
	})
	if err != nil {
		return err
	}
	if event != nil {
		s.metrics.RecordChange(ctx, string(domain.ChangeRemoved), 1)
		s.dispatch(ctx, event)
	}
	return nil
}

// Import appends every valid CSV row. With zero valid rows the store is left
// untouched and ErrNoValidRows is returned.
func (s *Service) Import(ctx context.Context, r io.Reader) (domain.ImportResult, error) {
	decoded, err := csvio.Decode(r, s.clock.Now())
	if err != nil {
		s.metrics.RecordReject(ctx, domain.ErrInvalidCSV.Error())
		return domain.ImportResult{}, err
	}

	dropped := decoded.Dropped
	created := make([]domain.Record, 0, len(decoded.Inputs))
	for _, in := range decoded.Inputs {
		record, err := s.build(ctx, in)
		if err != nil {
			dropped++
			continue
		}
		created = append(created, record)
	}
	s.metrics.RecordImportRows(ctx, len(created), dropped)
	if len(created) == 0 {
		s.log.Warn("import rejected, no valid rows", zap.Int("dropped", dropped))
		return domain.ImportResult{Dropped: dropped}, domain.ErrNoValidRows
	}

	event, err := s.mutate(ctx, func(records []domain.Record) ([]domain.Record, *domain.ChangeEvent) {
		return append(records, created...), s.event(domain.ChangeImported, ids(created))
	})
	if err != nil {
		return domain.ImportResult{}, err
	}
	s.metrics.RecordChange(ctx, string(domain.ChangeImported), len(created))
	s.dispatch(ctx, event)

	s.log.Info("records imported", zap.Int("imported", len(created)), zap.Int("dropped", dropped))
	return domain.ImportResult{Imported: len(created), Dropped: dropped}, nil
}

func (s *Service) Reload(ctx context.Context) error {
	if _, err := s.snapshot(ctx); err != nil {
		return err
	}
	event := s.event(domain.ChangeReloaded, nil)
	s.publishLocal(*event)
	return nil
}

func (s *Service) ApplyExternal(ctx context.Context, event domain.ChangeEvent) error {
	if _, err := s.snapshot(ctx); err != nil {
		return err
	}
	s.log.Debug("applied external change",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("origin", event.Origin),
	)
	s.publishLocal(event)
	return nil
}

func (s *Service) Subscribe(fn func(domain.ChangeEvent)) func() {
	if fn == nil {
		return func() {}
	}
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// snapshot reads the current list from storage so writes made by other
// processes sharing the store are always visible. Ids generated for legacy
// entries are persisted through mutate.
func (s *Service) snapshot(ctx context.Context) ([]domain.Record, error) {
	s.mu.RLock()
	records, assigned, err := s.repo.Load(ctx)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if !assigned {
		return records, nil
	}

	var persisted []domain.Record
	_, err = s.mutate(ctx, func(current []domain.Record) ([]domain.Record, *domain.ChangeEvent) {
		persisted = current
		return current, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("assigned ids to stored records")
	return persisted, nil
}

// mutate runs fn against the freshly loaded list. A nil event means fn made no
// change; the list is then saved only to persist newly assigned ids.
func (s *Service) mutate(ctx context.Context, fn func([]domain.Record) ([]domain.Record, *domain.ChangeEvent)) (*domain.ChangeEvent, error) {
	if s.locker != nil {
		token, err := s.locker.Acquire(ctx, lockKey)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
				s.log.Warn("release store lock", zap.Error(err))
			}
		}()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, assigned, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	next, event := fn(current)
	if event == nil {
		if !assigned {
			return nil, nil
		}
		next = current
	}
	if err := s.repo.Save(ctx, next); err != nil {
		change := "assign_ids"
		if event != nil {
			change = string(event.Type)
		}
		s.log.Error("save records", zap.Error(err), zap.String("change", change))
		return nil, err
	}
	return event, nil
}

func (s *Service) build(ctx context.Context, in domain.RecordInput) (domain.Record, error) {
	in = s.normalize(in)
	if err := s.check(ctx, in); err != nil {
		return domain.Record{}, err
	}
	return domain.NewRecord(s.genID.Generate().String(), in)
}

func (s *Service) normalize(in domain.RecordInput) domain.RecordInput {
	in = in.Normalize()
	if in.Timestamp.IsZero() {
		in.Timestamp = s.clock.Now()
	}
	return in
}

func (s *Service) check(ctx context.Context, in domain.RecordInput) error {
	err := in.Validate()
	if err == nil && s.strict {
		err = domain.CheckUnitFamily(s.catalog.Current(), in)
	}
	if err != nil {
		s.metrics.RecordReject(ctx, reason(err))
	}
	return err
}

func (s *Service) event(kind domain.ChangeType, recordIDs []string) *domain.ChangeEvent {
	return &domain.ChangeEvent{
		ID:         ulid.Make().String(),
		Type:       kind,
		RecordIDs:  recordIDs,
		Count:      len(recordIDs),
		Origin:     string(s.origin),
		OccurredAt: s.clock.Now(),
	}
}

// dispatch notifies local views and, through the notifier, other processes.
func (s *Service) dispatch(ctx context.Context, event *domain.ChangeEvent) {
	if event == nil {
		return
	}
	s.publishLocal(*event)
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, *event); err != nil {
		s.log.Warn("publish change event", zap.Error(err), zap.String("event_id", event.ID))
	}
}

func (s *Service) publishLocal(event domain.ChangeEvent) {
	s.hub.Publish(liveevents.TopicConsumption, event)

	s.subMu.Lock()
	callbacks := make([]func(domain.ChangeEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		callbacks = append(callbacks, fn)
	}
	s.subMu.Unlock()

	for _, fn := range callbacks {
		fn(event)
	}
}

func indexOf(records []domain.Record, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

func ids(records []domain.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func reason(err error) string {
	for _, known := range []error{
		domain.ErrInvalidWorkOrder,
		domain.ErrInvalidAsset,
		domain.ErrInvalidLubricantType,
		domain.ErrInvalidAmount,
		domain.ErrInvalidUnit,
		domain.ErrInvalidTimestamp,
		domain.ErrUnitMismatch,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "other"
}
