package repository

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lubeqc/internal/catalog"
	"github.com/smallbiznis/lubeqc/internal/clock"
	"github.com/smallbiznis/lubeqc/internal/consumption/domain"
	kvdomain "github.com/smallbiznis/lubeqc/internal/kv/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Store kvdomain.Store
	Clock clock.Clock
	GenID *snowflake.Node
	Log   *zap.Logger
}

type repository struct {
	store kvdomain.Store
	clock clock.Clock
	genID *snowflake.Node
	log   *zap.Logger
}

func Provide(p Params) domain.Repository {
	return &repository{
		store: p.Store,
		clock: p.Clock,
		genID: p.GenID,
		log:   p.Log.Named("consumption.repository"),
	}
}

// Load reads the persisted list. A value that is not a JSON array yields an
// empty list; elements that are not objects are skipped and individual fields
// are coerced. Generated ids are left to the caller to persist.
func (r *repository) Load(ctx context.Context) ([]domain.Record, bool, error) {
	raw, ok, err := r.store.Get(ctx, kvdomain.KeyConsumption)
	if err != nil {
		return nil, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []domain.Record{}, false, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		r.log.Warn("consumption list corrupt, starting empty", zap.Error(err))
		return []domain.Record{}, false, nil
	}

	now := r.clock.Now()
	records := make([]domain.Record, 0, len(elements))
	assigned, skipped := false, 0
	for _, element := range elements {
		var entry map[string]any
		if err := json.Unmarshal(element, &entry); err != nil || entry == nil {
			skipped++
			continue
		}
		if stringField(entry, "id") == "" {
			assigned = true
		}
		records = append(records, r.coerce(entry, now))
	}
	if skipped > 0 {
		r.log.Warn("skipped malformed stored records", zap.Int("count", skipped))
	}
	return records, assigned, nil
}

func (r *repository) Save(ctx context.Context, records []domain.Record) error {
	if records == nil {
		records = []domain.Record{}
	}
	return kvdomain.SetJSON(ctx, r.store, kvdomain.KeyConsumption, records)
}

func (r *repository) coerce(entry map[string]any, now time.Time) domain.Record {
	rec := domain.Record{
		ID:            stringField(entry, "id"),
		WorkOrder:     stringField(entry, "wo", "woNumber"),
		AssetID:       stringField(entry, "asset", "assetId"),
		LubricantType: stringField(entry, "lubricantType", "lubricatorType"),
		Amount:        amountField(entry["amount"]),
		Unit:          catalog.ParseUnit(stringField(entry, "unit")),
		Timestamp:     timeField(entry, now, "date", "timestamp"),
	}
	if rec.ID == "" {
		rec.ID = r.genID.Generate().String()
	}
	return rec
}

func stringField(entry map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := entry[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

func amountField(v any) float64 {
	switch value := v.(type) {
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
			return 0
		}
		return value
	case string:
		return domain.ParseAmount(value)
	default:
		return 0
	}
}

func timeField(entry map[string]any, now time.Time, keys ...string) time.Time {
	for _, key := range keys {
		switch v := entry[key].(type) {
		case string:
			if t, ok := domain.ParseTimestamp(v); ok {
				return t
			}
		case float64:
			if v > 0 && !math.IsInf(v, 0) {
				return time.UnixMilli(int64(v)).UTC()
			}
		}
	}
	return now
}
