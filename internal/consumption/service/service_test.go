package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/lubeqc/internal/catalog"
	"github.com/smallbiznis/lubeqc/internal/clock"
	"github.com/smallbiznis/lubeqc/internal/config"
	"github.com/smallbiznis/lubeqc/internal/consumption/domain"
	"github.com/smallbiznis/lubeqc/internal/consumption/liveevents"
	"github.com/smallbiznis/lubeqc/internal/consumption/repository"
	kvdomain "github.com/smallbiznis/lubeqc/internal/kv/domain"
	kvrepository "github.com/smallbiznis/lubeqc/internal/kv/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc   domain.Service
	store kvdomain.Store
	clock *clock.FakeClock
	hub   *liveevents.Hub
}

func newFixture(t *testing.T, cfg config.Config, notifier domain.Notifier) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&kvrepository.Entry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	store := kvrepository.NewGormStore(db)
	hub := liveevents.NewHub()

	repo := repository.Provide(repository.Params{Store: store, Clock: fc, GenID: node, Log: zap.NewNop()})
	svc := New(Params{
		Cfg:      cfg,
		Log:      zap.NewNop(),
		Clock:    fc,
		GenID:    node,
		Repo:     repo,
		Catalog:  catalog.Static(config.DefaultLubricantConfig()),
		Origin:   "test-origin",
		Hub:      hub,
		Notifier: notifier,
	})
	return fixture{svc: svc, store: store, clock: fc, hub: hub}
}

// peer builds a second service over the same store, as another process
// sharing the database would.
func peer(t *testing.T, f fixture, nodeID int64) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(nodeID)
	require.NoError(t, err)
	repo := repository.Provide(repository.Params{Store: f.store, Clock: f.clock, GenID: node, Log: zap.NewNop()})
	return New(Params{
		Cfg:     config.Config{},
		Log:     zap.NewNop(),
		Clock:   f.clock,
		GenID:   node,
		Repo:    repo,
		Catalog: catalog.Static(config.DefaultLubricantConfig()),
		Origin:  domain.Origin(fmt.Sprintf("peer-%d", nodeID)),
		Hub:     liveevents.NewHub(),
	})
}

func grease(asset string, amount float64, ts time.Time) domain.RecordInput {
	return domain.RecordInput{
		WorkOrder:     "TIN-1",
		AssetID:       asset,
		LubricantType: "MOBIL UNIREX EP2",
		Amount:        amount,
		Unit:          catalog.UnitGram,
		Timestamp:     ts,
	}
}

type notifierMock struct {
	mock.Mock
}

func (m *notifierMock) Publish(ctx context.Context, event domain.ChangeEvent) error {
	return m.Called(ctx, event).Error(0)
}

func TestAddPersistsAndNotifies(t *testing.T) {
	notifier := new(notifierMock)
	notifier.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.ChangeEvent) bool {
		return e.Type == domain.ChangeAdded && e.Origin == "test-origin" && e.Count == 1
	})).Return(nil).Once()

	f := newFixture(t, config.Config{}, notifier)
	ctx := context.Background()

	var seen []domain.ChangeEvent
	unsubscribe := f.svc.Subscribe(func(e domain.ChangeEvent) { seen = append(seen, e) })
	defer unsubscribe()

	rec, err := f.svc.Add(ctx, grease("BRU - 001", 500, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)

	var stored []domain.Record
	ok, err := kvdomain.GetJSON(ctx, f.store, kvdomain.KeyConsumption, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, stored, 1)
	assert.Equal(t, rec.ID, stored[0].ID)

	require.Len(t, seen, 1)
	assert.Equal(t, []string{rec.ID}, seen[0].RecordIDs)
	notifier.AssertExpectations(t)
}

func TestAddRejectsInvalidInputWithoutMutation(t *testing.T) {
	f := newFixture(t, config.Config{}, nil)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, grease("", 5, time.Time{}))
	assert.ErrorIs(t, err, domain.ErrInvalidAsset)

	_, err = f.svc.Add(ctx, grease("BRU - 001", 0, time.Time{}))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	records, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAddDefaultsTimestampToNow(t *testing.T) {
	f := newFixture(t, config.Config{}, nil)
	rec, err := f.svc.Add(context.Background(), grease("BRU - 001", 5, time.Time{}))
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), rec.Timestamp)
}

func TestStrictUnitPolicy(t *testing.T) {
	oil := domain.RecordInput{AssetID: "BRU - 001", LubricantType: "SHELL TELLUS S2 MX 32", Amount: 2, Unit: catalog.UnitGram}

	trusting := newFixture(t, config.Config{UnitPolicy: config.UnitPolicyTrust}, nil)
	_, err := trusting.svc.Add(context.Background(), oil)
	assert.NoError(t, err)

	strict := newFixture(t, config.Config{UnitPolicy: config.UnitPolicyStrict}, nil)
	_, err = strict.svc.Add(context.Background(), oil)
	assert.ErrorIs(t, err, domain.ErrUnitMismatch)
}

func TestUpdateUnknownIDIsNoop(t *testing.T) {
	f := newFixture(t, config.Config{}, nil)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, grease("BRU - 001", 5, time.Time{}))
	require.NoError(t, err)

	_, found, err := f.svc.Update(ctx, "does-not-exist", grease("BRU - 002", 9, time.Time{}))
	require.NoError(t, err)
	assert.False(t, found)

	records, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "BRU - 001", records[0].AssetID)
}

func TestUpdateReplacesFieldsKeepingID(t *testing.T) {
	f := newFixture(t, config.Config{}, nil)
	ctx := context.Background()
	rec, err := f.svc.Add(ctx, grease("BRU - 001", 5, time.Time{}))
	require.NoError(t, err)

	updated, found, err := f.svc.Update(ctx, rec.ID, grease("BRU - 002", 9, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec.ID, updated.ID)

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "BRU - 002", got.AssetID)
	assert.Equal(t, float64(9), got.Amount)
}

func TestRemoveUnknownIDLeavesCountUnchanged(t *testing.T) {
	f := newFixture(t, config.Config{}, nil)
	ctx := context.Background()
	rec, err := f.svc.Add(ctx, grease("BRU - 001", 5, time.Time{}))
	require.NoError(t, err)

	require.NoError(t, f.svc.Remove(ctx, "missing"))
	records, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.NoError(t, f.svc.Remove(ctx, rec.ID))
	records, err = f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = f.svc.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestImportZeroValidRowsLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t, config.Config{}, nil)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, grease("BRU - 001", 5, time.Time{}))
	require.NoError(t, err)

	csv := "date,wo,asset,lubricantType,amount,unit\n2024-01-01,a,BRU - 001,MOBIL UNIREX EP2,0,g\n"
	res, err := f.svc.Import(ctx, strings.NewReader(csv))
	assert.ErrorIs(t, err, domain.ErrNoValidRows)
	assert.Equal(t, 1, res.Dropped)

	records, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestImportAppendsValidRows(t *testing.T) {
	f := newFixture(t, config.Config{}, nil)
	ctx := context.Background()

	sub, _, err := f.hub.Subscribe(liveevents.TopicConsumption)
	require.NoError(t, err)
	defer sub.Close()

	csv := strings.Join([]string{
		"date,wo,asset,lubricantType,amount,unit",
		"2024-01-15,TIN-1,BRU - 001,MOBIL UNIREX EP2,500,g",
		"2024-02-10,TIN-2,BRU - 002,MOBIL UNIREX EP2,300,g",
		"2024-02-10,TIN-3,BRU - 002,MOBIL UNIREX EP2,-1,g",
	}, "\n")
	res, err := f.svc.Import(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, domain.ImportResult{Imported: 2, Dropped: 1}, res)

	select {
	case e := <-sub.Events():
		assert.Equal(t, domain.ChangeImported, e.Type)
		assert.Equal(t, 2, e.Count)
	case <-time.After(time.Second):
		t.Fatal("expected import event")
	}
}

func TestQueryFilters(t *testing.T) {
	f := newFixture(t, config.Config{}, nil)
	ctx := context.Background()
	_, err := f.svc.AddBatch(ctx, []domain.RecordInput{
		grease("BRU - 001", 5, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		grease("BRU - 002", 6, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	out, err := f.svc.Query(ctx, domain.Criteria{AssetEquals: "bru - 002"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, float64(6), out[0].Amount)
}

func TestAddBatchRejectsWholeBatch(t *testing.T) {
	f := newFixture(t, config.Config{}, nil)
	ctx := context.Background()
	_, err := f.svc.AddBatch(ctx, []domain.RecordInput{
		grease("BRU - 001", 5, time.Time{}),
		grease("BRU - 002", 0, time.Time{}),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	records, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestApplyExternalReloadsFromStorage(t *testing.T) {
	f := newFixture(t, config.Config{}, nil)
	ctx := context.Background()

	records, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, records)

	// another process writes directly to the shared store
	require.NoError(t, kvdomain.SetJSON(ctx, f.store, kvdomain.KeyConsumption, []domain.Record{{
		ID: "x", AssetID: "BRU - 001", LubricantType: "MOBIL UNIREX EP2", Amount: 3, Unit: catalog.UnitGram,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}}))

	var mu sync.Mutex
	var seen []domain.ChangeEvent
	f.svc.Subscribe(func(e domain.ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e)
	})

	event := domain.ChangeEvent{ID: "ev", Type: domain.ChangeAdded, Origin: "other"}
	require.NoError(t, f.svc.ApplyExternal(ctx, event))

	records, err = f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, "other", seen[0].Origin)
}

func TestUnsubscribeStopsCallbacks(t *testing.T) {
	f := newFixture(t, config.Config{}, nil)
	calls := 0
	unsubscribe := f.svc.Subscribe(func(domain.ChangeEvent) { calls++ })
	unsubscribe()
	unsubscribe()

	_, err := f.svc.Add(context.Background(), grease("BRU - 001", 1, time.Time{}))
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestReadsSeeWritesFromAnotherProcess(t *testing.T) {
	f := newFixture(t, config.Config{}, nil)
	cli := peer(t, f, 2)
	ctx := context.Background()

	before, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, before)

	added, err := cli.Add(ctx, grease("BRU - 009", 40, time.Time{}))
	require.NoError(t, err)

	after, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, added.ID, after[0].ID)

	matched, err := f.svc.Query(ctx, domain.Criteria{AssetEquals: "bru - 009"})
	require.NoError(t, err)
	assert.Len(t, matched, 1)

	got, err := f.svc.Get(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, got.Amount)

	require.NoError(t, cli.Remove(ctx, added.ID))
	after, err = f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestConcurrentExternalApplyKeepsLocalAdds(t *testing.T) {
	f := newFixture(t, config.Config{}, nil)
	ctx := context.Background()

	const adds = 20
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < adds; i++ {
			_, err := f.svc.Add(ctx, grease(fmt.Sprintf("BRU - %03d", i), 1, time.Time{}))
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < adds; i++ {
			assert.NoError(t, f.svc.ApplyExternal(ctx, domain.ChangeEvent{ID: fmt.Sprint(i), Type: domain.ChangeAdded, Origin: "other"}))
		}
	}()
	wg.Wait()

	records, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, adds)
}

func TestLegacyIDsArePersistedOnce(t *testing.T) {
	f := newFixture(t, config.Config{}, nil)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, kvdomain.KeyConsumption,
		`[{"wo":"TIN-5","asset":"BRU - 001","lubricantType":"MOBIL UNIREX EP2","amount":3,"unit":"g","date":"2024-01-02T00:00:00.000Z"}]`))

	first, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.NotEmpty(t, first[0].ID)

	second, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)

	got, err := f.svc.Get(ctx, first[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "TIN-5", got.WorkOrder)
}
