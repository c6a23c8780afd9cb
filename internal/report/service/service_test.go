package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/lubeqc/internal/catalog"
	"github.com/smallbiznis/lubeqc/internal/config"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
	"github.com/smallbiznis/lubeqc/internal/report/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// consumptionStub filters a fixed record list the way the store does.
type consumptionStub struct {
	mock.Mock
	consumptiondomain.Service
	records []consumptiondomain.Record
}

func (s *consumptionStub) Query(ctx context.Context, c consumptiondomain.Criteria) ([]consumptiondomain.Record, error) {
	s.Called(ctx, c)
	return consumptiondomain.Filter(s.records, c), nil
}

func fixture(records []consumptiondomain.Record) (*Service, *consumptionStub) {
	stub := &consumptionStub{records: records}
	stub.On("Query", mock.Anything, mock.Anything)
	svc := New(Params{
		Log:         zap.NewNop(),
		Consumption: stub,
		Catalog:     catalog.Static(config.DefaultLubricantConfig()),
	}).(*Service)
	return svc, stub
}

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sample() []consumptiondomain.Record {
	return []consumptiondomain.Record{
		{ID: "1", AssetID: "BRU - 001", LubricantType: "MOBIL UNIREX EP2", Amount: 500, Unit: catalog.UnitGram, Timestamp: at(2024, 1, 15)},
		{ID: "2", AssetID: "BRU - 002", LubricantType: "MOBIL UNIREX EP2", Amount: 300, Unit: catalog.UnitGram, Timestamp: at(2024, 2, 10)},
		{ID: "3", AssetID: "BRU - 001", LubricantType: "SHELL TELLUS S2 MX 32", Amount: 4, Unit: catalog.UnitLiter, Timestamp: at(2024, 3, 1)},
		{ID: "4", AssetID: "BRU - 001", LubricantType: "CUSTOM BLEND", Amount: 7, Unit: catalog.UnitGram, Timestamp: at(2024, 3, 1)},
	}
}

func TestBuildRestrictsToFamily(t *testing.T) {
	svc, stub := fixture(sample())

	report, err := svc.Build(context.Background(), domain.Request{Family: catalog.FamilyGrease})
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01", "2024-02"}, report.Labels)
	require.Len(t, report.Series, 1)
	assert.Equal(t, []float64{500, 300}, report.Series[0].Points)
	assert.Nil(t, report.Target)
	assert.Equal(t, 2, report.Records)

	criteria := stub.Calls[0].Arguments.Get(1).(consumptiondomain.Criteria)
	assert.ElementsMatch(t, []string{"MOBIL UNIREX EP2", "MOBIL MOBILITH SHC 460"}, criteria.LubricantIn)
}

func TestBuildAddsTargetForSelectedLubricant(t *testing.T) {
	svc, _ := fixture(sample())

	report, err := svc.Build(context.Background(), domain.Request{
		Family:   catalog.FamilyGrease,
		Period:   domain.PeriodMonth,
		Criteria: consumptiondomain.Criteria{LubricantType: "MOBIL UNIREX EP2"},
	})
	require.NoError(t, err)
	require.NotNil(t, report.Target)
	assert.Equal(t, float64(9000), report.Target.Annual)
	assert.Equal(t, []float64{750, 750}, report.Target.Points)
}

func TestBuildKeepsTargetWhenNoRecordsMatch(t *testing.T) {
	svc, _ := fixture(nil)

	report, err := svc.Build(context.Background(), domain.Request{
		Family:   catalog.FamilyGrease,
		Period:   domain.PeriodYear,
		Criteria: consumptiondomain.Criteria{LubricantType: "MOBIL UNIREX EP2"},
	})
	require.NoError(t, err)
	assert.Empty(t, report.Labels)
	require.NotNil(t, report.Target)
	assert.Equal(t, float64(9000), report.Target.Annual)
	assert.NotNil(t, report.Target.Points)
	assert.Empty(t, report.Target.Points)

	report, err = svc.Build(context.Background(), domain.Request{
		Family:   catalog.FamilyGrease,
		Criteria: consumptiondomain.Criteria{LubricantType: "CUSTOM BLEND"},
	})
	require.NoError(t, err)
	assert.Nil(t, report.Target)
}

func TestBuildOilKeepsLiters(t *testing.T) {
	svc, _ := fixture(sample())

	report, err := svc.Build(context.Background(), domain.Request{Family: catalog.FamilyOil, Period: domain.PeriodYear})
	require.NoError(t, err)
	assert.Equal(t, catalog.UnitLiter, report.Unit)
	require.Len(t, report.Series, 1)
	assert.Equal(t, "Total (L)", report.Series[0].Name)
	assert.Equal(t, []float64{4}, report.Series[0].Points)
}

func TestBuildRejectsUnknownFamily(t *testing.T) {
	svc, _ := fixture(sample())
	_, err := svc.Build(context.Background(), domain.Request{Family: "water"})
	assert.ErrorIs(t, err, catalog.ErrInvalidFamily)
}
