package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/lubeqc/internal/catalog"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
	inspectiondomain "github.com/smallbiznis/lubeqc/internal/inspection/domain"
	reportdomain "github.com/smallbiznis/lubeqc/internal/report/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConsumptionReport(t *testing.T) {
	p := New(Params{Log: zap.NewNop()})
	at := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	doc, err := p.ConsumptionReport(context.Background(), ReportData{
		Report: reportdomain.Report{
			Family:  catalog.FamilyGrease,
			Unit:    catalog.UnitGram,
			Period:  reportdomain.PeriodMonth,
			GroupBy: reportdomain.GroupTotal,
			Labels:  []string{"2024-01"},
			Series:  []reportdomain.Series{{Name: "Total (g)", Group: "Total", Unit: catalog.UnitGram, Points: []float64{500}}},
			Target:  &reportdomain.Target{LubricantType: "MOBIL UNIREX EP2", Annual: 9000, Points: []float64{750}},
			Records: 1,
		},
		Records: []consumptiondomain.Record{{
			ID: "1", WorkOrder: "TIN-1", AssetID: "BRU - 001", LubricantType: "MOBIL UNIREX EP2",
			Amount: 500, Unit: catalog.UnitGram, Timestamp: at,
		}},
		GeneratedAt: at,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}

func TestConsumptionReportEmpty(t *testing.T) {
	p := New(Params{Log: zap.NewNop()})
	doc, err := p.ConsumptionReport(context.Background(), ReportData{
		Report: reportdomain.Report{Family: catalog.FamilyOil, Unit: catalog.UnitLiter, Labels: []string{}, Series: []reportdomain.Series{}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}

func TestInspectionChecklist(t *testing.T) {
	p := New(Params{Log: zap.NewNop()})
	amount := 120.0
	entry := inspectiondomain.Entry{AssetID: "BRU - 001", Amount: &amount, LubricantType: "MOBIL UNIREX EP2", Comments: "ok"}
	entry.Responses[0] = inspectiondomain.Response{Answer: inspectiondomain.AnswerNo, FollowUp: "nipple blocked"}
	sub := inspectiondomain.Submission{WorkOrder: "TIN-9", Route: "W3ELL0037", Entries: []inspectiondomain.Entry{entry}}
	flags := inspectiondomain.Flags(sub)

	doc, err := p.InspectionChecklist(context.Background(), ChecklistData{
		Submission: sub,
		Outcome:    inspectiondomain.Outcome{Status: inspectiondomain.StatusOf(flags), Flags: flags},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}

func TestRowsFor(t *testing.T) {
	assert.Equal(t, float64(1), rowsFor("short", 110))
	assert.Equal(t, float64(3), rowsFor("a\nb\nc", 110))
}
