package pdf

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
	reportdomain "github.com/smallbiznis/lubeqc/internal/report/domain"
	"go.uber.org/zap"
)

const timestampLayout = "2006-01-02 15:04"

// ReportData is a family report with the records behind it.
type ReportData struct {
	Report      reportdomain.Report
	Records     []consumptiondomain.Record
	GeneratedAt time.Time
}

var headerText = props.Text{Style: fontstyle.Bold, Size: 9}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func (p *PDFProvider) ConsumptionReport(ctx context.Context, data ReportData) ([]byte, error) {
	r := data.Report
	m := newDocument()

	m.AddRow(12,
		text.NewCol(12, fmt.Sprintf("%s Consumption Report", r.Family.Title()), props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(18,
		col.New(6).Add(
			text.New("Period: "+string(r.Period), props.Text{Size: 9}),
			text.New("Grouped by: "+string(r.GroupBy), props.Text{Size: 9, Top: 4}),
			text.New("Unit: "+string(r.Unit), props.Text{Size: 9, Top: 8}),
		),
		col.New(6).Add(
			text.New("Generated: "+data.GeneratedAt.UTC().Format(timestampLayout)+" UTC", props.Text{Size: 9, Align: align.Right}),
			text.New(fmt.Sprintf("Records: %d", r.Records), props.Text{Size: 9, Top: 4, Align: align.Right}),
		),
	)

	if len(r.Labels) == 0 {
		m.AddRow(10, text.NewCol(12, "No consumption recorded for the selected filters.", props.Text{Size: 10, Top: 2}))
	}
	for _, series := range r.Series {
		m.AddRow(10, text.NewCol(12, series.Name, props.Text{Size: 11, Style: fontstyle.Bold, Top: 3}))
		m.AddRow(7,
			text.NewCol(4, "Period", headerText),
			text.NewCol(4, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
			text.NewCol(4, "Target", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		)
		m.AddRow(1, line.NewCol(12))
		for i, label := range r.Labels {
			target := "—"
			if r.Target != nil && i < len(r.Target.Points) {
				target = formatAmount(r.Target.Points[i])
			}
			m.AddRow(6,
				text.NewCol(4, label, props.Text{Size: 9}),
				text.NewCol(4, formatAmount(point(series.Points, i)), props.Text{Size: 9, Align: align.Right}),
				text.NewCol(4, target, props.Text{Size: 9, Align: align.Right}),
			)
		}
	}

	if r.Target != nil {
		m.AddRow(10, text.NewCol(12,
			fmt.Sprintf("Annual target for %s: %s %s", r.Target.LubricantType, formatAmount(r.Target.Annual), r.Unit),
			props.Text{Size: 9, Top: 3, Style: fontstyle.Italic},
		))
	}

	if len(data.Records) > 0 {
		m.AddRow(12, text.NewCol(12, "Records", props.Text{Size: 12, Style: fontstyle.Bold, Top: 4}))
		m.AddRow(7,
			text.NewCol(3, "Date", headerText),
			text.NewCol(2, "WO#", headerText),
			text.NewCol(3, "Asset", headerText),
			text.NewCol(3, "Lubricant", headerText),
			text.NewCol(1, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		)
		m.AddRow(1, line.NewCol(12))
		for _, rec := range data.Records {
			m.AddRow(8,
				text.NewCol(3, rec.Timestamp.UTC().Format(timestampLayout), props.Text{Size: 8}),
				text.NewCol(2, rec.WorkOrder, props.Text{Size: 8}),
				text.NewCol(3, rec.AssetID, props.Text{Size: 8}),
				text.NewCol(3, rec.LubricantType, props.Text{Size: 8}),
				text.NewCol(1, formatAmount(rec.Amount)+" "+string(rec.Unit), props.Text{Size: 8, Align: align.Right}),
			)
		}
	}

	doc, err := m.Generate()
	if err != nil {
		p.log.Error("render consumption report", zap.Error(err), zap.String("family", string(r.Family)))
		return nil, err
	}
	p.metrics.RecordReport(ctx, "pdf", string(r.Family))
	return doc.GetBytes(), nil
}

func point(points []float64, i int) float64 {
	if i < 0 || i >= len(points) {
		return 0
	}
	return points[i]
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
