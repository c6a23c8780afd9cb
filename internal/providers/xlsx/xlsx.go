package xlsx

import (
	"io"

	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
	reportdomain "github.com/smallbiznis/lubeqc/internal/report/domain"
	"github.com/xuri/excelize/v2"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	RecordsSheet   = "Records"
	AggregateSheet = "Aggregate"

	dateFormat = "yyyy-mm-dd hh:mm"
)

var recordHeader = []any{"date", "wo", "asset", "lubricantType", "amount", "unit"}

// WriteRecords writes the records sheet and, when report is set, an
// aggregate sheet with one column per series.
func WriteRecords(w io.Writer, records []consumptiondomain.Record, report *reportdomain.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RecordsSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(RecordsSheet, "A1", &recordHeader); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{CustomNumFmt: ptr(dateFormat)})
	if err != nil {
		return err
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{r.Timestamp.UTC(), r.WorkOrder, r.AssetID, r.LubricantType, r.Amount, string(r.Unit)}
		if err := f.SetSheetRow(RecordsSheet, cell, &row); err != nil {
			return err
		}
		if err := f.SetCellStyle(RecordsSheet, cell, cell, style); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(RecordsSheet, "A", "A", 18); err != nil {
		return err
	}
	if err := f.SetColWidth(RecordsSheet, "C", "D", 40); err != nil {
		return err
	}

	if report != nil {
		if err := writeAggregate(f, *report); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}

func writeAggregate(f *excelize.File, report reportdomain.Report) error {
	if _, err := f.NewSheet(AggregateSheet); err != nil {
		return err
	}
	header := []any{string(report.Period)}
	for _, s := range report.Series {
		header = append(header, s.Name)
	}
	if report.Target != nil {
		header = append(header, "Target ("+report.Target.LubricantType+")")
	}
	if err := f.SetSheetRow(AggregateSheet, "A1", &header); err != nil {
		return err
	}

	for i, label := range report.Labels {
		row := []any{label}
		for _, s := range report.Series {
			var v float64
			if i < len(s.Points) {
				v = s.Points[i]
			}
			row = append(row, v)
		}
		if report.Target != nil && i < len(report.Target.Points) {
			row = append(row, report.Target.Points[i])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(AggregateSheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
