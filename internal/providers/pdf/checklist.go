package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	inspectiondomain "github.com/smallbiznis/lubeqc/internal/inspection/domain"
	"go.uber.org/zap"
)

// ChecklistData is an evaluated submission ready for printing.
type ChecklistData struct {
	Submission inspectiondomain.Submission
	Outcome    inspectiondomain.Outcome
}

var (
	green = &props.Color{Red: 22, Green: 128, Blue: 61}
	red   = &props.Color{Red: 185, Green: 28, Blue: 28}
)

func (p *PDFProvider) InspectionChecklist(ctx context.Context, data ChecklistData) ([]byte, error) {
	sub := data.Submission
	outcome := data.Outcome
	m := newDocument()

	m.AddRow(12, text.NewCol(12, "QA/QC Lubrication Checklist", props.Text{Size: 18, Style: fontstyle.Bold}))

	statusColor, statusLabel := green, "GREEN STATUS"
	if outcome.Status == inspectiondomain.StatusRed {
		statusColor, statusLabel = red, "RED STATUS"
	}
	m.AddRow(9, text.NewCol(12, statusLabel, props.Text{Size: 12, Style: fontstyle.Bold, Color: statusColor}))

	meta := inspectiondomain.MetaLines(sub)
	left, right := col.New(6), col.New(6)
	for i, lineText := range meta {
		half := len(meta) / 2
		if i < half {
			left.Add(text.New(lineText, props.Text{Size: 9, Top: float64(i) * 4}))
		} else {
			right.Add(text.New(lineText, props.Text{Size: 9, Top: float64(i-half) * 4}))
		}
	}
	m.AddRow(float64(len(meta)/2+1)*4+2, left, right)
	m.AddRow(1, line.NewCol(12))

	for n, entry := range sub.Entries {
		m.AddRow(10, text.NewCol(12, fmt.Sprintf("Asset %d: %s", n+1, orDash(entry.AssetID)), props.Text{Size: 11, Style: fontstyle.Bold, Top: 3}))

		for i, q := range inspectiondomain.Questions {
			answer := string(entry.Answer(q.Number))
			m.AddRow(10,
				text.NewCol(9, fmt.Sprintf("%d — %s", q.Number, q.Text), props.Text{Size: 8}),
				text.NewCol(3, orDash(answer), answerProps(entry.Answer(q.Number) == q.FlagOn)),
			)
			if q.Number == 1 {
				m.AddRow(6,
					text.NewCol(9, inspectiondomain.AmountQuestion, props.Text{Size: 8}),
					text.NewCol(3, amountText(entry), props.Text{Size: 8}),
				)
			}
			if followUp := strings.TrimSpace(entry.Responses[i].FollowUp); followUp != "" {
				m.AddRow(6, text.NewCol(12, "Follow-up: "+followUp, props.Text{Size: 8, Left: 4, Style: fontstyle.Italic}))
			}
		}
		m.AddRow(rowsFor(entry.Comments, 110)*5+2,
			text.NewCol(12, inspectiondomain.CommentsQuestion+": "+orDash(entry.Comments), props.Text{Size: 8, Top: 1}),
		)
	}

	if len(outcome.Flags) > 0 {
		m.AddRow(1, line.NewCol(12))
		m.AddRow(10, text.NewCol(12, "Highlights", props.Text{Size: 12, Style: fontstyle.Bold, Top: 3, Color: red}))
		for _, flag := range outcome.Flags {
			m.AddRow(rowsFor(flag, 110)*5+2, text.NewCol(12, strings.ReplaceAll(flag, "\n", " | "), props.Text{Size: 8, Top: 1}))
		}
	} else {
		m.AddRow(10, text.NewCol(12, "No issues found.", props.Text{Size: 10, Top: 3, Color: green}))
	}

	doc, err := m.Generate()
	if err != nil {
		p.log.Error("render inspection checklist", zap.Error(err), zap.String("wo", sub.WorkOrder))
		return nil, err
	}
	p.metrics.RecordReport(ctx, "pdf", "inspection")
	return doc.GetBytes(), nil
}

func answerProps(flagged bool) props.Text {
	ps := props.Text{Size: 8, Style: fontstyle.Bold}
	if flagged {
		ps.Color = red
	}
	return ps
}

func amountText(entry inspectiondomain.Entry) string {
	if entry.Amount == nil {
		return "—"
	}
	unit := string(entry.Unit)
	if unit == "" {
		unit = "g"
	}
	return fmt.Sprintf("%s %s %s", formatAmount(*entry.Amount), unit, strings.TrimSpace(entry.LubricantType))
}

func orDash(value string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return "—"
}

// rowsFor estimates wrapped line count for width characters per line.
func rowsFor(value string, width int) float64 {
	rows := 0
	for _, part := range strings.Split(value, "\n") {
		rows += len([]rune(part))/width + 1
	}
	return float64(rows)
}
