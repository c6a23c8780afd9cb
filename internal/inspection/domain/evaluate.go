package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/lubeqc/internal/catalog"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
)

// Validate applies the checklist rules in form order and returns the first
// failure. A Yes on question 1 makes the rest of an entry optional.
func Validate(sub Submission) error {
	if strings.TrimSpace(sub.WorkOrder) == "" {
		return ErrInvalidWorkOrder
	}
	if !RouteAllowed(sub.Route) {
		return ErrRouteLocked
	}
	if len(sub.Entries) == 0 {
		return ErrInvalidAsset
	}

	needsExecution := false
	for _, entry := range sub.Entries {
		if strings.TrimSpace(entry.AssetID) == "" {
			return ErrInvalidAsset
		}
		q1 := entry.Answer(1)
		if q1 == "" {
			return ErrInvalidQuestion1
		}
		if entry.Amount == nil {
			return ErrInvalidAmount
		}
		if q1 == AnswerYes {
			continue
		}
		for q := 2; q <= len(Questions); q++ {
			if entry.Answer(q) == "" {
				return QuestionError(q)
			}
		}
		if strings.TrimSpace(entry.Comments) == "" {
			return ErrInvalidComments
		}
		needsExecution = true
	}

	if needsExecution {
		if strings.TrimSpace(sub.Inspector) == "" {
			return ErrInvalidInspector
		}
		if strings.TrimSpace(sub.ExecDate) == "" {
			return ErrInvalidExecDate
		}
		if strings.TrimSpace(sub.ExecTime) == "" {
			return ErrInvalidExecTime
		}
	}
	return nil
}

// Flags lists the red-status findings. With several entries each finding is
// prefixed by its asset.
func Flags(sub Submission) []string {
	var flags []string
	multi := len(sub.Entries) > 1
	for _, entry := range sub.Entries {
		for i, q := range Questions {
			if entry.Answer(q.Number) != q.FlagOn {
				continue
			}
			followUp := strings.TrimSpace(entry.Responses[i].FollowUp)
			if followUp == "" {
				followUp = NoFollowUp
			}
			flag := fmt.Sprintf("%s\nComments: %s", q.Flag, followUp)
			if multi {
				flag = strings.TrimSpace(entry.AssetID) + ": " + flag
			}
			flags = append(flags, flag)
		}
	}
	return flags
}

func StatusOf(flags []string) Status {
	if len(flags) == 0 {
		return StatusGreen
	}
	return StatusRed
}

func Subject(sub Submission, status Status) string {
	wo := strings.TrimSpace(sub.WorkOrder)
	if wo == "" {
		wo = PlaceholderWO
	}
	label := "Green Status 🟢"
	if status == StatusRed {
		label = "Red Status 🔴"
	}
	return fmt.Sprintf("QA/QC Execution Report - WO# %s - %s", wo, label)
}

func orDash(value string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return "—"
}

// MetaLines are the header lines of the report body.
func MetaLines(sub Submission) []string {
	asset := ""
	if len(sub.Entries) > 0 {
		asset = sub.Entries[0].AssetID
	}
	return []string{
		"Business Unit: " + strings.TrimSpace(sub.BusinessUnit),
		"Department: " + strings.TrimSpace(sub.Department),
		"WO#: " + orDash(sub.WorkOrder),
		"Route: " + orDash(sub.Route),
		"Asset: " + orDash(asset),
		"Inspector: " + orDash(sub.Inspector),
		"Execution Date: " + orDash(sub.ExecDate),
		"Execution Time: " + orDash(sub.ExecTime),
	}
}

func Body(sub Submission, flags []string) string {
	var lines []string
	if StatusOf(flags) == StatusGreen {
		lines = append(lines, "QA/QC Performed - Green STATUS 🟢\n")
		lines = append(lines, MetaLines(sub)...)
		lines = append(lines, "\nNo issues found.")
	} else {
		lines = append(lines, "QA/QC Performed - RED STATUS 🔴\n", "Highlights available in the attached PDF.\n")
		lines = append(lines, MetaLines(sub)...)
		lines = append(lines, "\n# ------ # ------ # ------ # ------ # ------ #", strings.Join(flags, "\n\n"))
	}
	return strings.Join(lines, "\n")
}

// Mailto builds the mail link with every component percent-encoded.
func Mailto(recipient, subject, body string) string {
	return fmt.Sprintf("mailto:%s?subject=%s&body=%s",
		encodeComponent(recipient),
		encodeComponent(subject),
		encodeComponent(body),
	)
}

func encodeComponent(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

func PDFName(sub Submission) string {
	wo := strings.TrimSpace(sub.WorkOrder)
	if wo == "" {
		wo = PlaceholderWO
	}
	return fmt.Sprintf("QAQC_%s.pdf", wo)
}

// ExecutedAt combines the execution date and time; now when they do not parse.
func ExecutedAt(sub Submission, now time.Time) time.Time {
	raw := fmt.Sprintf("%sT%s:00", strings.TrimSpace(sub.ExecDate), strings.TrimSpace(sub.ExecTime))
	if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return t
	}
	return now
}

// RecordInputs turns every entry with an asset, a positive amount and a
// lubricant into a consumption record.
func RecordInputs(sub Submission, at time.Time) []consumptiondomain.RecordInput {
	var out []consumptiondomain.RecordInput
	for _, entry := range sub.Entries {
		asset := strings.TrimSpace(entry.AssetID)
		lubricant := strings.TrimSpace(entry.LubricantType)
		if asset == "" || lubricant == "" || entry.Amount == nil || *entry.Amount <= 0 {
			continue
		}
		unit := entry.Unit
		if strings.TrimSpace(string(unit)) == "" {
			unit = catalog.UnitGram
		} else {
			unit = catalog.ParseUnit(string(unit))
		}
		out = append(out, consumptiondomain.RecordInput{
			WorkOrder:     strings.TrimSpace(sub.WorkOrder),
			AssetID:       asset,
			LubricantType: lubricant,
			Amount:        *entry.Amount,
			Unit:          unit,
			Timestamp:     at,
		})
	}
	return out
}
