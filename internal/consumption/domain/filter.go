package domain

import (
	"strings"
	"time"
)

// Criteria narrows a record list. Zero-valued fields match everything.
type Criteria struct {
	WorkOrderContains string
	AssetEquals       string
	LubricantType     string
	DateFrom          *time.Time
	DateTo            *time.Time

	// LubricantIn restricts records to a set of lubricant names (a family view).
	LubricantIn []string
}

func (c Criteria) IsZero() bool {
	return strings.TrimSpace(c.WorkOrderContains) == "" &&
		strings.TrimSpace(c.AssetEquals) == "" &&
		strings.TrimSpace(c.LubricantType) == "" &&
		c.DateFrom == nil && c.DateTo == nil && c.LubricantIn == nil
}

// Filter returns the records matching every criterion, in input order.
func Filter(records []Record, c Criteria) []Record {
	wo := strings.ToLower(strings.TrimSpace(c.WorkOrderContains))
	asset := strings.ToLower(strings.TrimSpace(c.AssetEquals))
	lubricant := strings.TrimSpace(c.LubricantType)

	var allowed map[string]struct{}
	if c.LubricantIn != nil {
		allowed = make(map[string]struct{}, len(c.LubricantIn))
		for _, name := range c.LubricantIn {
			allowed[name] = struct{}{}
		}
	}

	var toExclusive time.Time
	if c.DateTo != nil {
		toExclusive = nextDayStart(*c.DateTo)
	}

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if allowed != nil {
			if _, ok := allowed[r.LubricantType]; !ok {
				continue
			}
		}
		if wo != "" && !strings.Contains(strings.ToLower(r.WorkOrder), wo) {
			continue
		}
		if asset != "" && strings.ToLower(r.AssetID) != asset {
			continue
		}
		if lubricant != "" && r.LubricantType != lubricant {
			continue
		}
		if c.DateFrom != nil && r.Timestamp.Before(*c.DateFrom) {
			continue
		}
		if c.DateTo != nil && !r.Timestamp.Before(toExclusive) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func nextDayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
