package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lubeqc/internal/catalog"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
)

type bucket struct {
	grams  decimal.Decimal
	liters decimal.Decimal
}

// PeriodKey buckets a record timestamp (UTC) into its period label.
func PeriodKey(r consumptiondomain.Record, period Period) string {
	t := r.Timestamp.UTC()
	switch period {
	case PeriodYear:
		return fmt.Sprintf("%04d", t.Year())
	case PeriodFiveYear:
		start := t.Year() - mod(t.Year(), 5)
		return fmt.Sprintf("%d–%d", start, start+4)
	default:
		return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
	}
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// GroupKey names the group a record belongs to.
func GroupKey(r consumptiondomain.Record, groupBy GroupBy) string {
	switch groupBy {
	case GroupLubricant:
		if name := strings.TrimSpace(r.LubricantType); name != "" {
			return name
		}
		return UnknownGroup
	case GroupAsset:
		if asset := strings.TrimSpace(r.AssetID); asset != "" {
			return asset
		}
		return UnknownGroup
	default:
		return TotalGroup
	}
}

// BuildAggregate sums amounts per period and group, keeping grams and liters
// apart. A group emits a unit series only when that unit has a non-zero value.
func BuildAggregate(records []consumptiondomain.Record, period Period, groupBy GroupBy) Aggregate {
	sums := make(map[string]map[string]*bucket)
	labelSet := make(map[string]struct{})
	groupSet := make(map[string]struct{})

	for _, r := range records {
		label := PeriodKey(r, period)
		group := GroupKey(r, groupBy)
		labelSet[label] = struct{}{}
		groupSet[group] = struct{}{}

		byLabel, ok := sums[group]
		if !ok {
			byLabel = make(map[string]*bucket)
			sums[group] = byLabel
		}
		b, ok := byLabel[label]
		if !ok {
			b = &bucket{}
			byLabel[label] = b
		}
		amount := decimal.NewFromFloat(r.Amount)
		if r.Unit == catalog.UnitLiter {
			b.liters = b.liters.Add(amount)
		} else {
			b.grams = b.grams.Add(amount)
		}
	}

	labels := sortedKeys(labelSet)
	groups := sortedKeys(groupSet)

	out := Aggregate{Labels: labels, Series: []Series{}}
	for _, group := range groups {
		grams := make([]float64, len(labels))
		liters := make([]float64, len(labels))
		var anyGrams, anyLiters bool
		for i, label := range labels {
			b, ok := sums[group][label]
			if !ok {
				continue
			}
			grams[i] = b.grams.InexactFloat64()
			liters[i] = b.liters.InexactFloat64()
			anyGrams = anyGrams || !b.grams.IsZero()
			anyLiters = anyLiters || !b.liters.IsZero()
		}
		if anyGrams {
			out.Series = append(out.Series, Series{Name: seriesName(group, catalog.UnitGram), Group: group, Unit: catalog.UnitGram, Points: grams})
		}
		if anyLiters {
			out.Series = append(out.Series, Series{Name: seriesName(group, catalog.UnitLiter), Group: group, Unit: catalog.UnitLiter, Points: liters})
		}
	}
	return out
}

func seriesName(group string, unit catalog.Unit) string {
	return fmt.Sprintf("%s (%s)", group, unit)
}

// FilterUnit keeps only the series measured in unit.
func FilterUnit(series []Series, unit catalog.Unit) []Series {
	out := make([]Series, 0, len(series))
	for _, s := range series {
		if s.Unit == unit {
			out = append(out, s)
		}
	}
	return out
}

// TargetSeries spreads an annual target flat across labelCount periods. It
// returns nil only when the lubricant has no target; with no labels the
// result is empty.
func TargetSeries(c *catalog.Catalog, lubricantType string, period Period, labelCount int) []float64 {
	if c == nil {
		return nil
	}
	if labelCount < 0 {
		labelCount = 0
	}
	annual, ok := c.AnnualTarget(lubricantType)
	if !ok {
		return nil
	}
	value := PeriodTarget(annual, period)
	points := make([]float64, labelCount)
	for i := range points {
		points[i] = value
	}
	return points
}

// PeriodTarget scales an annual target to one period.
func PeriodTarget(annual float64, period Period) float64 {
	a := decimal.NewFromFloat(annual)
	switch period {
	case PeriodYear:
		return a.InexactFloat64()
	case PeriodFiveYear:
		return a.Mul(decimal.NewFromInt(5)).InexactFloat64()
	default:
		return a.Div(decimal.NewFromInt(12)).InexactFloat64()
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
