package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/lubeqc/internal/catalog"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
)

type Period string

const (
	PeriodMonth    Period = "month"
	PeriodYear     Period = "year"
	PeriodFiveYear Period = "fiveYear"
)

type GroupBy string

const (
	GroupTotal     GroupBy = "total"
	GroupLubricant GroupBy = "lubricantType"
	GroupAsset     GroupBy = "assetId"
)

const (
	TotalGroup   = "Total"
	UnknownGroup = "Unknown"
)

var (
	ErrInvalidPeriod  = errors.New("invalid_period")
	ErrInvalidGroupBy = errors.New("invalid_group_by")
)

// ParsePeriod accepts the canonical names plus the "5y" shorthand. Empty
// means month.
func ParsePeriod(raw string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "month", "monthly":
		return PeriodMonth, nil
	case "year", "annual", "yearly":
		return PeriodYear, nil
	case "fiveyear", "five_year", "5y":
		return PeriodFiveYear, nil
	default:
		return "", ErrInvalidPeriod
	}
}

// ParseGroupBy accepts the canonical names plus "type" and "asset". Empty
// means total.
func ParseGroupBy(raw string) (GroupBy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "total":
		return GroupTotal, nil
	case "lubricanttype", "type", "lubricant":
		return GroupLubricant, nil
	case "assetid", "asset":
		return GroupAsset, nil
	default:
		return "", ErrInvalidGroupBy
	}
}

// Series is one chart line: a group in one unit, aligned to the labels.
type Series struct {
	Name   string       `json:"name"`
	Group  string       `json:"group"`
	Unit   catalog.Unit `json:"unit"`
	Points []float64    `json:"points"`
}

type Aggregate struct {
	Labels []string `json:"labels"`
	Series []Series `json:"series"`
}

type Request struct {
	Family   catalog.Family
	Period   Period
	GroupBy  GroupBy
	Criteria consumptiondomain.Criteria
}

// Report is an aggregate for one family view with its optional target line.
type Report struct {
	Family  catalog.Family `json:"family"`
	Unit    catalog.Unit   `json:"unit"`
	Period  Period         `json:"period"`
	GroupBy GroupBy        `json:"groupBy"`
	Labels  []string       `json:"labels"`
	Series  []Series       `json:"series"`
	Target  *Target        `json:"target,omitempty"`
	Records int            `json:"records"`
}

type Target struct {
	LubricantType string    `json:"lubricantType"`
	Annual        float64   `json:"annual"`
	Points        []float64 `json:"points"`
}

type Service interface {
	Build(ctx context.Context, req Request) (Report, error)
	// Records returns the family-scoped, filtered records behind a report.
	Records(ctx context.Context, family catalog.Family, criteria consumptiondomain.Criteria) ([]consumptiondomain.Record, error)
}
