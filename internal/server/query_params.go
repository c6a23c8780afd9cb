package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/lubeqc/internal/catalog"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
	reportdomain "github.com/smallbiznis/lubeqc/internal/report/domain"
)

type recordQuery struct {
	WorkOrder string `form:"wo" binding:"max=128"`
	Asset     string `form:"asset" binding:"max=256"`
	Type      string `form:"type" binding:"max=128"`
	From      string `form:"from"`
	To        string `form:"to"`
	Family    string `form:"family"`
	Period    string `form:"period"`
	GroupBy   string `form:"groupBy"`
}

func bindRecordQuery(c *gin.Context) (recordQuery, consumptiondomain.Criteria, error) {
	var query recordQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		return query, consumptiondomain.Criteria{}, bindError(err)
	}

	from, err := parseOptionalTime(query.From)
	if err != nil {
		return query, consumptiondomain.Criteria{}, newValidationError("from", "invalid_from", "invalid from")
	}
	to, err := parseOptionalTime(query.To)
	if err != nil {
		return query, consumptiondomain.Criteria{}, newValidationError("to", "invalid_to", "invalid to")
	}

	return query, consumptiondomain.Criteria{
		WorkOrderContains: strings.TrimSpace(query.WorkOrder),
		AssetEquals:       strings.TrimSpace(query.Asset),
		LubricantType:     strings.TrimSpace(query.Type),
		DateFrom:          from,
		DateTo:            to,
	}, nil
}

// parseOptionalFamily returns "" for an empty value.
func parseOptionalFamily(value string) (catalog.Family, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	return catalog.ParseFamily(value)
}

func buildReportRequest(family catalog.Family, query recordQuery, criteria consumptiondomain.Criteria) (reportdomain.Request, error) {
	period, err := reportdomain.ParsePeriod(query.Period)
	if err != nil {
		return reportdomain.Request{}, err
	}
	groupBy, err := reportdomain.ParseGroupBy(query.GroupBy)
	if err != nil {
		return reportdomain.Request{}, err
	}
	return reportdomain.Request{
		Family:   family,
		Period:   period,
		GroupBy:  groupBy,
		Criteria: criteria,
	}, nil
}

func parseOptionalTime(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, ok := consumptiondomain.ParseTimestamp(trimmed)
	if !ok {
		return nil, ErrInvalidRequest
	}
	return &parsed, nil
}
