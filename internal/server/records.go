package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/lubeqc/internal/catalog"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
	"github.com/smallbiznis/lubeqc/internal/consumption/csvio"
	"github.com/smallbiznis/lubeqc/internal/providers/xlsx"
	reportdomain "github.com/smallbiznis/lubeqc/internal/report/domain"
)

const maxImportBytes = 10 << 20

type recordRequest struct {
	WorkOrder     string  `json:"wo" binding:"max=128"`
	AssetID       string  `json:"asset" binding:"max=256"`
	LubricantType string  `json:"lubricantType" binding:"max=128"`
	Amount        float64 `json:"amount"`
	Unit          string  `json:"unit" binding:"omitempty,max=8"`
	Date          string  `json:"date"`
}

func (r recordRequest) input() (consumptiondomain.RecordInput, error) {
	in := consumptiondomain.RecordInput{
		WorkOrder:     r.WorkOrder,
		AssetID:       r.AssetID,
		LubricantType: r.LubricantType,
		Amount:        r.Amount,
	}
	if strings.TrimSpace(r.Unit) != "" {
		in.Unit = catalog.ParseUnit(r.Unit)
	}
	if strings.TrimSpace(r.Date) != "" {
		ts, ok := consumptiondomain.ParseTimestamp(r.Date)
		if !ok {
			return consumptiondomain.RecordInput{}, consumptiondomain.ErrInvalidTimestamp
		}
		in.Timestamp = ts
	}
	return in, nil
}

func (s *Server) ListRecords(c *gin.Context) {
	query, criteria, err := bindRecordQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	records, err := s.queryRecords(c, query, criteria)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) CreateRecord(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	in, err := req.input()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	record, err := s.consumptionSvc.Add(c.Request.Context(), in)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": record})
}

func (s *Server) UpdateRecord(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	in, err := req.input()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	record, found, err := s.consumptionSvc.Update(c.Request.Context(), id, in)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !found {
		AbortWithError(c, consumptiondomain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) DeleteRecord(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.consumptionSvc.Remove(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) PrefillRecord(c *gin.Context) {
	draft, err := s.inspectionSvc.Prefill(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": draft})
}

// ImportRecords accepts a multipart "file" field or a raw CSV body.
func (s *Server) ImportRecords(c *gin.Context) {
	var body io.Reader
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			AbortWithError(c, newValidationError("file", "invalid_file", "file is required"))
			return
		}
		f, err := header.Open()
		if err != nil {
			AbortWithError(c, err)
			return
		}
		defer f.Close()
		body = f
	} else {
		body = c.Request.Body
	}

	result, err := s.consumptionSvc.Import(c.Request.Context(), io.LimitReader(body, maxImportBytes))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ExportRecordsCSV(c *gin.Context) {
	query, criteria, err := bindRecordQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	records, err := s.queryRecords(c, query, criteria)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := csvio.Encode(&buf, records); err != nil {
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordReport(c.Request.Context(), "csv", query.Family)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFilename(query.Family, "csv")))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) ExportRecordsXLSX(c *gin.Context) {
	query, criteria, err := bindRecordQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	records, err := s.queryRecords(c, query, criteria)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var report *reportdomain.Report
	if family, _ := parseOptionalFamily(query.Family); family != "" {
		req, err := buildReportRequest(family, query, criteria)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		built, err := s.reportSvc.Build(c.Request.Context(), req)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		report = &built
	}

	var buf bytes.Buffer
	if err := xlsx.WriteRecords(&buf, records, report); err != nil {
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordReport(c.Request.Context(), "xlsx", query.Family)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFilename(query.Family, "xlsx")))
	c.Data(http.StatusOK, xlsx.ContentType, buf.Bytes())
}

// queryRecords scopes to a family view when one is given.
func (s *Server) queryRecords(c *gin.Context, query recordQuery, criteria consumptiondomain.Criteria) ([]consumptiondomain.Record, error) {
	family, err := parseOptionalFamily(query.Family)
	if err != nil {
		return nil, err
	}
	if family != "" {
		return s.reportSvc.Records(c.Request.Context(), family, criteria)
	}
	return s.consumptionSvc.Query(c.Request.Context(), criteria)
}

func exportFilename(family, ext string) string {
	name := slug.Make(family)
	if name == "" {
		name = "all"
	}
	return name + "_consumption." + ext
}
