package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/lubeqc/internal/catalog"
	"github.com/smallbiznis/lubeqc/internal/providers/pdf"
)

func (s *Server) GetReport(c *gin.Context) {
	family, err := catalog.ParseFamily(c.Param("family"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	query, criteria, err := bindRecordQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req, err := buildReportRequest(family, query, criteria)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.reportSvc.Build(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) GetReportPDF(c *gin.Context) {
	family, err := catalog.ParseFamily(c.Param("family"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	query, criteria, err := bindRecordQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req, err := buildReportRequest(family, query, criteria)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	report, err := s.reportSvc.Build(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	records, err := s.reportSvc.Records(ctx, family, criteria)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.pdf.ConsumptionReport(ctx, pdf.ReportData{
		Report:      report,
		Records:     records,
		GeneratedAt: s.clock.Now(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	filename := slug.Make(string(family)) + "_consumption.pdf"
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", doc)
}

type lubricantFamilyView struct {
	Family  catalog.Family     `json:"family"`
	Unit    catalog.Unit       `json:"unit"`
	Names   []string           `json:"names"`
	Targets map[string]float64 `json:"targets"`
}

func (s *Server) ListLubricants(c *gin.Context) {
	current := s.catalog.Current()
	targets := current.Targets()

	families := []catalog.Family{catalog.FamilyGrease, catalog.FamilyOil}
	out := make([]lubricantFamilyView, 0, len(families))
	for _, family := range families {
		names := current.Names(family)
		view := lubricantFamilyView{
			Family:  family,
			Unit:    family.Unit(),
			Names:   names,
			Targets: make(map[string]float64, len(names)),
		}
		for _, name := range names {
			view.Targets[name] = targets[name]
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}
