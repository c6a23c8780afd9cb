package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	inspectiondomain "github.com/smallbiznis/lubeqc/internal/inspection/domain"
	"github.com/smallbiznis/lubeqc/internal/providers/email"
	"github.com/smallbiznis/lubeqc/internal/providers/pdf"
	"go.uber.org/zap"
)

func (s *Server) SubmitInspection(c *gin.Context) {
	var req inspectiondomain.Submission
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	outcome, err := s.inspectionSvc.Submit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": outcome})
}

// InspectionPDF renders the checklist without persisting anything.
func (s *Server) InspectionPDF(c *gin.Context) {
	outcome, doc, ok := s.renderChecklist(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, outcome.PDFName))
	c.Data(http.StatusOK, "application/pdf", doc)
}

// EmailInspection mails the rendered checklist to the report recipient.
func (s *Server) EmailInspection(c *gin.Context) {
	recipient := strings.TrimSpace(s.cfg.ReportRecipient)
	if s.email == nil || recipient == "" {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	outcome, doc, ok := s.renderChecklist(c)
	if !ok {
		return
	}

	err := s.email.Send(c.Request.Context(), email.Message{
		To:      []string{recipient},
		Subject: outcome.Subject,
		Body:    outcome.Body,
		Attachments: []email.Attachment{{
			Name:        outcome.PDFName,
			ContentType: "application/pdf",
			Data:        doc,
		}},
	})
	if errors.Is(err, email.ErrNotConfigured) {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	if err != nil {
		s.log.Warn("checklist mail failed", zap.String("recipient", recipient), zap.Error(err))
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"to": recipient, "subject": outcome.Subject, "status": outcome.Status}})
}

func (s *Server) renderChecklist(c *gin.Context) (inspectiondomain.Outcome, []byte, bool) {
	var req inspectiondomain.Submission
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return inspectiondomain.Outcome{}, nil, false
	}
	ctx := c.Request.Context()
	outcome, err := s.inspectionSvc.Evaluate(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return outcome, nil, false
	}
	req.Route = inspectiondomain.ResolveRoute(req.Route)

	doc, err := s.pdf.InspectionChecklist(ctx, pdf.ChecklistData{Submission: req, Outcome: outcome})
	if err != nil {
		AbortWithError(c, err)
		return outcome, nil, false
	}
	return outcome, doc, true
}

func (s *Server) GetDraft(c *gin.Context) {
	draft, err := s.inspectionSvc.Draft(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": draft})
}

func (s *Server) SaveDraft(c *gin.Context) {
	var draft inspectiondomain.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.inspectionSvc.SaveDraft(c.Request.Context(), draft); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ClearDraft(c *gin.Context) {
	if err := s.inspectionSvc.ClearDraft(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
