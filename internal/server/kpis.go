package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	kpidomain "github.com/stationops/pims/internal/kpi/domain"
	"github.com/stationops/pims/internal/opcontext"
)

// GetKPIs returns the day, month-to-date and fiscal-year-to-date indicator
// sets for a date.
func (s *Server) GetKPIs(c *gin.Context) {
	date, err := parseDate(c.Query("date"))
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "date must be YYYY-MM-DD"))
		return
	}

	report, err := s.kpiSvc.Report(c.Request.Context(), date)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// SubmitManualKPIs stores operator-entered indicator values for a date.
func (s *Server) SubmitManualKPIs(c *gin.Context) {
	var req struct {
		Date    string                  `json:"date"`
		Entries []kpidomain.ManualEntry `json:"entries"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "date must be YYYY-MM-DD"))
		return
	}
	if len(req.Entries) == 0 {
		AbortWithError(c, newValidationError("entries", "empty_entries", "at least one entry is required"))
		return
	}

	ctx := c.Request.Context()
	if err := s.kpiSvc.SubmitManual(ctx, kpidomain.SubmitManualRequest{
		Date:    date,
		Entries: req.Entries,
		Author:  opcontext.AuthorName(ctx),
	}); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": len(req.Entries)})
}
