package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stationops/pims/internal/opcontext"
	"github.com/stationops/pims/internal/plant"
	totalizerdomain "github.com/stationops/pims/internal/totalizer/domain"
)

const dateLayout = "2006-01-02"

type submitReadingsRequest struct {
	Date     string                         `json:"date"`
	Scope    string                         `json:"scope"`
	Readings []totalizerdomain.ReadingInput `json:"readings"`
}

// SubmitReadings accepts one day's readings for a scope, recomputes the
// affected KPIs and reports what moved.
func (s *Server) SubmitReadings(c *gin.Context) {
	var req submitReadingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "date must be YYYY-MM-DD"))
		return
	}

	ctx := c.Request.Context()
	result, err := s.totalizerSvc.Submit(ctx, totalizerdomain.SubmitRequest{
		Date:       date,
		Scope:      plant.Scope(req.Scope),
		Readings:   req.Readings,
		Author:     opcontext.AuthorName(ctx),
		Privileged: opcontext.IsPrivileged(ctx),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	updated := 0
	if len(result.Changed) > 0 {
		updated, err = s.kpiSvc.Recompute(ctx, date, result.Changed, opcontext.AuthorName(ctx))
		if err != nil {
			AbortWithError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"changed_totalizers": result.Changed,
		"kpis_updated":       updated,
	})
}

// PreviewKPIs derives the day KPI set from candidate readings without
// persisting anything.
func (s *Server) PreviewKPIs(c *gin.Context) {
	var req struct {
		Date     string                         `json:"date"`
		Readings []totalizerdomain.ReadingInput `json:"readings"`
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

	kpis, err := s.kpiSvc.Preview(c.Request.Context(), date, req.Readings)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": req.Date, "kpis": kpis})
}

// ListReadings returns the stored rows for a scope and date.
func (s *Server) ListReadings(c *gin.Context) {
	date, err := parseDate(c.Query("date"))
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "date must be YYYY-MM-DD"))
		return
	}
	scope := plant.Scope(c.Query("scope"))

	rows, err := s.totalizerSvc.ListReadings(c.Request.Context(), scope, date)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"readings": rows})
}

func parseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, value)
}
