package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	kpidomain "github.com/stationops/pims/internal/kpi/domain"
	"github.com/stationops/pims/internal/opcontext"
	"github.com/stationops/pims/internal/plant"
)

// ConfigureOffset upserts one carried-in history offset for a period.
func (s *Server) ConfigureOffset(c *gin.Context) {
	var req struct {
		PeriodType  string  `json:"period_type"`
		PeriodStart string  `json:"period_start"`
		PeriodEnd   string  `json:"period_end"`
		Scope       string  `json:"scope"`
		Name        string  `json:"kpi_name"`
		Value       float64 `json:"offset_value"`
		Reason      string  `json:"reason"`
		Source      string  `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	start, err := parseDate(req.PeriodStart)
	if err != nil {
		AbortWithError(c, newValidationError("period_start", "invalid_date", "period_start must be YYYY-MM-DD"))
		return
	}

	// period_end is optional; the service derives the period's last day.
	var end time.Time
	if req.PeriodEnd != "" {
		end, err = parseDate(req.PeriodEnd)
		if err != nil {
			AbortWithError(c, newValidationError("period_end", "invalid_date", "period_end must be YYYY-MM-DD"))
			return
		}
	}

	ctx := c.Request.Context()
	offset, err := s.kpiSvc.ConfigureOffset(ctx, kpidomain.ConfigureOffsetRequest{
		PeriodType:   req.PeriodType,
		PeriodStart:  start,
		PeriodEnd:    end,
		Scope:        plant.Scope(req.Scope),
		Name:         req.Name,
		Value:        req.Value,
		Reason:       req.Reason,
		Source:       req.Source,
		ConfiguredBy: opcontext.AuthorName(ctx),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, offset)
}

// ListOffsets returns the offsets configured for a period.
func (s *Server) ListOffsets(c *gin.Context) {
	start, err := parseDate(c.Query("period_start"))
	if err != nil {
		AbortWithError(c, newValidationError("period_start", "invalid_date", "period_start must be YYYY-MM-DD"))
		return
	}

	offsets, err := s.kpiSvc.ListOffsets(c.Request.Context(), c.Query("period_type"), start)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offsets": offsets})
}

// DeleteOffset removes one offset row by id.
func (s *Server) DeleteOffset(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "id must be an integer"))
		return
	}

	if err := s.kpiSvc.DeleteOffset(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
