package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stationops/pims/internal/opcontext"
	totalizerdomain "github.com/stationops/pims/internal/totalizer/domain"
)

// ConfigureBaseline records a baseline value effective from a date. Used on
// the first day of operation or after a meter replacement.
func (s *Server) ConfigureBaseline(c *gin.Context) {
	var req struct {
		TotalizerID   int     `json:"totalizer_id"`
		EffectiveDate string  `json:"effective_date"`
		Value         float64 `json:"baseline_value"`
		Reason        string  `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	effective, err := parseDate(req.EffectiveDate)
	if err != nil {
		AbortWithError(c, newValidationError("effective_date", "invalid_date", "effective_date must be YYYY-MM-DD"))
		return
	}

	ctx := c.Request.Context()
	if err := s.totalizerSvc.ConfigureBaseline(ctx, totalizerdomain.Baseline{
		TotalizerID:   req.TotalizerID,
		EffectiveDate: effective,
		Value:         req.Value,
		Reason:        req.Reason,
		ConfiguredBy:  opcontext.AuthorName(ctx),
	}); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"totalizer_id": req.TotalizerID})
}

// ListBaselines returns the baseline history for a totalizer, newest first.
func (s *Server) ListBaselines(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("totalizer_id"))
	if err != nil {
		AbortWithError(c, newValidationError("totalizer_id", "invalid_id", "totalizer_id must be an integer"))
		return
	}

	baselines, err := s.totalizerSvc.ListBaselines(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"baselines": baselines})
}
