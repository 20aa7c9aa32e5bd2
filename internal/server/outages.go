package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stationops/pims/internal/opcontext"
	outagedomain "github.com/stationops/pims/internal/outage/domain"
	"github.com/stationops/pims/internal/plant"
)

// RecordOutage opens a new outage for a unit.
func (s *Server) RecordOutage(c *gin.Context) {
	var req struct {
		Scope             string    `json:"scope"`
		OutageType        string    `json:"outage_type"`
		StartedAt         time.Time `json:"started_at"`
		Reason            string    `json:"reason"`
		ResponsibleAgency string    `json:"responsible_agency"`
		NotificationNo    string    `json:"notification_no"`
		Remarks           string    `json:"remarks"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	record, err := s.outageSvc.Record(ctx, outagedomain.RecordRequest{
		Scope:             plant.Scope(req.Scope),
		OutageType:        req.OutageType,
		StartedAt:         req.StartedAt,
		Reason:            req.Reason,
		ResponsibleAgency: req.ResponsibleAgency,
		NotificationNo:    req.NotificationNo,
		Remarks:           req.Remarks,
		RecordedBy:        opcontext.AuthorName(ctx),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// CloseOutage ends an open outage at synchronization time.
func (s *Server) CloseOutage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "id must be an integer"))
		return
	}

	var req struct {
		EndedAt   time.Time `json:"ended_at"`
		SyncNotes string    `json:"sync_notes"`
		OilUsedKL *float64  `json:"oil_used_kl"`
		CoalUsedT *float64  `json:"coal_used_t"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.outageSvc.Close(c.Request.Context(), outagedomain.CloseRequest{
		ID:        id,
		EndedAt:   req.EndedAt,
		SyncNotes: req.SyncNotes,
		OilUsedKL: req.OilUsedKL,
		CoalUsedT: req.CoalUsedT,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// ListOutages returns outages matching the optional scope/from/to filters,
// newest first.
func (s *Server) ListOutages(c *gin.Context) {
	filter := outagedomain.ListFilter{Scope: plant.Scope(c.Query("scope"))}

	if raw := c.Query("from"); raw != "" {
		from, err := parseDate(raw)
		if err != nil {
			AbortWithError(c, newValidationError("from", "invalid_date", "from must be YYYY-MM-DD"))
			return
		}
		filter.From = from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := parseDate(raw)
		if err != nil {
			AbortWithError(c, newValidationError("to", "invalid_date", "to must be YYYY-MM-DD"))
			return
		}
		filter.To = to
	}

	records, err := s.outageSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outages": records})
}

// LatestOutages returns the most recent outages for the dashboard strip.
func (s *Server) LatestOutages(c *gin.Context) {
	n := 5
	if raw := c.Query("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			AbortWithError(c, newValidationError("n", "invalid_limit", "n must be between 1 and 100"))
			return
		}
		n = parsed
	}

	records, err := s.outageSvc.Latest(c.Request.Context(), n)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outages": records})
}

// GetOutage returns one outage by id.
func (s *Server) GetOutage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "id must be an integer"))
		return
	}

	record, err := s.outageSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}
