// Package events is the transactional outbox for plant domain events.
// Consumers (report builders, dashboards) read the plant_events table; this
// process only ever inserts.
package events

import (
	"strconv"
	"time"
)

// Plant event types.
const (
	EventReadingsSubmitted = "readings.submitted"
	EventKPIUpdated        = "kpi.updated"
	EventOutageRecorded    = "outage.recorded"
	EventOutageClosed      = "outage.closed"
	EventOffsetConfigured  = "offset.configured"
	EventBaselineSet       = "baseline.configured"
)

// ReadingsSubmittedPayload records one accepted submission.
type ReadingsSubmittedPayload struct {
	Date    string `json:"date"`
	Scope   string `json:"scope"`
	Count   int    `json:"count"`
	Changed []int  `json:"changed_totalizers"`
	Author  string `json:"author"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p ReadingsSubmittedPayload) ToMap() map[string]any {
	changed := make([]any, 0, len(p.Changed))
	for _, id := range p.Changed {
		changed = append(changed, id)
	}
	return map[string]any{
		"date":               p.Date,
		"scope":              p.Scope,
		"count":              p.Count,
		"changed_totalizers": changed,
		"author":             p.Author,
	}
}

// KPIUpdatedPayload records one selective persistence pass.
type KPIUpdatedPayload struct {
	Date    string `json:"date"`
	Updated int    `json:"updated"`
	Author  string `json:"author"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p KPIUpdatedPayload) ToMap() map[string]any {
	return map[string]any{
		"date":    p.Date,
		"updated": p.Updated,
		"author":  p.Author,
	}
}

// OutagePayload records outage lifecycle transitions.
type OutagePayload struct {
	OutageID int64  `json:"outage_id"`
	Scope    string `json:"scope"`
	Type     string `json:"outage_type"`
	Start    string `json:"started_at"`
	End      string `json:"ended_at,omitempty"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p OutagePayload) ToMap() map[string]any {
	payload := map[string]any{
		"outage_id":   strconv.FormatInt(p.OutageID, 10),
		"scope":       p.Scope,
		"outage_type": p.Type,
		"started_at":  p.Start,
	}
	if p.End != "" {
		payload["ended_at"] = p.End
	}
	return payload
}

// FormatDate renders a report date the way every payload expects.
func FormatDate(d time.Time) string {
	return d.Format("2006-01-02")
}
