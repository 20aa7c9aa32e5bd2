// Package domain contains the outage log models and service contract.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/stationops/pims/internal/plant"
)

var (
	ErrInvalidScope   = errors.New("invalid_outage_scope")
	ErrInvalidType    = errors.New("invalid_outage_type")
	ErrInvalidWindow  = errors.New("invalid_outage_window")
	ErrNotFound       = errors.New("outage_not_found")
	ErrAlreadyClosed  = errors.New("outage_already_closed")
	ErrInvalidEndTime = errors.New("invalid_outage_end_time")
)

// Outage classifications. Anything else still counts toward total downtime
// but not toward the planned or strategic buckets.
const (
	TypePlanned   = "Planned Outage"
	TypeStrategic = "Strategic Outage"
	TypeForced    = "Forced Outage"
)

// Record is one outage interval for a unit. An open outage has no EndedAt
// and accrues downtime against every day it spans.
type Record struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	Scope             plant.Scope  `gorm:"type:text;not null;index:ix_outage_scope_start" json:"scope"`
	OutageType        string       `gorm:"column:outage_type;type:text;not null" json:"outage_type"`
	StartedAt         time.Time    `gorm:"not null;index:ix_outage_scope_start" json:"started_at"`
	EndedAt           *time.Time   `json:"ended_at,omitempty"`
	Reason            string       `gorm:"type:text" json:"reason"`
	ResponsibleAgency string       `gorm:"type:text" json:"responsible_agency"`
	NotificationNo    string       `gorm:"column:notification_no;type:text" json:"notification_no"`
	Remarks           string       `gorm:"type:text" json:"remarks"`
	RecordedBy        string       `gorm:"type:text" json:"recorded_by"`
	SyncNotes         string       `gorm:"type:text" json:"sync_notes"`
	OilUsedKL         *float64     `gorm:"column:oil_used_kl" json:"oil_used_kl,omitempty"`
	CoalUsedT         *float64     `gorm:"column:coal_used_t" json:"coal_used_t,omitempty"`
	CreatedAt         time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null" json:"updated_at"`

	// Duration is derived for closed outages, shift-log style ("2h 30m").
	Duration string `gorm:"-" json:"duration,omitempty"`
}

// TableName sets the database table name.
func (Record) TableName() string { return "outage_records" }

// AfterFind derives the display duration on loaded rows.
func (r *Record) AfterFind(*gorm.DB) error {
	r.Duration = r.durationString()
	return nil
}

// Open reports whether the outage is still running.
func (r Record) Open() bool { return r.EndedAt == nil }

// RefreshDuration recomputes the display duration after a close.
func (r *Record) RefreshDuration() { r.Duration = r.durationString() }

func (r Record) durationString() string {
	if r.EndedAt == nil {
		return ""
	}
	return FormatDuration(r.EndedAt.Sub(r.StartedAt))
}

// FormatDuration renders an interval the way the shift log reads it:
// "2h 30m", "45m" under an hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d.Round(time.Minute) / time.Minute)
	hours := minutes / 60
	minutes %= 60
	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// DayHours are the downtime-derived indicators for one scope and day.
type DayHours struct {
	RunningHour         float64
	AvailabilityPercent float64
	PlannedHour         float64
	PlannedPercent      float64
	StrategicHour       float64
}

// ToKPIMap renders the indicators under their stored KPI names.
func (h DayHours) ToKPIMap() map[string]float64 {
	return map[string]float64{
		"running_hour":               h.RunningHour,
		"plant_availability_percent": h.AvailabilityPercent,
		"planned_outage_hour":        h.PlannedHour,
		"planned_outage_percent":     h.PlannedPercent,
		"strategic_outage_hour":      h.StrategicHour,
	}
}
