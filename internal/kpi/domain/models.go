// Package domain contains persistence models and the service contract for
// derived plant indicators.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stationops/pims/internal/plant"
)

var (
	ErrInvalidKPIName  = errors.New("invalid_kpi_name")
	ErrInvalidKPIValue = errors.New("invalid_kpi_value")
	ErrInvalidPeriod   = errors.New("invalid_period")
	ErrInvalidScope    = errors.New("invalid_scope")
	ErrOffsetNotFound  = errors.New("offset_not_found")
)

// Record kinds. Auto records are engine-derived and rewritten on every
// recompute; energy records carry the raw energy-meter balance figures the
// same way; manual records are operator-entered and never touched by the
// engine.
const (
	KindAuto   = "auto"
	KindEnergy = "energy"
	KindManual = "manual"
)

// Offset periods.
const (
	PeriodDay   = "day"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

// Record is one stored KPI value for one scope and date.
type Record struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	ReportDate time.Time    `gorm:"type:date;not null;uniqueIndex:uq_kpi_record" json:"report_date"`
	Kind       string       `gorm:"type:text;not null;uniqueIndex:uq_kpi_record" json:"kind"`
	Scope      plant.Scope  `gorm:"type:text;not null;uniqueIndex:uq_kpi_record" json:"scope"`
	Name       string       `gorm:"type:text;not null;uniqueIndex:uq_kpi_record" json:"kpi_name"`
	Value      float64      `gorm:"not null" json:"kpi_value"`
	Author     string       `gorm:"type:text" json:"author"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Record) TableName() string { return "kpi_records" }

// Offset carries history recorded outside this system into month and year
// rollups. One row per period, scope and KPI. PeriodEnd defaults to the last
// day of the period; Source names where the carried figure came from.
type Offset struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	PeriodType   string       `gorm:"type:text;not null;uniqueIndex:uq_kpi_offset" json:"period_type"`
	PeriodStart  time.Time    `gorm:"type:date;not null;uniqueIndex:uq_kpi_offset" json:"period_start"`
	PeriodEnd    time.Time    `gorm:"column:period_end;type:date;not null" json:"period_end"`
	Scope        plant.Scope  `gorm:"type:text;not null;uniqueIndex:uq_kpi_offset" json:"scope"`
	Name         string       `gorm:"type:text;not null;uniqueIndex:uq_kpi_offset" json:"kpi_name"`
	Value        float64      `gorm:"not null" json:"offset_value"`
	Reason       string       `gorm:"type:text" json:"reason"`
	Source       string       `gorm:"type:text" json:"source"`
	ConfiguredBy string       `gorm:"type:text" json:"configured_by"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Offset) TableName() string { return "kpi_offsets" }

// ScopeMap groups KPI name/value pairs by report scope.
type ScopeMap map[plant.Scope]map[string]float64

// Clone deep-copies a ScopeMap.
func (m ScopeMap) Clone() ScopeMap {
	out := make(ScopeMap, len(m))
	for scope, kpis := range m {
		inner := make(map[string]float64, len(kpis))
		for name, value := range kpis {
			inner[name] = value
		}
		out[scope] = inner
	}
	return out
}
