// Package domain contains persistence models for totalizer readings and
// baseline configuration.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stationops/pims/internal/plant"
)

var (
	ErrInvalidDate      = errors.New("invalid_date")
	ErrInvalidScope     = errors.New("invalid_scope")
	ErrUnknownTotalizer = errors.New("unknown_totalizer")
	ErrInvalidReading   = errors.New("invalid_reading_value")
	ErrInvalidBaseline  = errors.New("invalid_baseline")
)

// Definition is one row of the immutable totalizer master: a cumulative
// meter identified by a small stable integer id.
type Definition struct {
	ID    int
	Name  string
	Scope plant.Scope
}

// Reading stores one submitted value per totalizer per day. DiffValue is
// derived at write time so downstream consumers never need the prior row.
type Reading struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	TotalizerID int          `gorm:"not null;uniqueIndex:uq_reading_totalizer_date" json:"totalizer_id"`
	Date        time.Time    `gorm:"type:date;not null;uniqueIndex:uq_reading_totalizer_date" json:"date"`
	Value       float64      `gorm:"not null" json:"reading_value"`
	AdjustValue float64      `gorm:"not null;default:0" json:"adjust_value"`
	DiffValue   float64      `gorm:"not null;default:0" json:"difference_value"`
	Author      string       `gorm:"type:text" json:"author"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Reading) TableName() string { return "totalizer_readings" }

// Baseline substitutes for "yesterday's reading" when no prior-day row
// exists: first day of operation or a meter replacement/reset. The latest
// baseline with effective_date on or before the report date applies.
type Baseline struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	TotalizerID   int          `gorm:"not null;index" json:"totalizer_id"`
	EffectiveDate time.Time    `gorm:"type:date;not null;index" json:"effective_date"`
	Value         float64      `gorm:"not null" json:"baseline_value"`
	Reason        string       `gorm:"type:text" json:"reason"`
	ConfiguredBy  string       `gorm:"type:text" json:"configured_by"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Baseline) TableName() string { return "totalizer_baselines" }
