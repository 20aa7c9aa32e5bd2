package domain

import (
	"context"
	"time"

	"github.com/stationops/pims/internal/plant"
	totalizerdomain "github.com/stationops/pims/internal/totalizer/domain"
)

// Report is one date's indicators rolled up over the three reporting
// periods. Month covers the 1st of the month through the report date, Year
// the fiscal year start through the report date.
type Report struct {
	ReportDate time.Time `json:"report_date"`
	Day        ScopeMap  `json:"day"`
	Month      ScopeMap  `json:"month"`
	Year       ScopeMap  `json:"year"`
}

// ManualEntry is one operator-entered KPI value.
type ManualEntry struct {
	Scope plant.Scope `json:"scope"`
	Name  string      `json:"kpi_name"`
	Value float64     `json:"kpi_value"`
}

// SubmitManualRequest stores operator-entered values for a date.
type SubmitManualRequest struct {
	Date    time.Time
	Entries []ManualEntry
	Author  string
}

// ConfigureOffsetRequest records carried-in history for a period. A zero
// PeriodEnd means the last day of the period.
type ConfigureOffsetRequest struct {
	PeriodType   string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Scope        plant.Scope
	Name         string
	Value        float64
	Reason       string
	Source       string
	ConfiguredBy string
}

// Service is the derivation and aggregation engine.
type Service interface {
	// Recompute derives the full day KPI set for date and persists only the
	// indicators that depend on the changed totalizers and moved by more
	// than the configured epsilon. An empty changed slice recomputes
	// everything.
	Recompute(ctx context.Context, date time.Time, changed []int, author string) (int, error)

	// Preview derives the full day KPI set from candidate readings without
	// writing anything.
	Preview(ctx context.Context, date time.Time, readings []totalizerdomain.ReadingInput) (ScopeMap, error)

	// Report returns the day, month-to-date and fiscal-year-to-date
	// indicator sets for date, offsets applied.
	Report(ctx context.Context, date time.Time) (Report, error)

	// SubmitManual stores operator-entered KPI values for a date.
	SubmitManual(ctx context.Context, req SubmitManualRequest) error

	// ConfigureOffset upserts one offset row.
	ConfigureOffset(ctx context.Context, req ConfigureOffsetRequest) (*Offset, error)

	// ListOffsets returns the offsets for a period.
	ListOffsets(ctx context.Context, periodType string, periodStart time.Time) ([]Offset, error)

	// DeleteOffset removes one offset row.
	DeleteOffset(ctx context.Context, id int64) error
}
