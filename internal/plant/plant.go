// Package plant holds the immutable calibration data for a single station:
// scopes, rated capacities and engine tolerances. A Config value is built
// once at startup and passed into every engine constructor so that two
// differently calibrated plants can coexist in one process (and in tests).
package plant

import "time"

// Scope identifies the organizational unit a totalizer or KPI belongs to.
type Scope string

const (
	ScopeUnit1       Scope = "Unit-1"
	ScopeUnit2       Scope = "Unit-2"
	ScopeStation     Scope = "Station"
	ScopeEnergyMeter Scope = "Energy-Meter"
)

// ReportScopes are the scopes KPI records are stored under. Energy-Meter
// diffs feed the formulas but their outputs land on the unit/station scopes.
var ReportScopes = []Scope{ScopeUnit1, ScopeUnit2, ScopeStation}

// Valid reports whether s is one of the four known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeUnit1, ScopeUnit2, ScopeStation, ScopeEnergyMeter:
		return true
	}
	return false
}

// Config is the per-station calibration handed to the engines.
type Config struct {
	// Rated generation per unit per day, MWh. 125 MW x 24 h.
	UnitRatedMWhPerDay float64
	// Rated generation for the whole station per day, MWh.
	StationRatedMWhPerDay float64
	// Two stored KPI values closer than this are treated as unchanged
	// by the selective persister.
	Epsilon float64
	// First month of the fiscal year; yearly aggregates run from the
	// 1st of this month.
	FiscalYearStart time.Month
}

// Default returns the calibration of the source plant.
func Default() Config {
	return Config{
		UnitRatedMWhPerDay:    3000,
		StationRatedMWhPerDay: 6000,
		Epsilon:               1e-4,
		FiscalYearStart:       time.April,
	}
}

// FiscalYearStartDate returns the first day of the fiscal year containing d.
func (c Config) FiscalYearStartDate(d time.Time) time.Time {
	year := d.Year()
	if d.Month() < c.FiscalYearStart {
		year--
	}
	return time.Date(year, c.FiscalYearStart, 1, 0, 0, 0, 0, d.Location())
}

// MonthStartDate returns the first day of the month containing d.
func MonthStartDate(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
}
