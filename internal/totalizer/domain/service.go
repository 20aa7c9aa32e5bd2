package domain

import (
	"context"
	"time"

	"github.com/stationops/pims/internal/plant"
)

// ReadingInput is one meter value in a submission or preview payload.
type ReadingInput struct {
	TotalizerID int      `json:"totalizer_id"`
	Value       float64  `json:"reading_value"`
	AdjustValue *float64 `json:"adjust_value,omitempty"`
}

// SubmitRequest carries one day's readings for a scope.
type SubmitRequest struct {
	Date     time.Time
	Scope    plant.Scope
	Readings []ReadingInput
	Author   string
	// Privileged submissions may move the diff through an adjust value.
	// Anyone else's adjustment is forced to zero before computing; the
	// role check itself happens at the boundary.
	Privileged bool
}

// SubmitResult reports which totalizers actually changed.
type SubmitResult struct {
	Changed []int
}

// Service is the diff engine: it owns reading upserts, previous-value
// resolution and per-scope diff maps.
type Service interface {
	// Submit upserts the readings for the request date, recomputing each
	// row's difference value. Resubmitting identical values is a no-op
	// and reports no changed totalizers.
	Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error)

	// ListReadings returns the stored rows for a scope and date.
	ListReadings(ctx context.Context, scope plant.Scope, date time.Time) ([]Reading, error)

	// Diffs returns the per-scope diff maps for a date, computed from
	// stored readings. Totalizers without a row diff to zero.
	Diffs(ctx context.Context, date time.Time) (map[plant.Scope]map[string]float64, error)

	// PreviewDiffs computes diff maps from the supplied readings without
	// touching storage. Previous values still resolve from storage.
	PreviewDiffs(ctx context.Context, date time.Time, readings []ReadingInput) (map[plant.Scope]map[string]float64, error)

	// ConfigureBaseline records a baseline value effective from a date.
	ConfigureBaseline(ctx context.Context, b Baseline) error

	// ListBaselines returns the baseline history for a totalizer, newest
	// first.
	ListBaselines(ctx context.Context, totalizerID int) ([]Baseline, error)
}
