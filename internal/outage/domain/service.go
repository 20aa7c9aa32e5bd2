package domain

import (
	"context"
	"time"

	"github.com/stationops/pims/internal/plant"
)

// RecordRequest opens a new outage.
type RecordRequest struct {
	Scope             plant.Scope
	OutageType        string
	StartedAt         time.Time
	Reason            string
	ResponsibleAgency string
	NotificationNo    string
	Remarks           string
	RecordedBy        string
}

// CloseRequest ends an outage at synchronization time.
type CloseRequest struct {
	ID        int64
	EndedAt   time.Time
	SyncNotes string
	OilUsedKL *float64
	CoalUsedT *float64
}

// ListFilter narrows List results. Zero values mean unfiltered.
type ListFilter struct {
	Scope plant.Scope
	From  time.Time
	To    time.Time
}

// Service owns the outage log and the downtime arithmetic.
type Service interface {
	// Record opens an outage.
	Record(ctx context.Context, req RecordRequest) (*Record, error)

	// Close ends an open outage. Closing a closed outage fails with
	// ErrAlreadyClosed.
	Close(ctx context.Context, req CloseRequest) (*Record, error)

	// Get returns one outage by id.
	Get(ctx context.Context, id int64) (*Record, error)

	// List returns outages matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]Record, error)

	// Latest returns the most recent n outages.
	Latest(ctx context.Context, n int) ([]Record, error)

	// OpenCount returns the number of outages without an end time.
	OpenCount(ctx context.Context) (int, error)

	// HoursForDay computes the downtime indicators for one unit scope and
	// calendar day, clipping each outage to the day window. Open outages
	// extend to the end of the window.
	HoursForDay(ctx context.Context, scope plant.Scope, date time.Time) (DayHours, error)
}
