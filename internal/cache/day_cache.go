package cache

import (
	"time"

	"github.com/stationops/pims/internal/kpi/aggregate"
)

// DayCacheTTL bounds how stale a cached day's KPI set may be. Historical
// days only change on resubmission, so a short TTL keeps range reads cheap
// without serving stale figures for long.
const DayCacheTTL = 5 * time.Minute

// DayCache caches stored day KPI sets by report date (formatted 2006-01-02)
// for month and year rollups.
type DayCache = Cache[string, aggregate.Day]

// NewDayCache builds the day report cache used by the KPI service.
func NewDayCache() DayCache {
	return NewTTLCache[string, aggregate.Day]()
}
