// Package aggregate rolls daily KPI values up into month and fiscal year
// figures according to each indicator's registry configuration.
package aggregate

import (
	"time"

	"go.uber.org/zap"

	kpidomain "github.com/stationops/pims/internal/kpi/domain"
	"github.com/stationops/pims/internal/kpi/registry"
	"github.com/stationops/pims/internal/plant"
)

// Day is one date's stored values for every scope. Absent names mean the
// value was never derived or entered for that date; they are skipped, not
// treated as zero.
type Day struct {
	Date   time.Time
	Scopes kpidomain.ScopeMap
}

// GapFunc is notified when an aggregation cannot honor its configuration,
// such as a weighted average with zero total weight.
type GapFunc func(scope plant.Scope, name, reason string)

// Aggregator applies registry aggregation rules over day sequences.
type Aggregator struct {
	reg  *registry.Registry
	log  *zap.Logger
	gaps GapFunc
}

// New builds an Aggregator. gaps may be nil.
func New(reg *registry.Registry, log *zap.Logger, gaps GapFunc) *Aggregator {
	if gaps == nil {
		gaps = func(plant.Scope, string, string) {}
	}
	return &Aggregator{reg: reg, log: log.Named("kpi.aggregate"), gaps: gaps}
}

// Aggregate rolls days up for one period ("day", "month" or "year"). Days
// must be ordered by date ascending. Indicators missing from the registry
// only carry through for single-day inputs; over longer periods they are
// dropped and reported as gaps.
func (a *Aggregator) Aggregate(days []Day, period string) kpidomain.ScopeMap {
	out := make(kpidomain.ScopeMap)

	for _, scope := range plant.ReportScopes {
		names := make(map[string]struct{})
		for _, day := range days {
			for name := range day.Scopes[scope] {
				names[name] = struct{}{}
			}
		}

		scoped := make(map[string]float64, len(names))
		for name := range names {
			value, ok := a.aggregateOne(days, scope, name, period)
			if ok {
				scoped[name] = value
			}
		}
		if len(scoped) > 0 {
			out[scope] = scoped
		}
	}

	return out
}

func (a *Aggregator) aggregateOne(days []Day, scope plant.Scope, name, period string) (float64, bool) {
	values, weights, present := a.collect(days, scope, name)
	if present == 0 {
		return 0, false
	}

	def, known := a.reg.Lookup(name)
	if !known {
		// Unconfigured indicators have no defined rollup. A single day
		// is its own rollup; anything longer is a configuration gap.
		if len(days) == 1 {
			return values[len(values)-1], true
		}
		a.gaps(scope, name, "unregistered_kpi")
		a.log.Warn("kpi missing from registry, skipping rollup",
			zap.String("scope", string(scope)),
			zap.String("kpi", name),
			zap.String("period", period),
		)
		return 0, false
	}

	var result float64
	switch def.ForPeriod(period) {
	case registry.Sum:
		for _, v := range values {
			result += v
		}
	case registry.Average:
		var sum float64
		for _, v := range values {
			sum += v
		}
		result = sum / float64(len(values))
	case registry.WeightedAvg:
		var num, den float64
		for i, v := range values {
			num += v * weights[i]
			den += weights[i]
		}
		if den > 0 {
			result = num / den
		} else {
			// Zero total weight: fall back to the plain mean so the
			// figure stays usable, and surface the gap.
			var sum float64
			for _, v := range values {
				sum += v
			}
			result = sum / float64(len(values))
			a.gaps(scope, name, "zero_weight")
			a.log.Warn("weighted average has zero total weight, using plain mean",
				zap.String("scope", string(scope)),
				zap.String("kpi", name),
				zap.String("weight_by", def.WeightBy),
				zap.String("period", period),
			)
		}
	case registry.LastValue:
		result = values[len(values)-1]
	case registry.Max:
		result = values[0]
		for _, v := range values[1:] {
			if v > result {
				result = v
			}
		}
	case registry.Min:
		result = values[0]
		for _, v := range values[1:] {
			if v < result {
				result = v
			}
		}
	}

	// Values were rounded once when derived. Rounding again here would make
	// a single-day rollup diverge from the day figure, so Decimals stays
	// display metadata only.
	return result, true
}

// collect gathers the present values for one indicator in day order, along
// with the matching weight values for weighted averages. A day whose weight
// indicator is absent weighs zero.
func (a *Aggregator) collect(days []Day, scope plant.Scope, name string) (values, weights []float64, present int) {
	def, _ := a.reg.Lookup(name)
	for _, day := range days {
		kpis := day.Scopes[scope]
		v, ok := kpis[name]
		if !ok {
			continue
		}
		values = append(values, v)
		weights = append(weights, kpis[def.WeightBy])
		present++
	}
	return values, weights, present
}

// ApplyOffsets folds stored offsets into an aggregated map. Sums, maxima and
// minima absorb the offset directly. Averaging indicators cannot absorb a
// pre-averaged offset exactly without the source counts, so the value is
// still added but flagged as a gap for manual review.
func (a *Aggregator) ApplyOffsets(aggregated kpidomain.ScopeMap, offsets []kpidomain.Offset, period string) {
	for _, off := range offsets {
		scoped, ok := aggregated[off.Scope]
		if !ok {
			scoped = make(map[string]float64)
			aggregated[off.Scope] = scoped
		}

		def, known := a.reg.Lookup(off.Name)
		if !known {
			a.gaps(off.Scope, off.Name, "unregistered_offset")
			continue
		}

		switch def.ForPeriod(period) {
		case registry.Sum, registry.Max, registry.Min:
			scoped[off.Name] = scoped[off.Name] + off.Value
		case registry.Average, registry.WeightedAvg:
			scoped[off.Name] = scoped[off.Name] + off.Value
			a.gaps(off.Scope, off.Name, "offset_on_average")
			a.log.Warn("offset applied to averaging kpi, figure may need manual adjustment",
				zap.String("scope", string(off.Scope)),
				zap.String("kpi", off.Name),
				zap.String("period", period),
			)
		default:
			scoped[off.Name] = scoped[off.Name] + off.Value
		}
	}
}
