// Package registry declares how each derived indicator aggregates over
// reporting periods. The engine consults it for day, month and fiscal year
// rollups and for display rounding.
package registry

// AggregationType selects the rollup method for one KPI over one period.
type AggregationType string

const (
	Sum         AggregationType = "sum"
	Average     AggregationType = "average"
	WeightedAvg AggregationType = "weighted_avg"
	LastValue   AggregationType = "last_value"
	Max         AggregationType = "max"
	Min         AggregationType = "min"
)

// Definition configures one KPI.
type Definition struct {
	Name        string
	DisplayName string
	Unit        string

	DayAgg   AggregationType
	MonthAgg AggregationType
	YearAgg  AggregationType

	// WeightBy names the sibling KPI whose values weight a weighted
	// average, typically "generation" or "coal_consumption".
	WeightBy string

	// Decimals is the display precision applied after aggregation.
	Decimals int
}

// ForPeriod returns the aggregation type for "day", "month" or "year".
func (d Definition) ForPeriod(period string) AggregationType {
	switch period {
	case "month":
		return d.MonthAgg
	case "year":
		return d.YearAgg
	default:
		return d.DayAgg
	}
}

// Registry is a closed lookup of KPI definitions.
type Registry struct {
	byName map[string]Definition
}

// New builds a Registry from a definition list.
func New(defs []Definition) *Registry {
	r := &Registry{byName: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		r.byName[d.Name] = d
	}
	return r
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Names returns every registered KPI name.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}

func uniform(name, display, unit string, agg AggregationType, decimals int) Definition {
	return Definition{
		Name:        name,
		DisplayName: display,
		Unit:        unit,
		DayAgg:      agg,
		MonthAgg:    agg,
		YearAgg:     agg,
		Decimals:    decimals,
	}
}

func weighted(name, display, unit, weightBy string, decimals int) Definition {
	d := uniform(name, display, unit, WeightedAvg, decimals)
	d.WeightBy = weightBy
	return d
}

// Default returns the registry for the source station. Indicators not listed
// here still store and read back, but they only roll up day by day.
func Default() *Registry {
	return New([]Definition{
		uniform("generation", "Generation", "MWh", Sum, 3),
		uniform("plf_percent", "PLF", "%", Average, 2),

		uniform("running_hour", "Running Hours", "Hr", Sum, 2),
		uniform("plant_availability_percent", "Plant Availability Factor", "%", Average, 2),
		uniform("planned_outage_hour", "Planned Outage", "Hr", Sum, 2),
		uniform("planned_outage_percent", "Planned Outage %", "%", Average, 2),
		uniform("strategic_outage_hour", "Strategic Outage", "Hr", Sum, 2),

		uniform("coal_consumption", "Coal Consumption", "T", Sum, 3),
		weighted("specific_coal", "Specific Coal Consumption", "kg/kWh", "generation", 3),
		weighted("gcv", "Average GCV", "kcal/kg", "coal_consumption", 2),
		weighted("heat_rate", "Heat Rate", "kcal/kWh", "generation", 2),

		uniform("oil_consumption", "Oil Consumption", "KL", Sum, 3),
		weighted("specific_oil", "Specific Oil Consumption", "ml/kWh", "generation", 3),

		uniform("aux_power", "Auxiliary Power Consumption", "MWh", Sum, 3),
		weighted("aux_power_percent", "Auxiliary Power %", "%", "generation", 2),

		uniform("steam_generation", "Steam Generation", "T", Sum, 3),
		weighted("specific_steam", "Specific Steam Consumption", "T/MWh", "generation", 3),

		uniform("dm_water", "DM Water Consumption", "Cu.M", Sum, 3),
		weighted("specific_dm_percent", "Specific DM Water Consumption", "%", "steam_generation", 2),
		uniform("total_raw_water_used_m3", "Total Raw Water Used", "Cu.M", Sum, 3),
		uniform("avg_raw_water_m3_per_hr", "Average Raw Water/Hr", "Cu.M/Hr", Average, 3),
		weighted("sp_raw_water_l_per_kwh", "Specific Raw Water", "L/kWh", "generation", 3),
		uniform("total_dm_water_used_m3", "Total DM Water Used", "Cu.M", Sum, 3),

		uniform("stn_net_export_mu", "Station Net Export", "MWh", Sum, 3),

		uniform("unit1_generation", "Unit-1 Generation (meter)", "MWh", Sum, 3),
		uniform("unit2_generation", "Unit-2 Generation (meter)", "MWh", Sum, 3),
		uniform("total_station_aux_mwh", "Station Auxiliary Total", "MWh", Sum, 3),
		uniform("total_station_tie_mwh", "Station Tie Total", "MWh", Sum, 3),
		uniform("unit1_aux_consumption_mwh", "Unit-1 Auxiliary Consumption", "MWh", Sum, 3),
		uniform("unit2_aux_consumption_mwh", "Unit-2 Auxiliary Consumption", "MWh", Sum, 3),
		uniform("unit1_aux_percent", "Unit-1 Auxiliary %", "%", Average, 2),
		uniform("unit2_aux_percent", "Unit-2 Auxiliary %", "%", Average, 2),
		uniform("unit1_plf_percent", "Unit-1 PLF (meter)", "%", Average, 2),
		uniform("unit2_plf_percent", "Unit-2 PLF (meter)", "%", Average, 2),

		uniform("stack_emission", "Stack Emission (SPM)", "mg/Nm3", Average, 2),

		uniform("ro_running_hour", "RO Plant Running Hours", "Hr", Sum, 2),
		uniform("ro_production_cum", "RO Plant Production", "Cu.M", Sum, 3),

		uniform("clarifier_level", "Clarifier Reservoir Level", "%", Average, 2),
		weighted("coal_indonesian_percent", "Indonesian Coal %", "%", "coal_consumption", 2),
		weighted("coal_southafrica_percent", "South African Coal %", "%", "coal_consumption", 2),
		weighted("coal_domestic_percent", "Domestic Coal %", "%", "coal_consumption", 2),
	})
}
