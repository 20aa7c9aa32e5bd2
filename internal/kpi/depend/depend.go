// Package depend maps totalizers to the stored indicators their values flow
// into. The persister consults it to scope writes to the KPIs a submission
// could actually have moved.
package depend

import "github.com/stationops/pims/internal/plant"

// Key identifies one stored KPI as "<scope>.<name>".
type Key string

// NewKey builds a Key from a scope and KPI name.
func NewKey(scope plant.Scope, name string) Key {
	return Key(string(scope) + "." + name)
}

// Graph is the static totalizer-to-KPI dependency table.
type Graph struct {
	deps map[int][]Key
}

// Affected returns the union of KPIs fed by the changed totalizer ids.
func (g *Graph) Affected(changed []int) map[Key]struct{} {
	out := make(map[Key]struct{})
	for _, id := range changed {
		for _, k := range g.deps[id] {
			out[k] = struct{}{}
		}
	}
	return out
}

// Dependents returns the KPIs fed by a single totalizer id.
func (g *Graph) Dependents(id int) []Key {
	return g.deps[id]
}

func keys(scope plant.Scope, names ...string) []Key {
	out := make([]Key, 0, len(names))
	for _, n := range names {
		out = append(out, NewKey(scope, n))
	}
	return out
}

func join(sets ...[]Key) []Key {
	var out []Key
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

// Default returns the dependency table for the source station's meter wiring.
func Default() *Graph {
	g := &Graph{deps: make(map[int][]Key, 38)}

	coal := func(unit plant.Scope) []Key {
		return join(
			keys(unit, "coal_consumption", "specific_coal"),
			keys(plant.ScopeStation, "coal_consumption", "specific_coal"),
		)
	}
	oil := func(unit plant.Scope) []Key {
		return join(
			keys(unit, "oil_consumption", "specific_oil"),
			keys(plant.ScopeStation, "oil_consumption", "specific_oil"),
		)
	}
	dmWater := func(unit plant.Scope) []Key {
		return join(
			keys(unit, "dm_water", "specific_dm_percent"),
			keys(plant.ScopeStation, "dm_water", "specific_dm_percent"),
		)
	}
	steam := func(unit plant.Scope) []Key {
		return join(
			keys(unit, "steam_generation", "specific_steam", "specific_dm_percent"),
			keys(plant.ScopeStation, "steam_generation", "specific_steam", "specific_dm_percent"),
		)
	}
	generation := func(unit plant.Scope) []Key {
		return join(
			keys(unit, "generation", "plf_percent", "aux_power", "aux_power_percent",
				"specific_coal", "specific_oil", "specific_steam"),
			keys(plant.ScopeStation, "generation", "plf_percent", "aux_power", "aux_power_percent",
				"specific_coal", "specific_oil", "specific_steam",
				"stn_net_export_mu", "sp_raw_water_l_per_kwh"),
		)
	}
	auxUnit := func(unit plant.Scope) []Key {
		return join(
			keys(unit, "aux_power", "aux_power_percent"),
			keys(plant.ScopeStation, "aux_power", "aux_power_percent", "stn_net_export_mu"),
		)
	}
	auxBoth := join(
		keys(plant.ScopeUnit1, "aux_power", "aux_power_percent"),
		keys(plant.ScopeUnit2, "aux_power", "aux_power_percent"),
		keys(plant.ScopeStation, "aux_power", "aux_power_percent", "stn_net_export_mu"),
	)

	// Unit-1 meters.
	for id := 1; id <= 5; id++ {
		g.deps[id] = coal(plant.ScopeUnit1)
	}
	g.deps[6] = oil(plant.ScopeUnit1)
	g.deps[7] = dmWater(plant.ScopeUnit1)
	g.deps[8] = dmWater(plant.ScopeUnit1)
	g.deps[9] = steam(plant.ScopeUnit1)

	// Unit-2 meters.
	for id := 11; id <= 15; id++ {
		g.deps[id] = coal(plant.ScopeUnit2)
	}
	g.deps[16] = oil(plant.ScopeUnit2)
	g.deps[17] = dmWater(plant.ScopeUnit2)
	g.deps[18] = dmWater(plant.ScopeUnit2)
	g.deps[19] = steam(plant.ScopeUnit2)

	// Station raw water.
	g.deps[21] = keys(plant.ScopeStation,
		"total_raw_water_used_m3", "avg_raw_water_m3_per_hr", "sp_raw_water_l_per_kwh")

	// Generation meters.
	g.deps[22] = generation(plant.ScopeUnit1)
	g.deps[23] = generation(plant.ScopeUnit2)

	// Unit incomer meters.
	g.deps[24] = auxUnit(plant.ScopeUnit1)
	g.deps[25] = auxUnit(plant.ScopeUnit1)
	g.deps[26] = auxUnit(plant.ScopeUnit2)
	g.deps[27] = auxUnit(plant.ScopeUnit2)

	// Reserve station meters and tie lines feed both units through the
	// auxiliary split.
	for id := 28; id <= 37; id++ {
		g.deps[id] = auxBoth
	}
	g.deps[38] = auxUnit(plant.ScopeUnit2)

	return g
}
