package domain

import "github.com/stationops/pims/internal/plant"

// Master is the immutable totalizer reference table for a station.
type Master struct {
	byID   map[int]Definition
	byName map[plant.Scope]map[string]int
	order  []int
}

// NewMaster builds a Master from a definition list.
func NewMaster(defs []Definition) *Master {
	m := &Master{
		byID:   make(map[int]Definition, len(defs)),
		byName: make(map[plant.Scope]map[string]int),
	}
	for _, d := range defs {
		m.byID[d.ID] = d
		if m.byName[d.Scope] == nil {
			m.byName[d.Scope] = make(map[string]int)
		}
		m.byName[d.Scope][d.Name] = d.ID
		m.order = append(m.order, d.ID)
	}
	return m
}

// Lookup returns the definition for id.
func (m *Master) Lookup(id int) (Definition, bool) {
	d, ok := m.byID[id]
	return d, ok
}

// IDs returns every totalizer id in master order.
func (m *Master) IDs() []int {
	out := make([]int, len(m.order))
	copy(out, m.order)
	return out
}

// ScopeIDs returns the ids belonging to one scope, in master order.
func (m *Master) ScopeIDs(scope plant.Scope) []int {
	var out []int
	for _, id := range m.order {
		if m.byID[id].Scope == scope {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of registered totalizers.
func (m *Master) Len() int { return len(m.order) }

// DefaultMaster returns the meter wiring of the source station. The ids are
// load-bearing: readings, baselines and the KPI dependency table key on them.
func DefaultMaster() *Master {
	return NewMaster([]Definition{
		{1, "feeder_a", plant.ScopeUnit1},
		{2, "feeder_b", plant.ScopeUnit1},
		{3, "feeder_c", plant.ScopeUnit1},
		{4, "feeder_d", plant.ScopeUnit1},
		{5, "feeder_e", plant.ScopeUnit1},
		{6, "ldo_flow", plant.ScopeUnit1},
		{7, "dm7", plant.ScopeUnit1},
		{8, "dm11", plant.ScopeUnit1},
		{9, "main_steam", plant.ScopeUnit1},
		{10, "feed_water", plant.ScopeUnit1},

		{11, "feeder_a", plant.ScopeUnit2},
		{12, "feeder_b", plant.ScopeUnit2},
		{13, "feeder_c", plant.ScopeUnit2},
		{14, "feeder_d", plant.ScopeUnit2},
		{15, "feeder_e", plant.ScopeUnit2},
		{16, "ldo_flow", plant.ScopeUnit2},
		{17, "dm7", plant.ScopeUnit2},
		{18, "dm11", plant.ScopeUnit2},
		{19, "main_steam", plant.ScopeUnit2},
		{20, "feed_water", plant.ScopeUnit2},

		{21, "raw_water", plant.ScopeStation},

		{22, "unit1_gen", plant.ScopeEnergyMeter},
		{23, "unit2_gen", plant.ScopeEnergyMeter},
		{24, "1lsr01_ic1", plant.ScopeEnergyMeter},
		{25, "1lsr02_ic1", plant.ScopeEnergyMeter},
		{26, "2lsr01_ic1", plant.ScopeEnergyMeter},
		{27, "2lsr02_ic1", plant.ScopeEnergyMeter},
		{28, "rlsr01", plant.ScopeEnergyMeter},
		{29, "rlsr02", plant.ScopeEnergyMeter},
		{30, "rlsr03", plant.ScopeEnergyMeter},
		{31, "rlsr04", plant.ScopeEnergyMeter},
		{32, "1lsr01_ic2_tie", plant.ScopeEnergyMeter},
		{33, "1lsr02_ic2_tie", plant.ScopeEnergyMeter},
		{34, "2lsr01_ic2_tie", plant.ScopeEnergyMeter},
		{35, "2lsr02_ic2_tie", plant.ScopeEnergyMeter},
		{36, "SST_10", plant.ScopeEnergyMeter},
		{37, "UST_15", plant.ScopeEnergyMeter},
		{38, "UST_25", plant.ScopeEnergyMeter},
	})
}
