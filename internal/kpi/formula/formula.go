// Package formula holds the pure per-day KPI arithmetic. Every function maps
// totalizer difference maps to indicator maps with no storage access, so the
// whole library is testable with literal inputs.
package formula

import (
	"math"

	"github.com/stationops/pims/internal/plant"
)

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

func d(diffs map[string]float64, key string) float64 {
	return diffs[key]
}

// UnitKPIs derives the fuel, water and steam indicators for one unit from its
// scope diffs and the unit's generation in MWh. Every ratio guards a
// nonpositive denominator to zero rather than erroring: a standing unit has
// no meaningful specific consumption.
func UnitKPIs(diffs map[string]float64, genMWh float64) map[string]float64 {
	coal := d(diffs, "feeder_a") + d(diffs, "feeder_b") + d(diffs, "feeder_c") +
		d(diffs, "feeder_d") + d(diffs, "feeder_e")
	oil := d(diffs, "ldo_flow")
	dmWater := d(diffs, "dm7") + d(diffs, "dm11")
	steam := d(diffs, "main_steam")

	specificCoal, specificOil, specificSteam := 0.0, 0.0, 0.0
	if genMWh > 0 {
		specificCoal = coal / genMWh
		specificOil = oil / genMWh
		specificSteam = steam / genMWh
	}
	specificDM := 0.0
	if steam > 0 {
		specificDM = dmWater / steam * 100
	}

	return map[string]float64{
		"coal_consumption":    Round(coal, 3),
		"specific_coal":       Round(specificCoal, 6),
		"oil_consumption":     Round(oil, 3),
		"specific_oil":        Round(specificOil, 6),
		"dm_water":            Round(dmWater, 3),
		"steam_generation":    Round(steam, 3),
		"specific_steam":      Round(specificSteam, 6),
		"specific_dm_percent": Round(specificDM, 3),
	}
}

// EnergyKPIs derives generation, auxiliary consumption and PLF from the
// energy meter diffs. Tie-line and transformer meters are netted per the
// station single-line diagram; SST_10 and UST_15 are added twice into the
// station auxiliary on purpose, matching the commissioned balance sheet.
func EnergyKPIs(diffs map[string]float64, cfg plant.Config) map[string]float64 {
	unit1UnitAux := d(diffs, "1lsr01_ic1") + d(diffs, "1lsr02_ic1") +
		d(diffs, "1lsr01_ic2_tie") - d(diffs, "SST_10") - d(diffs, "UST_15")

	unit2UnitAux := d(diffs, "2lsr01_ic1") + d(diffs, "2lsr02_ic1") +
		d(diffs, "2lsr01_ic2_tie") - d(diffs, "UST_25")

	stationAux := d(diffs, "rlsr01") + d(diffs, "rlsr02") + d(diffs, "rlsr03") + d(diffs, "rlsr04") -
		d(diffs, "1lsr01_ic2_tie") - d(diffs, "1lsr02_ic2_tie") -
		d(diffs, "2lsr01_ic2_tie") - d(diffs, "2lsr02_ic2_tie") +
		d(diffs, "SST_10") + d(diffs, "UST_15") + d(diffs, "UST_25") +
		d(diffs, "SST_10") + d(diffs, "UST_15")

	stationTie := d(diffs, "1lsr01_ic2_tie") + d(diffs, "1lsr02_ic2_tie") +
		d(diffs, "2lsr01_ic2_tie") + d(diffs, "2lsr02_ic2_tie")

	unit1Gen := d(diffs, "unit1_gen")
	unit2Gen := d(diffs, "unit2_gen")

	// Station auxiliary splits evenly between the two units.
	unit1Aux := unit1UnitAux + stationAux/2
	unit2Aux := unit2UnitAux + stationAux/2

	unit1AuxPct, unit2AuxPct := 0.0, 0.0
	if unit1Gen > 0 {
		unit1AuxPct = unit1Aux / unit1Gen * 100
	}
	if unit2Gen > 0 {
		unit2AuxPct = unit2Aux / unit2Gen * 100
	}

	unit1PLF, unit2PLF := 0.0, 0.0
	if unit1Gen > 0 {
		unit1PLF = unit1Gen / cfg.UnitRatedMWhPerDay * 100
	}
	if unit2Gen > 0 {
		unit2PLF = unit2Gen / cfg.UnitRatedMWhPerDay * 100
	}

	return map[string]float64{
		"unit1_generation":          Round(unit1Gen, 3),
		"unit2_generation":          Round(unit2Gen, 3),
		"total_station_aux_mwh":     Round(stationAux, 3),
		"total_station_tie_mwh":     Round(stationTie, 3),
		"unit1_aux_consumption_mwh": Round(unit1Aux, 3),
		"unit2_aux_consumption_mwh": Round(unit2Aux, 3),
		"unit1_aux_percent":         Round(unit1AuxPct, 3),
		"unit2_aux_percent":         Round(unit2AuxPct, 3),
		"unit1_plf_percent":         Round(unit1PLF, 3),
		"unit2_plf_percent":         Round(unit2PLF, 3),
	}
}

// StationWaterKPIs derives raw water indicators from the station scope diffs
// and the two unit generations in MWh.
func StationWaterKPIs(diffs map[string]float64, gen1, gen2 float64) map[string]float64 {
	rawWater := d(diffs, "raw_water")
	totalGen := gen1 + gen2

	spRawWater := 0.0
	if totalGen > 0 {
		spRawWater = rawWater * 1000 / totalGen
	}

	return map[string]float64{
		"total_raw_water_used_m3": Round(rawWater, 3),
		"avg_raw_water_m3_per_hr": Round(rawWater/24, 3),
		"sp_raw_water_l_per_kwh":  Round(spRawWater, 3),
	}
}

// StationKPIs combines the two unit maps and the station water map into the
// station scope: straight sums for quantities, generation-weighted means for
// specifics, steam-weighted mean for DM percentage.
func StationKPIs(unit1, unit2, water map[string]float64, cfg plant.Config) map[string]float64 {
	station := make(map[string]float64, len(unit1)+len(water)+4)

	for _, name := range []string{
		"generation", "coal_consumption", "oil_consumption", "aux_power",
		"steam_generation", "dm_water", "running_hour",
		"planned_outage_hour", "strategic_outage_hour",
	} {
		station[name] = unit1[name] + unit2[name]
	}

	totalGen := station["generation"]
	for _, name := range []string{"specific_coal", "specific_oil", "specific_steam", "aux_power_percent"} {
		if totalGen > 0 {
			station[name] = (unit1[name]*unit1["generation"] + unit2[name]*unit2["generation"]) / totalGen
		} else {
			station[name] = 0
		}
	}

	if totalSteam := station["steam_generation"]; totalSteam > 0 {
		station["specific_dm_percent"] = (unit1["specific_dm_percent"]*unit1["steam_generation"] +
			unit2["specific_dm_percent"]*unit2["steam_generation"]) / totalSteam
	} else {
		station["specific_dm_percent"] = 0
	}

	if totalGen > 0 {
		station["plf_percent"] = totalGen / cfg.StationRatedMWhPerDay * 100
	} else {
		station["plf_percent"] = 0
	}

	station["plant_availability_percent"] = (unit1["plant_availability_percent"] +
		unit2["plant_availability_percent"]) / 2
	station["planned_outage_percent"] = (unit1["planned_outage_percent"] +
		unit2["planned_outage_percent"]) / 2

	for name, value := range water {
		station[name] = value
	}

	station["stn_net_export_mu"] = station["generation"] - station["aux_power"]

	return station
}
