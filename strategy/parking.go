// Package strategy picks, among the areas a vehicle is eligible to enter, which one to park in
// (minimizing expected future blocking), and picks, among the vehicles ready for dispatch,
// which one to assign to an outbound rotation.
package strategy

import (
	"sort"

	"depotsim/depotgraph"
	"depotsim/domain"
)

// ChooseParkingArea picks the best area among candidates (already filtered to ones the vehicle
// may enter and that have a free slot) to minimize expected blocking: prefer emptier DIRECT
// areas; among LINE areas, prefer the one whose deepest accessible slot is shallowest. Ties
// break by area id for determinism.
func ChooseParkingArea(g *depotgraph.Graph, candidates []*domain.Area) *domain.Area {
	var best *domain.Area
	bestScore := 0
	for _, a := range candidates {
		if g.Free(a) < 1 {
			continue
		}
		score := blockingScore(g, a)
		if best == nil || score < bestScore || (score == bestScore && a.ID < best.ID) {
			best = a
			bestScore = score
		}
	}
	return best
}

// blockingScore estimates how much parking here will trap future vehicles: for DIRECT areas
// it is the current occupancy (an emptier area traps nothing); for LINE areas it is the depth
// at which this vehicle would sit (occupancy, since it enters at the back) — the deeper, the
// more later arrivals it can trap if it leaves early.
func blockingScore(g *depotgraph.Graph, a *domain.Area) int {
	switch a.Type {
	case domain.AreaDirectOneSide, domain.AreaDirectTwoSide:
		return g.Occupied(a.ID)
	case domain.AreaLine:
		return g.Occupied(a.ID)
	default:
		return g.Occupied(a.ID)
	}
}

// ReadyVehicle is one candidate for dispatch against an upcoming rotation.
type ReadyVehicle struct {
	Vehicle *domain.Vehicle
	Area    *domain.Area
	// BlocksCount is how many other currently-parked vehicles this one's departure would
	// free up (e.g. the count of vehicles parked behind it in the same LINE lane).
	BlocksCount int
}

// ChooseDispatchVehicle picks, among ready candidates (already filtered to matching vehicle
// type and sufficient SoC), the one that blocks the most other vehicles — removing it unblocks
// the most future dispatches (the SMART heuristic). Ties break by vehicle id.
func ChooseDispatchVehicle(candidates []ReadyVehicle) (ReadyVehicle, bool) {
	if len(candidates) == 0 {
		return ReadyVehicle{}, false
	}
	sorted := make([]ReadyVehicle, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].BlocksCount != sorted[j].BlocksCount {
			return sorted[i].BlocksCount > sorted[j].BlocksCount
		}
		return sorted[i].Vehicle.ID < sorted[j].Vehicle.ID
	})
	return sorted[0], true
}

// SufficientSoC reports whether soc covers a rotation of totalDistanceKM at the vehicle type's
// rated consumption, leaving at least reserve SoC at the end.
func SufficientSoC(vt *domain.VehicleType, soc, totalDistanceKM, reserve float64) bool {
	if vt.BatteryCapacityKWh <= 0 {
		return false
	}
	needed := vt.ConsumptionKWhPerKM * totalDistanceKM / vt.BatteryCapacityKWh
	return soc-needed >= reserve
}
