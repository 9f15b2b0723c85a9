// Package depotgraph holds the live instance of one Depot — its areas, the process plan, and
// the vehicles currently occupying slots — and answers the two questions the dispatch strategy
// and simulator ask repeatedly: which areas can run a given process for a given vehicle type,
// and whether a specific vehicle can currently park in a specific area.
package depotgraph

import (
	"sort"

	"depotsim/domain"
)

// Graph wraps one Depot with the live occupancy state the simulator mutates as vehicles move.
type Graph struct {
	Depot *domain.Depot

	// occupied maps an AreaID to the number of slots currently in use; kept separate from
	// domain.Area so the depot's static definition stays a pure value.
	occupied map[string]int
}

// New builds a Graph around a Depot snapshot.
func New(depot *domain.Depot) *Graph {
	return &Graph{Depot: depot, occupied: map[string]int{}}
}

// Occupied reports how many slots of an area are currently in use.
func (g *Graph) Occupied(areaID string) int { return g.occupied[areaID] }

// Free reports how many slots of an area are currently free.
func (g *Graph) Free(area *domain.Area) int {
	return area.Capacity - g.occupied[area.ID]
}

// Claim marks one slot of area as occupied.
func (g *Graph) Claim(areaID string) { g.occupied[areaID]++ }

// Vacate marks one slot of area as free.
func (g *Graph) Vacate(areaID string) {
	if g.occupied[areaID] > 0 {
		g.occupied[areaID]--
	}
}

// areaPriority ranks an area for selection: DIRECT areas first (index-stable within type),
// then LINE areas matching the standard block length, then any remaining LINE area.
func areaPriority(a *domain.Area, standardBlockLength int) int {
	switch a.Type {
	case domain.AreaDirectOneSide, domain.AreaDirectTwoSide:
		return 0
	case domain.AreaLine:
		if a.BlockLength == standardBlockLength {
			return 1
		}
		return 2
	default:
		return 3
	}
}

// AreasFor returns the areas of the depot that can run processKind for vehicleType, ordered by
// selection priority.
func (g *Graph) AreasFor(vehicleType *domain.VehicleType, processKind domain.ProcessKind, standardBlockLength int) []*domain.Area {
	var candidates []*domain.Area
	for i := range g.Depot.Areas {
		a := &g.Depot.Areas[i]
		if a.AllowsProcess(processKind) && a.AllowsVehicleType(vehicleType.ID) {
			candidates = append(candidates, a)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return areaPriority(candidates[i], standardBlockLength) < areaPriority(candidates[j], standardBlockLength)
	})
	return candidates
}

// CanPark reports whether vehicle can currently park in area: the vehicle type matches the
// area's filter, the area has at least one free accessible slot, and every process remaining
// in the vehicle's plan suffix is available in some reachable successor area.
//
// "Reachable successor area" is evaluated structurally: for each later process kind in
// remainingPlan, at least one area in the whole depot must allow it for this vehicle type —
// the depot graph is fully connected by the shared waiting area, so any area that permits a
// process is reachable from any other.
func (g *Graph) CanPark(vehicle *domain.Vehicle, area *domain.Area, remainingPlan []domain.Process, standardBlockLength int) bool {
	if !area.AllowsVehicleType(vehicle.Type.ID) {
		return false
	}
	if g.Free(area) < 1 {
		return false
	}
	for _, proc := range remainingPlan {
		if len(g.AreasFor(vehicle.Type, proc.Kind, standardBlockLength)) == 0 {
			return false
		}
	}
	return true
}
