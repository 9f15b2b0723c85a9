// Package sizing implements the depot capacity sizer: a two-phase search, per vehicle type, over
// the number and kind of parking areas a depot needs so that every rotation dispatches on time
// without minting surplus vehicles.
//
// Every candidate configuration is probed with a freshly built domain.Depot and Simulator, so
// no state leaks from one iteration into the next.
package sizing

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"time"

	"depotsim/config"
	"depotsim/domain"
	"depotsim/simulate"
	"depotsim/strategy"

	"github.com/sirupsen/logrus"
)

// dispatchKinds are the process kinds Phase A/B's direct/line trade-off geometry applies to:
// anything a vehicle can be claimed out of, plus CHARGE/PRECONDITION since in practice vehicles
// charge in the same stall they wait to depart from.
var dispatchKinds = []domain.ProcessKind{
	domain.ProcessCharge, domain.ProcessPrecondition, domain.ProcessStandby, domain.ProcessStandbyDeparture,
}

// serviceKinds are processes sizing does not vary the footprint of: they get one fixed,
// deliberately oversized area so they never become the binding constraint. The sizer optimizes
// the dispatch-geometry trade-off; a depot's shunt/clean bay count is a separate sizing
// question not varied here.
var serviceKinds = []domain.ProcessKind{domain.ProcessShunt, domain.ProcessClean}

// VehicleTypeResult is one vehicle type's chosen configuration.
type VehicleTypeResult struct {
	VehicleTypeID string
	PeakDirect    int
	LineCount     int
	DirectPeak    int // cur_direct_peak of the winning configuration
	FloorAreaM2   float64
	Areas         []domain.Area
	VehicleCount  int
}

// areaPerDirectSlotM2 and areaPerLineSlotM2 estimate the footprint per parking slot from
// vehicle geometry: a 45-degree angled direct bay carries a diagonal factor, a nose-to-tail
// line slot has no angle overhead.
func areaPerDirectSlotM2(vt *domain.VehicleType) float64 {
	return vt.LengthM * vt.WidthM * math.Sqrt2
}

func areaPerLineSlotM2(vt *domain.VehicleType) float64 {
	return vt.LengthM * vt.WidthM
}

func areaOfDirect(n int, vt *domain.VehicleType) float64 {
	return float64(n) * areaPerDirectSlotM2(vt)
}

// RepetitionPeriod resolves the repetition_period knob (day/week/auto) to a concrete
// duration, exported so cmd/depotsim can reuse the exact window the sizer sized against.
func RepetitionPeriod(mode config.RepetitionPeriodMode, rotations []domain.Rotation) time.Duration {
	switch mode {
	case config.RepetitionDay:
		return 24 * time.Hour
	case config.RepetitionWeek:
		return 7 * 24 * time.Hour
	default:
		return simulate.AutoDetectPeriod(rotations)
	}
}

// SteadyStateWindow returns the middle replay window the simulator treats as authoritative.
func SteadyStateWindow(rotations []domain.Rotation, period time.Duration) (windowStart, windowEnd time.Time) {
	if len(rotations) == 0 {
		now := time.Time{}
		return now, now.Add(period)
	}
	windowStart = rotations[0].DepartureTime()
	for _, r := range rotations[1:] {
		if d := r.DepartureTime(); d.Before(windowStart) {
			windowStart = d
		}
	}
	return windowStart, windowStart.Add(period)
}

func rotationsOfType(all []domain.Rotation, vehicleTypeID string) []domain.Rotation {
	var out []domain.Rotation
	for _, r := range all {
		if r.VehicleTypeID == vehicleTypeID {
			out = append(out, r)
		}
	}
	return out
}

// buildPhaseAAreas returns the single oversized area Phase A uses to measure peak_direct: one
// DIRECT_ONESIDE area permitting every process in the plan, with the given capacity (the
// caller passes three times the rotation count, so it can never be the binding constraint).
func buildPhaseAAreas(plan domain.Plan, capacity int) []domain.Area {
	var kinds []domain.ProcessKind
	for _, p := range plan.Processes {
		kinds = append(kinds, p.Kind)
	}
	if capacity < 1 {
		capacity = 1
	}
	return []domain.Area{{
		ID: "phaseA-direct", Type: domain.AreaDirectOneSide, Capacity: capacity, PermittedProcesses: kinds,
	}}
}

// buildPhaseBAreas returns one configuration: i LINE areas of block length B permitting the
// dispatch-relevant processes, a fallback direct area of capacity peakDirect (always
// provisioned during the trial so the run can never fail for lack of space — only the
// after-the-fact occupancy determines the real floor-area cost), plus one oversized service
// area for SHUNT/CLEAN.
func buildPhaseBAreas(plan domain.Plan, lineCount, blockLength, peakDirect, serviceCapacity int) []domain.Area {
	var areas []domain.Area
	for i := 0; i < lineCount; i++ {
		areas = append(areas, domain.Area{
			ID: "line-" + strconv.Itoa(i), Type: domain.AreaLine, Capacity: blockLength, BlockLength: blockLength,
			PermittedProcesses: dispatchKinds, EntrySide: domain.SideFront, ExitSide: domain.SideFront,
		})
	}
	direct := peakDirect
	if direct < 1 {
		direct = 1
	}
	areas = append(areas, domain.Area{
		ID: "direct-fallback", Type: domain.AreaDirectOneSide, Capacity: direct, PermittedProcesses: dispatchKinds,
	})
	if hasAny(plan, serviceKinds) {
		sc := serviceCapacity
		if sc < 1 {
			sc = 1
		}
		areas = append(areas, domain.Area{
			ID: "service-area", Type: domain.AreaDirectOneSide, Capacity: sc, PermittedProcesses: serviceKinds,
		})
	}
	return areas
}

func hasAny(plan domain.Plan, kinds []domain.ProcessKind) bool {
	for _, p := range plan.Processes {
		for _, k := range kinds {
			if p.Kind == k {
				return true
			}
		}
	}
	return false
}

func runOnce(basePlan domain.Plan, areas []domain.Area, vt *domain.VehicleType, rotations []domain.Rotation, params config.SizingParams, policy strategy.DispatchPolicy, pinnedCount int) simulate.Result {
	period := RepetitionPeriod(config.RepetitionPeriodMode(params.RepetitionPeriod), rotations)
	windowStart, windowEnd := SteadyStateWindow(rotations, period)
	expanded := simulate.ExpandSteadyState(rotations, period)
	epoch := windowStart.Add(-period)

	depot := &domain.Depot{ID: "sizing-depot", Plan: basePlan, Areas: areas}
	vts := map[string]*domain.VehicleType{vt.ID: vt}
	s := simulate.New(depot, vts, epoch, windowStart, windowEnd, params, policy)
	if pinnedCount > 0 {
		s.MaxVehicles = map[string]int{vt.ID: pinnedCount}
	}
	return s.Run(expanded)
}

// SizeVehicleType runs Phase A then Phase B for one vehicle type against one depot's base Plan,
// choosing the minimum-floor-area configuration that dispatches every rotation without surplus
// vehicles or a fatal error.
func SizeVehicleType(basePlan domain.Plan, vt *domain.VehicleType, rotations []domain.Rotation, params config.SizingParams, policy strategy.DispatchPolicy, log *logrus.Entry) (VehicleTypeResult, error) {
	typeRotations := rotationsOfType(rotations, vt.ID)
	if len(typeRotations) == 0 {
		return VehicleTypeResult{VehicleTypeID: vt.ID}, nil
	}

	// Phase A.
	phaseARes := runOnce(basePlan, buildPhaseAAreas(basePlan, len(typeRotations)*3), vt, typeRotations, params, policy, 0)
	if phaseARes.Err != nil {
		return VehicleTypeResult{}, errors.New("phase A baseline run itself failed: " + phaseARes.Err.Error())
	}
	peakDirect := 0
	for _, v := range phaseARes.PeakOccupancy {
		if v > peakDirect {
			peakDirect = v
		}
	}
	baselineVehicleCount := phaseARes.VehicleCountUsed[vt.ID]
	if log != nil {
		log.WithField("peak_direct", peakDirect).Info("sizing: phase A complete")
	}

	aDirect := areaPerDirectSlotM2(vt)
	aLine := areaPerLineSlotM2(vt)
	B := params.StandardBlockLength
	if B < 1 {
		B = 1
	}
	maxLines := int(math.Ceil(float64(peakDirect) * aDirect / (float64(B) * aLine)))
	if maxLines < 1 {
		maxLines = 1
	}

	type candidate struct {
		lineCount, directPeak int
		floorArea             float64
		areas                 []domain.Area
		vehicleCount          int
	}
	var best *candidate

	for i := 1; i <= maxLines; i++ {
		areas := buildPhaseBAreas(basePlan, i, B, peakDirect, len(typeRotations))
		res := runOnce(basePlan, areas, vt, typeRotations, params, policy, 0)
		if res.Err != nil {
			continue // rejected: Unstable/Delayed/SoCUnderflow
		}
		if res.VehicleCountUsed[vt.ID] > baselineVehicleCount {
			continue // rejected: produced surplus vehicles
		}
		curDirectPeak := res.PeakOccupancy["direct-fallback"]
		floor := float64(i)*float64(B)*aLine + areaOfDirect(curDirectPeak, vt)
		if best == nil || floor < best.floorArea {
			best = &candidate{lineCount: i, directPeak: curDirectPeak, floorArea: floor, areas: areas, vehicleCount: res.VehicleCountUsed[vt.ID]}
		}
	}
	if best == nil {
		// Every line count was rejected; fall back to the Phase A all-direct baseline.
		areas := buildPhaseBAreas(basePlan, 0, B, peakDirect, len(typeRotations))
		best = &candidate{lineCount: 0, directPeak: peakDirect, floorArea: areaOfDirect(peakDirect, vt), areas: areas, vehicleCount: baselineVehicleCount}
	}

	return VehicleTypeResult{
		VehicleTypeID: vt.ID,
		PeakDirect:    peakDirect,
		LineCount:     best.lineCount,
		DirectPeak:    best.directPeak,
		FloorAreaM2:   best.floorArea,
		Areas:         best.areas,
		VehicleCount:  best.vehicleCount,
	}, nil
}

// ExactVehicleCount re-runs the chosen configuration with the vehicle count pinned from the
// first run (`calculate_exact_vehicle_count`), returning an error if the pinned run cannot
// cover every rotation with that fleet.
func ExactVehicleCount(basePlan domain.Plan, vt *domain.VehicleType, rotations []domain.Rotation, params config.SizingParams, policy strategy.DispatchPolicy, chosen VehicleTypeResult) (VehicleTypeResult, error) {
	typeRotations := rotationsOfType(rotations, vt.ID)
	res := runOnce(basePlan, chosen.Areas, vt, typeRotations, params, policy, chosen.VehicleCount)
	if res.Err != nil {
		return chosen, errors.New("pinned-vehicle-count run is unstable: " + res.Err.Error())
	}
	chosen.VehicleCount = res.VehicleCountUsed[vt.ID]
	return chosen, nil
}

// SizeScenario sizes every vehicle type present in one depot's rotations and unions the
// per-type area lists into the final configuration.
func SizeScenario(depot *domain.Depot, vehicleTypes map[string]*domain.VehicleType, rotations []domain.Rotation, params config.SizingParams, policy strategy.DispatchPolicy, log *logrus.Entry) (map[string]VehicleTypeResult, error) {
	results := map[string]VehicleTypeResult{}
	ids := make([]string, 0, len(vehicleTypes))
	for id := range vehicleTypes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		vt := vehicleTypes[id]
		res, err := SizeVehicleType(depot.Plan, vt, rotations, params, policy, log)
		if err != nil {
			return nil, err
		}
		if params.CalculateExactVehicleCount && len(res.Areas) > 0 {
			res, err = ExactVehicleCount(depot.Plan, vt, rotations, params, policy, res)
			if err != nil {
				return nil, err
			}
		}
		results[id] = res
	}
	return results, nil
}
