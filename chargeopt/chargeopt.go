// Package chargeopt implements the peak-shaving charging optimizer: post-processing of a simulated
// vehicle's CHARGE events to flatten coincident depot-wide power draw without changing how much
// energy any vehicle receives.
//
// The preferred solver wraps rwcarlsen/optim's pattern-search Method over the single
// peak-capacity variable; a direct binary search over the same feasibility check is the
// fallback when the pattern search fails to converge inside its evaluation budget.
package chargeopt

import (
	"math"
	"sort"
	"time"

	"depotsim/config"
	"depotsim/domain"

	"github.com/rwcarlsen/optim"
	"github.com/rwcarlsen/optim/pattern"
	"github.com/sirupsen/logrus"
)

// packetEnergyKWh is one quantized unit of delivered energy: step_seconds/3600 * kW_packet.
func packetEnergyKWh(p config.ChargeOptParams) float64 {
	return p.TimeStep.Hours() * p.PowerQuantumKW
}

// eventWindow is one CHARGE event's quantized presence and packet requirement.
type eventWindow struct {
	event             *domain.Event
	steps             []int // global time-step indices where presence[t]=1
	maxPacketsPerStep int
	packetsRequired   int
}

// CreateSlack shrinks each (CHARGE, STANDBY_DEPARTURE) pair on the same vehicle's STANDBY_DEPARTURE
// to `slack` and extends the preceding CHARGE to fill the freed interval, widening the window the
// optimizer has to move packets into. Events are matched by
// vehicle and adjacency; events of other kinds, or charge events with no following standby-
// departure, are returned unchanged.
func CreateSlack(events []domain.Event, slack time.Duration) []domain.Event {
	byVehicle := map[string][]int{}
	for i, e := range events {
		byVehicle[e.VehicleID] = append(byVehicle[e.VehicleID], i)
	}
	out := append([]domain.Event{}, events...)
	for _, idxs := range byVehicle {
		sort.Slice(idxs, func(a, b int) bool { return out[idxs[a]].TimeStart.Before(out[idxs[b]].TimeStart) })
		for k := 0; k+1 < len(idxs); k++ {
			chg := &out[idxs[k]]
			sby := &out[idxs[k+1]]
			if chg.Kind != domain.EventCharge || sby.Kind != domain.EventStandbyDeparture {
				continue
			}
			if !chg.TimeEnd.Equal(sby.TimeStart) {
				continue
			}
			sbyDur := sby.TimeEnd.Sub(sby.TimeStart)
			if sbyDur <= slack {
				continue
			}
			freed := sbyDur - slack
			chg.TimeEnd = chg.TimeEnd.Add(freed)
			sby.TimeStart = chg.TimeEnd
		}
	}
	return out
}

// quantizeEvents builds one eventWindow per CHARGE event with a positive energy requirement.
// A window's per-step packet limit comes from the event's own average delivered power — the
// event carries no reference back to the Area/Process that rated it, so the average power
// actually observed during simulation stands in for the rating that produced it.
func quantizeEvents(events []domain.Event, epoch time.Time, vehicles map[string]*domain.Vehicle, params config.ChargeOptParams) []eventWindow {
	step := params.TimeStep.Seconds()
	packetE := packetEnergyKWh(params)
	var windows []eventWindow
	for i := range events {
		e := &events[i]
		if e.Kind != domain.EventCharge {
			continue
		}
		dur := e.TimeEnd.Sub(e.TimeStart).Seconds()
		if dur <= 0 {
			continue
		}
		var vt *domain.VehicleType
		if veh := vehicles[e.VehicleID]; veh != nil {
			vt = veh.Type
		}
		deliveredKWh := 0.0
		if vt != nil {
			deliveredKWh = (e.SoCEnd - e.SoCStart) * vt.BatteryCapacityKWh
		}
		if deliveredKWh <= 0 {
			continue
		}
		packetsRequired := int(math.Floor(deliveredKWh/packetE + 1e-9))
		if packetsRequired <= 0 {
			continue
		}
		avgPowerKW := deliveredKWh / (dur / 3600.0)
		maxPackets := int(math.Floor(avgPowerKW/params.PowerQuantumKW + 1e-9))
		if maxPackets <= 0 {
			maxPackets = 1
		}

		startStep := int(math.Floor(e.TimeStart.Sub(epoch).Seconds() / step))
		endStep := int(math.Ceil(e.TimeEnd.Sub(epoch).Seconds() / step))
		var steps []int
		for t := startStep; t < endStep; t++ {
			stepStart := epoch.Add(time.Duration(float64(t) * step * float64(time.Second)))
			stepEnd := stepStart.Add(params.TimeStep)
			if !stepStart.Before(e.TimeStart) && !stepEnd.After(e.TimeEnd) {
				steps = append(steps, t)
			}
		}
		if len(steps) == 0 {
			steps = []int{startStep}
		}
		windows = append(windows, eventWindow{event: e, steps: steps, maxPacketsPerStep: maxPackets, packetsRequired: packetsRequired})
	}
	return windows
}

// deadlineOf returns a window's last presence step, the point by which every required packet
// must have been delivered.
func deadlineOf(w eventWindow) int { return w.steps[len(w.steps)-1] }

// schedule runs the earliest-deadline-first greedy pass the peak-capped constraints reduce to once the
// single peak value is fixed: at every globally ordered time step, the still-unsatisfied events
// present at that step are served in increasing deadline order, each capped by its own
// max_packets_per_step and the step's remaining share of peak. It returns the per-(event,step)
// packet assignment and whether every event's packets_required was fully delivered by its
// deadline.
func schedule(windows []eventWindow, peak int) (assignment map[int]map[int]int, ok bool) {
	remaining := make([]int, len(windows))
	for i, w := range windows {
		remaining[i] = w.packetsRequired
	}
	stepSet := map[int][]int{} // step -> window indices present
	for i, w := range windows {
		for _, t := range w.steps {
			stepSet[t] = append(stepSet[t], i)
		}
	}
	var allSteps []int
	for t := range stepSet {
		allSteps = append(allSteps, t)
	}
	sort.Ints(allSteps)

	assignment = map[int]map[int]int{}
	for _, t := range allSteps {
		active := stepSet[t]
		sort.Slice(active, func(a, b int) bool { return deadlineOf(windows[active[a]]) < deadlineOf(windows[active[b]]) })
		capLeft := peak
		for _, wi := range active {
			if remaining[wi] <= 0 || capLeft <= 0 {
				continue
			}
			take := remaining[wi]
			if take > windows[wi].maxPacketsPerStep {
				take = windows[wi].maxPacketsPerStep
			}
			if take > capLeft {
				take = capLeft
			}
			if take <= 0 {
				continue
			}
			if assignment[wi] == nil {
				assignment[wi] = map[int]int{}
			}
			assignment[wi][t] = take
			remaining[wi] -= take
			capLeft -= take
		}
	}
	for _, r := range remaining {
		if r > 0 {
			return assignment, false
		}
	}
	return assignment, true
}

// upperBoundPeak is a peak value always sufficient for feasibility: every event gets its own full
// per-step cap simultaneously.
func upperBoundPeak(windows []eventWindow) int {
	total := 0
	for _, w := range windows {
		total += w.maxPacketsPerStep
	}
	if total < 1 {
		total = 1
	}
	return total
}

// binarySearchPeak is the documented fallback solver: a direct binary search for the smallest
// feasible peak, using the same EDF feasibility check the preferred solver's objective wraps.
func binarySearchPeak(windows []eventWindow) (int, map[int]map[int]int) {
	lo, hi := 1, upperBoundPeak(windows)
	var bestAssignment map[int]map[int]int
	for lo < hi {
		mid := (lo + hi) / 2
		if assignment, ok := schedule(windows, mid); ok {
			hi = mid
			bestAssignment = assignment
		} else {
			lo = mid + 1
		}
	}
	assignment, ok := schedule(windows, lo)
	if !ok {
		return upperBoundPeak(windows), bestAssignment
	}
	return lo, assignment
}

// solvePeak runs the preferred pattern-search solver over the scalar peak variable, projected
// onto an integer mesh; infeasible candidates are penalized so the search climbs toward a
// feasible peak. If the search doesn't land on a feasible point within its evaluation budget, it
// falls back to a direct binary search and logs a warning.
func solvePeak(windows []eventWindow, params config.ChargeOptParams, log *logrus.Entry) (int, map[int]map[int]int, bool) {
	upper := upperBoundPeak(windows)
	objective := optim.Func(func(x []float64) float64 {
		p := int(math.Round(x[0]))
		if p < 1 {
			p = 1
		}
		if p > upper {
			p = upper
		}
		if _, ok := schedule(windows, p); ok {
			return float64(p)
		}
		return float64(p) + float64(upper)*10
	})

	start := &optim.Point{Pos: []float64{float64(upper)}, Val: math.Inf(1)}
	mesh := &optim.IntMesh{Mesh: &optim.InfMesh{StepSize: 1}}
	method := pattern.New(start, pattern.Poll2N)
	solver := &optim.Solver{Method: method, Obj: objective, Mesh: mesh, MaxEval: params.SolverMaxEvaluations}

	usedFallback := false
	if err := solver.Run(); err != nil && log != nil {
		log.WithError(err).Warn("pattern search stopped before converging, falling back")
	}

	if best := solver.Best(); best != nil && best.Val <= float64(upper) {
		p := int(math.Round(best.Pos[0]))
		if p < 1 {
			p = 1
		}
		if assignment, ok := schedule(windows, p); ok {
			return p, assignment, usedFallback
		}
	}

	if log != nil {
		log.Warn("preferred peak-shaving solver did not converge, using binary-search fallback")
	}
	usedFallback = true
	p, assignment := binarySearchPeak(windows)
	return p, assignment, usedFallback
}

// writeBack turns one event's optimized per-step packet assignment into a power-vs-time series,
// integrates it into a SoC-vs-time series, and scales that series so SoC at the event's end
// exactly matches the originally simulated soc_end, conserving delivered energy under quantization.
func writeBack(w eventWindow, perStep map[int]int, epoch time.Time, vt *domain.VehicleType, params config.ChargeOptParams) {
	if vt == nil || vt.BatteryCapacityKWh <= 0 {
		return
	}
	packetE := packetEnergyKWh(params)
	times := make([]time.Time, 0, len(w.steps)+1)
	socs := make([]float64, 0, len(w.steps)+1)

	soc := w.event.SoCStart
	times = append(times, w.event.TimeStart)
	socs = append(socs, soc)
	for _, t := range w.steps {
		packets := perStep[t]
		deliveredKWh := float64(packets) * packetE
		soc += deliveredKWh / vt.BatteryCapacityKWh
		stepStart := epoch.Add(time.Duration(float64(t)*params.TimeStep.Seconds()) * time.Second)
		stepEnd := stepStart.Add(params.TimeStep)
		times = append(times, stepEnd)
		socs = append(socs, soc)
	}

	if soc > w.event.SoCStart {
		scale := (w.event.SoCEnd - w.event.SoCStart) / (soc - w.event.SoCStart)
		for i, s := range socs {
			socs[i] = w.event.SoCStart + (s-w.event.SoCStart)*scale
		}
	}
	w.event.Series = &domain.TimeSeries{Time: times, SoC: socs}
}

// Optimize runs the full peak-shaving pipeline (slack creation, quantization, solve,
// write-back) over one depot's simulated events and returns the updated slice. Apart from CHARGE
// events, only a STANDBY_DEPARTURE that directly follows a CHARGE is changed (shortened by slack
// creation); other kinds pass through untouched. An input with no CHARGE event to optimize
// returns with no error.
func Optimize(events []domain.Event, vehicles map[string]*domain.Vehicle, epoch time.Time, params config.ChargeOptParams, log *logrus.Entry) ([]domain.Event, error) {
	slackened := CreateSlack(events, params.StandbyDepartureSlack)
	windows := quantizeEvents(slackened, epoch, vehicles, params)
	if len(windows) == 0 {
		return slackened, nil
	}

	for _, w := range windows {
		if w.maxPacketsPerStep*len(w.steps) < w.packetsRequired {
			if log != nil {
				log.WithError(&domain.InfeasibleError{Reason: "event cannot receive its required energy within its presence window"}).
					Warn("peak-shaving batch left unchanged")
			}
			return events, &domain.InfeasibleError{Reason: "charging batch has no feasible packet allocation"}
		}
	}

	_, assignment, usedFallback := solvePeak(windows, params, log)
	if usedFallback && log != nil {
		log.Warn("preferred optim pattern-search solver unavailable for this batch, used binary-search fallback")
	}

	for i, w := range windows {
		var vt *domain.VehicleType
		if veh := vehicles[w.event.VehicleID]; veh != nil {
			vt = veh.Type
		}
		writeBack(w, assignment[i], epoch, vt, params)
	}
	return slackened, nil
}
