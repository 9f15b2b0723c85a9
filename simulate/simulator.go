// Package simulate is the depot simulator engine: one goroutine-backed Task per vehicle
// walks trips and process-plan steps against the FutureEventQueue from the eventqueue package,
// emitting a raw per-vehicle log that materialize later turns into Event records.
package simulate

import (
	"time"

	"depotsim/config"
	"depotsim/depotgraph"
	"depotsim/domain"
	"depotsim/eventqueue"
	"depotsim/strategy"
)

// LogEntry is one raw (time, event-class, area, slot, SoC-snapshot) sample of a vehicle's
// lifecycle, the shape the materializer consumes.
type LogEntry struct {
	VehicleID  string
	Kind       domain.EventKind
	AreaID     string
	Slot       int
	TimeStart  time.Time
	TimeEnd    time.Time
	SoCStart   float64
	SoCEnd     float64
	RotationID string
	// Transit marks the zero-duration bookkeeping record emitted when a vehicle moves between
	// slots; it exists for the raw log only and never survives materialization.
	Transit bool
}

// Result is everything one Simulator.Run call produces.
type Result struct {
	Log              []LogEntry
	Assignments      map[string]string // RotationID -> VehicleID
	PeakOccupancy    map[string]int    // AreaID -> peak concurrent occupancy
	WaitingPeak      int
	UnstableByType   map[string]bool
	VehicleCountUsed map[string]int // VehicleTypeID -> distinct vehicles minted
	Vehicles         map[string]*domain.Vehicle // VehicleID -> the vehicle minted/seeded during this run
	Err              error          // first sizing-fatal error (Unstable/Delayed/SoCUnderflow)
}

// Simulator drives one Depot through a set of Rotations (already steady-state-expanded by the
// caller) for one Scenario's vehicle types.
type Simulator struct {
	Epoch       time.Time
	WindowStart time.Time
	WindowEnd   time.Time
	Depot       *domain.Depot
	Graph       *depotgraph.Graph
	Queue       *eventqueue.Queue
	Params      config.SizingParams
	Policy      strategy.DispatchPolicy
	VehicleTypes map[string]*domain.VehicleType
	// MaxVehicles, when set for a VehicleTypeID, pins that type's fleet size (the
	// calculate_exact_vehicle_count second pass): that many vehicles are seeded ready at start
	// instead of minted lazily, and dispatch failure to find one raises UnstableSimulationError
	// unconditionally rather than only within the middle replay window.
	MaxVehicles map[string]int

	resources  map[string]*eventqueue.Resource
	lineStores map[string]*eventqueue.LineStore[string]

	log              []LogEntry
	assignments      map[string]string
	peakOccupancy    map[string]int
	waitingCount     int
	waitingPeak      int
	unstableByType   map[string]bool
	vehicleCountUsed map[string]int
	firstErr         error

	vehicles  map[string]*domain.Vehicle
	readyPool map[string][]*domain.Vehicle // VehicleTypeID -> vehicles parked dispatchable
	assignMsg map[string]domain.Rotation   // VehicleID -> rotation just handed to a blocked task
	tasks     map[string]*eventqueue.Task  // VehicleID -> its lifecycle Task

	slots           map[string][]bool           // DIRECT AreaID -> per-slot occupancy bitmap
	lineExitWaiters map[string][]*eventqueue.Task // LINE AreaID -> tasks waiting for their turn to exit
	kindWaiters     map[domain.ProcessKind][]*eventqueue.Task
	pendingWake     map[string]*eventqueue.Event // VehicleID -> its pending natural-completion event, while dispatchable

	vehicleSeq int
}

// New builds a Simulator for one depot/vehicle-type-set, epoch being simulation time zero and
// [windowStart,windowEnd) the middle steady-state replay.
func New(depot *domain.Depot, vehicleTypes map[string]*domain.VehicleType, epoch, windowStart, windowEnd time.Time, params config.SizingParams, policy strategy.DispatchPolicy) *Simulator {
	s := &Simulator{
		Epoch: epoch, WindowStart: windowStart, WindowEnd: windowEnd,
		Depot: depot, Graph: depotgraph.New(depot), Queue: eventqueue.New(),
		Params: params, Policy: policy, VehicleTypes: vehicleTypes,
		resources:        map[string]*eventqueue.Resource{},
		lineStores:       map[string]*eventqueue.LineStore[string]{},
		assignments:      map[string]string{},
		peakOccupancy:    map[string]int{},
		unstableByType:   map[string]bool{},
		vehicleCountUsed: map[string]int{},
		vehicles:         map[string]*domain.Vehicle{},
		readyPool:        map[string][]*domain.Vehicle{},
		assignMsg:        map[string]domain.Rotation{},
		tasks:            map[string]*eventqueue.Task{},
		slots:            map[string][]bool{},
		lineExitWaiters:  map[string][]*eventqueue.Task{},
		kindWaiters:      map[domain.ProcessKind][]*eventqueue.Task{},
		pendingWake:      map[string]*eventqueue.Event{},
	}
	for i := range depot.Areas {
		a := &depot.Areas[i]
		if a.Type == domain.AreaLine {
			s.lineStores[a.ID] = eventqueue.NewLineStore[string](s.Queue, a.Capacity, a.EntrySide == a.ExitSide)
		}
	}
	return s
}

func (s *Simulator) toSeconds(t time.Time) float64 { return t.Sub(s.Epoch).Seconds() }
func (s *Simulator) fromSeconds(sec float64) time.Time {
	return s.Epoch.Add(time.Duration(sec * float64(time.Second)))
}

func (s *Simulator) resourceFor(sr *domain.SharedResource) *eventqueue.Resource {
	if sr == nil {
		return nil
	}
	r, ok := s.resources[sr.ID]
	if !ok {
		r = eventqueue.NewResource(s.Queue, sr.Capacity)
		s.resources[sr.ID] = r
		s.scheduleSwitches(r, sr)
	}
	return r
}

func (s *Simulator) scheduleSwitches(r *eventqueue.Resource, sr *domain.SharedResource) {
	for _, sw := range sr.Switches {
		start := sw.Start.Seconds()
		end := start + sw.Duration.Seconds()
		s.Queue.Schedule(start, nil, func(any) { r.ApplySwitch(sw.CapacityDuring, sw.Preempt) })
		s.Queue.Schedule(end, nil, func(any) { r.EndSwitch() })
	}
}

func (s *Simulator) recordOccupancy(areaID string) {
	cur := s.Graph.Occupied(areaID)
	if cur > s.peakOccupancy[areaID] {
		s.peakOccupancy[areaID] = cur
	}
}

func (s *Simulator) setErr(err error) {
	if s.firstErr == nil {
		s.firstErr = err
	}
}

// seedPinnedVehicles creates, up front, exactly MaxVehicles[id] ready vehicles per pinned
// vehicle type, parked in the first area that accepts that type, so the pinned run starts with
// its fleet already in place rather than minting it on demand.
func (s *Simulator) seedPinnedVehicles() {
	for vtID, n := range s.MaxVehicles {
		vt := s.VehicleTypes[vtID]
		if vt == nil {
			continue
		}
		// Prefer a DIRECT area (simple occupancy bookkeeping, no LineStore membership to fake)
		// with room for the whole pinned fleet; fall back to any accepting area otherwise.
		var home *domain.Area
		for i := range s.Depot.Areas {
			a := &s.Depot.Areas[i]
			if a.Type != domain.AreaLine && a.AllowsVehicleType(vt.ID) && a.Capacity >= n {
				home = a
				break
			}
		}
		if home == nil {
			for i := range s.Depot.Areas {
				a := &s.Depot.Areas[i]
				if a.AllowsVehicleType(vt.ID) && a.Capacity >= n {
					home = a
					break
				}
			}
		}
		if home == nil {
			// No single area can hold the whole pinned fleet; fall back to lazy minting,
			// still capped at n by the dispatch check.
			continue
		}
		for i := 0; i < n; i++ {
			v := s.mintVehicle(vt)
			slot := s.claimSlot(home, v)
			s.Graph.Claim(home.ID)
			s.recordOccupancy(home.ID)
			v.Location = domain.Location{AreaID: home.ID, Slot: slot}
			s.registerReady(v, home.ID)
			s.vehicleCountUsed[vt.ID]++
			s.startSeededLifecycle(v, home, slot)
		}
	}
}

// Run drains the FutureEventQueue to completion and returns the accumulated Result.
func (s *Simulator) Run(rotations []domain.Rotation) Result {
	if len(s.MaxVehicles) > 0 {
		s.seedPinnedVehicles()
	}
	for _, r := range rotations {
		s.scheduleRotation(r)
	}
	s.Queue.Run(nil)
	return Result{
		Log:              s.log,
		Assignments:      s.assignments,
		PeakOccupancy:    s.peakOccupancy,
		WaitingPeak:      s.waitingPeak,
		UnstableByType:   s.unstableByType,
		VehicleCountUsed: s.vehicleCountUsed,
		Vehicles:         s.vehicles,
		Err:              s.firstErr,
	}
}
