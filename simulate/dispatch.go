package simulate

import (
	"fmt"

	"depotsim/domain"
	"depotsim/eventqueue"
	"depotsim/strategy"
)

// scheduleRotation arranges a dispatch check at departure minus the configured lookahead, the
// moment the SMART strategy starts looking for a vehicle to cover the rotation.
func (s *Simulator) scheduleRotation(r domain.Rotation) {
	if len(r.Trips) == 0 {
		return
	}
	dep := s.toSeconds(r.DepartureTime())
	checkTime := dep - s.Params.DispatchLookahead.Seconds()
	s.Queue.Schedule(checkTime, nil, func(any) { s.dispatchCheck(r) })
}

func (s *Simulator) dispatchCheck(r domain.Rotation) {
	vt := s.VehicleTypes[r.VehicleTypeID]
	if vt == nil {
		return
	}
	totalDistance := 0.0
	for _, tr := range r.Trips {
		totalDistance += tr.DistanceKM
	}

	var candidates []strategy.ReadyVehicle
	for _, v := range s.readyPool[r.VehicleTypeID] {
		if !s.dispatchEligible(v) {
			continue
		}
		if !strategy.SufficientSoC(vt, v.SoC, totalDistance, s.Params.DepartureSoCMin) {
			continue
		}
		candidates = append(candidates, strategy.ReadyVehicle{
			Vehicle: v, Area: s.Graph.Depot.AreaByID(v.Location.AreaID), BlocksCount: s.blocksCount(v),
		})
	}

	chosen, ok := s.Policy.Choose(strategy.DispatchContext{
		Rotation: r, Now: s.Queue.Now(), Lookahead: s.Params.DispatchLookahead.Seconds(),
		ReadyVehicles: candidates, DepartureSoCMin: s.Params.DepartureSoCMin,
	})
	if ok {
		s.claimVehicle(chosen.Vehicle, r)
		return
	}

	if maxCount, pinned := s.MaxVehicles[vt.ID]; pinned && s.vehicleCountUsed[vt.ID] >= maxCount {
		// Fleet size is pinned (exact-vehicle-count pass) and already exhausted: this
		// rotation cannot be covered, unconditionally signalling instability.
		s.unstableByType[vt.ID] = true
		s.setErr(&domain.UnstableSimulationError{VehicleTypeID: vt.ID, RotationID: r.ID})
		return
	}

	v := s.mintVehicle(vt)
	s.assignments[r.ID] = v.ID
	s.vehicleCountUsed[vt.ID]++
	if InMiddleWindow(r.DepartureTime(), s.WindowStart, s.WindowEnd) {
		s.unstableByType[vt.ID] = true
		s.setErr(&domain.UnstableSimulationError{VehicleTypeID: vt.ID, RotationID: r.ID})
	}
	s.startVehicleLifecycle(v, r, s.Queue.Now())
}

// startSeededLifecycle starts a vehicle already parked and ready (the pinned-fleet
// exact-vehicle-count pass): it waits to be claimed for its first rotation, then behaves exactly
// like a minted vehicle's lifecycle.
func (s *Simulator) startSeededLifecycle(v *domain.Vehicle, home *domain.Area, slot int) {
	task := eventqueue.NewTask(s.Queue, "vehicle-"+v.ID, func(t *eventqueue.Task) {
		t.Block()
		rotation, _ := s.takeAssignment(v.ID)
		s.unregisterReady(v)
		s.releaseArea(t, v, home, slot)
		for {
			s.driveRotation(t, v, rotation)
			rotation = s.enterDepotAndWalkPlan(t, v)
		}
	})
	s.tasks[v.ID] = task
	task.StartAt(s.Queue.Now())
}

// dispatchEligible reports whether v can actually leave right now: DIRECT-parked vehicles
// always can; LINE-parked vehicles only if they are at the row's exit-eligible front.
func (s *Simulator) dispatchEligible(v *domain.Vehicle) bool {
	area := s.Graph.Depot.AreaByID(v.Location.AreaID)
	if area == nil {
		return false
	}
	if area.Type == domain.AreaLine {
		front, ok := s.lineStores[area.ID].Front()
		return ok && front == v.ID
	}
	return true
}

// blocksCount estimates how many other vehicles dispatching v would free up: the vehicles
// still trapped behind it in its LINE lane, 0 for DIRECT.
func (s *Simulator) blocksCount(v *domain.Vehicle) int {
	area := s.Graph.Depot.AreaByID(v.Location.AreaID)
	if area == nil || area.Type != domain.AreaLine {
		return 0
	}
	return s.lineStores[area.ID].Len() - 1
}

func (s *Simulator) claimVehicle(v *domain.Vehicle, r domain.Rotation) {
	s.assignments[r.ID] = v.ID
	s.assignMsg[v.ID] = r
	// Remove from the ready pool immediately: a second dispatch check at the same instant
	// must not see (and double-claim) a vehicle whose task has not resumed yet.
	s.unregisterReady(v)
	if ev, ok := s.pendingWake[v.ID]; ok {
		s.Queue.Cancel(ev)
		delete(s.pendingWake, v.ID)
	}
	if task, ok := s.tasks[v.ID]; ok {
		task.Wake()
	}
}

func (s *Simulator) mintVehicle(vt *domain.VehicleType) *domain.Vehicle {
	s.vehicleSeq++
	v := &domain.Vehicle{ID: fmt.Sprintf("%s-%d", vt.ID, s.vehicleSeq), Type: vt, SoC: 1.0}
	v.LogSoC(s.fromSeconds(s.Queue.Now()), 1.0)
	s.vehicles[v.ID] = v
	return v
}

func (s *Simulator) startVehicleLifecycle(v *domain.Vehicle, first domain.Rotation, startAt float64) {
	task := eventqueue.NewTask(s.Queue, "vehicle-"+v.ID, func(t *eventqueue.Task) {
		rotation := first
		for {
			s.driveRotation(t, v, rotation)
			rotation = s.enterDepotAndWalkPlan(t, v)
		}
	})
	s.tasks[v.ID] = task
	task.StartAt(startAt)
}
