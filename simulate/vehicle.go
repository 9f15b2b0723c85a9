package simulate

import (
	"depotsim/domain"
	"depotsim/eventqueue"
	"depotsim/strategy"
)

// acquireArea blocks the calling task until some area permitting kind for v's type has a free
// slot, claims it, and returns it with the slot index assigned.
func (s *Simulator) acquireArea(t *eventqueue.Task, v *domain.Vehicle, kind domain.ProcessKind) (*domain.Area, int) {
	waitStart := -1.0
	for {
		candidates := s.Graph.AreasFor(v.Type, kind, s.Params.StandardBlockLength)
		chosen := strategy.ChooseParkingArea(s.Graph, candidates)
		if chosen != nil {
			if waitStart >= 0 {
				s.log = append(s.log, LogEntry{
					VehicleID: v.ID, Kind: domain.EventWaiting, AreaID: domain.VirtualWaitingAreaID,
					TimeStart: s.fromSeconds(waitStart), TimeEnd: s.fromSeconds(s.Queue.Now()),
				})
			}
			slot := s.claimSlot(chosen, v)
			s.Graph.Claim(chosen.ID)
			s.recordOccupancy(chosen.ID)
			v.Location = domain.Location{AreaID: chosen.ID, Slot: slot}
			return chosen, slot
		}
		if waitStart < 0 {
			waitStart = s.Queue.Now()
		}
		s.waitForArea(t, kind)
	}
}

func (s *Simulator) claimSlot(area *domain.Area, v *domain.Vehicle) int {
	if area.Type == domain.AreaLine {
		return s.lineStores[area.ID].Enter(nil, v.ID)
	}
	used := s.slots[area.ID]
	if used == nil {
		used = make([]bool, area.Capacity)
		s.slots[area.ID] = used
	}
	for i, u := range used {
		if !u {
			used[i] = true
			return i
		}
	}
	return area.Capacity
}

func (s *Simulator) waitForArea(t *eventqueue.Task, kind domain.ProcessKind) {
	s.kindWaiters[kind] = append(s.kindWaiters[kind], t)
	s.waitingCount++
	if s.waitingCount > s.waitingPeak {
		s.waitingPeak = s.waitingCount
	}
	t.Block()
	s.waitingCount--
}

func (s *Simulator) wakeAreaWaiters(area *domain.Area) {
	for _, kind := range area.PermittedProcesses {
		ws := s.kindWaiters[kind]
		if len(ws) == 0 {
			continue
		}
		w := ws[0]
		s.kindWaiters[kind] = ws[1:]
		w.Wake()
	}
}

// releaseArea waits, if area is a LINE row, for v to reach the row's exit-eligible front
// position, then frees the slot.
func (s *Simulator) releaseArea(t *eventqueue.Task, v *domain.Vehicle, area *domain.Area, slot int) {
	if area.Type == domain.AreaLine {
		for {
			front, ok := s.lineStores[area.ID].Front()
			if ok && front == v.ID {
				break
			}
			s.lineExitWaiters[area.ID] = append(s.lineExitWaiters[area.ID], t)
			t.Block()
		}
		s.lineStores[area.ID].Exit()
		waiters := s.lineExitWaiters[area.ID]
		s.lineExitWaiters[area.ID] = nil
		for _, w := range waiters {
			w.Wake()
		}
	} else {
		s.slots[area.ID][slot] = false
	}
	s.Graph.Vacate(area.ID)
	s.wakeAreaWaiters(area)
}

func (s *Simulator) registerReady(v *domain.Vehicle, areaID string) {
	s.readyPool[v.Type.ID] = append(s.readyPool[v.Type.ID], v)
}

func (s *Simulator) unregisterReady(v *domain.Vehicle) {
	list := s.readyPool[v.Type.ID]
	for i, c := range list {
		if c == v {
			s.readyPool[v.Type.ID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// runProcess holds v in an appropriate area for proc, claiming any shared resource it requires,
// and returns a rotation the dispatcher claimed it for mid-process, if any.
func (s *Simulator) runProcess(t *eventqueue.Task, v *domain.Vehicle, proc domain.Process) (domain.Rotation, bool) {
	area, slot := s.acquireArea(t, v, proc.Kind)
	s.log = append(s.log, LogEntry{
		VehicleID: v.ID, Kind: domain.EventKindOf(proc.Kind), AreaID: area.ID, Slot: slot,
		TimeStart: s.fromSeconds(s.Queue.Now()), TimeEnd: s.fromSeconds(s.Queue.Now()),
		SoCStart: v.SoC, SoCEnd: v.SoC, Transit: true,
	})

	resource := s.resourceFor(proc.RequiredResource)
	var evicted bool
	var evictedAt float64
	var holdWake *eventqueue.Event
	reacquire := func() {
		resource.Acquire(t, 0, func() {
			evicted = true
			evictedAt = s.Queue.Now()
			if holdWake != nil {
				s.Queue.Cancel(holdWake)
			}
			t.Wake()
		})
	}
	if resource != nil {
		reacquire()
	}
	// hold keeps v in place for dur seconds of work; when a preempting break window evicts the
	// resource lease mid-hold, the elapsed portion is kept and the remainder rescheduled once
	// the lease is re-won after the break.
	hold := func(dur float64) {
		remaining := dur
		for {
			segStart := s.Queue.Now()
			holdWake = t.ScheduleWake(segStart + remaining)
			t.Yield()
			holdWake = nil
			if !evicted {
				return
			}
			remaining -= evictedAt - segStart
			evicted = false
			reacquire()
			if remaining <= 0 {
				return
			}
		}
	}

	start := s.Queue.Now()
	socStart := v.SoC
	var claimedRotation domain.Rotation
	claimed := false

	switch proc.Kind {
	case domain.ProcessCharge:
		rated := proc.ElectricPowerKW
		dur := chargeDuration(v.Type.ChargeCurve, v.Type.BatteryCapacityKWh, rated, v.SoC, 1.0)
		finish := start + dur
		if proc.Dispatchable {
			s.registerReady(v, area.ID)
			s.pendingWake[v.ID] = t.ScheduleWake(finish)
			t.Yield()
			delete(s.pendingWake, v.ID)
			s.unregisterReady(v)
			elapsed := s.Queue.Now() - start
			v.LogSoC(s.fromSeconds(s.Queue.Now()), socAfter(v.Type.ChargeCurve, v.Type.BatteryCapacityKWh, rated, socStart, elapsed))
			claimedRotation, claimed = s.takeAssignment(v.ID)
		} else {
			t.Sleep(finish)
			v.LogSoC(s.fromSeconds(finish), 1.0)
		}
	case domain.ProcessPrecondition:
		hold(proc.Duration.Seconds())
	case domain.ProcessShunt, domain.ProcessClean, domain.ProcessStandby:
		if proc.Dispatchable {
			s.registerReady(v, area.ID)
			s.pendingWake[v.ID] = t.ScheduleWake(start + proc.Duration.Seconds())
			t.Yield()
			delete(s.pendingWake, v.ID)
			s.unregisterReady(v)
			claimedRotation, claimed = s.takeAssignment(v.ID)
		} else {
			hold(proc.Duration.Seconds())
		}
	case domain.ProcessStandbyDeparture:
		s.registerReady(v, area.ID)
		t.Block()
		s.unregisterReady(v)
		claimedRotation, claimed = s.takeAssignment(v.ID)
	}

	end := s.Queue.Now()
	s.log = append(s.log, LogEntry{
		VehicleID: v.ID, Kind: domain.EventKindOf(proc.Kind), AreaID: area.ID, Slot: slot,
		TimeStart: s.fromSeconds(start), TimeEnd: s.fromSeconds(end), SoCStart: socStart, SoCEnd: v.SoC,
	})

	if resource != nil {
		resource.Release(t)
	}
	s.releaseArea(t, v, area, slot)

	return claimedRotation, claimed
}

func (s *Simulator) takeAssignment(vehicleID string) (domain.Rotation, bool) {
	r, ok := s.assignMsg[vehicleID]
	if ok {
		delete(s.assignMsg, vehicleID)
	}
	return r, ok
}

// enterDepotAndWalkPlan walks the depot's Plan until some process is claimed by dispatch, and
// returns the rotation assigned.
func (s *Simulator) enterDepotAndWalkPlan(t *eventqueue.Task, v *domain.Vehicle) domain.Rotation {
	for {
		for _, proc := range s.Depot.Plan.Processes {
			if r, claimed := s.runProcess(t, v, proc); claimed {
				return r
			}
		}
	}
}

// driveRotation advances v through every trip of rotation, sleeping to each trip's timetabled
// departure and arrival, deducting consumption and logging a DRIVING entry per trip.
func (s *Simulator) driveRotation(t *eventqueue.Task, v *domain.Vehicle, rotation domain.Rotation) {
	v.Location = domain.Location{OnRotation: true}
	for _, trip := range rotation.Trips {
		t.Sleep(s.toSeconds(trip.Departure))
		socStart := v.SoC
		socEnd := socStart
		if trip.HasResolvedSoC {
			socEnd = trip.SoCEnd
		} else if v.Type.BatteryCapacityKWh > 0 {
			socEnd = socStart - v.Type.ConsumptionKWhPerKM*trip.DistanceKM/v.Type.BatteryCapacityKWh
		}
		t.Sleep(s.toSeconds(trip.Arrival))
		if socEnd < 0 {
			s.setErr(&domain.SoCUnderflowError{VehicleID: v.ID, SoC: socEnd})
			socEnd = 0
		}
		v.LogSoC(trip.Arrival, socEnd)
		s.log = append(s.log, LogEntry{
			VehicleID: v.ID, Kind: domain.EventDriving, RotationID: rotation.ID,
			TimeStart: trip.Departure, TimeEnd: trip.Arrival, SoCStart: socStart, SoCEnd: socEnd,
		})
	}
}
