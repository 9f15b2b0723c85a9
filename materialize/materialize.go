// Package materialize turns a simulate.Result's raw per-vehicle log into the final domain.Event
// records: transit markers and zero-duration records (other than STANDBY_DEPARTURE) dropped,
// virtual-waiting occupancy resolved to concrete slot indices of one physical waiting
// Area, with each waiting record's SoC interpolated from its vehicle's battery log, and
// everything outside the middle steady-state replay window dropped. Other records keep the SoC
// values the simulator logged. Consecutive records in the same state are not merged.
package materialize

import (
	"sort"
	"time"

	"depotsim/domain"
	"depotsim/simulate"
)

// WaitingAreaID names the single physical area materialize synthesizes to hold vehicles that
// were, during simulation, in the unbounded virtual waiting area.
const WaitingAreaID = "waiting-area"

// Result is what one materialize pass produces for a depot: the finished events plus the
// waiting area's required capacity.
type Result struct {
	Events         []domain.Event
	WaitingArea    domain.Area
}

// Materialize consumes the simulator's raw log and vehicle set and produces the final Event
// timeline for [windowStart, windowEnd), plus a waiting Area sized to the observed peak. The
// minCapacity clamp applies only when the peak is non-zero, so a depot that never queued is
// representable with zero waiting slots.
func Materialize(log []simulate.LogEntry, vehicles map[string]*domain.Vehicle, windowStart, windowEnd time.Time, minCapacity int) Result {
	slots, peak := assignWaitingSlots(log)

	events := make([]domain.Event, 0, len(log))
	for i, e := range log {
		if e.Transit {
			continue
		}
		// Zero-duration records are dropped, except the STANDBY_DEPARTURE marker logged right
		// before a trip when dispatch lands exactly at process completion.
		if !e.TimeEnd.After(e.TimeStart) && e.Kind != domain.EventStandbyDeparture {
			continue
		}
		if e.TimeEnd.Before(windowStart) || e.TimeEnd.Equal(windowStart) || !e.TimeStart.Before(windowEnd) {
			continue
		}

		ev := domain.Event{
			VehicleID:  e.VehicleID,
			Kind:       e.Kind,
			TimeStart:  e.TimeStart,
			TimeEnd:    e.TimeEnd,
			SoCStart:   e.SoCStart,
			SoCEnd:     e.SoCEnd,
			RotationID: e.RotationID,
			AreaID:     e.AreaID,
			Slot:       e.Slot,
		}
		if e.Kind == domain.EventWaiting {
			ev.AreaID = WaitingAreaID
			ev.Slot = slots[i]
			if v := vehicles[e.VehicleID]; v != nil {
				ev.SoCStart = v.SoCAt(e.TimeStart)
				ev.SoCEnd = v.SoCAt(e.TimeEnd)
			}
		}
		events = append(events, ev)
	}

	capacity := peak
	if peak > 0 && capacity < minCapacity {
		capacity = minCapacity
	}
	return Result{
		Events: events,
		WaitingArea: domain.Area{
			ID:       WaitingAreaID,
			Type:     domain.AreaDirectOneSide,
			Capacity: capacity,
			PermittedProcesses: []domain.ProcessKind{},
		},
	}
}

// assignWaitingSlots sweeps the log's EventWaiting entries in time order, assigning each the
// lowest-index free slot and tracking peak concurrency. Returns a
// slot index per log entry (meaningless for non-waiting entries) and the observed peak.
func assignWaitingSlots(log []simulate.LogEntry) ([]int, int) {
	type interval struct {
		idx        int
		start, end time.Time
	}
	var waits []interval
	for i, e := range log {
		if e.Kind == domain.EventWaiting {
			waits = append(waits, interval{idx: i, start: e.TimeStart, end: e.TimeEnd})
		}
	}
	sort.SliceStable(waits, func(i, j int) bool { return waits[i].start.Before(waits[j].start) })

	slots := make([]int, len(log))
	type active struct {
		slot int
		end  time.Time
	}
	var inUse []active
	var free []int
	nextSlot := 0
	peak := 0

	for _, w := range waits {
		kept := inUse[:0]
		for _, a := range inUse {
			if !a.end.After(w.start) {
				free = append(free, a.slot)
			} else {
				kept = append(kept, a)
			}
		}
		inUse = kept

		sort.Ints(free)
		var slot int
		if len(free) > 0 {
			slot = free[0]
			free = free[1:]
		} else {
			slot = nextSlot
			nextSlot++
		}
		inUse = append(inUse, active{slot: slot, end: w.end})
		slots[w.idx] = slot
		if len(inUse) > peak {
			peak = len(inUse)
		}
	}
	return slots, peak
}
