package simulate

import (
	"sort"
	"time"

	"depotsim/domain"
)

// AutoDetectPeriod picks the steady-state repetition period when the caller leaves it at zero:
// a day if the rotation timetable spans at most 20 hours, a week otherwise.
func AutoDetectPeriod(rotations []domain.Rotation) time.Duration {
	if len(rotations) == 0 {
		return 24 * time.Hour
	}
	earliest, latest := rotations[0].DepartureTime(), rotations[0].ArrivalTime()
	for _, r := range rotations {
		if d := r.DepartureTime(); d.Before(earliest) {
			earliest = d
		}
		if a := r.ArrivalTime(); a.After(latest) {
			latest = a
		}
	}
	span := latest.Sub(earliest)
	if span <= 20*time.Hour {
		return 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

// ExpandSteadyState replays rotations over [-P,0), [0,T) and [T,T+P), returning every
// rotation with the earlier/later copies timeshifted by -P/+P and flagged IsReplayCopy so the
// middle window starts and ends in steady state.
func ExpandSteadyState(rotations []domain.Rotation, period time.Duration) []domain.Rotation {
	out := make([]domain.Rotation, 0, len(rotations)*3)
	out = append(out, shift(rotations, -period, "_pre", true)...)
	out = append(out, shift(rotations, 0, "", false)...)
	out = append(out, shift(rotations, period, "_post", true)...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DepartureTime().Before(out[j].DepartureTime())
	})
	return out
}

func shift(rotations []domain.Rotation, delta time.Duration, suffix string, isCopy bool) []domain.Rotation {
	out := make([]domain.Rotation, len(rotations))
	for i, r := range rotations {
		trips := make([]domain.Trip, len(r.Trips))
		for j, tr := range r.Trips {
			tr.Departure = tr.Departure.Add(delta)
			tr.Arrival = tr.Arrival.Add(delta)
			trips[j] = tr
		}
		out[i] = domain.Rotation{
			ID:            r.ID + suffix,
			VehicleTypeID: r.VehicleTypeID,
			Trips:         trips,
			IsReplayCopy:  isCopy,
		}
	}
	return out
}

// InMiddleWindow reports whether t falls within [windowStart, windowEnd) — the rotations that
// count toward UnstableSimulation / reported results.
func InMiddleWindow(t, windowStart, windowEnd time.Time) bool {
	return !t.Before(windowStart) && t.Before(windowEnd)
}
