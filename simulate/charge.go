package simulate

import (
	"math"

	"depotsim/domain"
)

// chargeDuration returns the seconds needed to raise soc from soc0 to target, drawing the
// lesser of the vehicle's charge-curve power and the area's per-slot rated power, integrated
// in closed form across each linear segment of the (possibly re-clipped) curve rather than by
// fixed time-stepping.
func chargeDuration(curve domain.ChargeCurve, batteryKWh, areaRatedKW, soc0, target float64) float64 {
	if target <= soc0 || batteryKWh <= 0 {
		return 0
	}
	breakpoints := clippedBreakpoints(curve, areaRatedKW, soc0, target)
	total := 0.0
	for i := 1; i < len(breakpoints); i++ {
		a, b := breakpoints[i-1], breakpoints[i]
		total += segmentDuration(a, b, batteryKWh)
	}
	return total
}

type point struct{ soc, kw float64 }

// clippedBreakpoints returns the (soc, power) vertices of curve clipped to areaRatedKW, between
// soc0 and target, including any new vertices where the curve crosses the area's rating.
func clippedBreakpoints(curve domain.ChargeCurve, areaRatedKW, soc0, target float64) []point {
	var raw []point
	raw = append(raw, point{soc0, curve.PowerAt(soc0)})
	for _, cp := range curve {
		if cp.SoC > soc0 && cp.SoC < target {
			raw = append(raw, point{cp.SoC, curve.PowerAt(cp.SoC)})
		}
	}
	raw = append(raw, point{target, curve.PowerAt(target)})

	out := make([]point, 0, len(raw)*2)
	for i, p := range raw {
		clipped := math.Min(p.kw, areaRatedKW)
		if i > 0 {
			prev := raw[i-1]
			if (prev.kw > areaRatedKW) != (p.kw > areaRatedKW) && p.soc > prev.soc {
				frac := (areaRatedKW - prev.kw) / (p.kw - prev.kw)
				crossSoC := prev.soc + frac*(p.soc-prev.soc)
				out = append(out, point{crossSoC, areaRatedKW})
			}
		}
		out = append(out, point{p.soc, clipped})
	}
	return out
}

// segmentDuration solves dSoC/dt = power(soc) / (batteryKWh*3600) in closed form over one
// linear (or flat) segment from a to b.
func segmentDuration(a, b point, batteryKWh float64) float64 {
	dSoC := b.soc - a.soc
	if dSoC <= 0 {
		return 0
	}
	k := 1.0 / (batteryKWh * 3600)
	if a.kw == b.kw {
		if a.kw <= 0 {
			return math.Inf(1)
		}
		return dSoC / (k * a.kw)
	}
	slope := (b.kw - a.kw) / dSoC // d(power)/d(soc)
	// power(soc) = a.kw + slope*(soc - a.soc); dSoC/dt = k*power(soc)
	// soc(t) = a.soc - a.kw/slope + (a.kw/slope) * exp(k*slope*t)  [when slope != 0]
	c := a.kw / slope
	num := b.soc - a.soc + c
	den := c
	if den == 0 || num/den <= 0 {
		return math.Inf(1)
	}
	return math.Log(num/den) / (k * slope)
}

// socAfter returns the SoC reached after charging for `elapsed` seconds starting at soc0, the
// inverse of chargeDuration — used when a charge is cut short by dispatch.
func socAfter(curve domain.ChargeCurve, batteryKWh, areaRatedKW, soc0 float64, elapsed float64) float64 {
	if elapsed <= 0 {
		return soc0
	}
	soc := soc0
	remaining := elapsed
	breakpoints := clippedBreakpoints(curve, areaRatedKW, soc0, 1.0)
	for i := 1; i < len(breakpoints) && remaining > 0; i++ {
		a, b := breakpoints[i-1], breakpoints[i]
		segDur := segmentDuration(a, b, batteryKWh)
		if segDur <= remaining {
			remaining -= segDur
			soc = b.soc
			continue
		}
		soc = socAtElapsedWithinSegment(a, b, batteryKWh, remaining)
		remaining = 0
	}
	return math.Min(soc, 1.0)
}

func socAtElapsedWithinSegment(a, b point, batteryKWh, t float64) float64 {
	k := 1.0 / (batteryKWh * 3600)
	if a.kw == b.kw {
		return a.soc + k*a.kw*t
	}
	dSoC := b.soc - a.soc
	slope := (b.kw - a.kw) / dSoC
	c := a.kw / slope
	return a.soc - c + c*math.Exp(k*slope*t)
}
