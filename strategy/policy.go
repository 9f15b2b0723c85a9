package strategy

import (
	"depotsim/domain"
)

// DispatchContext is everything a DispatchPolicy needs to decide which vehicle covers an
// upcoming rotation.
type DispatchContext struct {
	Rotation        domain.Rotation
	Now             float64
	Lookahead       float64
	ReadyVehicles   []ReadyVehicle
	DepartureSoCMin float64
}

// DispatchPolicy is the seam for dispatch strategies other than SMART; this module ships
// only the one.
type DispatchPolicy interface {
	// Choose returns the vehicle to dispatch for ctx.Rotation, or ok=false if none qualifies
	// and a new vehicle must be minted.
	Choose(ctx DispatchContext) (ReadyVehicle, bool)
}

// SmartPolicy implements the SMART dispatch strategy: among vehicles that occupy a
// dispatchable area, match the rotation's vehicle type, and have sufficient SoC, pick the one
// blocking the most other vehicles.
type SmartPolicy struct{}

func (SmartPolicy) Choose(ctx DispatchContext) (ReadyVehicle, bool) {
	return ChooseDispatchVehicle(ctx.ReadyVehicles)
}

var _ DispatchPolicy = SmartPolicy{}
