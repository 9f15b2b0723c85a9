// Package config groups the sizing, packing and charge-optimization knobs into explicit
// parameter records passed through every run.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"depotsim/domain"
)

// RepetitionPeriodMode selects how the steady-state replay period is chosen.
type RepetitionPeriodMode string

const (
	RepetitionDay  RepetitionPeriodMode = "day"
	RepetitionWeek RepetitionPeriodMode = "week"
	RepetitionAuto RepetitionPeriodMode = "auto"
)

// SmartChargingStrategy selects the peak-shaving optimizer's behavior.
type SmartChargingStrategy string

const (
	SmartChargingNone SmartChargingStrategy = "NONE"
	SmartChargingEven  SmartChargingStrategy = "EVEN"
)

// SizingParams are the knobs consumed by the sizing and simulate packages.
type SizingParams struct {
	RepetitionPeriod          RepetitionPeriodMode  `yaml:"repetition_period"`
	CalculateExactVehicleCount bool                 `yaml:"calculate_exact_vehicle_count"`
	SmartChargingStrategy     SmartChargingStrategy `yaml:"smart_charging_strategy"`
	StandardBlockLength       int                   `yaml:"standard_block_length"`
	DepartureSoCMin           float64               `yaml:"departure_soc_min"`
	DispatchLookahead         time.Duration         `yaml:"dispatch_lookahead"`
	WaitingAreaMinCapacity    int                   `yaml:"waiting_area_min_capacity"`
}

// AreaMargin is one (area type, edge) entry of the conflict matrix.
type AreaMargin struct {
	Type AreaEdgeKey
	Meters float64
}

// AreaEdgeKey names an (area type, edge) pair.
type AreaEdgeKey struct {
	Type domain.AreaType
	Edge Edge
}

// Edge names one side of a rectangle.
type Edge int

const (
	EdgeTop Edge = iota
	EdgeBottom
	EdgeLeft
	EdgeRight
)

// PackingParams are the knobs consumed by the layout package.
type PackingParams struct {
	DrivingLaneWidthM float64 `yaml:"driving_lane_width"`
	ReductionStepM    float64 `yaml:"reduction_step"`
	ConflictMatrix    map[AreaEdgeKey]float64
}

// DefaultConflictMatrix is the standard driving-lane margin table: LINE top/bottom=8, DIRECT
// entry-side=8, all other edges=0 (Q3: DIRECT exit edge needs no margin).
func DefaultConflictMatrix() map[AreaEdgeKey]float64 {
	return map[AreaEdgeKey]float64{
		{domain.AreaLine, EdgeTop}:    8,
		{domain.AreaLine, EdgeBottom}: 8,
		{domain.AreaLine, EdgeLeft}:   0,
		{domain.AreaLine, EdgeRight}:  0,
		{domain.AreaDirectOneSide, EdgeLeft}:  8,
		{domain.AreaDirectOneSide, EdgeRight}: 0,
		{domain.AreaDirectOneSide, EdgeTop}:    0,
		{domain.AreaDirectOneSide, EdgeBottom}: 0,
		{domain.AreaDirectTwoSide, EdgeLeft}:  8,
		{domain.AreaDirectTwoSide, EdgeRight}: 0,
		{domain.AreaDirectTwoSide, EdgeTop}:    0,
		{domain.AreaDirectTwoSide, EdgeBottom}: 0,
	}
}

// ChargeOptParams are the knobs consumed by the chargeopt package.
type ChargeOptParams struct {
	TimeStep             time.Duration `yaml:"time_step"`
	PowerQuantumKW       float64       `yaml:"power_quantum"`
	StandbyDepartureSlack time.Duration `yaml:"standby_departure_slack"`
	SolverMaxEvaluations int           `yaml:"solver_max_evaluations"`
}

// Config is the top-level configuration record passed explicitly through every run (Design
// Note: global module-level constants → explicit config record).
type Config struct {
	Sizing    SizingParams    `yaml:"sizing"`
	Packing   PackingParams   `yaml:"packing"`
	ChargeOpt ChargeOptParams `yaml:"chargeopt"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Sizing: SizingParams{
			RepetitionPeriod:           RepetitionAuto,
			CalculateExactVehicleCount: false,
			SmartChargingStrategy:      SmartChargingNone,
			StandardBlockLength:        6,
			DepartureSoCMin:            0.8,
			DispatchLookahead:          2 * time.Hour,
			WaitingAreaMinCapacity:     10,
		},
		Packing: PackingParams{
			DrivingLaneWidthM: 8,
			ReductionStepM:    5,
			ConflictMatrix:    DefaultConflictMatrix(),
		},
		ChargeOpt: ChargeOptParams{
			TimeStep:              5 * time.Minute,
			PowerQuantumKW:        10,
			StandbyDepartureSlack: 5 * time.Minute,
			SolverMaxEvaluations:  2000,
		},
	}
}

// Load reads YAML config from path, starting from Default() and overlaying whatever the file
// specifies.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Packing.ConflictMatrix == nil {
		cfg.Packing.ConflictMatrix = DefaultConflictMatrix()
	}
	return cfg, nil
}
