// Command depotsim runs the full sizing/layout/charge-optimization pipeline for one
// scenario. Per-type area counts and floor area, and the footprint, go to the log; the
// events, assignments and areas are saved to the scenario repository; a one-line summary of
// vehicle count, area count and footprint size is printed.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"depotsim/chargeopt"
	"depotsim/config"
	"depotsim/depotlog"
	"depotsim/domain"
	"depotsim/layout"
	"depotsim/materialize"
	"depotsim/simulate"
	"depotsim/sizing"
	"depotsim/strategy"
)

func main() {
	configPath := flag.String("config", "", "YAML config overlay path (defaults to built-in defaults)")
	vehicleTypeID := flag.String("vehicle-type", "ebus12", "demo vehicle type id to size a depot for")
	rotationCount := flag.Int("rotations", 6, "number of demo rotations to generate, spaced evenly across one day")
	logLevel := flag.String("log-level", "", "overrides DEPOTSIM_LOG_LEVEL for this run")
	flag.Parse()

	if *logLevel != "" {
		os.Setenv("DEPOTSIM_LOG_LEVEL", *logLevel)
	}
	logger := depotlog.New()
	entry := depotlog.ForRun(logger, "demo", *vehicleTypeID, 0)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}

	repo := domain.NewMemRepository()
	scenario := demoScenario(*vehicleTypeID, *rotationCount)
	repo.Put(scenario)

	loaded, err := repo.LoadScenario(scenario.ID)
	if err != nil {
		log.Fatalf("load scenario: %v", err)
	}

	policy := strategy.SmartPolicy{}
	vt := loaded.VehicleTypes[*vehicleTypeID]
	if vt == nil {
		log.Fatalf("scenario has no vehicle type %q", *vehicleTypeID)
	}
	depotPlan := loaded.Depots["demo-depot"].Plan

	results, err := sizing.SizeScenario(loaded.Depots["demo-depot"], loaded.VehicleTypes, loaded.Rotations, cfg.Sizing, policy, entry)
	if err != nil {
		log.Fatalf("sizing failed: %v", err)
	}

	var areas []domain.Area
	totalVehicles := 0
	for id, res := range results {
		entry.Infof("vehicle type %s: %d DIRECT slots, %d LINE rows, %.1f m2, %d vehicles",
			id, res.PeakDirect, res.LineCount, res.FloorAreaM2, res.VehicleCount)
		areas = append(areas, res.Areas...)
		totalVehicles += res.VehicleCount
	}

	period := sizing.RepetitionPeriod(cfg.Sizing.RepetitionPeriod, loaded.Rotations)
	windowStart, windowEnd := sizing.SteadyStateWindow(loaded.Rotations, period)

	finalDepot := &domain.Depot{ID: "demo-depot", Plan: depotPlan, Areas: areas}
	finalResult := runFinalSimulation(finalDepot, loaded.VehicleTypes, loaded.Rotations, cfg.Sizing, policy, period, windowStart, windowEnd)
	if finalResult.Err != nil {
		log.Fatalf("final simulation with chosen areas is unstable: %v", finalResult.Err)
	}

	materialized := materialize.Materialize(finalResult.Log, finalResult.Vehicles, windowStart, windowEnd, cfg.Sizing.WaitingAreaMinCapacity)
	entry.Infof("materialized %d events, waiting area capacity %d", len(materialized.Events), materialized.WaitingArea.Capacity)

	packed := areas
	packed = append(packed, materialized.WaitingArea)
	inputs := make([]layout.Input, 0, len(packed))
	for _, a := range packed {
		w, h := layout.RectFor(a, vt)
		in := layout.Inflate(layout.Input{AreaID: a.ID, W: w, H: h, Type: a.Type}, cfg.Packing.ConflictMatrix)
		inputs = append(inputs, in)
	}
	width, height, placements, err := layout.ShrinkFootprint(inputs, cfg.Packing.DrivingLaneWidthM, cfg.Packing.ReductionStepM)
	if err != nil {
		entry.WithError(err).Warn("layout failed, footprint left unplaced")
	} else {
		entry.Infof("footprint %.1f x %.1f m, %d rectangles placed", width, height, len(placements))
	}

	optimized := materialized.Events
	if cfg.Sizing.SmartChargingStrategy == config.SmartChargingEven {
		optimized, err = chargeopt.Optimize(materialized.Events, finalResult.Vehicles, windowStart, cfg.ChargeOpt, entry)
		if err != nil {
			entry.WithError(err).Warn("peak-shaving left this batch's charging profile unchanged")
			optimized = materialized.Events
		}
	}

	if err := repo.SaveResults(scenario.ID, optimized, finalResult.Assignments, packed); err != nil {
		log.Fatalf("save results: %v", err)
	}
	fmt.Printf("sized %d vehicle(s) across %d area(s), footprint %.1fx%.1f m\n", totalVehicles, len(packed), width, height)
}

// runFinalSimulation replays the scenario once more against the chosen configuration to produce
// the log/events/vehicles the materializer and optimizer consume — sizing's own runs are
// transactional per-candidate probes and don't retain this state.
func runFinalSimulation(depot *domain.Depot, vehicleTypes map[string]*domain.VehicleType, rotations []domain.Rotation, params config.SizingParams, policy strategy.DispatchPolicy, period time.Duration, windowStart, windowEnd time.Time) simulate.Result {
	expanded := simulate.ExpandSteadyState(rotations, period)
	epoch := windowStart.Add(-period)

	s := simulate.New(depot, vehicleTypes, epoch, windowStart, windowEnd, params, policy)
	return s.Run(expanded)
}

// demoScenario builds a small in-code scenario (one depot, one vehicle type, evenly spaced
// rotations) used when no external scenario store is wired in.
func demoScenario(vehicleTypeID string, rotationCount int) *domain.Scenario {
	vt := &domain.VehicleType{
		ID: vehicleTypeID, Name: "12m e-bus",
		BatteryCapacityKWh:  300,
		ConsumptionKWhPerKM: 1.2,
		LengthM:             12,
		WidthM:              2.55,
		ChargeCurve: domain.ChargeCurve{
			{SoC: 0, PowerK: 150},
			{SoC: 0.8, PowerK: 150},
			{SoC: 1.0, PowerK: 20},
		},
	}

	plan := domain.Plan{
		ID: "demo-plan",
		Processes: []domain.Process{
			{ID: "shunt-in", Kind: domain.ProcessShunt, Duration: 3 * time.Minute},
			{ID: "clean", Kind: domain.ProcessClean, Duration: 15 * time.Minute},
			{ID: "charge", Kind: domain.ProcessCharge, ElectricPowerKW: 150, Dispatchable: true},
			{ID: "standby", Kind: domain.ProcessStandbyDeparture, Dispatchable: true},
		},
	}

	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) // a Monday, for a clean weekly period
	var rotations []domain.Rotation
	spacing := 24 * time.Hour / time.Duration(rotationCount)
	for i := 0; i < rotationCount; i++ {
		depart := day.Add(time.Duration(i) * spacing)
		rotations = append(rotations, domain.Rotation{
			ID:            fmt.Sprintf("rot-%d", i),
			VehicleTypeID: vehicleTypeID,
			Trips: []domain.Trip{
				{Route: "demo-route", Departure: depart, Arrival: depart.Add(90 * time.Minute), DistanceKM: 45},
			},
		})
	}

	return &domain.Scenario{
		ID:           "demo",
		Name:         "demo scenario",
		VehicleTypes: map[string]*domain.VehicleType{vehicleTypeID: vt},
		Depots: map[string]*domain.Depot{
			"demo-depot": {ID: "demo-depot", Station: "demo", Plan: plan},
		},
		Rotations: rotations,
	}
}
