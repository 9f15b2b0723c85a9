package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChargeCurveInterpolatesBetweenPoints(t *testing.T) {
	curve := ChargeCurve{
		{SoC: 0, PowerK: 150},
		{SoC: 0.8, PowerK: 150},
		{SoC: 1.0, PowerK: 20},
	}
	assert.InDelta(t, 150, curve.PowerAt(0.5), 1e-9)
	assert.InDelta(t, 85, curve.PowerAt(0.9), 1e-9)
	assert.InDelta(t, 150, curve.PowerAt(-0.1), 1e-9, "clamps below the first point")
	assert.InDelta(t, 20, curve.PowerAt(1.5), 1e-9, "clamps above the last point")
}

func TestVehicleSoCAtInterpolatesBatteryLog(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := &Vehicle{ID: "v1"}
	v.LogSoC(base, 1.0)
	v.LogSoC(base.Add(time.Hour), 0.5)

	assert.InDelta(t, 0.75, v.SoCAt(base.Add(30*time.Minute)), 1e-9)
	assert.InDelta(t, 1.0, v.SoCAt(base.Add(-time.Minute)), 1e-9)
	assert.InDelta(t, 0.5, v.SoCAt(base.Add(2*time.Hour)), 1e-9)
}

func TestAreaValidate(t *testing.T) {
	cases := []struct {
		name    string
		area    Area
		wantErr bool
	}{
		{"line capacity multiple of block length", Area{ID: "a", Type: AreaLine, Capacity: 12, BlockLength: 6}, false},
		{"line capacity not a multiple", Area{ID: "a", Type: AreaLine, Capacity: 10, BlockLength: 6}, true},
		{"line without block length", Area{ID: "a", Type: AreaLine, Capacity: 6}, true},
		{"twoside odd capacity", Area{ID: "a", Type: AreaDirectTwoSide, Capacity: 7}, true},
		{"twoside even capacity", Area{ID: "a", Type: AreaDirectTwoSide, Capacity: 8}, false},
		{"oneside any capacity", Area{ID: "a", Type: AreaDirectOneSide, Capacity: 7}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.area.Validate()
			if tc.wantErr {
				require.Error(t, err)
				var ice *InvalidConfigError
				require.ErrorAs(t, err, &ice)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAreaFilters(t *testing.T) {
	a := Area{ID: "a", PermittedType: "bus12", PermittedProcesses: []ProcessKind{ProcessCharge}}
	assert.True(t, a.AllowsVehicleType("bus12"))
	assert.False(t, a.AllowsVehicleType("coach"))
	assert.True(t, a.AllowsProcess(ProcessCharge))
	assert.False(t, a.AllowsProcess(ProcessClean))

	any := Area{ID: "b"}
	assert.True(t, any.AllowsVehicleType("coach"))
}

func TestScenarioCloneIsIndependent(t *testing.T) {
	day := time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)
	s := &Scenario{
		ID:           "s1",
		VehicleTypes: map[string]*VehicleType{"bus": {ID: "bus", BatteryCapacityKWh: 300}},
		Depots: map[string]*Depot{
			"d1": {ID: "d1", Areas: []Area{{ID: "a1", Capacity: 4}}},
		},
		Rotations: []Rotation{
			{ID: "r1", VehicleTypeID: "bus", Trips: []Trip{{Departure: day, Arrival: day.Add(time.Hour)}}},
		},
	}

	clone := s.Clone()
	clone.VehicleTypes["bus"].BatteryCapacityKWh = 999
	clone.Depots["d1"].Areas[0].Capacity = 99
	clone.Rotations[0].Trips[0].DistanceKM = 42

	assert.Equal(t, 300.0, s.VehicleTypes["bus"].BatteryCapacityKWh)
	assert.Equal(t, 4, s.Depots["d1"].Areas[0].Capacity)
	assert.Equal(t, 0.0, s.Rotations[0].Trips[0].DistanceKM)
}

func TestMemRepositoryRoundTrip(t *testing.T) {
	repo := NewMemRepository()
	s := &Scenario{ID: "s1", VehicleTypes: map[string]*VehicleType{}, Depots: map[string]*Depot{}}
	repo.Put(s)

	loaded, err := repo.LoadScenario("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", loaded.ID)

	_, err = repo.LoadScenario("missing")
	require.Error(t, err)

	require.NoError(t, repo.SaveResults("s1", []Event{{VehicleID: "v1"}}, map[string]string{"r1": "v1"}, nil))
	events, assignments, _, ok := repo.Results("s1")
	require.True(t, ok)
	assert.Len(t, events, 1)
	assert.Equal(t, "v1", assignments["r1"])
}

func TestRotationTimes(t *testing.T) {
	day := time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)
	r := Rotation{Trips: []Trip{
		{Departure: day, Arrival: day.Add(time.Hour)},
		{Departure: day.Add(2 * time.Hour), Arrival: day.Add(3 * time.Hour)},
	}}
	assert.True(t, r.DepartureTime().Equal(day))
	assert.True(t, r.ArrivalTime().Equal(day.Add(3*time.Hour)))

	var empty Rotation
	assert.True(t, empty.DepartureTime().IsZero())
}
