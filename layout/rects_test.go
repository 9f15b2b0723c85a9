package layout

import (
	"testing"

	"depotsim/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackPlacesSingleRectangleAtPerimeterCorner(t *testing.T) {
	inputs := []Input{{AreaID: "a1", W: 108, H: 48, Type: domain.AreaDirectOneSide}}
	placements, err := Pack(inputs, 120, 120, 4)
	require.NoError(t, err)
	require.Len(t, placements, 1)
	assert.Equal(t, 4.0, placements[0].X)
	assert.Equal(t, 4.0, placements[0].Y)
}

func TestPackRejectsRectangleLargerThanFootprint(t *testing.T) {
	inputs := []Input{{AreaID: "a1", W: 200, H: 48, Type: domain.AreaDirectOneSide}}
	_, err := Pack(inputs, 120, 120, 4)
	require.Error(t, err)
	_, ok := err.(*domain.PlacementFailedError)
	assert.True(t, ok)
}

func TestPackPlacesMultipleRectanglesWithoutOverlap(t *testing.T) {
	inputs := []Input{
		{AreaID: "direct", W: 60, H: 20, Type: domain.AreaDirectOneSide},
		{AreaID: "line-1", W: 20, H: 40, Type: domain.AreaLine},
		{AreaID: "line-2", W: 20, H: 40, Type: domain.AreaLine},
	}
	placements, err := Pack(inputs, 120, 120, 4)
	require.NoError(t, err)
	require.Len(t, placements, 3)
	for i := 0; i < len(placements); i++ {
		for j := i + 1; j < len(placements); j++ {
			assert.False(t, overlaps(placements[i], placements[j]), "%s and %s overlap", placements[i].AreaID, placements[j].AreaID)
		}
	}
}

func overlaps(a, b Placement) bool {
	return a.X < b.X+b.W && b.X < a.X+a.W && a.Y < b.Y+b.H && b.Y < a.Y+a.H
}

func TestShrinkFootprintConverges(t *testing.T) {
	inputs := []Input{
		{AreaID: "direct", W: 30, H: 20, Type: domain.AreaDirectOneSide},
	}
	w, h, placements, err := ShrinkFootprint(inputs, 4, 5)
	require.NoError(t, err)
	require.NotEmpty(t, placements)
	assert.GreaterOrEqual(t, w, 30+8.0)
	assert.GreaterOrEqual(t, h, 20+8.0)
}

func TestShrinkFootprintRunsAllThreePhases(t *testing.T) {
	// A single 40x20 rectangle with a 4m perimeter: the simultaneous phase stops at 50x50
	// (45x45 leaves only 37m of usable width), the width-only phase cannot move for the same
	// reason, and the height-only phase walks down to 30 (25 leaves 17m < 20m of height).
	inputs := []Input{{AreaID: "a", W: 40, H: 20, Type: domain.AreaDirectOneSide}}
	w, h, placements, err := ShrinkFootprint(inputs, 4, 5)
	require.NoError(t, err)
	require.Len(t, placements, 1)
	assert.Equal(t, 50.0, w)
	assert.Equal(t, 30.0, h)
}

func TestRectForLineGrowsWithBlockLengthAndLanes(t *testing.T) {
	vt := &domain.VehicleType{LengthM: 12, WidthM: 2.35}
	area := domain.Area{Type: domain.AreaLine, Capacity: 12, BlockLength: 6}
	w, h := RectFor(area, vt)
	assert.InDelta(t, 2*2.35, w, 1e-9)
	assert.InDelta(t, 6*12.0, h, 1e-9)
}
