package depotgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depotsim/domain"
)

func testDepot() *domain.Depot {
	return &domain.Depot{
		ID: "d1",
		Areas: []domain.Area{
			{ID: "direct-clean", Type: domain.AreaDirectOneSide, Capacity: 2, PermittedProcesses: []domain.ProcessKind{domain.ProcessClean}},
			{ID: "line-charge", Type: domain.AreaLine, Capacity: 6, BlockLength: 6, PermittedProcesses: []domain.ProcessKind{domain.ProcessCharge}},
			{ID: "line-charge-short", Type: domain.AreaLine, Capacity: 3, BlockLength: 3, PermittedProcesses: []domain.ProcessKind{domain.ProcessCharge}},
		},
	}
}

func TestAreasForOrdersMatchingLineBeforeFallback(t *testing.T) {
	g := New(testDepot())
	vt := &domain.VehicleType{ID: "bus"}

	areas := g.AreasFor(vt, domain.ProcessCharge, 6)
	require.Len(t, areas, 2)
	assert.Equal(t, "line-charge", areas[0].ID)
	assert.Equal(t, "line-charge-short", areas[1].ID)
}

func TestCanParkRejectsWhenFull(t *testing.T) {
	g := New(testDepot())
	vt := &domain.VehicleType{ID: "bus"}
	v := &domain.Vehicle{ID: "v1", Type: vt}
	area := g.Depot.AreaByID("direct-clean")

	assert.True(t, g.CanPark(v, area, nil, 6))
	g.Claim(area.ID)
	g.Claim(area.ID)
	assert.False(t, g.CanPark(v, area, nil, 6))
}

func TestCanParkRejectsWhenPlanSuffixUnreachable(t *testing.T) {
	g := New(testDepot())
	vt := &domain.VehicleType{ID: "bus"}
	v := &domain.Vehicle{ID: "v1", Type: vt}
	area := g.Depot.AreaByID("direct-clean")

	ok := g.CanPark(v, area, []domain.Process{{Kind: domain.ProcessShunt}}, 6)
	assert.False(t, ok)
}

func TestCanParkRejectsWrongVehicleType(t *testing.T) {
	depot := testDepot()
	depot.Areas[0].PermittedType = "coach"
	g := New(depot)
	v := &domain.Vehicle{ID: "v1", Type: &domain.VehicleType{ID: "bus"}}

	assert.False(t, g.CanPark(v, g.Depot.AreaByID("direct-clean"), nil, 6))
}
