package simulate

import (
	"testing"

	"depotsim/domain"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/assert"
)

func flatCurve(kw float64) domain.ChargeCurve {
	return domain.ChargeCurve{{SoC: 0, PowerK: kw}, {SoC: 1, PowerK: kw}}
}

func TestChargeDurationFlatCurveMatchesLinearFormula(t *testing.T) {
	// Constant 100kW into a 100kWh battery from 0 to 0.5 SoC takes 30 minutes exactly.
	dur := chargeDuration(flatCurve(100), 100, 1000, 0, 0.5)
	assert.InDelta(t, 1800, dur, 1e-6)
}

func TestChargeDurationClippedByAreaRating(t *testing.T) {
	unclipped := chargeDuration(flatCurve(150), 100, 1000, 0, 0.5)
	clipped := chargeDuration(flatCurve(150), 100, 75, 0, 0.5)
	require.Greater(t, clipped, unclipped, "a weaker area charger must take longer")
	assert.InDelta(t, 2400, clipped, 1e-6)
}

func TestSocAfterIsInverseOfChargeDuration(t *testing.T) {
	curve := flatCurve(100)
	dur := chargeDuration(curve, 100, 1000, 0.2, 0.9)
	soc := socAfter(curve, 100, 1000, 0.2, dur)
	assert.InDelta(t, 0.9, soc, 1e-6)
}

func TestSocAfterPartialElapsedIsBetweenBounds(t *testing.T) {
	curve := flatCurve(100)
	dur := chargeDuration(curve, 100, 1000, 0, 1.0)
	soc := socAfter(curve, 100, 1000, 0, dur/2)
	assert.Greater(t, soc, 0.0)
	assert.Less(t, soc, 1.0)
}
