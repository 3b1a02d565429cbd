package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizedDistance(t *testing.T) {
	assert.Equal(t, 0.0, NormalizedDistance(0))
	assert.Equal(t, 0.0, NormalizedDistance(-10))
	assert.Equal(t, 0.5, NormalizedDistance(5000))
	assert.Equal(t, 1.0, NormalizedDistance(10000))
	assert.Equal(t, 1.0, NormalizedDistance(25000))
}

func TestCost_SimpleModeScenario(t *testing.T) {
	assert.InDelta(t, 0.29, Cost(0.8, 5000, 0.7, nil), 1e-9)
}

func TestCost_AlphaExtremes(t *testing.T) {
	// alpha 1 ignores distance, alpha 0 ignores safety.
	assert.InDelta(t, Cost(0.6, 100, 1, nil), Cost(0.6, 9000, 1, nil), 1e-12)
	assert.InDelta(t, Cost(0.1, 4000, 0, nil), Cost(0.9, 4000, 0, nil), 1e-12)
}

func TestNormalizeWeights_SumsToOne(t *testing.T) {
	triples := []Weights{
		{1, 1, 1},
		{0.3, 0.5, 0.2},
		{10, 0.001, 3},
		{1e6, 2, 7},
		{0, 0, 0},
		{-1, 4, 0},
	}
	for _, w := range triples {
		n := NormalizeWeights(w)
		assert.InDelta(t, 1.0, n.Distance+n.Safety+n.Speed, 1e-9, "%+v", w)
	}
}

func TestNormalizeWeights_Defaults(t *testing.T) {
	n := NormalizeWeights(Weights{})
	assert.InDelta(t, 0.3, n.Distance, 1e-12)
	assert.InDelta(t, 0.5, n.Safety, 1e-12)
	assert.InDelta(t, 0.2, n.Speed, 1e-12)
}

func TestCost_WeightedMode(t *testing.T) {
	// Defaults: 0.3*0.5 + 0.5*(1-0.8) + 0.2*(1-1) = 0.25
	assert.InDelta(t, 0.25, Cost(0.8, 5000, 0.7, &Weights{}), 1e-9)

	// Only safety set: raw weights 0.3, 1.0, 0.2 normalize over 1.5.
	got := Cost(0.5, 10000, 0.7, &Weights{Safety: 1.0})
	assert.InDelta(t, 0.3/1.5*1+1.0/1.5*0.5, got, 1e-9)
}

func TestCost_SpeedTermIsNeutral(t *testing.T) {
	a := Cost(0.7, 3000, 0, &Weights{Distance: 1, Safety: 1, Speed: 0.001})
	b := Cost(0.7, 3000, 0, &Weights{Distance: 1, Safety: 1, Speed: 1000})
	// The speed term adds nothing; a larger speed weight only shrinks the rest.
	assert.Greater(t, a, b)
}

func TestClampAlpha(t *testing.T) {
	assert.Equal(t, 0.0, ClampAlpha(-2))
	assert.Equal(t, 0.5, ClampAlpha(0.5))
	assert.Equal(t, 1.0, ClampAlpha(7))
}
