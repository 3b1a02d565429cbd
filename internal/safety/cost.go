package safety

// DistanceNormalizer is the distance in meters at which the distance term saturates.
const DistanceNormalizer = 10000.0

// Default raw cost weights for weighted mode.
const (
	DefaultWeightDistance = 0.3
	DefaultWeightSafety   = 0.5
	DefaultWeightSpeed    = 0.2
)

// SpeedFactor is the speed quality term of weighted cost. It stays 1.0 until
// a real signal exists, so the speed weight only dilutes the other two.
const SpeedFactor = 1.0

// Weights are the raw weighted-mode cost weights. Non-positive values take
// the defaults.
type Weights struct {
	Distance float64
	Safety   float64
	Speed    float64
}

// NormalizedDistance maps meters to [0,1], saturating at DistanceNormalizer.
func NormalizedDistance(meters float64) float64 {
	if meters <= 0 {
		return 0
	}
	return min(1, meters/DistanceNormalizer)
}

// NormalizeWeights fills defaults and scales w to sum to 1.
func NormalizeWeights(w Weights) Weights {
	if w.Distance <= 0 {
		w.Distance = DefaultWeightDistance
	}
	if w.Safety <= 0 {
		w.Safety = DefaultWeightSafety
	}
	if w.Speed <= 0 {
		w.Speed = DefaultWeightSpeed
	}
	total := w.Distance + w.Safety + w.Speed
	return Weights{
		Distance: w.Distance / total,
		Safety:   w.Safety / total,
		Speed:    w.Speed / total,
	}
}

// Cost ranks a route; lower is better. With w nil the simple mode
// alpha*(1-safety) + (1-alpha)*nd is used, otherwise the normalized weights.
func Cost(safety, distanceMeters, alpha float64, w *Weights) float64 {
	nd := NormalizedDistance(distanceMeters)
	if w == nil {
		return alpha*(1-safety) + (1-alpha)*nd
	}
	n := NormalizeWeights(*w)
	return n.Distance*nd + n.Safety*(1-safety) + n.Speed*(1-SpeedFactor)
}

// ClampAlpha clamps alpha to [0,1].
func ClampAlpha(alpha float64) float64 {
	return clamp01(alpha)
}
