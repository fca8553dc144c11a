package faces

import (
	"fmt"
	"math"

	"faceauth/utils"
)

// DefaultMatchConfidence is the score given to d² == MaxDistanceSq when no threshold is set
const DefaultMatchConfidence = 80.0

// DistanceComparator scores descriptors by squared euclidean distance, the same metric the dlib
// classifier uses. A distance of exactly MaxDistanceSq scores Threshold.
type DistanceComparator struct {
	MaxDistanceSq float64
	Threshold     float64 // in (0,100), DefaultMatchConfidence otherwise
}

func (c DistanceComparator) Compare(a, b []byte) (float64, error) {
	va, err := utils.ByteArrayToFloat32Array(a)
	if err != nil {
		return 0, err
	}
	vb, err := utils.ByteArrayToFloat32Array(b)
	if err != nil {
		return 0, err
	}
	if len(va) == 0 || len(va) != len(vb) {
		return 0, fmt.Errorf("%w: lengths %d and %d", ErrEncodingMismatch, len(va), len(vb))
	}
	return ConfidenceFromDistanceSq(SquaredEuclideanDistance(va, vb), c.MaxDistanceSq, c.Threshold), nil
}

func SquaredEuclideanDistance(a, b []float32) (sum float64) {
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return
}

// ConfidenceFromDistanceSq maps d² linearly onto [0,100] with d² == maxDistanceSq landing on threshold
func ConfidenceFromDistanceSq(distanceSq, maxDistanceSq, threshold float64) float64 {
	if maxDistanceSq <= 0 || math.IsNaN(distanceSq) {
		return 0
	}
	if threshold <= 0 || threshold >= 100 || math.IsNaN(threshold) {
		threshold = DefaultMatchConfidence
	}
	ratio := (100 - threshold) / 100
	confidence := 100 * (1 - ratio*distanceSq/maxDistanceSq)
	return math.Max(0, math.Min(100, confidence))
}
