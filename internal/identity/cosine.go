package identity

import (
	"math"

	"github.com/hupe1980/vecgo/distance"
)

// norm returns the L2 norm of v.
func norm(v []float32) float64 {
	if len(v) == 0 {
		return 0
	}
	return math.Sqrt(float64(distance.Dot(v, v)))
}

// CosineSimilarity returns dot(a,b)/(|a|·|b|) clamped to [-1, 1].
// ok is false for vectors of different length or with zero norm; the score is then 0.
func CosineSimilarity(a, b []float32) (score float64, ok bool) {
	return cosineWithNorms(a, norm(a), b, norm(b))
}

func cosineWithNorms(a []float32, normA float64, b []float32, normB float64) (float64, bool) {
	if len(a) != len(b) || normA == 0 || normB == 0 {
		return 0, false
	}

	score := float64(distance.Dot(a, b)) / (normA * normB)
	// float32 accumulation can overshoot slightly for near-identical vectors
	return max(-1, min(1, score)), true
}
