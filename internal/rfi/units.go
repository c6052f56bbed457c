package rfi

import "math"

// DB converts linear power to decibels.
func DB(x float64) float64 {
	return 10 * math.Log10(x)
}

// Lin converts decibels to linear power.
func Lin(db float64) float64 {
	return math.Pow(10, db/10)
}

func toDB(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = DB(v)
	}
	return out
}
