package detect

import "math"

// Mean returns the arithmetic mean of the values, 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation of the values.
// With fewer than two values the spread is 0 by definition.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

// AnomalyThreshold returns mean + multiplier*stddev over the values
func AnomalyThreshold(values []float64, multiplier float64) float64 {
	return Mean(values) + multiplier*StdDev(values)
}
