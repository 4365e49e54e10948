package signals

import "math"

// clamp restricts a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// round rounds to specified decimal places
func round(value float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(value*mult) / mult
}

// abs returns the absolute value of a float64
func abs(x float64) float64 {
	return math.Abs(x)
}

// minFloat returns the minimum of two float64 values
func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// pctReturn calculates the fractional change from old to new
func pctReturn(old, newVal float64) float64 {
	if old == 0 {
		return 0
	}
	return (newVal - old) / old
}

// deref returns the pointed-to value or zero
func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
