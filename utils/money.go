package utils

import "math"

// Round2 rounds x to 2 decimal places (banking-style simple round).
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Percent returns pct% of amount, rounded to cents.
func Percent(amount, pct float64) float64 {
	return Round2(amount * pct / 100)
}
