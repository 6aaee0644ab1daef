package mathx

import "math"

// SeaLevel reduces station pressure p (any unit) measured at altitude metres
// to sea level using the international barometric formula.
func SeaLevel(p, altitude float64) float64 {
	if altitude == 0 {
		return p
	}
	return p / math.Pow(1-altitude/44330.0, 5.255)
}
