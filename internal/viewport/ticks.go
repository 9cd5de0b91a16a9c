package viewport

import "math"

const (
	// MinTickSpacing is the smallest distance between axis ticks in pixels.
	MinTickSpacing = 100.0

	minTickExponent = -1
	maxTickExponent = 15

	// maxTicks bounds Ticks for pathological intervals
	maxTicks = 1000
)

var tickMantissas = [...]float64{1, 2, 5}

// NiceTickInterval returns the smallest interval from {1, 2, 5}×10^n,
// n in [-1, 15], whose ticks are at least minSpacing pixels apart when
// axisRange is drawn over height pixels. When even the largest candidate is
// too dense it is returned anyway. The boolean is false if the inputs do not
// describe a drawable axis.
func NiceTickInterval(axisRange, height, minSpacing float64) (float64, bool) {
	if !(axisRange > 0) || math.IsInf(axisRange, 0) || !(height > 0) || math.IsInf(height, 0) {
		return 0, false
	}

	pixelsPerUnit := height / axisRange

	var candidate float64
	for n := minTickExponent; n <= maxTickExponent; n++ {
		for _, m := range tickMantissas {
			candidate = m * math.Pow10(n)
			if candidate*pixelsPerUnit >= minSpacing {
				return candidate, true
			}
		}
	}
	return candidate, true
}

// Ticks returns the axis values of every tick inside the visible axis range,
// anchored at zero and ordered from the top of the display downwards.
func (v *Viewport) Ticks() []float64 {
	axisMin, axisMax := v.AxisRange()
	if !(v.tickInterval > 0) || !(axisMax > axisMin) {
		return nil
	}

	first := math.Floor(axisMax/v.tickInterval) * v.tickInterval
	if (first-axisMin)/v.tickInterval > maxTicks {
		return nil
	}

	var ticks []float64
	for i := 0; ; i++ {
		tick := first - float64(i)*v.tickInterval
		if tick < axisMin {
			break
		}
		ticks = append(ticks, tick)
	}
	return ticks
}
