package indicator

// emaSeries computes the full exponential moving average series, seeded with
// the first observation.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	multiplier := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*multiplier + out[i-1]
	}
	return out
}

// EMA returns the exponential moving average at the end of the series, or
// nil when the series is shorter than the period.
func EMA(values []float64, period int) *float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	series := emaSeries(values, period)
	return finite(series[len(series)-1])
}

// SMA returns the simple moving average of the last `period` values, or nil
// when the series is shorter than the period.
func SMA(values []float64, period int) *float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	var sum float64
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return finite(sum / float64(period))
}

// VolumeSMA returns the rolling mean of volume. The window shrinks to the
// series length for short series, so it is defined for any non-empty input.
func VolumeSMA(volumes []float64, period int) *float64 {
	if len(volumes) == 0 {
		return nil
	}
	window := period
	if len(volumes) < window {
		window = len(volumes)
	}
	var sum float64
	for i := len(volumes) - window; i < len(volumes); i++ {
		sum += volumes[i]
	}
	return finite(sum / float64(window))
}
