package indicator

import "math"

// BollingerBands computes the volatility envelope: middle = SMA(period),
// upper/lower = middle +/- width * rolling standard deviation. All three are
// nil below `period` observations.
func BollingerBands(closes []float64, period int, width float64) (upper, middle, lower *float64) {
	if period <= 0 || len(closes) < period {
		return nil, nil, nil
	}

	var sum float64
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	mid := sum / float64(period)

	var variance float64
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - mid
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))

	upper = finite(mid + sd*width)
	middle = finite(mid)
	lower = finite(mid - sd*width)
	return upper, middle, lower
}
