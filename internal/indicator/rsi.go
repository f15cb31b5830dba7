package indicator

// rsiEpsilon replaces a zero average loss so that a one-sided market
// saturates near 100 instead of dividing by zero.
const rsiEpsilon = 1e-10

// RSI computes the Relative Strength Index over the trailing window of
// `period` price changes, using simple rolling means of gains and losses.
// Returns nil when the series is shorter than period+1.
func RSI(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}

	var gains, losses float64
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		avgLoss = rsiEpsilon
	}

	rs := avgGain / avgLoss
	return finite(100.0 - 100.0/(1.0+rs))
}
