package indicator

const (
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
)

// MACD computes the MACD line (EMA12 - EMA26), its EMA9 signal line, and the
// histogram (macd - signal). All three are nil when the series holds fewer
// than 26 observations.
func MACD(closes []float64) (macd, signal, histogram *float64) {
	if len(closes) < macdSlowPeriod {
		return nil, nil, nil
	}

	fast := emaSeries(closes, macdFastPeriod)
	slow := emaSeries(closes, macdSlowPeriod)

	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fast[i] - slow[i]
	}
	signalSeries := emaSeries(line, macdSignalPeriod)

	m := line[len(line)-1]
	s := signalSeries[len(signalSeries)-1]

	macd = finite(m)
	signal = finite(s)
	histogram = finite(m - s)
	return macd, signal, histogram
}
