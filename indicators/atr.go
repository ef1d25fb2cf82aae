package indicators

import (
	"fmt"
	"math"

	"spotrisk/market"
)

// ATR calculates the Average True Range for the given period using Wilder's
// smoothing. Returns an error if there aren't enough candles for the period.
func ATR(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period+1 {
		return 0, fmt.Errorf("not enough candles: need %d, got %d", period+1, len(candles))
	}

	// True range needs the previous close, so the series starts at index 1.
	trueRanges := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		trueRanges = append(trueRanges, trueRange(candles[i], candles[i-1]))
	}

	// Initial ATR is the SMA of the first 'period' true ranges.
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += trueRanges[i]
	}
	atr := sum / float64(period)

	// Smooth remaining values using Wilder's method.
	for i := period; i < len(trueRanges); i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
	}

	return atr, nil
}

// trueRange calculates the True Range for a candle given the previous candle.
func trueRange(current, previous market.Candle) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)

	return math.Max(highLow, math.Max(highClose, lowClose))
}
