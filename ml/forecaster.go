// Package ml holds the next-month production forecaster served by predictd.
package ml

import (
	"errors"
	"fmt"
)

// WindowSize is the number of monthly figures a forecast needs.
const WindowSize = 12

var ErrWindowSize = errors.New("window must contain exactly 12 values")

// Forecaster predicts the value following a window of monthly figures.
type Forecaster interface {
	Forecast(window []float64) (float64, error)
}

// TrendForecaster scales the window onto [0, 1], fits a least-squares line
// through it and extrapolates one month ahead.
type TrendForecaster struct{}

func NewTrendForecaster() *TrendForecaster {
	return &TrendForecaster{}
}

func (f *TrendForecaster) Forecast(window []float64) (float64, error) {
	if len(window) != WindowSize {
		return 0, fmt.Errorf("%w, got %d", ErrWindowSize, len(window))
	}

	scaler := &MinMaxScaler{}
	if err := scaler.Fit(window); err != nil {
		return 0, err
	}
	scaled, err := scaler.Transform(window)
	if err != nil {
		return 0, err
	}

	slope, intercept := leastSquares(scaled)
	next := intercept + slope*float64(len(scaled))
	return scaler.Inverse(next)
}

// leastSquares fits y = intercept + slope*x for x = 0..len(ys)-1.
func leastSquares(ys []float64) (slope, intercept float64) {
	n := float64(len(ys))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
