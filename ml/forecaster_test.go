package ml

import (
	"errors"
	"math"
	"testing"
)

func TestTrendForecasterLinearSeries(t *testing.T) {
	window := make([]float64, WindowSize)
	for i := range window {
		window[i] = 100 + 2*float64(i)
	}

	got, err := NewTrendForecaster().Forecast(window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-124) > 1e-9 {
		t.Fatalf("expected 124, got %v", got)
	}
}

func TestTrendForecasterConstantSeries(t *testing.T) {
	window := make([]float64, WindowSize)
	for i := range window {
		window[i] = 131.0
	}

	got, err := NewTrendForecaster().Forecast(window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-131.0) > 1e-9 {
		t.Fatalf("expected 131, got %v", got)
	}
}

func TestTrendForecasterSeedIsPlausible(t *testing.T) {
	seed := []float64{110.5, 115.2, 112.3, 118.0, 120.5, 125.3, 123.1, 128.6, 130.7, 129.4, 131.0, 132.5}
	got, err := NewTrendForecaster().Forecast(seed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got < 130 || got > 140 {
		t.Fatalf("expected forecast near the recent trend, got %v", got)
	}
}

func TestTrendForecasterWindowSize(t *testing.T) {
	for _, n := range []int{0, 11, 13} {
		_, err := NewTrendForecaster().Forecast(make([]float64, n))
		if !errors.Is(err, ErrWindowSize) {
			t.Fatalf("len %d: expected ErrWindowSize, got %v", n, err)
		}
	}
}

func TestMinMaxScalerRoundTrip(t *testing.T) {
	s := &MinMaxScaler{}
	if _, err := s.Transform([]float64{1}); err == nil {
		t.Fatal("expected error before Fit")
	}
	if err := s.Fit([]float64{10, 20, 30}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	scaled, err := s.Transform([]float64{10, 25, 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{0, 0.75, 1}
	for i := range want {
		if math.Abs(scaled[i]-want[i]) > 1e-12 {
			t.Fatalf("scaled[%d] = %v, want %v", i, scaled[i], want[i])
		}
	}
	back, _ := s.Inverse(0.75)
	if math.Abs(back-25) > 1e-12 {
		t.Fatalf("inverse = %v, want 25", back)
	}
}

func TestMinMaxScalerRejectsNonFinite(t *testing.T) {
	s := &MinMaxScaler{}
	if err := s.Fit([]float64{1, math.NaN()}); err == nil {
		t.Fatal("expected error for NaN")
	}
	if err := s.Fit(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}
