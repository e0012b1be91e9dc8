package ml

import (
	"errors"
	"math"
)

// MinMaxScaler maps values linearly onto [0, 1] using the range seen in Fit.
// A constant input maps to 0 and inverts back to that constant.
type MinMaxScaler struct {
	min, max float64
	fitted   bool
}

func (s *MinMaxScaler) Fit(values []float64) error {
	if len(values) == 0 {
		return errors.New("values is empty")
	}
	s.min, s.max = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("values must be finite")
		}
		s.min = math.Min(s.min, v)
		s.max = math.Max(s.max, v)
	}
	s.fitted = true
	return nil
}

func (s *MinMaxScaler) Transform(values []float64) ([]float64, error) {
	if !s.fitted {
		return nil, errors.New("scaler not fitted")
	}
	span := s.span()
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - s.min) / span
	}
	return out, nil
}

func (s *MinMaxScaler) Inverse(v float64) (float64, error) {
	if !s.fitted {
		return 0, errors.New("scaler not fitted")
	}
	return v*s.span() + s.min, nil
}

func (s *MinMaxScaler) span() float64 {
	if s.max == s.min {
		return 1
	}
	return s.max - s.min
}
