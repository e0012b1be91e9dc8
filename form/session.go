package form

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Predictor returns the next month's forecast for twelve chronological figures.
type Predictor interface {
	Predict(ctx context.Context, production []float64) (float64, error)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(ctx context.Context, production []float64) (float64, error)

func (f PredictorFunc) Predict(ctx context.Context, production []float64) (float64, error) {
	return f(ctx, production)
}

// Observer receives a snapshot after every change to a session. Observers
// run synchronously and must not mutate the session they observe.
type Observer func(State)

// Session is the state of one form: inputs, touched slots, the last error,
// the last prediction and the number of requests in flight.
type Session struct {
	mu         sync.Mutex
	inputs     Inputs
	touched    map[int]struct{}
	errMsg     string
	prediction string
	inflight   int

	// notifyMu keeps observers seeing snapshots in mutation order.
	notifyMu  sync.Mutex
	observers []Observer

	logger *zap.Logger
}

type Option func(*Session)

// WithSeed replaces the default seed figures.
func WithSeed(values [SlotCount]float64) Option {
	return func(s *Session) {
		s.inputs = SeedFrom(values)
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession creates a session seeded with SeedInputs.
func NewSession(opts ...Option) *Session {
	s := &Session{
		inputs:  SeedFrom(SeedInputs),
		touched: make(map[int]struct{}),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe registers an observer for future changes.
func (s *Session) Observe(o Observer) {
	s.notifyMu.Lock()
	s.observers = append(s.observers, o)
	s.notifyMu.Unlock()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SetSlot stores raw as typed and marks the slot touched.
func (s *Session) SetSlot(index int, raw string) error {
	if index < 0 || index >= SlotCount {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, index)
	}
	s.update(func() {
		s.inputs[index] = raw
		s.touched[index] = struct{}{}
	})
	return nil
}

// Submit validates the inputs and, when all twelve are numbers, asks p for
// a forecast. Inputs are never cleared. Loading is raised for the duration
// of the call and lowered on every exit path.
func (s *Session) Submit(ctx context.Context, p Predictor) error {
	s.mu.Lock()
	inputs := s.inputs
	s.mu.Unlock()

	numbers, err := Validate(inputs)
	if err != nil {
		s.update(func() {
			s.errMsg = ValidationMessage
			s.prediction = ""
		})
		return err
	}

	s.update(func() { s.inflight++ })
	defer s.update(func() { s.inflight-- })

	value, err := p.Predict(ctx, numbers)
	if err == nil && (math.IsNaN(value) || math.IsInf(value, 0)) {
		err = fmt.Errorf("non-finite forecast %v", value)
	}
	if err != nil {
		s.logger.Error("prediction request failed",
			zap.Error(err),
			zap.Float64s("recent_production", numbers))
		s.update(func() {
			s.errMsg = RequestFailedMessage
			s.prediction = ""
		})
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}

	formatted := FormatPrediction(value)
	s.logger.Debug("prediction received", zap.String("prediction", formatted))
	s.update(func() {
		s.prediction = formatted
		s.errMsg = ""
	})
	return nil
}

func (s *Session) update(fn func()) {
	s.mu.Lock()
	fn()
	st := s.snapshotLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, o := range s.observers {
		o(st)
	}
}

func (s *Session) snapshotLocked() State {
	touched := make([]int, 0, len(s.touched))
	for i := range s.touched {
		touched = append(touched, i)
	}
	sort.Ints(touched)
	return State{
		Inputs:     s.inputs,
		Touched:    touched,
		Error:      s.errMsg,
		Prediction: s.prediction,
		Loading:    s.inflight > 0,
	}
}
