// Package backtest replays a forecaster over a monthly production series.
package backtest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"dessertcast/ml"

	"go.uber.org/zap"
)

var ErrShortSeries = fmt.Errorf("series must contain more than %d values", ml.WindowSize)

// Point 单步回测结果: the forecast for series[Index] made from the twelve
// months before it.
type Point struct {
	Index    int     `json:"index"`
	Actual   float64 `json:"actual"`
	Forecast float64 `json:"forecast"`
	Error    float64 `json:"error"`
}

// Summary 回测摘要
type Summary struct {
	Count int     `json:"count"`
	MAE   float64 `json:"mae"`
	RMSE  float64 `json:"rmse"`
	MAPE  float64 `json:"mape"` // percent; zero actuals are skipped
	Bias  float64 `json:"bias"` // mean forecast minus actual
}

// Results 回测结果
type Results struct {
	Summary   Summary       `json:"summary"`
	Points    []Point       `json:"points"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
}

// Engine 回测引擎
type Engine struct {
	mu         sync.RWMutex
	forecaster ml.Forecaster
	logger     *zap.Logger
	progress   float64
}

// NewEngine 创建回测引擎
func NewEngine(f ml.Forecaster, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{forecaster: f, logger: logger}
}

// Progress 返回进度 (0-100)
func (e *Engine) Progress() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.progress
}

func (e *Engine) setProgress(p float64) {
	e.mu.Lock()
	e.progress = p
	e.mu.Unlock()
}

// Run 执行回测: one-step-ahead forecasts from every full window in series.
func (e *Engine) Run(ctx context.Context, series []float64) (*Results, error) {
	if len(series) <= ml.WindowSize {
		return nil, fmt.Errorf("%w, got %d", ErrShortSeries, len(series))
	}

	start := time.Now()
	e.setProgress(0)
	steps := len(series) - ml.WindowSize
	points := make([]Point, 0, steps)

	for t := ml.WindowSize; t < len(series); t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		forecast, err := e.forecaster.Forecast(series[t-ml.WindowSize : t])
		if err != nil {
			return nil, fmt.Errorf("forecast month %d: %w", t, err)
		}
		points = append(points, Point{
			Index:    t,
			Actual:   series[t],
			Forecast: forecast,
			Error:    forecast - series[t],
		})
		e.setProgress(100 * float64(len(points)) / float64(steps))
	}

	res := &Results{
		Summary:   summarize(points),
		Points:    points,
		StartTime: start,
		Duration:  time.Since(start),
	}
	e.logger.Info("backtest completed",
		zap.Int("points", res.Summary.Count),
		zap.Float64("mae", res.Summary.MAE),
		zap.Float64("rmse", res.Summary.RMSE),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func summarize(points []Point) Summary {
	s := Summary{Count: len(points)}
	if len(points) == 0 {
		return s
	}

	var absSum, sqSum, bias, pctSum float64
	pctCount := 0
	for _, p := range points {
		absSum += math.Abs(p.Error)
		sqSum += p.Error * p.Error
		bias += p.Error
		if p.Actual != 0 {
			pctSum += math.Abs(p.Error / p.Actual)
			pctCount++
		}
	}

	n := float64(len(points))
	s.MAE = absSum / n
	s.RMSE = math.Sqrt(sqSum / n)
	s.Bias = bias / n
	if pctCount > 0 {
		s.MAPE = 100 * pctSum / float64(pctCount)
	}
	return s
}
