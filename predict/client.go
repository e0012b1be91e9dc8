// Package predict talks to the production forecasting service.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultEndpoint is where the forecasting service listens.
const DefaultEndpoint = "http://127.0.0.1:5000/predict"

// Request is the body POSTed to the service.
type Request struct {
	RecentProduction []float64 `json:"recent_production"`
}

// Response is the body returned on success.
type Response struct {
	NextMonthPrediction *float64 `json:"next_month_prediction"`
}

// ErrorResponse is the body returned when the service rejects a request.
type ErrorResponse struct {
	Error string `json:"error"`
}

var ErrMalformedResponse = errors.New("malformed prediction response")

// Client issues one POST per Predict call. It never retries.
type Client struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTimeout bounds each request. Zero keeps the default of no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client = &http.Client{Timeout: timeout, Transport: c.client.Transport}
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint: DefaultEndpoint,
		client:   &http.Client{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Predict sends the production figures and returns the unrounded forecast.
// Non-2xx statuses and bodies without a numeric next_month_prediction are errors.
func (c *Client) Predict(ctx context.Context, production []float64) (float64, error) {
	payload, err := json.Marshal(Request{RecentProduction: production})
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("prediction service responded",
		zap.String("endpoint", c.endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
			return 0, fmt.Errorf("prediction service returned status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return 0, fmt.Errorf("prediction service returned status %d", resp.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.NextMonthPrediction == nil {
		return 0, fmt.Errorf("%w: missing next_month_prediction", ErrMalformedResponse)
	}
	return *out.NextMonthPrediction, nil
}
