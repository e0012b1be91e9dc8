package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"dessertcast/ml"
	"dessertcast/predict"

	"go.uber.org/zap"
)

// windowSizeMessage is returned verbatim to callers that send the wrong
// number of figures.
const windowSizeMessage = "Input must contain exactly 12 values"

// PredictHandler serves the forecasting endpoint the form submits to.
type PredictHandler struct {
	Forecaster ml.Forecaster
	Logger     *zap.Logger
}

func (h *PredictHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("GET /api/health", handleHealth)
}

func (h *PredictHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predict.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.RecentProduction) != ml.WindowSize {
		respondError(w, http.StatusBadRequest, windowSizeMessage)
		return
	}

	value, err := h.Forecaster.Forecast(req.RecentProduction)
	if err != nil {
		if errors.Is(err, ml.ErrWindowSize) {
			respondError(w, http.StatusBadRequest, windowSizeMessage)
			return
		}
		if h.Logger != nil {
			h.Logger.Error("forecast failed", zap.Error(err), zap.String("request_id", GetRequestID(r.Context())))
		}
		respondError(w, http.StatusInternalServerError, "forecast failed")
		return
	}

	if h.Logger != nil {
		fields := []zap.Field{zap.Float64("forecast", value), zap.String("request_id", GetRequestID(r.Context()))}
		if start := GetStartTime(r.Context()); !start.IsZero() {
			fields = append(fields, zap.Duration("elapsed", time.Since(start)))
		}
		h.Logger.Debug("forecast served", fields...)
	}
	respondJSON(w, http.StatusOK, predict.Response{NextMonthPrediction: &value})
}
