package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dessertcast/db"
	"dessertcast/form"
	"dessertcast/monitoring"
	"dessertcast/session"

	"go.uber.org/zap"
)

// SessionCookie carries the form session id.
const SessionCookie = "dessertcast_session"

//go:embed web
var webFiles embed.FS

var indexTmpl = template.Must(template.ParseFS(webFiles, "web/templates/index.html"))

// HistoryStore records finished submissions.
type HistoryStore interface {
	SaveSubmission(ctx context.Context, s db.Submission) (int64, error)
	RecentSubmissions(ctx context.Context, limit int) ([]db.Submission, error)
}

// FormHandler serves the twelve-month form. Hub, History and Metrics are
// optional.
type FormHandler struct {
	Sessions  *session.Store
	Predictor form.Predictor
	Hub       *monitoring.Hub
	History   HistoryStore
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
}

// stateView is the JSON shape of a form session.
type stateView struct {
	form.State
	Invalid [form.SlotCount]bool `json:"invalid"`
	Banner  string               `json:"banner,omitempty"`
}

func newStateView(st form.State) stateView {
	return stateView{State: st, Invalid: st.InvalidSlots(), Banner: st.Banner()}
}

type slotView struct {
	Index   int
	Month   string
	Value   string
	Invalid bool
}

type pageData struct {
	Slots   []slotView
	Error   string
	Loading bool
	Banner  string
}

func newPageData(st form.State) pageData {
	data := pageData{
		Slots:   make([]slotView, form.SlotCount),
		Error:   st.Error,
		Loading: st.Loading,
		Banner:  st.Banner(),
	}
	for i := range data.Slots {
		data.Slots[i] = slotView{
			Index:   i,
			Month:   form.MonthNames[i],
			Value:   st.Inputs[i],
			Invalid: st.Invalid(i),
		}
	}
	return data
}

func (h *FormHandler) Register(mux *http.ServeMux) {
	static, _ := fs.Sub(webFiles, "web/static")

	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	mux.HandleFunc("POST /slots/{index}", h.handleSetSlot)
	mux.HandleFunc("POST /submit", h.handleSubmit)
	mux.HandleFunc("GET /api/state", h.handleState)
	mux.HandleFunc("GET /api/history", h.handleHistory)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /ws", h.handleWS)
}

func (h *FormHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// session returns the caller's form, creating one (and its cookie) when the
// cookie is missing or refers to an evicted session.
func (h *FormHandler) session(w http.ResponseWriter, r *http.Request) (string, *form.Session) {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}

	id, sess, created := h.Sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		if h.Hub != nil {
			topic := id
			sess.Observe(func(st form.State) {
				if err := h.Hub.Publish(topic, monitoring.StateUpdate, newStateView(st)); err != nil {
					h.logger().Warn("publish state failed", zap.String("session", topic), zap.Error(err))
				}
			})
		}
	}
	return id, sess
}

func (h *FormHandler) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, sess := h.session(w, r)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := indexTmpl.Execute(w, newPageData(sess.Snapshot())); err != nil {
		h.logger().Error("render form failed", zap.Error(err))
	}
}

func (h *FormHandler) handleSetSlot(w http.ResponseWriter, r *http.Request) {
	_, sess := h.session(w, r)

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "slot index must be an integer")
		return
	}
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	if err := sess.SetSlot(index, r.PostForm.Get("value")); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, newStateView(sess.Snapshot()))
}

// handleSubmit applies any edited slots from the posted form, then runs one
// submit cycle unless a prediction is already in flight for this session.
func (h *FormHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, sess := h.session(w, r)

	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	current := sess.Snapshot()
	for i := 0; i < form.SlotCount; i++ {
		values, ok := r.PostForm[fmt.Sprintf("month-%d", i)]
		if !ok || len(values) == 0 || values[0] == current.Inputs[i] {
			continue
		}
		if err := sess.SetSlot(i, values[0]); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	status := http.StatusOK
	if sess.Snapshot().Loading {
		h.logger().Info("submit ignored, prediction already in flight", zap.String("session", id))
		status = http.StatusConflict
		h.count(monitoring.OutcomeIgnored, 0)
	} else {
		// The request outlives a disconnecting browser.
		ctx := context.WithoutCancel(r.Context())
		start := time.Now()
		err := sess.Submit(ctx, h.Predictor)
		elapsed := time.Since(start)
		switch {
		case errors.Is(err, form.ErrValidation):
			status = http.StatusUnprocessableEntity
			h.count(monitoring.OutcomeInvalid, 0)
		case errors.Is(err, form.ErrRequest):
			status = http.StatusBadGateway
			h.count(monitoring.OutcomeRequestFailed, elapsed)
		default:
			h.count(monitoring.OutcomePredicted, elapsed)
		}
		h.record(ctx, id, sess.Snapshot())
	}

	if !wantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	respondJSON(w, status, newStateView(sess.Snapshot()))
}

func (h *FormHandler) count(outcome monitoring.Outcome, elapsed time.Duration) {
	if h.Metrics != nil {
		h.Metrics.RecordSubmit(outcome, elapsed)
	}
}

func (h *FormHandler) record(ctx context.Context, id string, st form.State) {
	if h.History == nil {
		return
	}
	_, err := h.History.SaveSubmission(ctx, db.Submission{
		SessionID:  id,
		Inputs:     append([]string(nil), st.Inputs[:]...),
		Prediction: st.Prediction,
		Error:      st.Error,
	})
	if err != nil {
		h.logger().Warn("record submission failed", zap.String("session", id), zap.Error(err))
	}
}

func (h *FormHandler) handleState(w http.ResponseWriter, r *http.Request) {
	_, sess := h.session(w, r)
	respondJSON(w, http.StatusOK, newStateView(sess.Snapshot()))
}

func (h *FormHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		respondError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 {
			limit = l
		}
	}

	subs, err := h.History.RecentSubmissions(r.Context(), limit)
	if err != nil {
		h.logger().Error("load history failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"submissions": subs,
		"count":       len(subs),
		"limit":       limit,
	})
}

func (h *FormHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.Metrics == nil {
		respondError(w, http.StatusServiceUnavailable, "metrics are disabled")
		return
	}
	if r.URL.Query().Get("format") == "prometheus" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, h.Metrics.ExportPrometheus())
		return
	}
	respondJSON(w, http.StatusOK, h.Metrics.Snapshot())
}

func (h *FormHandler) handleWS(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		respondError(w, http.StatusServiceUnavailable, "live updates are disabled")
		return
	}
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		respondError(w, http.StatusBadRequest, "no session")
		return
	}
	if _, ok := h.Sessions.Get(c.Value); !ok {
		respondError(w, http.StatusNotFound, "unknown session")
		return
	}
	if err := h.Hub.Serve(w, r, c.Value); err != nil {
		h.logger().Debug("websocket connect failed", zap.Error(err))
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode JSON", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
