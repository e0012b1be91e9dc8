package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dessertcast/db"
	"dessertcast/form"
	"dessertcast/monitoring"
	"dessertcast/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPredictor struct {
	mu    sync.Mutex
	calls [][]float64
	fn    func(ctx context.Context, production []float64) (float64, error)
}

func (p *recordingPredictor) Predict(ctx context.Context, production []float64) (float64, error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]float64(nil), production...))
	p.mu.Unlock()
	return p.fn(ctx, production)
}

func (p *recordingPredictor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type formFixture struct {
	server *httptest.Server
	client *http.Client
	store  *session.Store
}

func newFormFixture(t *testing.T, h *FormHandler) *formFixture {
	t.Helper()
	if h.Sessions == nil {
		store, err := session.NewStore(16, nil, nil)
		require.NoError(t, err)
		h.Sessions = store
	}

	srv := httptest.NewServer(NewServer(DefaultServerConfig(), nil, h.Register).Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &formFixture{server: srv, client: client, store: h.Sessions}
}

func (f *formFixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := f.client.Get(f.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *formFixture) post(t *testing.T, path string, values url.Values, asJSON bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.server.URL+path, strings.NewReader(values.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeState(t *testing.T, resp *http.Response) stateView {
	t.Helper()
	var view stateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

func TestIndexRendersSeededForm(t *testing.T) {
	f := newFormFixture(t, &FormHandler{})

	resp := f.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(body)

	assert.Equal(t, form.SlotCount, strings.Count(page, `data-index="`))
	assert.Contains(t, page, `value="110.5"`)
	assert.Contains(t, page, `value="132.5"`)
	assert.Contains(t, page, "🔮 Predict Next Month")
	assert.NotContains(t, page, `class="invalid"`)

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie && c.Value != "" {
			found = true
		}
	}
	assert.True(t, found, "session cookie not set")
	assert.Equal(t, 1, f.store.Len())

	// The same browser keeps its session.
	f.get(t, "/")
	assert.Equal(t, 1, f.store.Len())
}

func TestStaticAssetsServed(t *testing.T) {
	f := newFormFixture(t, &FormHandler{})

	resp := f.get(t, "/static/app.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.get(t, "/static/missing.js")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSetSlotMarksTouched(t *testing.T) {
	f := newFormFixture(t, &FormHandler{})

	resp := f.post(t, "/slots/3", url.Values{"value": {"abc"}}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decodeState(t, resp)
	assert.Equal(t, "abc", view.Inputs[3])
	assert.Equal(t, []int{3}, view.Touched)
	assert.True(t, view.Invalid[3])
	for i, invalid := range view.Invalid {
		if i != 3 {
			assert.False(t, invalid, "slot %d", i)
		}
	}
}

func TestSetSlotRejectsBadIndex(t *testing.T) {
	f := newFormFixture(t, &FormHandler{})

	for _, index := range []string{"12", "-1", "x"} {
		resp := f.post(t, "/slots/"+index, url.Values{"value": {"1"}}, true)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, index)
	}
}

func TestSubmitSeededForm(t *testing.T) {
	pred := &recordingPredictor{fn: func(context.Context, []float64) (float64, error) { return 134, nil }}
	f := newFormFixture(t, &FormHandler{Predictor: pred})

	resp := f.post(t, "/submit", url.Values{}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decodeState(t, resp)
	assert.Equal(t, "134.00", view.Prediction)
	assert.Equal(t, "134.00M gallons", view.Banner)
	assert.Empty(t, view.Error)
	assert.False(t, view.Loading)

	require.Equal(t, 1, pred.count())
	assert.Equal(t, []float64{110.5, 115.2, 112.3, 118, 120.5, 125.3, 123.1, 128.6, 130.7, 129.4, 131, 132.5}, pred.calls[0])
}

func TestSubmitAppliesPostedValues(t *testing.T) {
	pred := &recordingPredictor{fn: func(context.Context, []float64) (float64, error) { return 1, nil }}
	f := newFormFixture(t, &FormHandler{Predictor: pred})

	values := url.Values{"month-0": {"200"}, "month-1": {"115.2"}}
	resp := f.post(t, "/submit", values, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decodeState(t, resp)
	// Only the slot that actually changed is touched.
	assert.Equal(t, []int{0}, view.Touched)
	require.Equal(t, 1, pred.count())
	assert.Equal(t, 200.0, pred.calls[0][0])
}

func TestSubmitValidationFailure(t *testing.T) {
	pred := &recordingPredictor{fn: func(context.Context, []float64) (float64, error) { return 1, nil }}
	f := newFormFixture(t, &FormHandler{Predictor: pred})

	resp := f.post(t, "/submit", url.Values{"month-5": {"lots"}}, true)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	view := decodeState(t, resp)
	assert.Equal(t, form.ValidationMessage, view.Error)
	assert.Empty(t, view.Banner)
	assert.True(t, view.Invalid[5])
	assert.Zero(t, pred.count())
}

func TestSubmitRequestFailure(t *testing.T) {
	pred := &recordingPredictor{fn: func(context.Context, []float64) (float64, error) {
		return 0, errors.New("connection refused")
	}}
	f := newFormFixture(t, &FormHandler{Predictor: pred})

	resp := f.post(t, "/submit", url.Values{}, true)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	view := decodeState(t, resp)
	assert.Equal(t, form.RequestFailedMessage, view.Error)
	assert.Empty(t, view.Prediction)
	assert.False(t, view.Loading)
}

func TestSubmitWithoutJSONRedirects(t *testing.T) {
	pred := &recordingPredictor{fn: func(context.Context, []float64) (float64, error) { return 133.456, nil }}
	f := newFormFixture(t, &FormHandler{Predictor: pred})

	resp := f.post(t, "/submit", url.Values{}, false)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	page := f.get(t, "/")
	body, err := io.ReadAll(page.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "133.46M gallons")
}

func TestSubmitWhileLoadingIsIgnored(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	pred := &recordingPredictor{fn: func(context.Context, []float64) (float64, error) {
		close(started)
		<-release
		return 140, nil
	}}
	f := newFormFixture(t, &FormHandler{Predictor: pred})
	f.get(t, "/")

	first := make(chan *http.Response, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodPost, f.server.URL+"/submit", strings.NewReader(""))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		resp, err := f.client.Do(req)
		if err != nil {
			first <- nil
			return
		}
		first <- resp
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("prediction never started")
	}

	resp := f.post(t, "/submit", url.Values{}, true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.True(t, decodeState(t, resp).Loading)

	close(release)
	r := <-first
	require.NotNil(t, r)
	defer r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.False(t, decodeState(t, r).Loading)
	assert.Equal(t, 1, pred.count())
}

func TestHistoryRecordsSubmissions(t *testing.T) {
	store, err := db.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	pred := &recordingPredictor{fn: func(context.Context, []float64) (float64, error) { return 134, nil }}
	f := newFormFixture(t, &FormHandler{Predictor: pred, History: store})

	f.post(t, "/submit", url.Values{}, true)
	f.post(t, "/submit", url.Values{"month-0": {""}}, true)

	resp := f.get(t, "/api/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Submissions []db.Submission `json:"submissions"`
		Count       int             `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 2, body.Count)
	assert.Equal(t, form.ValidationMessage, body.Submissions[0].Error)
	assert.Equal(t, "134.00", body.Submissions[1].Prediction)
}

func TestHistoryDisabled(t *testing.T) {
	f := newFormFixture(t, &FormHandler{})

	resp := f.get(t, "/api/history")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStateEndpoint(t *testing.T) {
	f := newFormFixture(t, &FormHandler{})

	resp := f.get(t, "/api/state")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decodeState(t, resp)
	assert.Equal(t, "110.5", view.Inputs[0])
	assert.Empty(t, view.Touched)
	assert.False(t, view.Loading)
}

func TestWebsocketDisabledWithoutHub(t *testing.T) {
	f := newFormFixture(t, &FormHandler{})

	resp := f.get(t, "/ws")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsCountOutcomes(t *testing.T) {
	pred := &recordingPredictor{fn: func(context.Context, []float64) (float64, error) { return 134, nil }}
	metrics := monitoring.NewMetrics()
	f := newFormFixture(t, &FormHandler{Predictor: pred, Metrics: metrics})

	f.post(t, "/submit", url.Values{}, true)
	f.post(t, "/submit", url.Values{"month-1": {"x"}}, true)

	s := metrics.Snapshot()
	assert.Equal(t, int64(1), s.Outcomes[monitoring.OutcomePredicted])
	assert.Equal(t, int64(1), s.Outcomes[monitoring.OutcomeInvalid])

	resp := f.get(t, "/api/metrics?format=prometheus")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `dessertcast_submits_total{outcome="invalid"} 1`)
}
