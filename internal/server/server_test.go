package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdash/internal/api"
	"cdash/internal/dashboard"
	"cdash/internal/health"
	"cdash/internal/querycache"
	"cdash/internal/storage"
)

const complaintsJSON = `[
	{"id":1,"title":"Atraso","text":"pedido atrasado","status":"ANSWERED","tags":["atraso-entrega"],"sentiment":"Negativo"},
	{"id":2,"title":"Estorno","text":"sem estorno","status":"Resolvido","tags":["estorno-pendente"],"sentiment":"Neutro"},
	{"id":3,"title":"Outro","text":"texto","status":"Resolvido","tags":["atraso-entrega"]}
]`

type testEnv struct {
	router    http.Handler
	svc       *dashboard.Service
	ledger    *storage.Storage
	generated atomic.Int32
	analyzed  atomic.Int32

	mu     sync.Mutex
	edited string
	// holding, when set, is signalled by each generate call, which then
	// waits for release.
	holding chan struct{}
	release chan struct{}
}

func (e *testEnv) holdGenerate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.holding = make(chan struct{}, 1)
	e.release = make(chan struct{})
}

// newTestEnv runs the full stack: router, dashboard service, query cache
// and API client against a fake backend.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /complaints", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, complaintsJSON)
	})
	mux.HandleFunc("GET /complaints/stats", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"total":3,"by_status":{"ANSWERED":1,"Resolvido":2}}`)
	})
	mux.HandleFunc("GET /complaints/{id}", func(w http.ResponseWriter, r *http.Request) {
		var records []map[string]any
		_ = json.Unmarshal([]byte(complaintsJSON), &records)
		for _, rec := range records {
			if r.PathValue("id") == jsonNumber(rec["id"]) {
				_ = json.NewEncoder(w).Encode(rec)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Complaint not found"}`)
	})
	mux.HandleFunc("POST /analytics/analyze/{id}", func(w http.ResponseWriter, r *http.Request) {
		env.analyzed.Add(1)
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("POST /responses/generate/{id}", func(w http.ResponseWriter, r *http.Request) {
		env.generated.Add(1)
		env.mu.Lock()
		holding, release := env.holding, env.release
		env.mu.Unlock()
		if holding != nil {
			holding <- struct{}{}
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
		}
		_, _ = io.WriteString(w, `{"response":"Olá, sentimos muito.","coupon":{"code":"VOLTA10","discount":10}}`)
	})
	mux.HandleFunc("GET /responses/{id}", func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		defer env.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "Olá", "edited_response": env.edited})
	})
	mux.HandleFunc("PUT /responses/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			EditedResponse string `json:"edited_response"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		env.mu.Lock()
		env.edited = body.EditedResponse
		env.mu.Unlock()
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	for _, p := range []string{"GET /benchmark/competitors", "GET /benchmark/best-responses"} {
		mux.HandleFunc(p, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `[]`)
		})
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	backend := httptest.NewServer(mux)
	t.Cleanup(backend.Close)

	client, err := api.NewClient(api.Options{BaseURL: backend.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	cache := querycache.New(querycache.Options{StaleTime: time.Minute, Retries: querycache.NoRetry})
	t.Cleanup(cache.Close)

	env.ledger, err = storage.New(filepath.Join(t.TempDir(), "responses.csv"), nil)
	require.NoError(t, err)

	env.svc = dashboard.NewService(client, cache, dashboard.Settings{}, env.ledger, nil)
	monitor := health.NewMonitor(cache)
	env.router = NewRouter(NewHandlers(env.svc, monitor, env.ledger, nil), nil, false, nil)
	return env
}

func jsonNumber(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func (e *testEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	return e.doBody(t, method, target, "")
}

func (e *testEnv) doBody(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	st := decode[health.Status](t, rec)
	assert.Equal(t, health.StatusHealthy, st.Status)
	require.NotNil(t, st.Cache)
}

func TestGetComplaints(t *testing.T) {
	tests := []struct {
		name  string
		query string
		ids   []int64
	}{
		{"no filter", "", []int64{1, 2, 3}},
		{"status", "?status=Resolvido", []int64{2, 3}},
		{"raw status", "?status=ANSWERED", []int64{1}},
		{"search", "?search=ESTORNO", []int64{2}},
		{"category", "?category=Entrega", []int64{1, 3}},
		{"sentiment", "?sentiment=Negativo", []int64{1}},
		{"sentiment all", "?sentiment=all", []int64{1, 2, 3}},
		{"combined", "?status=Resolvido&search=texto", []int64{3}},
	}
	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/complaints"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			table := decode[dashboard.Table](t, rec)
			assert.Equal(t, 3, table.Total)
			ids := []int64{}
			for _, r := range table.Rows {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestGetComplaint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/complaints/2")
	require.Equal(t, http.StatusOK, rec.Code)
	row := decode[dashboard.Row](t, rec)
	assert.Equal(t, "Estorno", row.Title)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/complaints/99").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/complaints/abc").Code)
}

func TestGetMatrix(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/matrix")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[dashboard.MatrixView](t, rec)
	assert.Equal(t, []string{"atraso-entrega", "estorno-pendente"}, view.Rows)
	assert.Equal(t, []string{"Resolvida", "Respondida"}, view.Columns)
	assert.Equal(t, 1, view.Max)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/matrix?dimension=store").Code)
}

func TestGetMatrixPNG(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/matrix.png?dimension=category")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestGenerateResponse(t *testing.T) {
	env := newTestEnv(t)

	// Warm the listing so the invalidation has something to touch.
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/complaints").Code)

	rec := env.do(t, http.MethodPost, "/api/complaints/3/response")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "Olá, sentimos muito.", body["response"])
	assert.EqualValues(t, 3, body["complaint_id"])
	assert.EqualValues(t, 1, env.analyzed.Load(), "complaint 3 has no sentiment")
	assert.EqualValues(t, 1, env.generated.Load())
	assert.True(t, env.ledger.Has(3))

	rec = env.do(t, http.MethodGet, "/api/responses")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["total"])

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/complaints/99/response").Code)
}

func TestGenerateResponseConflictsWithPendingRun(t *testing.T) {
	env := newTestEnv(t)
	env.holdGenerate()

	// A run started outside HTTP, as the bot's /gerar does.
	done := make(chan error, 1)
	go func() {
		_, err := env.svc.GenerateResponse(1).Execute(context.Background())
		done <- err
	}()
	select {
	case <-env.holding:
	case <-time.After(2 * time.Second):
		t.Fatal("generate was not called")
	}

	rec := env.do(t, http.MethodPost, "/api/complaints/1/response")
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	close(env.release)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, env.generated.Load())

	rec = env.do(t, http.MethodPost, "/api/complaints/1/response")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestEditResponse(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/complaints/2/response")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, decode[map[string]any](t, rec), "edited_response")

	rec = env.doBody(t, http.MethodPut, "/api/complaints/2/response", `{"text":"Resolvido, obrigado."}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Resolvido, obrigado.", decode[map[string]any](t, rec)["edited_response"])

	rec = env.do(t, http.MethodGet, "/api/complaints/2/response")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Resolvido, obrigado.", decode[map[string]any](t, rec)["edited_response"])

	assert.Equal(t, http.StatusBadRequest, env.doBody(t, http.MethodPut, "/api/complaints/2/response", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.doBody(t, http.MethodPut, "/api/complaints/2/response", `{"text":"   "}`).Code)
}

func TestInvalidate(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/complaints").Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/complaints/1").Code)

	rec := env.do(t, http.MethodPost, "/api/cache/invalidate?prefix=complaint")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["invalidated"])

	rec = env.do(t, http.MethodPost, "/api/cache/invalidate")
	assert.EqualValues(t, 2, decode[map[string]any](t, rec)["invalidated"])
}

func TestOverview(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/overview")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]json.RawMessage](t, rec)
	assert.Contains(t, body, "matrix")
	assert.Contains(t, body, "stats")
}

func TestBenchmarkValidation(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/benchmark?limit=5&expanded=7").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/benchmark?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/benchmark?competitor_id=x").Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/overview", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
