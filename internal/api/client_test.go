package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "cdash/internal/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:3003", "/api"} {
		_, err := NewClient(Options{BaseURL: raw})
		assert.Error(t, err, raw)
	}
}

func TestListComplaints(t *testing.T) {
	var gotQuery string
	var gotRequestID string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/complaints", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotRequestID = r.Header.Get(RequestIDHeader)
		_, _ = io.WriteString(w, `[
			{"id":1,"title":"a","text":"x","status":"ANSWERED","tags":["atraso-entrega"],"response_generated":false},
			{"id":2,"title":"b","text":"y","status":null,"tags":null,"response_generated":"texto"},
			{"id":1,"title":"dup","text":"x","status":"ANSWERED","tags":[]}
		]`)
	}))

	records, err := c.ListComplaints(context.Background(), ListParams{Sentiment: "Negativo", Limit: 1000})
	require.NoError(t, err)

	assert.Equal(t, "limit=1000&sentiment=Negativo", gotQuery)
	_, parseErr := uuid.Parse(gotRequestID)
	assert.NoError(t, parseErr, "every request carries a uuid request id")

	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Title)
	assert.Equal(t, "", records[1].Status)
	assert.True(t, records[1].ResponseGenerated)
}

func TestListComplaintsNullBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `null`)
	}))

	records, err := c.ListComplaints(context.Background(), ListParams{})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"detail":"Complaint not found"}`)
			},
			check: func(t *testing.T, err error) {
				assert.True(t, apierrors.IsNotFound(err))
				assert.Contains(t, err.Error(), "Complaint not found")
				assert.False(t, apierrors.IsRetryable(err))
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
			check: func(t *testing.T, err error) {
				assert.Equal(t, http.StatusBadGateway, apierrors.StatusCode(err))
				assert.True(t, apierrors.IsRetryable(err))
			},
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"id": "not-a-number"`)
			},
			check: func(t *testing.T, err error) {
				assert.True(t, apierrors.IsDecode(err))
				assert.False(t, apierrors.IsRetryable(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.GetComplaint(context.Background(), 9)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Options{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.ComplaintStats(context.Background())
	require.Error(t, err)
	assert.True(t, apierrors.IsTransport(err))
	assert.True(t, apierrors.IsRetryable(err))
}

func TestAnalyticsEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/analytics/stats/timeline", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "30", r.URL.Query().Get("days"))
		_, _ = io.WriteString(w, `{"period_days":30,"total_complaints":3,"timeline":[{"date":"2025-01-01","count":3}]}`)
	})
	mux.HandleFunc("/analytics/stats/tags", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `{"total_tagged":4,"total_unique_tags":2,"all_tags":[{"tag":"atraso-entrega","count":3,"percentage":75}]}`)
	})
	mux.HandleFunc("/analytics/stats/weekly-trends", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"summary":{"this_week":12,"last_week":8,"trend_percentage":50,"trend_direction":"up"},"top_tags_this_week":[{"tag":"preco-errado","count":2}]}`)
	})
	mux.HandleFunc("/analytics/stats/response-metrics", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"total_complaints":10,"with_response":7,"response_rate":70,"resolution_rate":40,"date_range":{"oldest":null,"newest":"2025-01-31"}}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	tl, err := c.Timeline(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 3, tl.TotalComplaints)
	require.Len(t, tl.Timeline, 1)

	tags, err := c.Tags(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, "atraso-entrega", tags.AllTags[0].Tag)

	wt, err := c.WeeklyTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, "up", wt.Summary.TrendDirection)
	assert.Equal(t, 12, wt.Summary.ThisWeek)

	rm, err := c.ResponseMetrics(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 70.0, rm.ResponseRate, 1e-9)
	assert.Nil(t, rm.DateRange.Oldest)
}

func TestGenerateAndEditResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/analytics/analyze/5", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("/responses/generate/5", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = io.WriteString(w, `{"response":"Olá!","coupon":{"code":"DESC10","discount":10,"valid_until":"2025-02-01T00:00:00"}}`)
	})
	mux.HandleFunc("/responses/5", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "texto editado", body["edited_response"])
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	require.NoError(t, c.Analyze(ctx, 5))

	g, err := c.GenerateResponse(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), g.ComplaintID)
	assert.Equal(t, "Olá!", g.Text())
	require.NotNil(t, g.Coupon)
	assert.Equal(t, "DESC10", g.Coupon.Code)

	require.NoError(t, c.EditResponse(ctx, 5, "texto editado"))
}

func TestBenchmarkEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/benchmark/comparison", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"companies":[{"name":"Venancio","score":7.1,"is_venancio":true},{"name":"Outra","score":null}],"averages":{"score":7.5},"venancio_gaps":{"score":-0.4}}`)
	})
	mux.HandleFunc("/benchmark/best-responses", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("competitor_id"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `[{"id":1,"competitor_name":"Outra","company_response":"Sentimos muito","customer_score":9}]`)
	})
	mux.HandleFunc("/benchmark/competitor/3/complaints", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("page_size"))
		_, _ = io.WriteString(w, `{"total":11,"page":2,"page_size":10,"complaints":[{"id":11}]}`)
	})
	mux.HandleFunc("/benchmark/stats", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"total_competitors":4,"total_complaints":120,"with_responses":90,"high_score_responses":30}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	cmp, err := c.Comparison(ctx)
	require.NoError(t, err)
	require.Len(t, cmp.Companies, 2)
	assert.True(t, cmp.Companies[0].IsOwn)
	assert.Nil(t, cmp.Companies[1].Score)
	assert.InDelta(t, -0.4, cmp.Gaps.Score, 1e-9)

	best, err := c.BestResponses(ctx, BestResponsesParams{CompetitorID: 3, Limit: 5})
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.Equal(t, "Sentimos muito", best[0].CompanyResponse)

	page, err := c.CompetitorComplaints(ctx, 3, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 11, page.Total)

	stats, err := c.BenchmarkStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, stats.HighScoreResponses)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{BaseURL: srv.URL, RateLimit: 0.001})
	require.NoError(t, err)

	_, err = c.ComplaintStats(context.Background())
	require.NoError(t, err, "the first request uses the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.ComplaintStats(ctx)
	assert.True(t, apierrors.IsTransport(err))
}

func TestBaseURLWithPath(t *testing.T) {
	c, err := NewClient(Options{BaseURL: "http://backend:3003/api/"})
	require.NoError(t, err)
	assert.Equal(t, "http://backend:3003/api/complaints?limit=5", c.endpoint("/complaints", limitQuery("limit", 5)))
}
