package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdash/internal/aggregate"
	"cdash/internal/api"
	"cdash/internal/complaint"
	apierrors "cdash/internal/errors"
	"cdash/internal/filter"
	"cdash/internal/format"
	"cdash/internal/querycache"
)

// fakeBackend serves canned data and counts calls per endpoint.
type fakeBackend struct {
	mu       sync.Mutex
	calls    map[string]int
	records  []complaint.Record
	failing  map[string]error
	analyzed []int64
	edited   map[int64]string

	// generating, when set, receives once per generate call, which then
	// blocks until release is closed.
	generating chan struct{}
	release    chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:   make(map[string]int),
		failing: make(map[string]error),
		edited:  make(map[int64]string),
		records: []complaint.Record{
			{ID: 1, Title: "Atraso", Text: "pedido atrasado", Status: "ANSWERED",
				Tags: []string{"atraso-entrega"}, Sentiment: complaint.Ptr("Negativo")},
			{ID: 2, Title: "Estorno", Text: "sem estorno", Status: "Resolvido",
				Tags: []string{"estorno-pendente", "atendimento-ruim"}, Sentiment: complaint.Ptr("Neutro")},
			{ID: 3, Title: "Sem classificação", Text: "texto", Status: "Resolvido"},
		},
	}
}

func (f *fakeBackend) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.failing[name]
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) fail(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[name] = err
}

func (f *fakeBackend) ListComplaints(ctx context.Context, p api.ListParams) ([]complaint.Record, error) {
	if err := f.hit("list"); err != nil {
		return nil, err
	}
	return f.records, nil
}

func (f *fakeBackend) GetComplaint(ctx context.Context, id int64) (complaint.Record, error) {
	if err := f.hit("get"); err != nil {
		return complaint.Record{}, err
	}
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return complaint.Record{}, apierrors.NewStatusError("GET /complaints", 404, "not found")
}

func (f *fakeBackend) ComplaintStats(ctx context.Context) (complaint.Stats, error) {
	if err := f.hit("stats"); err != nil {
		return complaint.Stats{}, err
	}
	return complaint.Stats{Total: 3, ByStatus: map[string]int{"ANSWERED": 1, "Resolvido": 2}}, nil
}

func (f *fakeBackend) Timeline(ctx context.Context, days int) (complaint.Timeline, error) {
	if err := f.hit("timeline"); err != nil {
		return complaint.Timeline{}, err
	}
	return complaint.Timeline{PeriodDays: days, TotalComplaints: 3, Timeline: []complaint.DateCount{{Date: "2025-01-01", Count: 3}}}, nil
}

func (f *fakeBackend) Locations(ctx context.Context, limit int) (complaint.LocationStats, error) {
	if err := f.hit("locations"); err != nil {
		return complaint.LocationStats{}, err
	}
	return complaint.LocationStats{}, nil
}

func (f *fakeBackend) StoreTypes(ctx context.Context) (complaint.StoreTypeStats, error) {
	if err := f.hit("store-types"); err != nil {
		return complaint.StoreTypeStats{}, err
	}
	return complaint.StoreTypeStats{TotalClassified: 2, ByStoreType: []complaint.StoreTypeCount{{StoreType: "online", Count: 2}}}, nil
}

func (f *fakeBackend) Tags(ctx context.Context, limit int) (complaint.TagStats, error) {
	if err := f.hit("tags"); err != nil {
		return complaint.TagStats{}, err
	}
	return complaint.TagStats{AllTags: []complaint.TagCount{{Tag: "atraso-entrega", Count: 1}}}, nil
}

func (f *fakeBackend) WeeklyTrends(ctx context.Context) (complaint.WeeklyTrends, error) {
	if err := f.hit("weekly"); err != nil {
		return complaint.WeeklyTrends{}, err
	}
	var w complaint.WeeklyTrends
	w.Summary.ThisWeek = 3
	w.Summary.TrendDirection = complaint.TrendUp
	return w, nil
}

func (f *fakeBackend) ResponseMetrics(ctx context.Context) (complaint.ResponseMetrics, error) {
	if err := f.hit("metrics"); err != nil {
		return complaint.ResponseMetrics{}, err
	}
	return complaint.ResponseMetrics{TotalComplaints: 3, ResponseRate: 66.7}, nil
}

func (f *fakeBackend) Analyze(ctx context.Context, id int64) error {
	if err := f.hit("analyze"); err != nil {
		return err
	}
	f.mu.Lock()
	f.analyzed = append(f.analyzed, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) GenerateResponse(ctx context.Context, id int64) (complaint.GeneratedResponse, error) {
	if err := f.hit("generate"); err != nil {
		return complaint.GeneratedResponse{}, err
	}
	if f.generating != nil {
		f.generating <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return complaint.GeneratedResponse{}, ctx.Err()
		}
	}
	return complaint.GeneratedResponse{ComplaintID: id, Response: "Olá", Coupon: &complaint.Coupon{Code: "X10", Discount: 10}}, nil
}

func (f *fakeBackend) GetResponse(ctx context.Context, id int64) (complaint.GeneratedResponse, error) {
	if err := f.hit("get-response"); err != nil {
		return complaint.GeneratedResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return complaint.GeneratedResponse{Response: "Olá", EditedResponse: f.edited[id]}, nil
}

func (f *fakeBackend) EditResponse(ctx context.Context, id int64, text string) error {
	if err := f.hit("edit-response"); err != nil {
		return err
	}
	f.mu.Lock()
	f.edited[id] = text
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Comparison(ctx context.Context) (complaint.Comparison, error) {
	if err := f.hit("comparison"); err != nil {
		return complaint.Comparison{}, err
	}
	return complaint.Comparison{Companies: []complaint.Company{
		{Name: "Venancio", Reputation: "Bom", Score: complaint.Ptr(7.2), IsOwn: true},
		{Name: "Outra", Reputation: "RA1000"},
	}}, nil
}

func (f *fakeBackend) Competitors(ctx context.Context) ([]complaint.Competitor, error) {
	return nil, f.hit("competitors")
}

func (f *fakeBackend) BestResponses(ctx context.Context, p api.BestResponsesParams) ([]complaint.BestResponse, error) {
	if err := f.hit("best"); err != nil {
		return nil, err
	}
	long := make([]rune, 400)
	for i := range long {
		long[i] = 'a'
	}
	return []complaint.BestResponse{
		{ID: 10, CompanyResponse: string(long), CustomerScore: complaint.Ptr(9.0)},
		{ID: 11, CompanyResponse: string(long)},
	}, nil
}

func (f *fakeBackend) ResponsePatterns(ctx context.Context) (complaint.ResponsePatterns, error) {
	if err := f.hit("patterns"); err != nil {
		return complaint.ResponsePatterns{}, err
	}
	return complaint.ResponsePatterns{TotalAnalyzed: 5}, nil
}

func (f *fakeBackend) BenchmarkStats(ctx context.Context) (complaint.BenchmarkStats, error) {
	if err := f.hit("benchmark-stats"); err != nil {
		return complaint.BenchmarkStats{}, err
	}
	return complaint.BenchmarkStats{TotalCompetitors: 2}, nil
}

func (f *fakeBackend) CompetitorComplaints(ctx context.Context, id int64, page, pageSize int) (complaint.CompetitorComplaintsPage, error) {
	return complaint.CompetitorComplaintsPage{Page: page, PageSize: pageSize}, f.hit("competitor-complaints")
}

// fakeLedger remembers recorded responses.
type fakeLedger struct {
	recorded atomic.Int32
}

func (l *fakeLedger) Record(resp complaint.GeneratedResponse) (bool, error) {
	l.recorded.Add(1)
	return true, nil
}

func newTestService(t *testing.T, backend *fakeBackend, ledger Ledger) *Service {
	t.Helper()
	cache := querycache.New(querycache.Options{
		StaleTime:  time.Hour,
		Retries:    querycache.NoRetry,
		RetryDelay: time.Millisecond,
	})
	t.Cleanup(cache.Close)
	return NewService(backend, cache, Settings{}, ledger, nil)
}

func TestServiceCachesReads(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(t, backend, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.AllComplaints(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, backend.count("list"))

	_, err := svc.Timeline(ctx, 30)
	require.NoError(t, err)
	_, err = svc.Timeline(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.count("timeline"), "each day window has its own key")
}

func TestOverviewIsolatesFailedPanels(t *testing.T) {
	backend := newFakeBackend()
	backend.fail("timeline", apierrors.NewStatusError("GET /analytics/stats/timeline", 500, "boom"))
	svc := newTestService(t, backend, nil)

	o, err := svc.Overview(context.Background())
	require.NoError(t, err)

	assert.False(t, o.Timeline.OK())
	assert.Contains(t, o.Timeline.Error, "query failed")
	assert.Equal(t, NoData, o.Timeline.Placeholder)
	assert.Equal(t, 1, o.Failed())
	assert.False(t, o.AllFailed())

	assert.True(t, o.Stats.OK())
	assert.Equal(t, 3, o.Stats.Data.Total)
	assert.InDelta(t, 66.66, o.ResolutionRate, 0.1)
	assert.Equal(t, []aggregate.KeyCount{{Key: "Resolvida", Count: 2}, {Key: "Respondida", Count: 1}}, o.StatusDistribution.Data)

	assert.True(t, o.Locations.OK())
	assert.True(t, o.Locations.Empty, "an empty breakdown shows the placeholder")
	assert.Equal(t, NoData, o.Locations.Placeholder)

	require.True(t, o.Matrix.OK())
	assert.Equal(t, []string{"atraso-entrega", "estorno-pendente", "atendimento-ruim", complaint.Uncategorized}, o.Matrix.Data.Rows)
	assert.Equal(t, []string{"Resolvida", "Respondida"}, o.Matrix.Data.Columns)
	assert.Equal(t, []format.Tier{format.Green, format.Blue}, o.Matrix.Data.Tiers)
	assert.Equal(t, 1, o.Matrix.Data.Max)
	assert.Equal(t, [][]int{{0, 5}, {5, 0}, {5, 0}, {5, 0}}, o.Matrix.Data.Intensity)
	assert.Equal(t, []int{3, 1}, o.Matrix.Data.Totals)

	assert.Equal(t, []string{"Entrega", "Financeiro", complaint.Uncategorized}, o.CategoryMatrix.Data.Rows)
}

func TestGenerateResponseAnalyzesWhenSentimentMissing(t *testing.T) {
	backend := newFakeBackend()
	ledger := &fakeLedger{}
	svc := newTestService(t, backend, ledger)
	ctx := context.Background()

	_, err := svc.AllComplaints(ctx)
	require.NoError(t, err)
	_, err = svc.Complaint(ctx, 3)
	require.NoError(t, err)
	_, err = svc.Stats(ctx)
	require.NoError(t, err)

	m := svc.GenerateResponse(3)
	resp, err := m.Execute(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Olá", resp.Text())
	assert.Equal(t, querycache.Success, m.State().Status)
	assert.Equal(t, []int64{3}, backend.analyzed)
	assert.Equal(t, int32(1), ledger.recorded.Load())

	all, _ := svc.Cache().Peek(AllComplaintsKey())
	assert.True(t, all.Stale, "the full listing is invalidated")
	one, _ := svc.Cache().Peek(ComplaintKey(3))
	assert.True(t, one.Stale, "the complaint is invalidated")
	stats, _ := svc.Cache().Peek(querycache.NewKey(ResComplaintStats))
	assert.False(t, stats.Stale, "unrelated keys stay fresh")
}

func TestGenerateResponseSkipsAnalysisForClassifiedComplaint(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(t, backend, nil)

	_, err := svc.GenerateResponse(1).Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, backend.analyzed)
	assert.Equal(t, 1, backend.count("generate"))
}

func TestGenerateResponseIsSharedPerComplaint(t *testing.T) {
	backend := newFakeBackend()
	backend.generating = make(chan struct{}, 1)
	backend.release = make(chan struct{})
	svc := newTestService(t, backend, nil)
	ctx := context.Background()

	assert.Same(t, svc.GenerateResponse(1), svc.GenerateResponse(1))
	assert.NotSame(t, svc.GenerateResponse(1), svc.GenerateResponse(2))

	done := make(chan error, 1)
	go func() {
		_, err := svc.GenerateResponse(1).Execute(ctx)
		done <- err
	}()
	select {
	case <-backend.generating:
	case <-time.After(2 * time.Second):
		t.Fatal("generate was not called")
	}

	_, err := svc.GenerateResponse(1).Execute(ctx)
	assert.ErrorIs(t, err, querycache.ErrMutationPending, "a second caller sees the pending run")

	close(backend.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, backend.count("generate"))
	assert.Equal(t, querycache.Success, svc.GenerateResponse(1).State().Status)
}

func TestGenerateResponseFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.fail("generate", errors.New("model unavailable"))
	svc := newTestService(t, backend, nil)
	ctx := context.Background()

	_, err := svc.AllComplaints(ctx)
	require.NoError(t, err)

	m := svc.GenerateResponse(1)
	_, err = m.Execute(ctx)
	require.Error(t, err)
	assert.Equal(t, querycache.Failure, m.State().Status)

	all, _ := svc.Cache().Peek(AllComplaintsKey())
	assert.False(t, all.Stale, "a failed mutation touches no cache entry")
}

func TestComplaintTable(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(t, backend, nil)

	table, err := svc.ComplaintTable(context.Background(), filter.New().WithCategory("Financeiro"))
	require.NoError(t, err)

	assert.Equal(t, 3, table.Total)
	assert.Equal(t, 1, table.Shown)
	require.Len(t, table.Rows, 1)
	row := table.Rows[0]
	assert.Equal(t, int64(2), row.ID)
	assert.Equal(t, "Resolvida", row.StatusLabel)
	assert.Equal(t, format.Green, row.StatusTier)
	assert.Equal(t, "Financeiro", row.Category)
	assert.Equal(t, format.UrgencyNone, row.Urgency)
	assert.Equal(t, "—", row.Date)

	assert.Equal(t, []string{"ANSWERED", "Resolvido"}, table.Statuses)
	assert.Equal(t, []string{"Entrega", "Financeiro"}, table.Categories)

	table, err = svc.ComplaintTable(context.Background(), filter.New())
	require.NoError(t, err)
	assert.Equal(t, "—", table.Rows[2].Category)
}

func TestComplaintTableReportsFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.fail("list", apierrors.NewTransportError("GET /complaints", errors.New("refused")))
	svc := newTestService(t, backend, nil)

	table, err := svc.ComplaintTable(context.Background(), filter.New())
	require.Error(t, err)
	assert.Empty(t, table.Rows)
}

func TestBenchmark(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(t, backend, nil)

	var expanded format.Expander
	expanded.Toggle(10)

	b, err := svc.Benchmark(context.Background(), api.BestResponsesParams{Limit: 5}, &expanded)
	require.NoError(t, err)

	require.Len(t, b.Companies.Data, 2)
	assert.Equal(t, format.Blue, b.Companies.Data[0].ScoreTier)
	assert.Equal(t, format.Blue, b.Companies.Data[0].ReputationTier)
	assert.Equal(t, format.Purple, b.Companies.Data[1].ReputationTier)

	require.Len(t, b.Best.Data, 2)
	assert.True(t, b.Best.Data[0].Expanded)
	assert.Len(t, []rune(b.Best.Data[0].Response), 400)
	assert.Equal(t, format.Green, b.Best.Data[0].ScoreTier)
	assert.False(t, b.Best.Data[1].Expanded)
	assert.Len(t, []rune(b.Best.Data[1].Response), format.ResponsePreview+len(format.Ellipsis))
	assert.Equal(t, 5, b.Patterns.Data.TotalAnalyzed)
}

func TestEditResponse(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(t, backend, nil)
	ctx := context.Background()

	resp, err := svc.Response(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.ComplaintID)
	assert.Equal(t, "Olá", resp.Text())

	text, err := svc.EditResponse(2, "  Olá, resolvido.  ").Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Olá, resolvido.", text)

	resp, err = svc.Response(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Olá, resolvido.", resp.EditedResponse)
	assert.Equal(t, 2, backend.count("get-response"), "the edit invalidates the stored reply")

	_, err = svc.EditResponse(2, " ").Execute(ctx)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, 1, backend.count("edit-response"))
}
