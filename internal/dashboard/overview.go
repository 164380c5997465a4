package dashboard

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cdash/internal/aggregate"
	"cdash/internal/complaint"
	apierrors "cdash/internal/errors"
	"cdash/internal/format"
)

// NoData is the placeholder shown by empty or failed panels.
const NoData = "Nenhum dado disponível"

// Panel is one independently loaded block of the overview. A failed panel
// carries its message and never blocks the others.
type Panel[T any] struct {
	Data        T      `json:"data"`
	Error       string `json:"error,omitempty"`
	Empty       bool   `json:"empty"`
	Placeholder string `json:"placeholder,omitempty"`
}

func newPanel[T any](data T, err error, empty bool) Panel[T] {
	p := Panel[T]{Data: data, Empty: empty}
	if err != nil {
		p.Error = apierrors.QueryFailed(err)
		p.Empty = true
	}
	if p.Empty {
		p.Placeholder = NoData
	}
	return p
}

// OK reports whether the panel loaded without error.
func (p Panel[T]) OK() bool {
	return p.Error == ""
}

// MatrixView is the heatmap and stacked bar data of the overview.
type MatrixView struct {
	Rows      []string        `json:"rows"`
	Columns   []string        `json:"columns"`
	Counts    [][]int         `json:"counts"`
	Intensity [][]int         `json:"intensity"`
	Tiers     []format.Tier   `json:"column_tiers"`
	Totals    []int           `json:"column_totals"`
	Max       int             `json:"max"`
	Bars      []aggregate.Bar `json:"bars"`
}

// NewMatrixView lays a matrix out row by row.
func NewMatrixView(m aggregate.Matrix) MatrixView {
	peak := m.Max()
	v := MatrixView{
		Rows:      m.Rows,
		Columns:   m.Columns,
		Counts:    make([][]int, len(m.Rows)),
		Intensity: make([][]int, len(m.Rows)),
		Tiers:     make([]format.Tier, len(m.Columns)),
		Totals:    make([]int, len(m.Columns)),
		Max:       peak,
		Bars:      aggregate.StackedBars(m, format.ChartLabel),
	}
	for j, col := range m.Columns {
		v.Tiers[j] = format.StatusTier(col)
		v.Totals[j] = m.ColumnTotal(col)
	}
	for i, row := range m.Rows {
		v.Counts[i] = make([]int, len(m.Columns))
		v.Intensity[i] = make([]int, len(m.Columns))
		for j, col := range m.Columns {
			n := m.Count(row, col)
			v.Counts[i][j] = n
			v.Intensity[i][j] = aggregate.Intensity(n, peak)
		}
	}
	return v
}

// Overview is the main dashboard page.
type Overview struct {
	GeneratedAt        time.Time                        `json:"generated_at"`
	Stats              Panel[complaint.Stats]           `json:"stats"`
	ResolutionRate     float64                          `json:"resolution_rate"`
	StatusDistribution Panel[[]aggregate.KeyCount]      `json:"status_distribution"`
	Timeline           Panel[complaint.Timeline]        `json:"timeline"`
	Locations          Panel[complaint.LocationStats]   `json:"locations"`
	Tags               Panel[complaint.TagStats]        `json:"tags"`
	StoreTypes         Panel[complaint.StoreTypeStats]  `json:"store_types"`
	WeeklyTrends       Panel[complaint.WeeklyTrends]    `json:"weekly_trends"`
	ResponseMetrics    Panel[complaint.ResponseMetrics] `json:"response_metrics"`
	Matrix             Panel[MatrixView]                `json:"matrix"`
	CategoryMatrix     Panel[MatrixView]                `json:"category_matrix"`
}

func (o Overview) panelStates() []bool {
	return []bool{
		o.Stats.OK(), o.Timeline.OK(), o.Locations.OK(), o.Tags.OK(), o.StoreTypes.OK(),
		o.WeeklyTrends.OK(), o.ResponseMetrics.OK(), o.Matrix.OK(),
	}
}

// Failed returns the number of panels that could not be loaded.
func (o Overview) Failed() int {
	n := 0
	for _, ok := range o.panelStates() {
		if !ok {
			n++
		}
	}
	return n
}

// AllFailed reports whether no panel could be loaded, which usually means
// the backend is unreachable.
func (o Overview) AllFailed() bool {
	return o.Failed() == len(o.panelStates())
}

// Overview loads every panel concurrently. Panel failures are reported in
// the panels; Overview itself only fails when ctx is done.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	var (
		o Overview
		g errgroup.Group
	)
	o.GeneratedAt = time.Now()

	g.Go(func() error {
		stats, err := s.Stats(ctx)
		o.Stats = newPanel(stats, err, stats.Total == 0)
		dist := aggregate.StatusDistribution(stats.ByStatus)
		o.StatusDistribution = newPanel(dist, err, len(dist) == 0)
		o.ResolutionRate = aggregate.ResolutionRate(stats.ByStatus)
		return nil
	})
	g.Go(func() error {
		tl, err := s.Timeline(ctx, s.settings.TimelineDays)
		o.Timeline = newPanel(tl, err, len(tl.Timeline) == 0)
		return nil
	})
	g.Go(func() error {
		loc, err := s.Locations(ctx, s.settings.LocationLimit)
		o.Locations = newPanel(loc, err, len(loc.Top10) == 0)
		return nil
	})
	g.Go(func() error {
		tags, err := s.Tags(ctx, s.settings.TagLimit)
		o.Tags = newPanel(tags, err, len(tags.AllTags) == 0)
		return nil
	})
	g.Go(func() error {
		st, err := s.StoreTypes(ctx)
		o.StoreTypes = newPanel(st, err, len(st.ByStoreType) == 0)
		return nil
	})
	g.Go(func() error {
		wt, err := s.WeeklyTrends(ctx)
		o.WeeklyTrends = newPanel(wt, err, wt.Summary.ThisWeek == 0 && wt.Summary.LastWeek == 0)
		return nil
	})
	g.Go(func() error {
		rm, err := s.ResponseMetrics(ctx)
		o.ResponseMetrics = newPanel(rm, err, rm.TotalComplaints == 0)
		return nil
	})
	g.Go(func() error {
		records, err := s.AllComplaints(ctx)
		byTag := aggregate.BuildMatrix(records, aggregate.TagDimension)
		byCategory := aggregate.BuildMatrix(records, aggregate.CategoryDimension)
		o.Matrix = newPanel(NewMatrixView(byTag), err, byTag.Empty())
		o.CategoryMatrix = newPanel(NewMatrixView(byCategory), err, byCategory.Empty())
		return nil
	})

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return o, err
	}
	if failed := o.Failed(); failed > 0 {
		s.logger.Warn("overview loaded with failed panels", zap.Int("failed", failed))
	}
	return o, nil
}

// Matrix returns the heatmap of the full listing grouped by extract.
func (s *Service) Matrix(ctx context.Context, extract aggregate.DimensionExtractor) (aggregate.Matrix, error) {
	records, err := s.AllComplaints(ctx)
	if err != nil && len(records) == 0 {
		return aggregate.Matrix{}, err
	}
	return aggregate.BuildMatrix(records, extract), nil
}
