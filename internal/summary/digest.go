package summary

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cdash/internal/aggregate"
	"cdash/internal/complaint"
	"cdash/internal/format"
)

// digestTopTags is the number of tags listed in the digest text.
const digestTopTags = 5

// Source is what the digest reads from. dashboard.Service satisfies it.
type Source interface {
	WeeklyTrends(ctx context.Context) (complaint.WeeklyTrends, error)
	ResponseMetrics(ctx context.Context) (complaint.ResponseMetrics, error)
	Matrix(ctx context.Context, extract aggregate.DimensionExtractor) (aggregate.Matrix, error)
}

// Digest is the weekly summary: an HTML caption and an optional heatmap.
type Digest struct {
	Text  string
	Image []byte
}

// HasImage reports whether the heatmap could be rendered.
func (d Digest) HasImage() bool {
	return len(d.Image) > 0
}

// BuildDigest loads the weekly trends, response metrics and tag matrix
// concurrently and renders them. A section that fails is left out; the
// digest only fails when every section does.
func BuildDigest(ctx context.Context, src Source, now time.Time, logger *zap.Logger) (Digest, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		trends    complaint.WeeklyTrends
		metrics   complaint.ResponseMetrics
		matrix    aggregate.Matrix
		trendErr  error
		metErr    error
		matrixErr error
		g         errgroup.Group
	)
	g.Go(func() error {
		trends, trendErr = src.WeeklyTrends(ctx)
		return nil
	})
	g.Go(func() error {
		metrics, metErr = src.ResponseMetrics(ctx)
		return nil
	})
	g.Go(func() error {
		matrix, matrixErr = src.Matrix(ctx, aggregate.TagDimension)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Digest{}, err
	}
	if trendErr != nil && metErr != nil && matrixErr != nil {
		return Digest{}, fmt.Errorf("digest: no section available: %w", errors.Join(trendErr, metErr, matrixErr))
	}

	var b strings.Builder
	b.WriteString("📊 <b>Resumo semanal de reclamações</b>\n")
	fmt.Fprintf(&b, "<i>%s</i>\n", now.Format("02/01/2006 15:04"))

	if trendErr != nil {
		logger.Warn("digest: weekly trends unavailable", zap.Error(trendErr))
	} else {
		writeTrends(&b, trends)
	}
	if metErr != nil {
		logger.Warn("digest: response metrics unavailable", zap.Error(metErr))
	} else {
		writeMetrics(&b, metrics)
	}

	d := Digest{}
	switch {
	case matrixErr != nil:
		logger.Warn("digest: matrix unavailable", zap.Error(matrixErr))
	case matrix.Empty():
		logger.Debug("digest: matrix empty, skipping heatmap")
	default:
		img, err := RenderHeatmap(matrix, "Tags x Status", now)
		if err != nil {
			logger.Warn("digest: heatmap render failed", zap.Error(err))
			break
		}
		d.Image = img
		writeMatrix(&b, matrix)
	}

	d.Text = strings.TrimRight(b.String(), "\n")
	return d, nil
}

func writeTrends(b *strings.Builder, t complaint.WeeklyTrends) {
	s := t.Summary
	fmt.Fprintf(b, "\n🗓 <b>Período:</b> %s a %s\n", html.EscapeString(periodDay(t.Period.Start)), html.EscapeString(periodDay(t.Period.End)))
	fmt.Fprintf(b, "<b>Esta semana:</b> %d (semana anterior: %d)\n", s.ThisWeek, s.LastWeek)
	fmt.Fprintf(b, "<b>Tendência:</b> %s %s\n", format.TrendArrow(s.TrendDirection), format.FormatPercent(s.TrendPercentage))

	if len(t.SentimentThisWeek) > 0 {
		sentiments := aggregate.FromMap(t.SentimentThisWeek)
		parts := make([]string, 0, sentiments.Len())
		for _, kc := range aggregate.TopN(sentiments, 0) {
			parts = append(parts, fmt.Sprintf("%s %d", html.EscapeString(kc.Key), kc.Count))
		}
		fmt.Fprintf(b, "<b>Sentimento:</b> %s\n", strings.Join(parts, " · "))
	}

	if len(t.TopTagsThisWeek) > 0 {
		pairs := make([]aggregate.KeyCount, len(t.TopTagsThisWeek))
		for i, tc := range t.TopTagsThisWeek {
			pairs[i] = aggregate.KeyCount{Key: tc.Tag, Count: tc.Count}
		}
		tags := aggregate.FromPairs(pairs...)
		b.WriteString("\n🏷 <b>Principais tags</b>\n")
		for _, kc := range aggregate.TopN(tags, digestTopTags) {
			fmt.Fprintf(b, "• %s: %d\n", html.EscapeString(format.Humanize(kc.Key)), kc.Count)
		}
	}
}

// periodDay renders a backend date as "07 mar", or returns it unchanged when
// it does not parse.
func periodDay(s string) string {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return s
	}
	return format.FormatDay(d)
}

func writeMetrics(b *strings.Builder, m complaint.ResponseMetrics) {
	b.WriteString("\n💬 <b>Respostas</b>\n")
	fmt.Fprintf(b, "Taxa de resposta: %s (%d de %d)\n", format.FormatPercent(m.ResponseRate), m.WithResponse, m.TotalComplaints)
	fmt.Fprintf(b, "Taxa de resolução: %s\n", format.FormatPercent(m.ResolutionRate))
	fmt.Fprintf(b, "Tempo médio: %.1f dias\n", m.AvgResponseTimeDays)
}

func writeMatrix(b *strings.Builder, m aggregate.Matrix) {
	peakRow, peakCol, peak := "", "", 0
	for _, row := range m.Rows {
		for _, col := range m.Columns {
			if n := m.Count(row, col); n > peak {
				peakRow, peakCol, peak = row, col, n
			}
		}
	}
	if peak == 0 {
		return
	}
	fmt.Fprintf(b, "\n🔥 <b>Maior concentração:</b> %s / %s (%d)\n",
		html.EscapeString(format.Humanize(peakRow)), html.EscapeString(peakCol), peak)
}
