package dashboard

import (
	"context"

	"golang.org/x/sync/errgroup"

	"cdash/internal/api"
	"cdash/internal/complaint"
	"cdash/internal/format"
)

// CompanyRow is one row of the benchmark comparison table.
type CompanyRow struct {
	complaint.Company
	ScoreTier      format.Tier `json:"score_tier"`
	ReputationTier format.Tier `json:"reputation_tier"`
}

// ResponseCard is a best-response example with truncated texts.
type ResponseCard struct {
	ID             int64       `json:"id"`
	Competitor     string      `json:"competitor"`
	Title          string      `json:"title"`
	Complaint      string      `json:"complaint"`
	Response       string      `json:"response"`
	Expanded       bool        `json:"expanded"`
	Score          *float64    `json:"score,omitempty"`
	ScoreTier      format.Tier `json:"score_tier"`
	Resolved       bool        `json:"resolved"`
	ProblemTier    format.Tier `json:"problem_tier"`
	ProblemSummary string      `json:"problem"`
}

// Benchmark is the competitor benchmark page.
type Benchmark struct {
	Stats     Panel[complaint.BenchmarkStats]   `json:"stats"`
	Companies Panel[[]CompanyRow]               `json:"companies"`
	Averages  complaint.BenchmarkMetrics        `json:"averages"`
	Gaps      complaint.BenchmarkMetrics        `json:"gaps"`
	Best      Panel[[]ResponseCard]             `json:"best_responses"`
	Patterns  Panel[complaint.ResponsePatterns] `json:"patterns"`
}

// Benchmark loads the benchmark page. expanded selects which best response
// shows its full text; nil collapses all of them.
func (s *Service) Benchmark(ctx context.Context, params api.BestResponsesParams, expanded *format.Expander) (Benchmark, error) {
	if expanded == nil {
		expanded = &format.Expander{}
	}

	var (
		b Benchmark
		g errgroup.Group
	)
	g.Go(func() error {
		st, err := s.BenchmarkStats(ctx)
		b.Stats = newPanel(st, err, st.TotalCompetitors == 0)
		return nil
	})
	g.Go(func() error {
		cmp, err := s.Comparison(ctx)
		rows := make([]CompanyRow, 0, len(cmp.Companies))
		for _, c := range cmp.Companies {
			row := CompanyRow{Company: c, ScoreTier: format.Red, ReputationTier: format.ReputationTier(c.Reputation)}
			if c.Score != nil {
				row.ScoreTier = format.ScoreTier(*c.Score)
			}
			rows = append(rows, row)
		}
		b.Companies = newPanel(rows, err, len(rows) == 0)
		b.Averages = cmp.Averages
		b.Gaps = cmp.Gaps
		return nil
	})
	g.Go(func() error {
		best, err := s.BestResponses(ctx, params)
		cards := make([]ResponseCard, 0, len(best))
		for _, r := range best {
			cards = append(cards, NewResponseCard(r, expanded))
		}
		b.Best = newPanel(cards, err, len(cards) == 0)
		return nil
	})
	g.Go(func() error {
		rp, err := s.ResponsePatterns(ctx)
		b.Patterns = newPanel(rp, err, rp.TotalAnalyzed == 0)
		return nil
	})

	_ = g.Wait()
	return b, ctx.Err()
}

// NewResponseCard truncates the texts of r unless r is the expanded one.
func NewResponseCard(r complaint.BestResponse, expanded *format.Expander) ResponseCard {
	card := ResponseCard{
		ID:             r.ID,
		Competitor:     r.CompetitorName,
		Title:          r.Title,
		Complaint:      expanded.Text(r.ID, r.ComplaintText, format.ComplaintPreview),
		Response:       expanded.Text(r.ID, r.CompanyResponse, format.ResponsePreview),
		Expanded:       expanded.IsExpanded(r.ID),
		Score:          r.CustomerScore,
		ScoreTier:      format.Gray,
		Resolved:       r.WasResolved != nil && *r.WasResolved,
		ProblemTier:    format.CategoryTier(r.ProblemCategory),
		ProblemSummary: format.DisplayCategory(r.ProblemCategory),
	}
	if r.CustomerScore != nil {
		card.ScoreTier = format.ScoreTier(*r.CustomerScore)
	}
	return card
}
