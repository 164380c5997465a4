package dashboard

import (
	"context"

	"cdash/internal/complaint"
	"cdash/internal/filter"
	"cdash/internal/format"
)

// Row is one complaint as shown in the complaints table.
type Row struct {
	ID                int64       `json:"id"`
	Title             string      `json:"title"`
	Preview           string      `json:"preview"`
	UserName          string      `json:"user_name,omitempty"`
	Status            string      `json:"status"`
	StatusLabel       string      `json:"status_label"`
	StatusTier        format.Tier `json:"status_tier"`
	Category          string      `json:"category"`
	CategoryTier      format.Tier `json:"category_tier"`
	Sentiment         string      `json:"sentiment,omitempty"`
	SentimentTier     format.Tier `json:"sentiment_tier"`
	Urgency           string      `json:"urgency"`
	Location          string      `json:"location,omitempty"`
	Date              string      `json:"date"`
	ResponseGenerated bool        `json:"response_generated"`
}

// NewRow decorates a record for display.
func NewRow(r complaint.Record) Row {
	category := format.CategoryOf(r)
	label := format.NormalizeStatus(r.StatusOrDefault())
	return Row{
		ID:                r.ID,
		Title:             r.Title,
		Preview:           format.Truncate(r.Text, format.ComplaintPreview),
		UserName:          complaint.Str(r.UserName),
		Status:            r.Status,
		StatusLabel:       label,
		StatusTier:        format.StatusTier(label),
		Category:          format.DisplayCategory(category),
		CategoryTier:      format.CategoryTier(category),
		Sentiment:         r.SentimentOrEmpty(),
		SentimentTier:     format.SentimentTier(r.SentimentOrEmpty()),
		Urgency:           format.UrgencyTier(r.UrgencyScore),
		Location:          complaint.Str(r.Location),
		Date:              format.FormatDate(r.ComplaintDate),
		ResponseGenerated: r.ResponseGenerated,
	}
}

// Table is the filtered complaints table with its dropdown options.
type Table struct {
	Filter     filter.State `json:"-"`
	Total      int          `json:"total"`
	Shown      int          `json:"shown"`
	Rows       []Row        `json:"rows"`
	Statuses   []string     `json:"statuses"`
	Categories []string     `json:"categories"`
}

// ComplaintTable loads the full listing and applies state to it. The
// dropdown options are computed from the unfiltered listing so choosing a
// value never hides the others.
func (s *Service) ComplaintTable(ctx context.Context, state filter.State) (Table, error) {
	records, err := s.AllComplaints(ctx)
	if err != nil && len(records) == 0 {
		return Table{Filter: state, Rows: []Row{}, Statuses: []string{}, Categories: []string{}}, err
	}
	return BuildTable(records, state), nil
}

// BuildTable filters records and decorates the matching ones.
func BuildTable(records []complaint.Record, state filter.State) Table {
	matched := filter.Apply(records, state)
	statuses, categories := filter.Options(records)

	t := Table{
		Filter:     state,
		Total:      len(records),
		Shown:      len(matched),
		Rows:       make([]Row, 0, len(matched)),
		Statuses:   statuses,
		Categories: categories,
	}
	for _, r := range matched {
		t.Rows = append(t.Rows, NewRow(r))
	}
	return t
}
