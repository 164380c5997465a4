// Package filter narrows complaint lists by independent search, status,
// category and sentiment constraints.
package filter

import (
	"strings"

	"cdash/internal/complaint"
	"cdash/internal/format"
)

// All disables the status and category constraints.
const All = "all"

// State holds one value per filter slot. The zero value is not "no
// filter": use New. Sentiment nil means any sentiment.
type State struct {
	SearchTerm string
	Status     string
	Category   string
	Sentiment  *string
}

// New returns a state that matches every record.
func New() State {
	return State{Status: All, Category: All}
}

// WithSearch returns a copy of s with a new search term.
func (s State) WithSearch(term string) State {
	s.SearchTerm = term
	return s
}

// WithStatus returns a copy of s with a new status constraint.
func (s State) WithStatus(status string) State {
	s.Status = status
	return s
}

// WithCategory returns a copy of s with a new category constraint.
func (s State) WithCategory(category string) State {
	s.Category = category
	return s
}

// WithSentiment returns a copy of s with a new sentiment constraint. Pass
// nil to clear it.
func (s State) WithSentiment(sentiment *string) State {
	if sentiment != nil {
		v := *sentiment
		sentiment = &v
	}
	s.Sentiment = sentiment
	return s
}

// Active reports whether any slot constrains the result.
func (s State) Active() bool {
	return s.SearchTerm != "" || !bypass(s.Status) || !bypass(s.Category) || s.Sentiment != nil
}

func bypass(v string) bool {
	return v == All || v == ""
}

// Match reports whether r satisfies every active slot.
func (s State) Match(r complaint.Record) bool {
	return s.matchSearch(r) && s.matchStatus(r) && s.matchCategory(r) && s.matchSentiment(r)
}

func (s State) matchSearch(r complaint.Record) bool {
	if s.SearchTerm == "" {
		return true
	}
	term := strings.ToLower(s.SearchTerm)
	return strings.Contains(strings.ToLower(r.Title), term) ||
		strings.Contains(strings.ToLower(r.Text), term) ||
		strings.Contains(strings.ToLower(complaint.Str(r.UserName)), term)
}

func (s State) matchStatus(r complaint.Record) bool {
	return bypass(s.Status) || r.Status == s.Status
}

func (s State) matchCategory(r complaint.Record) bool {
	return bypass(s.Category) || format.CategoryOf(r) == s.Category
}

func (s State) matchSentiment(r complaint.Record) bool {
	return s.Sentiment == nil || (r.Sentiment != nil && *r.Sentiment == *s.Sentiment)
}

// Apply returns the records matching s in their original order. The input
// slice is never modified.
func Apply(records []complaint.Record, s State) []complaint.Record {
	out := make([]complaint.Record, 0, len(records))
	for _, r := range records {
		if s.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Options returns the distinct statuses and categories present in records,
// in first-seen order, for populating the dropdowns. Empty values are
// skipped.
func Options(records []complaint.Record) (statuses, categories []string) {
	seenStatus := make(map[string]bool)
	seenCategory := make(map[string]bool)
	statuses = []string{}
	categories = []string{}
	for _, r := range records {
		if r.Status != "" && !seenStatus[r.Status] {
			seenStatus[r.Status] = true
			statuses = append(statuses, r.Status)
		}
		if cat := format.CategoryOf(r); cat != "" && !seenCategory[cat] {
			seenCategory[cat] = true
			categories = append(categories, cat)
		}
	}
	return statuses, categories
}
