package format

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"
)

// Ellipsis is appended to truncated text.
const Ellipsis = "..."

// Character budgets used by the benchmark views.
const (
	ComplaintPreview = 200
	ResponsePreview  = 300
	ChartLabel       = 20
)

// Truncate shortens s to budget runes followed by an ellipsis. Text within
// the budget is returned untouched.
func Truncate(s string, budget int) string {
	if budget < 0 {
		budget = 0
	}
	if utf8.RuneCountInString(s) <= budget {
		return s
	}
	runes := []rune(s)
	return string(runes[:budget]) + Ellipsis
}

// Expander tracks which record shows its full text. At most one record is
// expanded at a time. The zero value is ready to use.
type Expander struct {
	mu       sync.Mutex
	expanded int64
	open     bool
}

// Toggle expands id, or collapses it when it is already expanded. Expanding
// a record collapses the previous one.
func (e *Expander) Toggle(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open && e.expanded == id {
		e.open = false
		return
	}
	e.expanded = id
	e.open = true
}

// IsExpanded reports whether id is the expanded record.
func (e *Expander) IsExpanded(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open && e.expanded == id
}

// Text returns the full text for the expanded record and the truncated text
// for every other one.
func (e *Expander) Text(id int64, s string, budget int) string {
	if e.IsExpanded(id) {
		return s
	}
	return Truncate(s, budget)
}

var ptMonths = [...]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// FormatDate renders a date as dd/mm/yyyy, or "—" for a nil date.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return NoCategory
	}
	return t.Format("02/01/2006")
}

// FormatDay renders a day as "02 jan", the label used on timeline axes.
func FormatDay(t time.Time) string {
	return fmt.Sprintf("%02d %s", t.Day(), ptMonths[t.Month()-1])
}

// FormatPercent renders a percentage with one decimal place.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// TrendArrow returns the arrow shown next to a weekly trend.
func TrendArrow(direction string) string {
	switch direction {
	case "up":
		return "↑"
	case "down":
		return "↓"
	default:
		return "→"
	}
}
