package aggregate

import (
	"sort"

	"cdash/internal/complaint"
	"cdash/internal/format"
)

// MaxRows caps the number of categories kept in a matrix.
const MaxRows = 10

// IntensityLevels is the number of non-empty heatmap buckets.
const IntensityLevels = 5

// Cell addresses one matrix count.
type Cell struct {
	Row    string
	Column string
}

// Matrix maps category by status pairs to counts. It is derived on every
// call and never cached. Peak is the largest count over every category,
// including the ones cut from Rows.
type Matrix struct {
	Rows    []string
	Columns []string
	Cells   map[Cell]int
	Peak    int
}

// DimensionExtractor returns the categories a record belongs to. A record
// contributes one count per returned category.
type DimensionExtractor func(complaint.Record) []string

// TagDimension groups by tag, with untagged records in the Uncategorized
// bucket.
func TagDimension(r complaint.Record) []string {
	return r.TagsOrDefault()
}

// CategoryDimension groups by the display category derived from tags.
func CategoryDimension(r complaint.Record) []string {
	if cat := format.CategoryOf(r); cat != "" {
		return []string{cat}
	}
	return []string{complaint.Uncategorized}
}

// BuildMatrix counts records per (category, normalized status). Rows are
// the MaxRows largest categories, ties kept in first-seen order; columns
// are every status observed across all records, sorted.
func BuildMatrix(records []complaint.Record, extract DimensionExtractor) Matrix {
	if extract == nil {
		extract = TagDimension
	}

	totals := NewCounter()
	cells := make(map[Cell]int)
	statuses := make(map[string]bool)
	m := Matrix{Columns: []string{}, Cells: make(map[Cell]int)}
	for _, r := range records {
		status := format.NormalizeStatus(r.StatusOrDefault())
		if !statuses[status] {
			statuses[status] = true
			m.Columns = append(m.Columns, status)
		}
		for _, cat := range extract(r) {
			totals.Add(cat, 1)
			cell := Cell{Row: cat, Column: status}
			cells[cell]++
			if cells[cell] > m.Peak {
				m.Peak = cells[cell]
			}
		}
	}
	sort.Strings(m.Columns)

	top := TopN(totals, MaxRows)
	m.Rows = make([]string, 0, len(top))
	kept := make(map[string]bool, len(top))
	for _, kc := range top {
		m.Rows = append(m.Rows, kc.Key)
		kept[kc.Key] = true
	}
	for cell, n := range cells {
		if kept[cell.Row] {
			m.Cells[cell] = n
		}
	}
	return m
}

// Count returns the count at (row, column).
func (m Matrix) Count(row, column string) int {
	return m.Cells[Cell{Row: row, Column: column}]
}

// RowTotal sums a row across all columns.
func (m Matrix) RowTotal(row string) int {
	total := 0
	for _, col := range m.Columns {
		total += m.Count(row, col)
	}
	return total
}

// ColumnTotal sums a column across the kept rows.
func (m Matrix) ColumnTotal(column string) int {
	total := 0
	for _, row := range m.Rows {
		total += m.Count(row, column)
	}
	return total
}

// Max returns the intensity scale: Peak, or the largest kept cell when that
// is higher. It is 0 for an empty matrix.
func (m Matrix) Max() int {
	highest := m.Peak
	for _, n := range m.Cells {
		if n > highest {
			highest = n
		}
	}
	return highest
}

// Empty reports whether the matrix has no rows.
func (m Matrix) Empty() bool {
	return len(m.Rows) == 0
}

// Intensity buckets count into 0..IntensityLevels relative to peak.
func Intensity(count, peak int) int {
	if count <= 0 || peak <= 0 {
		return 0
	}
	level := count * IntensityLevels / peak
	if level > IntensityLevels {
		level = IntensityLevels
	}
	return level
}

// Segment is one status slice of a stacked bar.
type Segment struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// Bar is one category row of the stacked bar chart.
type Bar struct {
	Category string    `json:"category"`
	Label    string    `json:"label"`
	Total    int       `json:"total"`
	Segments []Segment `json:"segments"`
}

// StackedBars turns a matrix into chart rows with labels truncated to
// labelBudget runes. Empty segments are omitted.
func StackedBars(m Matrix, labelBudget int) []Bar {
	bars := make([]Bar, 0, len(m.Rows))
	for _, row := range m.Rows {
		bar := Bar{
			Category: row,
			Label:    format.Truncate(row, labelBudget),
			Total:    m.RowTotal(row),
		}
		for _, col := range m.Columns {
			if n := m.Count(row, col); n > 0 {
				bar.Segments = append(bar.Segments, Segment{Status: col, Count: n})
			}
		}
		bars = append(bars, bar)
	}
	return bars
}

// StatusDistribution merges raw status counts into their display labels,
// largest first.
func StatusDistribution(byStatus map[string]int) []KeyCount {
	merged := NewCounter()
	src := FromMap(byStatus)
	for _, raw := range src.Keys() {
		merged.Add(format.NormalizeStatus(raw), src.Get(raw))
	}
	return TopN(merged, 0)
}

// ResolutionRate returns the percentage of resolved complaints in a raw
// status breakdown.
func ResolutionRate(byStatus map[string]int) float64 {
	total := 0
	for _, n := range byStatus {
		total += n
	}
	return Share(byStatus["Resolvido"]+byStatus["Resolvida"], total)
}
