// Package aggregate derives grouped counts from complaint records: the
// category by status matrix behind the heatmap, top-N rankings and
// percentage-of-total shares.
package aggregate

import (
	"sort"

	"cdash/internal/format"
)

// KeyCount is one ranked entry.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Counter counts occurrences and remembers the order in which keys were
// first seen. The zero value is ready to use.
type Counter struct {
	counts map[string]int
	order  []string
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// FromPairs builds a counter from ordered pairs.
func FromPairs(pairs ...KeyCount) *Counter {
	c := NewCounter()
	for _, p := range pairs {
		c.Add(p.Key, p.Count)
	}
	return c
}

// FromMap builds a counter from a map. Map iteration order is random, so
// keys are inserted in sorted order to keep results deterministic.
func FromMap(m map[string]int) *Counter {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	c := NewCounter()
	for _, k := range keys {
		c.Add(k, m[k])
	}
	return c
}

// Add increments key by n.
func (c *Counter) Add(key string, n int) {
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key] += n
}

// Get returns the count of key.
func (c *Counter) Get(key string) int {
	return c.counts[key]
}

// Keys returns the keys in first-seen order.
func (c *Counter) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of distinct keys.
func (c *Counter) Len() int {
	return len(c.order)
}

// Total returns the sum of all counts.
func (c *Counter) Total() int {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// TopN returns the n highest counts in descending order. Ties keep
// first-seen order. n <= 0 returns every key.
func TopN(c *Counter, n int) []KeyCount {
	if c == nil {
		return []KeyCount{}
	}
	out := make([]KeyCount, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, KeyCount{Key: k, Count: c.counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Share returns count as a percentage of total, or 0 when total is not
// positive.
func Share(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// FormatShare renders Share as a percentage with one decimal place.
func FormatShare(count, total int) string {
	return format.FormatPercent(Share(count, total))
}
