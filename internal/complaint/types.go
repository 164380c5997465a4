// Package complaint provides the complaint record and the payload types
// returned by the backend API.
package complaint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Sentinel labels used when a record lacks a value.
const (
	NoStatus      = "Sem status"
	Uncategorized = "Uncategorized"
)

// Record represents one customer complaint as listed by the backend.
//
// Optional fields are pointers so that "absent" and "empty" stay
// distinguishable on the wire. Use the accessor methods instead of
// dereferencing at call sites; they apply the defaulting rules.
type Record struct {
	ID                int64
	Title             string
	Text              string
	Status            string
	Category          *string
	Tags              []string
	Sentiment         *string
	UrgencyScore      *float64
	Location          *string
	UserName          *string
	ComplaintDate     *time.Time
	ScrapedAt         time.Time
	ResponseGenerated bool

	StoreType           *string
	Classification      []string
	CompanyResponseText *string
}

// wireRecord is the JSON shape of a record. response_generated is decoded
// separately because the backend sends either a bool or the generated text.
type wireRecord struct {
	ID                  int64           `json:"id"`
	Title               *string         `json:"title"`
	Text                string          `json:"text"`
	Status              *string         `json:"status"`
	Category            *string         `json:"category"`
	Tags                []string        `json:"tags"`
	Sentiment           *string         `json:"sentiment"`
	UrgencyScore        *float64        `json:"urgency_score"`
	Location            *string         `json:"location"`
	UserName            *string         `json:"user_name"`
	ComplaintDate       *Timestamp      `json:"complaint_date"`
	ScrapedAt           *Timestamp      `json:"scraped_at"`
	ResponseGenerated   json.RawMessage `json:"response_generated"`
	StoreType           *string         `json:"store_type"`
	Classification      []string        `json:"classification"`
	CompanyResponseText *string         `json:"company_response_text"`
}

// UnmarshalJSON decodes the backend representation of a complaint.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*r = Record{
		ID:                  w.ID,
		Title:               Str(w.Title),
		Text:                w.Text,
		Status:              Str(w.Status),
		Category:            w.Category,
		Tags:                w.Tags,
		Sentiment:           w.Sentiment,
		UrgencyScore:        w.UrgencyScore,
		Location:            w.Location,
		UserName:            w.UserName,
		StoreType:           w.StoreType,
		Classification:      w.Classification,
		CompanyResponseText: w.CompanyResponseText,
		ResponseGenerated:   generatedFlag(w.ResponseGenerated),
	}
	if w.ComplaintDate != nil {
		t := w.ComplaintDate.Time
		r.ComplaintDate = &t
	}
	if w.ScrapedAt != nil {
		r.ScrapedAt = w.ScrapedAt.Time
	}
	return nil
}

// MarshalJSON encodes the record with the same field names the backend uses.
func (r Record) MarshalJSON() ([]byte, error) {
	type out struct {
		ID                  int64      `json:"id"`
		Title               string     `json:"title"`
		Text                string     `json:"text"`
		Status              string     `json:"status"`
		Category            *string    `json:"category,omitempty"`
		Tags                []string   `json:"tags"`
		Sentiment           *string    `json:"sentiment,omitempty"`
		UrgencyScore        *float64   `json:"urgency_score,omitempty"`
		Location            *string    `json:"location,omitempty"`
		UserName            *string    `json:"user_name,omitempty"`
		ComplaintDate       *time.Time `json:"complaint_date,omitempty"`
		ScrapedAt           time.Time  `json:"scraped_at"`
		ResponseGenerated   bool       `json:"response_generated"`
		StoreType           *string    `json:"store_type,omitempty"`
		Classification      []string   `json:"classification,omitempty"`
		CompanyResponseText *string    `json:"company_response_text,omitempty"`
	}
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(out{
		ID: r.ID, Title: r.Title, Text: r.Text, Status: r.Status, Category: r.Category,
		Tags: tags, Sentiment: r.Sentiment, UrgencyScore: r.UrgencyScore, Location: r.Location,
		UserName: r.UserName, ComplaintDate: r.ComplaintDate, ScrapedAt: r.ScrapedAt,
		ResponseGenerated: r.ResponseGenerated, StoreType: r.StoreType,
		Classification: r.Classification, CompanyResponseText: r.CompanyResponseText,
	})
}

// generatedFlag interprets response_generated: true, or any non-empty text.
func generatedFlag(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s) != ""
	}
	return false
}

// StatusOrDefault returns the status, or NoStatus when absent.
func (r Record) StatusOrDefault() string {
	if strings.TrimSpace(r.Status) == "" {
		return NoStatus
	}
	return r.Status
}

// TagsOrDefault returns the tags, or a single Uncategorized bucket when the
// record carries none.
func (r Record) TagsOrDefault() []string {
	if len(r.Tags) == 0 {
		return []string{Uncategorized}
	}
	return r.Tags
}

// SentimentOrEmpty returns the sentiment label or "".
func (r Record) SentimentOrEmpty() string {
	return Str(r.Sentiment)
}

// NeedsAnalysis reports whether the record must be analyzed before a
// response can be generated for it.
func (r Record) NeedsAnalysis() bool {
	s := Str(r.Sentiment)
	return s == "" || s == "Unknown"
}

// Str dereferences an optional string.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Ptr returns a pointer to v. Handy for building records in tests and
// filter states.
func Ptr[T any](v T) *T {
	return &v
}

// Dedupe keeps the first occurrence of every id and preserves order.
func Dedupe(records []Record) []Record {
	seen := make(map[int64]bool, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

// Timestamp accepts the date formats the backend emits: RFC 3339 with a
// zone, ISO 8601 without a zone (interpreted as UTC) and plain dates.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}
