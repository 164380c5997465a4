package complaint

// Stats is the aggregate answer of GET /complaints/stats.
type Stats struct {
	Total        int            `json:"total"`
	BySentiment  map[string]int `json:"by_sentiment"`
	ByStatus     map[string]int `json:"by_status"`
	ByCategory   map[string]int `json:"by_category"`
	ByRACategory map[string]int `json:"by_ra_category"`
	AvgUrgency   float64        `json:"avg_urgency"`
}

// DateCount is one point of a per-day series.
type DateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Timeline is the answer of GET /analytics/stats/timeline.
type Timeline struct {
	PeriodDays      int         `json:"period_days"`
	StartDate       string      `json:"start_date"`
	EndDate         string      `json:"end_date"`
	TotalComplaints int         `json:"total_complaints"`
	Timeline        []DateCount `json:"timeline"`
}

// LocationCount is one ranked location.
type LocationCount struct {
	Location   string  `json:"location"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// LocationStats is the answer of GET /analytics/stats/locations.
type LocationStats struct {
	TotalComplaints int             `json:"total_complaints"`
	WithLocation    int             `json:"with_location"`
	WithoutLocation int             `json:"without_location"`
	Locations       map[string]int  `json:"locations"`
	Top10           []LocationCount `json:"top_10"`
}

// StoreTypeCount is one store-type bucket.
type StoreTypeCount struct {
	StoreType  string  `json:"store_type"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// StoreTypeStats is the answer of GET /analytics/stats/store-type.
type StoreTypeStats struct {
	TotalClassified int              `json:"total_classified"`
	ByStoreType     []StoreTypeCount `json:"by_store_type"`
}

// TagCount is one ranked tag.
type TagCount struct {
	Tag        string  `json:"tag"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage,omitempty"`
}

// TagStats is the answer of GET /analytics/stats/tags.
type TagStats struct {
	TotalTagged        int        `json:"total_tagged"`
	TotalUniqueTags    int        `json:"total_unique_tags"`
	AllTags            []TagCount `json:"all_tags"`
	MiddleDistribution []TagCount `json:"middle_distribution"`
}

// Trend directions reported by the weekly summary.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// WeeklyTrends is the answer of GET /analytics/stats/weekly-trends.
type WeeklyTrends struct {
	Period struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
	Summary struct {
		ThisWeek        int     `json:"this_week"`
		LastWeek        int     `json:"last_week"`
		TrendPercentage float64 `json:"trend_percentage"`
		TrendDirection  string  `json:"trend_direction"`
	} `json:"summary"`
	DailyBreakdown    []DateCount    `json:"daily_breakdown"`
	SentimentThisWeek map[string]int `json:"sentiment_this_week"`
	StoreTypeThisWeek map[string]int `json:"store_type_this_week"`
	TopTagsThisWeek   []TagCount     `json:"top_tags_this_week"`
}

// ResponseMetrics is the answer of GET /analytics/stats/response-metrics.
type ResponseMetrics struct {
	TotalComplaints      int     `json:"total_complaints"`
	WithResponse         int     `json:"with_response"`
	ResponseRate         float64 `json:"response_rate"`
	AvgResponseTimeHours float64 `json:"avg_response_time_hours"`
	AvgResponseTimeDays  float64 `json:"avg_response_time_days"`
	ResolvedCount        int     `json:"resolved_count"`
	ResolutionRate       float64 `json:"resolution_rate"`
	DateRange            struct {
		Oldest *string `json:"oldest"`
		Newest *string `json:"newest"`
	} `json:"date_range"`
}

// Coupon is the optional discount attached to a generated response.
type Coupon struct {
	Code       string     `json:"code"`
	Discount   int        `json:"discount"`
	ValidUntil *Timestamp `json:"valid_until,omitempty"`
}

// GeneratedResponse is the answer of POST /responses/generate/{id}.
type GeneratedResponse struct {
	ComplaintID    int64   `json:"complaint_id"`
	Response       string  `json:"response"`
	EditedResponse string  `json:"edited_response,omitempty"`
	Coupon         *Coupon `json:"coupon,omitempty"`
}

// Text returns the reply text, preferring the generated one.
func (g GeneratedResponse) Text() string {
	if g.Response != "" {
		return g.Response
	}
	return g.EditedResponse
}
