package complaint

// Company is one row of the benchmark comparison table.
type Company struct {
	Name            string   `json:"name"`
	Slug            string   `json:"slug"`
	Reputation      string   `json:"reputation"`
	Score           *float64 `json:"score"`
	ResponseRate    *float64 `json:"response_rate"`
	SolutionRate    *float64 `json:"solution_rate"`
	WouldBuyAgain   *float64 `json:"would_buy_again"`
	TotalComplaints int      `json:"total_complaints"`
	IsOwn           bool     `json:"is_venancio"`
}

// BenchmarkMetrics groups the three metrics averaged across competitors.
type BenchmarkMetrics struct {
	Score         float64 `json:"score"`
	SolutionRate  float64 `json:"solution_rate"`
	WouldBuyAgain float64 `json:"would_buy_again"`
}

// Comparison is the answer of GET /benchmark/comparison.
type Comparison struct {
	Companies []Company        `json:"companies"`
	Averages  BenchmarkMetrics `json:"averages"`
	Gaps      BenchmarkMetrics `json:"venancio_gaps"`
}

// Competitor is one entry of GET /benchmark/competitors.
type Competitor struct {
	ID                   int64    `json:"id"`
	Name                 string   `json:"name"`
	Slug                 string   `json:"slug"`
	Reputation           string   `json:"reputation"`
	Score                *float64 `json:"score"`
	ResponseRate         *float64 `json:"response_rate"`
	SolutionRate         *float64 `json:"solution_rate"`
	WouldBuyAgain        *float64 `json:"would_buy_again"`
	AvgResponseTimeHours *float64 `json:"avg_response_time_hours"`
	TotalComplaints      int      `json:"total_complaints"`
	ScrapedComplaints    int      `json:"scraped_complaints"`
	LastUpdated          *string  `json:"last_updated"`
}

// BestResponse is a highly rated competitor reply.
type BestResponse struct {
	ID                      int64    `json:"id"`
	CompetitorName          string   `json:"competitor_name"`
	Title                   string   `json:"title"`
	ComplaintText           string   `json:"complaint_text"`
	CompanyResponse         string   `json:"company_response"`
	CustomerEvaluation      string   `json:"customer_evaluation"`
	CustomerScore           *float64 `json:"customer_score"`
	WasResolved             *bool    `json:"was_resolved"`
	WouldBuyAgain           *bool    `json:"would_buy_again"`
	ProblemCategory         string   `json:"problem_category"`
	ResponseTone            string   `json:"response_tone"`
	ResponseHasSolution     *bool    `json:"response_has_solution"`
	ResponseHasApology      *bool    `json:"response_has_apology"`
	ResponseHasCompensation *bool    `json:"response_has_compensation"`
}

// Recommendation is one suggested practice derived from response patterns.
type Recommendation struct {
	Priority string `json:"priority"`
	Action   string `json:"action"`
	Reason   string `json:"reason"`
}

// ResponsePatterns is the answer of GET /benchmark/response-patterns.
type ResponsePatterns struct {
	TotalAnalyzed int `json:"total_analyzed"`
	Patterns      struct {
		HasApology       float64            `json:"has_apology"`
		HasSolution      float64            `json:"has_solution"`
		HasCompensation  float64            `json:"has_compensation"`
		HasDeadline      float64            `json:"has_deadline"`
		ToneDistribution map[string]float64 `json:"tone_distribution"`
	} `json:"patterns"`
	Recommendations []Recommendation `json:"recommendations"`
}

// BenchmarkStats is the answer of GET /benchmark/stats.
type BenchmarkStats struct {
	TotalCompetitors   int `json:"total_competitors"`
	TotalComplaints    int `json:"total_complaints"`
	WithResponses      int `json:"with_responses"`
	HighScoreResponses int `json:"high_score_responses"`
}

// CompetitorComplaintsPage is one page of GET /benchmark/competitor/{id}/complaints.
type CompetitorComplaintsPage struct {
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	Complaints []BestResponse `json:"complaints"`
}
