package dashboard

import (
	"cdash/internal/api"
	"cdash/internal/querycache"
)

// Query keys. Mutations invalidate by these prefixes, so the resource names
// must stay stable.
const (
	ResComplaints           = "complaints"
	ResComplaintsAll        = "complaints-list-all"
	ResComplaint            = "complaint"
	ResComplaintStats       = "complaint-stats"
	ResResponse             = "response"
	ResTimeline             = "timeline-stats"
	ResLocations            = "location-stats"
	ResTags                 = "tag-stats"
	ResStoreTypes           = "store-type-stats"
	ResWeeklyTrends         = "weekly-trends"
	ResResponseMetrics      = "response-metrics"
	ResBenchmarkComparison  = "benchmark-comparison"
	ResBenchmarkCompetitors = "benchmark-competitors"
	ResBenchmarkBest        = "benchmark-best-responses"
	ResBenchmarkPatterns    = "benchmark-response-patterns"
	ResBenchmarkStats       = "benchmark-stats"
	ResCompetitorComplaints = "competitor-complaints"
)

// ComplaintsKey addresses a filtered complaint listing.
func ComplaintsKey(p api.ListParams) querycache.Key {
	return querycache.NewKey(ResComplaints, p)
}

// AllComplaintsKey addresses the full listing used by the heatmap.
func AllComplaintsKey() querycache.Key {
	return querycache.NewKey(ResComplaintsAll)
}

// ComplaintKey addresses one complaint.
func ComplaintKey(id int64) querycache.Key {
	return querycache.NewKey(ResComplaint, id)
}

// GeneratedResponseKeys lists what a generated response makes stale: every
// listing, the full listing and the complaint itself.
func GeneratedResponseKeys(id int64) []querycache.Key {
	return []querycache.Key{
		querycache.NewKey(ResComplaints),
		AllComplaintsKey(),
		ComplaintKey(id),
		ResponseKey(id),
	}
}

// ResponseKey addresses the stored reply of one complaint.
func ResponseKey(id int64) querycache.Key {
	return querycache.NewKey(ResResponse, id)
}
