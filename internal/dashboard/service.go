// Package dashboard binds the backend client to the query cache. Every
// backend view has one cached read, the response generator is a mutation,
// and Overview assembles the panels of the main page.
package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"cdash/internal/api"
	"cdash/internal/complaint"
	"cdash/internal/querycache"
)

// Backend is the subset of the API client the dashboard reads from.
type Backend interface {
	ListComplaints(ctx context.Context, p api.ListParams) ([]complaint.Record, error)
	GetComplaint(ctx context.Context, id int64) (complaint.Record, error)
	ComplaintStats(ctx context.Context) (complaint.Stats, error)
	Timeline(ctx context.Context, days int) (complaint.Timeline, error)
	Locations(ctx context.Context, limit int) (complaint.LocationStats, error)
	StoreTypes(ctx context.Context) (complaint.StoreTypeStats, error)
	Tags(ctx context.Context, limit int) (complaint.TagStats, error)
	WeeklyTrends(ctx context.Context) (complaint.WeeklyTrends, error)
	ResponseMetrics(ctx context.Context) (complaint.ResponseMetrics, error)
	Analyze(ctx context.Context, id int64) error
	GenerateResponse(ctx context.Context, id int64) (complaint.GeneratedResponse, error)
	GetResponse(ctx context.Context, id int64) (complaint.GeneratedResponse, error)
	EditResponse(ctx context.Context, id int64, text string) error
	Comparison(ctx context.Context) (complaint.Comparison, error)
	Competitors(ctx context.Context) ([]complaint.Competitor, error)
	BestResponses(ctx context.Context, p api.BestResponsesParams) ([]complaint.BestResponse, error)
	ResponsePatterns(ctx context.Context) (complaint.ResponsePatterns, error)
	BenchmarkStats(ctx context.Context) (complaint.BenchmarkStats, error)
	CompetitorComplaints(ctx context.Context, id int64, page, pageSize int) (complaint.CompetitorComplaintsPage, error)
}

// ErrEmptyResponse is returned when an edited reply has no text.
var ErrEmptyResponse = errors.New("response text cannot be empty")

// Ledger records generated responses.
type Ledger interface {
	Record(resp complaint.GeneratedResponse) (bool, error)
}

// Settings holds the query parameters used by the overview.
type Settings struct {
	ListLimit     int
	TimelineDays  int
	LocationLimit int
	TagLimit      int
}

func (s Settings) withDefaults() Settings {
	if s.ListLimit <= 0 {
		s.ListLimit = 1000
	}
	if s.TimelineDays <= 0 {
		s.TimelineDays = 30
	}
	if s.LocationLimit <= 0 {
		s.LocationLimit = 10
	}
	if s.TagLimit <= 0 {
		s.TagLimit = 20
	}
	return s
}

// Service serves cached dashboard data.
type Service struct {
	backend  Backend
	cache    *querycache.Cache
	settings Settings
	ledger   Ledger
	logger   *zap.Logger

	mu        sync.Mutex
	generates map[int64]*querycache.Mutation[complaint.GeneratedResponse]
}

// NewService wires a backend to a cache. ledger may be nil.
func NewService(backend Backend, cache *querycache.Cache, settings Settings, ledger Ledger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		backend:   backend,
		cache:     cache,
		settings:  settings.withDefaults(),
		ledger:    ledger,
		logger:    logger.Named("dashboard"),
		generates: make(map[int64]*querycache.Mutation[complaint.GeneratedResponse]),
	}
}

// Cache exposes the underlying cache for invalidation and stats.
func (s *Service) Cache() *querycache.Cache {
	return s.cache
}

// Settings returns the effective settings.
func (s *Service) Settings() Settings {
	return s.settings
}

// Complaints returns a filtered listing.
func (s *Service) Complaints(ctx context.Context, p api.ListParams) ([]complaint.Record, error) {
	return querycache.Query(ctx, s.cache, ComplaintsKey(p), func(ctx context.Context) ([]complaint.Record, error) {
		return s.backend.ListComplaints(ctx, p)
	})
}

// AllComplaints returns the full listing used for the heatmap and table.
func (s *Service) AllComplaints(ctx context.Context) ([]complaint.Record, error) {
	p := api.ListParams{Limit: s.settings.ListLimit}
	return querycache.Query(ctx, s.cache, AllComplaintsKey(), func(ctx context.Context) ([]complaint.Record, error) {
		return s.backend.ListComplaints(ctx, p)
	})
}

// Complaint returns one complaint.
func (s *Service) Complaint(ctx context.Context, id int64) (complaint.Record, error) {
	return querycache.Query(ctx, s.cache, ComplaintKey(id), func(ctx context.Context) (complaint.Record, error) {
		return s.backend.GetComplaint(ctx, id)
	})
}

// Stats returns the overview totals.
func (s *Service) Stats(ctx context.Context) (complaint.Stats, error) {
	return querycache.Query(ctx, s.cache, querycache.NewKey(ResComplaintStats), s.backend.ComplaintStats)
}

// Timeline returns complaints per day.
func (s *Service) Timeline(ctx context.Context, days int) (complaint.Timeline, error) {
	return querycache.Query(ctx, s.cache, querycache.NewKey(ResTimeline, days), func(ctx context.Context) (complaint.Timeline, error) {
		return s.backend.Timeline(ctx, days)
	})
}

// Locations returns the location ranking.
func (s *Service) Locations(ctx context.Context, limit int) (complaint.LocationStats, error) {
	return querycache.Query(ctx, s.cache, querycache.NewKey(ResLocations, limit), func(ctx context.Context) (complaint.LocationStats, error) {
		return s.backend.Locations(ctx, limit)
	})
}

// Tags returns the tag ranking.
func (s *Service) Tags(ctx context.Context, limit int) (complaint.TagStats, error) {
	return querycache.Query(ctx, s.cache, querycache.NewKey(ResTags, limit), func(ctx context.Context) (complaint.TagStats, error) {
		return s.backend.Tags(ctx, limit)
	})
}

// StoreTypes returns the store type split.
func (s *Service) StoreTypes(ctx context.Context) (complaint.StoreTypeStats, error) {
	return querycache.Query(ctx, s.cache, querycache.NewKey(ResStoreTypes), s.backend.StoreTypes)
}

// WeeklyTrends returns the week over week summary.
func (s *Service) WeeklyTrends(ctx context.Context) (complaint.WeeklyTrends, error) {
	return querycache.Query(ctx, s.cache, querycache.NewKey(ResWeeklyTrends), s.backend.WeeklyTrends)
}

// ResponseMetrics returns response and resolution rates.
func (s *Service) ResponseMetrics(ctx context.Context) (complaint.ResponseMetrics, error) {
	return querycache.Query(ctx, s.cache, querycache.NewKey(ResResponseMetrics), s.backend.ResponseMetrics)
}

// Comparison returns the benchmark comparison table.
func (s *Service) Comparison(ctx context.Context) (complaint.Comparison, error) {
	return querycache.Query(ctx, s.cache, querycache.NewKey(ResBenchmarkComparison), s.backend.Comparison)
}

// Competitors returns the tracked competitors.
func (s *Service) Competitors(ctx context.Context) ([]complaint.Competitor, error) {
	return querycache.Query(ctx, s.cache, querycache.NewKey(ResBenchmarkCompetitors), s.backend.Competitors)
}

// BestResponses returns top rated competitor replies.
func (s *Service) BestResponses(ctx context.Context, p api.BestResponsesParams) ([]complaint.BestResponse, error) {
	return querycache.Query(ctx, s.cache, querycache.NewKey(ResBenchmarkBest, p), func(ctx context.Context) ([]complaint.BestResponse, error) {
		return s.backend.BestResponses(ctx, p)
	})
}

// ResponsePatterns returns reply pattern statistics.
func (s *Service) ResponsePatterns(ctx context.Context) (complaint.ResponsePatterns, error) {
	return querycache.Query(ctx, s.cache, querycache.NewKey(ResBenchmarkPatterns), s.backend.ResponsePatterns)
}

// BenchmarkStats returns the benchmark totals.
func (s *Service) BenchmarkStats(ctx context.Context) (complaint.BenchmarkStats, error) {
	return querycache.Query(ctx, s.cache, querycache.NewKey(ResBenchmarkStats), s.backend.BenchmarkStats)
}

// CompetitorComplaints returns one page of a competitor's complaints.
func (s *Service) CompetitorComplaints(ctx context.Context, id int64, page, pageSize int) (complaint.CompetitorComplaintsPage, error) {
	key := querycache.NewKey(ResCompetitorComplaints, id, page, pageSize)
	return querycache.Query(ctx, s.cache, key, func(ctx context.Context) (complaint.CompetitorComplaintsPage, error) {
		return s.backend.CompetitorComplaints(ctx, id, page, pageSize)
	})
}

// Response returns the stored reply of complaint id.
func (s *Service) Response(ctx context.Context, id int64) (complaint.GeneratedResponse, error) {
	return querycache.Query(ctx, s.cache, ResponseKey(id), func(ctx context.Context) (complaint.GeneratedResponse, error) {
		resp, err := s.backend.GetResponse(ctx, id)
		if err == nil && resp.ComplaintID == 0 {
			resp.ComplaintID = id
		}
		return resp, err
	})
}

// EditResponse returns the mutation that replaces the reply text of
// complaint id. Empty text is rejected before reaching the backend.
func (s *Service) EditResponse(id int64, text string) *querycache.Mutation[string] {
	return querycache.NewMutation(s.cache, func(ctx context.Context) (string, error) {
		text = strings.TrimSpace(text)
		if text == "" {
			return "", ErrEmptyResponse
		}
		if err := s.backend.EditResponse(ctx, id, text); err != nil {
			return "", err
		}
		return text, nil
	}, func(string) []querycache.Key {
		return []querycache.Key{ResponseKey(id)}
	})
}

// GenerateResponse returns the mutation that produces a reply for complaint
// id. Every caller gets the same mutation for an id, so a second run while
// one is pending fails with querycache.ErrMutationPending. Complaints without
// sentiment are analyzed first. A successful run invalidates the listings
// and the complaint.
func (s *Service) GenerateResponse(id int64) *querycache.Mutation[complaint.GeneratedResponse] {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.generates[id]
	if !ok {
		m = s.newGenerateResponse(id)
		s.generates[id] = m
	}
	return m
}

func (s *Service) newGenerateResponse(id int64) *querycache.Mutation[complaint.GeneratedResponse] {
	return querycache.NewMutation(s.cache, func(ctx context.Context) (complaint.GeneratedResponse, error) {
		record, err := s.Complaint(ctx, id)
		if err != nil {
			return complaint.GeneratedResponse{}, err
		}
		if record.NeedsAnalysis() {
			s.logger.Info("analyzing complaint before generating a response", zap.Int64("id", id))
			if err := s.backend.Analyze(ctx, id); err != nil {
				return complaint.GeneratedResponse{}, err
			}
		}

		resp, err := s.backend.GenerateResponse(ctx, id)
		if err != nil {
			return complaint.GeneratedResponse{}, err
		}
		if s.ledger != nil {
			if _, err := s.ledger.Record(resp); err != nil {
				s.logger.Warn("failed to record generated response", zap.Int64("id", id), zap.Error(err))
			}
		}
		return resp, nil
	}, func(resp complaint.GeneratedResponse) []querycache.Key {
		return GeneratedResponseKeys(id)
	})
}
