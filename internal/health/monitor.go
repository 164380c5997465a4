// Package health tracks the dashboard refresh loop for the /health
// endpoint.
//
// This package implements:
//   - Uptime monitoring
//   - Last refresh time, duration and outcome
//   - Consecutive failure counting
//   - Query cache statistics in the status report
package health

import (
	"fmt"
	"sync"
	"time"

	"cdash/internal/querycache"
)

// Health states reported by Status.Status.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// UnhealthyAfter is the number of consecutive failed refreshes after which
// the service reports unhealthy.
const UnhealthyAfter = 3

// Status represents the application health status.
//
// This is returned by the /health endpoint for monitoring tools.
//
// Fields:
//   - Status: healthy, degraded (some panels failed) or unhealthy
//   - Uptime: How long the application has been running
//   - LastRefreshTime: When the last overview refresh completed
//   - LastRefreshStatus: "success", "partial: N panels failed" or the error
//   - ConsecutiveFailures: Failed refreshes since the last success
//   - Cache: Query cache counters
type Status struct {
	Status              string            `json:"status"`
	Uptime              string            `json:"uptime"`
	LastRefreshTime     string            `json:"last_refresh_time"`
	LastRefreshDuration string            `json:"last_refresh_duration"`
	LastRefreshStatus   string            `json:"last_refresh_status"`
	Refreshes           int               `json:"refreshes"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
	Cache               *querycache.Stats `json:"cache,omitempty"`
}

// Monitor tracks application health metrics.
//
// Thread-safety:
//   - All fields are protected by RWMutex
//   - Safe for concurrent updates from the refresh loop and HTTP handlers
type Monitor struct {
	mu                  sync.RWMutex
	startTime           time.Time
	lastRefreshTime     time.Time
	lastRefreshDuration time.Duration
	lastRefreshStatus   string
	degraded            bool
	refreshes           int
	consecutiveFailures int
	cache               *querycache.Cache
	now                 func() time.Time
}

// NewMonitor creates a new health monitor. cache may be nil.
func NewMonitor(cache *querycache.Cache) *Monitor {
	return &Monitor{
		startTime:         time.Now(),
		lastRefreshStatus: "not started",
		cache:             cache,
		now:               time.Now,
	}
}

// RecordRefresh stores the outcome of one overview refresh.
//
// Parameters:
//   - took: How long the refresh ran
//   - failedPanels: Panels that could not be loaded
//   - err: Refresh error, nil on success
func (m *Monitor) RecordRefresh(took time.Duration, failedPanels int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastRefreshTime = m.now()
	m.lastRefreshDuration = took
	m.refreshes++
	m.degraded = false

	switch {
	case err != nil:
		m.consecutiveFailures++
		m.lastRefreshStatus = "error: " + err.Error()
	case failedPanels > 0:
		m.consecutiveFailures = 0
		m.degraded = true
		m.lastRefreshStatus = partialStatus(failedPanels)
	default:
		m.consecutiveFailures = 0
		m.lastRefreshStatus = "success"
	}
}

// ConsecutiveFailures returns the failed refreshes since the last success.
func (m *Monitor) ConsecutiveFailures() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.consecutiveFailures
}

// GetStatus returns the current health status.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		Status:              StatusHealthy,
		Uptime:              m.now().Sub(m.startTime).Round(time.Second).String(),
		LastRefreshStatus:   m.lastRefreshStatus,
		Refreshes:           m.refreshes,
		ConsecutiveFailures: m.consecutiveFailures,
	}
	if !m.lastRefreshTime.IsZero() {
		st.LastRefreshTime = m.lastRefreshTime.Format("2006-01-02 15:04:05")
		st.LastRefreshDuration = m.lastRefreshDuration.Round(time.Millisecond).String()
	}
	switch {
	case m.consecutiveFailures >= UnhealthyAfter:
		st.Status = StatusUnhealthy
	case m.consecutiveFailures > 0 || m.degraded:
		st.Status = StatusDegraded
	}
	if m.cache != nil {
		stats := m.cache.Stats()
		st.Cache = &stats
	}
	return st
}

func partialStatus(failed int) string {
	if failed == 1 {
		return "partial: 1 panel failed"
	}
	return fmt.Sprintf("partial: %d panels failed", failed)
}
