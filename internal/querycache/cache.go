// Package querycache is a key-addressed cache of remote queries. Concurrent
// readers of one key share a single fetch, stale data is served while a
// background refresh runs, and mutations invalidate entries by key prefix.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	apierrors "cdash/internal/errors"
)

// Defaults applied by New for zero option values.
const (
	DefaultStaleTime  = 30 * time.Second
	DefaultRetryDelay = 500 * time.Millisecond
)

// Fetcher loads the value of one key. It receives a context that is
// cancelled only when the cache is closed.
type Fetcher func(ctx context.Context) (any, error)

// Options configures a Cache.
type Options struct {
	// StaleTime is how long a successful result counts as fresh.
	StaleTime time.Duration
	// Retries is the number of silent retries after a failed fetch. Use
	// NoRetry to disable retries; zero selects the default of one.
	Retries int
	// RetryDelay is the constant wait between attempts.
	RetryDelay time.Duration
	// Now returns the current time. Tests inject a fake clock.
	Now func() time.Time
	// Logger receives fetch and invalidation events.
	Logger *zap.Logger
}

// NoRetry disables retries when set as Options.Retries.
const NoRetry = -1

// Result is the visible state of one key.
type Result struct {
	Data      any
	IsLoading bool
	Err       error
	UpdatedAt time.Time
	Stale     bool
}

// HasData reports whether a value has been loaded.
func (r Result) HasData() bool {
	return !r.UpdatedAt.IsZero()
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int    `json:"entries"`
	InFlight  int    `json:"in_flight"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Fetches   uint64 `json:"fetches"`
	Failures  uint64 `json:"failures"`
	Discarded uint64 `json:"discarded"`
}

type entry struct {
	key     Key
	fetcher Fetcher

	data      any
	err       error
	updatedAt time.Time
	invalid   bool

	// generation changes on every invalidation so later reads never join a
	// fetch that was issued before it.
	generation uint64
	// written is the sequence number of the fetch whose result is stored.
	written  uint64
	inFlight int

	subs map[*Subscription]struct{}
}

// Cache is safe for concurrent use. Create one per process with New and
// release it with Close.
type Cache struct {
	opts   Options
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	group  singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64
	closed  bool
	stats   Stats
}

// New creates a cache.
func New(opts Options) *Cache {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.Retries == 0 {
		opts.Retries = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		opts:    opts,
		logger:  logger.Named("querycache"),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
	}
}

// Close cancels running fetches, waits for them to return and closes every
// open subscription. Reads after Close report an error.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		for sub := range e.subs {
			sub.detach()
		}
		e.subs = nil
	}
}

// ErrClosed is reported by reads on a closed cache.
var ErrClosed = errors.New("querycache: cache closed")

// Get returns the value of key. Fresh data is returned immediately. Stale
// data is returned immediately while a background refresh runs. Without
// data, Get starts or joins the fetch and waits for it or for ctx.
func (c *Cache) Get(ctx context.Context, key Key, fetcher Fetcher) Result {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{Err: ErrClosed}
	}
	e := c.entryLocked(key)
	if fetcher != nil {
		e.fetcher = fetcher
	}

	if !e.updatedAt.IsZero() {
		c.stats.Hits++
		if c.staleLocked(e) && e.inFlight == 0 {
			c.startLocked(e)
		}
		res := c.resultLocked(e)
		c.mu.Unlock()
		return res
	}

	c.stats.Misses++
	done := c.startLocked(e)
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		c.mu.Lock()
		res := c.resultLocked(e)
		c.mu.Unlock()
		res.Err = ctx.Err()
		return res
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resultLocked(e)
}

// Refetch issues a new fetch for key even when the cached value is fresh
// and waits for it. A Refetch never joins a fetch issued before it.
func (c *Cache) Refetch(ctx context.Context, key Key, fetcher Fetcher) Result {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{Err: ErrClosed}
	}
	e := c.entryLocked(key)
	if fetcher != nil {
		e.fetcher = fetcher
	}
	e.generation++
	done := c.startLocked(e)
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		c.mu.Lock()
		res := c.resultLocked(e)
		c.mu.Unlock()
		res.Err = ctx.Err()
		return res
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resultLocked(e)
}

// Peek returns the cached state of key without fetching.
func (c *Cache) Peek(key Key) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.id()]
	if !ok {
		return Result{}, false
	}
	return c.resultLocked(e), true
}

// Invalidate marks every entry matching one of the prefixes as stale.
// Entries with open subscriptions are refetched right away; the rest are
// refetched on their next read. It returns the number of entries touched.
func (c *Cache) Invalidate(prefixes ...Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}

	n := 0
	for _, e := range c.entries {
		if !matchesAny(e.key, prefixes) {
			continue
		}
		n++
		e.invalid = true
		e.generation++
		if len(e.subs) > 0 && e.fetcher != nil {
			c.startLocked(e)
		} else {
			c.notifyLocked(e)
		}
	}
	c.logger.Debug("invalidated entries", zap.Int("count", n), zap.Int("prefixes", len(prefixes)))
	return n
}

func matchesAny(k Key, prefixes []Key) bool {
	for _, p := range prefixes {
		if k.HasPrefix(p) {
			return true
		}
	}
	return false
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	s.InFlight = 0
	for _, e := range c.entries {
		s.InFlight += e.inFlight
	}
	return s
}

func (c *Cache) entryLocked(key Key) *entry {
	id := key.id()
	e, ok := c.entries[id]
	if !ok {
		k := make(Key, len(key))
		copy(k, key)
		e = &entry{key: k, subs: make(map[*Subscription]struct{})}
		c.entries[id] = e
	}
	return e
}

func (c *Cache) staleLocked(e *entry) bool {
	if e.invalid {
		return true
	}
	return c.opts.Now().Sub(e.updatedAt) >= c.opts.StaleTime
}

func (c *Cache) resultLocked(e *entry) Result {
	return Result{
		Data:      e.data,
		IsLoading: e.inFlight > 0,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		Stale:     !e.updatedAt.IsZero() && c.staleLocked(e),
	}
}

// startLocked issues a fetch for e and returns a channel closed once its
// outcome has been applied. Fetches sharing a generation share one call of
// the fetcher.
func (c *Cache) startLocked(e *entry) <-chan struct{} {
	done := make(chan struct{})
	if e.fetcher == nil {
		close(done)
		return done
	}

	c.seq++
	seq := c.seq
	gen := e.generation
	fetcher := e.fetcher
	flightKey := fmt.Sprintf("%s@%d", e.key.id(), gen)

	e.inFlight++
	c.notifyLocked(e)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)

		v, err, shared := c.group.Do(flightKey, func() (any, error) {
			c.mu.Lock()
			c.stats.Fetches++
			c.mu.Unlock()
			return c.run(e.key, fetcher)
		})
		if shared {
			c.logger.Debug("joined in-flight fetch", zap.Stringer("key", e.key), zap.Uint64("seq", seq))
		}
		c.complete(e, seq, gen, v, err)
	}()
	return done
}

// run calls the fetcher with bounded retries. Decode errors and 4xx answers
// are not retried.
func (c *Cache) run(key Key, fetcher Fetcher) (any, error) {
	var value any
	attempt := 0
	op := func() error {
		attempt++
		v, err := fetcher(c.ctx)
		if err != nil {
			if !apierrors.IsRetryable(err) || c.ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		value = v
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.opts.RetryDelay), uint64(c.opts.Retries)),
		c.ctx,
	)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("fetch failed, retrying",
			zap.Stringer("key", key),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return value, nil
}

// complete applies a fetch outcome. A result older than the one already
// stored is dropped.
func (c *Cache) complete(e *entry, seq, gen uint64, v any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.inFlight--
	if seq < e.written {
		c.stats.Discarded++
		c.logger.Debug("discarded out-of-order result",
			zap.Stringer("key", e.key), zap.Uint64("seq", seq), zap.Uint64("written", e.written))
		c.notifyLocked(e)
		return
	}
	e.written = seq

	if err != nil {
		c.stats.Failures++
		e.err = err
		c.logger.Warn("query failed",
			zap.String("resource", e.key.Resource()), zap.Stringer("key", e.key), zap.Error(err))
	} else {
		e.data = v
		e.err = nil
		e.updatedAt = c.opts.Now()
		if gen == e.generation {
			e.invalid = false
		}
	}
	c.notifyLocked(e)
}

func (c *Cache) notifyLocked(e *entry) {
	if len(e.subs) == 0 {
		return
	}
	res := c.resultLocked(e)
	for sub := range e.subs {
		sub.publish(res)
	}
}
