package querycache

import "sync"

// Subscription observes one key. State is updated by the cache until Close
// is called; after that the last state is frozen and later fetch results
// are not applied to it.
type Subscription struct {
	cache *Cache
	key   Key

	mu      sync.Mutex
	state   Result
	closed  bool
	updates chan struct{}
}

// Subscribe registers interest in key. It never blocks: when the entry has
// no data or is stale a fetch is started in the background (or an in-flight
// one is joined), and the subscription's Updates channel fires as it
// progresses.
func (c *Cache) Subscribe(key Key, fetcher Fetcher) *Subscription {
	sub := &Subscription{
		cache:   c,
		key:     key,
		updates: make(chan struct{}, 1),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		sub.state = Result{Err: ErrClosed}
		sub.detach()
		return sub
	}

	e := c.entryLocked(key)
	if fetcher != nil {
		e.fetcher = fetcher
	}
	e.subs[sub] = struct{}{}

	switch {
	case e.updatedAt.IsZero():
		c.stats.Misses++
		if e.inFlight == 0 {
			c.startLocked(e)
			return sub
		}
	case c.staleLocked(e):
		c.stats.Hits++
		if e.inFlight == 0 {
			c.startLocked(e)
			return sub
		}
	default:
		c.stats.Hits++
	}
	sub.publish(c.resultLocked(e))
	return sub
}

// Key returns the observed key.
func (s *Subscription) Key() Key {
	return s.key
}

// State returns the latest visible state.
func (s *Subscription) State() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Updates returns a channel that receives a value whenever State changes.
// Notifications are coalesced. The channel is closed by Close.
func (s *Subscription) Updates() <-chan struct{} {
	return s.updates
}

// Close disposes the subscription. A fetch it started keeps running and
// still fills the cache, but its result no longer reaches this
// subscription.
func (s *Subscription) Close() {
	s.cache.mu.Lock()
	for _, e := range s.cache.entries {
		delete(e.subs, s)
	}
	s.cache.mu.Unlock()
	s.detach()
}

func (s *Subscription) publish(res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state = res
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func (s *Subscription) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.updates)
}
