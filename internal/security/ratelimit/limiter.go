package ratelimit

import (
	"sync"
	"time"
)

const (
	pruneEvery = 5 * time.Minute
	idleAfter  = 15 * time.Minute
)

// Limiter allows at most N requests per key in any sliding window. Keys are
// user ids on authenticated routes and client addresses on the login routes.
type Limiter struct {
	mu      sync.Mutex
	rings   map[string]*ring
	limit   int
	window  time.Duration
	now     func() time.Time
	stop    chan struct{}
	stopped sync.Once
}

// ring holds the last limit request times for one key. Once full, the
// slot at next is the oldest request.
type ring struct {
	times    []time.Time
	next     int
	lastSeen time.Time
}

// admit records a request at now unless limit requests already fall inside
// the window ending at now.
func (r *ring) admit(now time.Time, limit int, window time.Duration) bool {
	r.lastSeen = now
	if len(r.times) < limit {
		r.times = append(r.times, now)
		return true
	}
	if now.Sub(r.times[r.next]) < window {
		return false
	}
	r.times[r.next] = now
	r.next = (r.next + 1) % len(r.times)
	return true
}

// NewLimiter allows limit requests per window for each key. A non-positive
// limit disables limiting. Call Stop to end the idle-key pruning loop.
func NewLimiter(limit int, window time.Duration) *Limiter {
	l := &Limiter{
		rings:  make(map[string]*ring),
		limit:  limit,
		window: window,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	go l.pruneLoop()
	return l
}

// Allow counts a request for key against the general budget.
func (l *Limiter) Allow(key string) bool {
	return l.admit(key, l.limit, l.window)
}

// AllowStrict counts a request against a separate budget, used for the
// credential endpoints.
func (l *Limiter) AllowStrict(key string, limit int, window time.Duration) bool {
	if key == "" {
		return true
	}
	return l.admit("strict:"+key, limit, window)
}

func (l *Limiter) admit(key string, limit int, window time.Duration) bool {
	if key == "" || limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.rings[key]
	if !ok || cap(r.times) != limit {
		r = &ring{times: make([]time.Time, 0, limit)}
		l.rings[key] = r
	}
	return r.admit(l.now(), limit, window)
}

func (l *Limiter) pruneLoop() {
	ticker := time.NewTicker(pruneEvery)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.prune(l.now().Add(-idleAfter))
		}
	}
}

// prune forgets keys not seen since cutoff.
func (l *Limiter) prune(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key, r := range l.rings {
		if r.lastSeen.Before(cutoff) {
			delete(l.rings, key)
			n++
		}
	}
	return n
}

// Stop is idempotent.
func (l *Limiter) Stop() {
	l.stopped.Do(func() { close(l.stop) })
}
