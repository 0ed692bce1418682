// Package ratelimit throttles admin API clients with per-endpoint token
// buckets. Enqueueing a job eventually spends provider money, so the write
// endpoints get much smaller budgets than reads.
package ratelimit

import (
	"sync"
	"time"
)

// bucket is a single token bucket. Tokens refill continuously at rate
// tokens/second up to cap.
type bucket struct {
	mu     sync.Mutex
	cap    float64
	rate   float64
	tokens float64
	last   time.Time
}

func newBucket(capacity int, rate float64) *bucket {
	return &bucket{
		cap:    float64(capacity),
		rate:   rate,
		tokens: float64(capacity),
		last:   time.Now(),
	}
}

// refill must be called with b.mu held.
func (b *bucket) refill(now time.Time) {
	b.tokens += now.Sub(b.last).Seconds() * b.rate
	if b.tokens > b.cap {
		b.tokens = b.cap
	}
	b.last = now
}

// take consumes one token if available.
func (b *bucket) take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(time.Now())
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// status reports the remaining tokens and when the bucket will be full again,
// without consuming anything.
func (b *bucket) status() (remaining int, resetAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.refill(now)
	remaining = int(b.tokens)
	if b.tokens >= b.cap {
		return remaining, now
	}
	wait := (b.cap - b.tokens) / b.rate
	return remaining, now.Add(time.Duration(wait * float64(time.Second)))
}

// Info describes the rate-limit state for one decision. The server turns it
// into X-RateLimit-* and Retry-After headers.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Config holds limiter-wide settings.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// entry pairs a bucket with its last use so the janitor can drop idle ones.
type entry struct {
	bucket   *bucket
	lastSeen time.Time
}

// Limiter tracks one bucket per client+endpoint+method.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	config  *Config
	janitor *time.Ticker
	stop    chan struct{}
}

// NewLimiter creates a Limiter. A nil config gets permissive defaults.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{
			Enabled:         true,
			DefaultLimit:    1000,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
		}
	}

	l := &Limiter{
		entries: make(map[string]*entry),
		config:  config,
	}
	if config.Enabled && config.CleanupInterval > 0 {
		l.janitor = time.NewTicker(config.CleanupInterval)
		l.stop = make(chan struct{})
		go l.sweepLoop()
	}
	return l
}

// Allow decides whether one request from clientID against endpoint+method may
// proceed. Whitelisted clients bypass all buckets; blacklisted clients are
// always refused.
func (l *Limiter) Allow(clientID, endpoint, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{}
	}

	ec := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	if ec == nil {
		ec = &EndpointConfig{
			Limit:  l.config.DefaultLimit,
			Window: l.config.DefaultWindow,
			Burst:  l.config.DefaultLimit,
		}
	}
	if ec.Limit <= 0 {
		// Unlimited tier, health checks land here.
		return true, Info{Allowed: true}
	}

	b := l.lookup(clientID+":"+endpoint+":"+method, ec)
	allowed := b.take()
	remaining, resetAt := b.status()

	info := Info{
		Allowed:   allowed,
		Limit:     ec.Limit,
		Remaining: remaining,
		ResetTime: resetAt,
	}
	if !allowed {
		if wait := time.Until(resetAt); wait > 0 {
			info.RetryAfter = wait
		}
	}
	return allowed, info
}

// lookup returns the bucket for key, creating it on first use and refreshing
// its last-seen stamp.
func (l *Limiter) lookup(key string, ec *EndpointConfig) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		capacity := ec.Burst
		if capacity <= 0 {
			capacity = ec.Limit
		}
		e = &entry{bucket: newBucket(capacity, float64(ec.Limit)/ec.Window.Seconds())}
		l.entries[key] = e
	}
	e.lastSeen = time.Now()
	return e.bucket
}

func (l *Limiter) sweepLoop() {
	for {
		select {
		case <-l.janitor.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// sweep drops buckets idle for over an hour so long-gone clients do not pin
// memory.
func (l *Limiter) sweep() {
	cutoff := time.Now().Add(-time.Hour)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// Stop terminates the janitor goroutine.
func (l *Limiter) Stop() {
	if l.janitor != nil {
		l.janitor.Stop()
	}
	if l.stop != nil {
		close(l.stop)
	}
}
