package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/iliyamo/pcbang-kiosk/internal/config"
)

type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LocalLimiter is an in-process token bucket per key.  It backs NewTokenBucket
// while Redis is unreachable, so limits stay in force per instance.
type LocalLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu       sync.Mutex
	limiters map[string]*keyLimiter
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLocalLimiter builds a LocalLimiter from cfg and starts its cleanup loop.
// Entries idle for longer than cfg.TTL are dropped.
func NewLocalLimiter(cfg config.RateLimitConfig) *LocalLimiter {
	l := &LocalLimiter{
		limit:    rate.Limit(cfg.PerSecond()),
		burst:    cfg.Capacity,
		ttl:      cfg.TTL,
		limiters: make(map[string]*keyLimiter),
		stopCh:   make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow takes one token for key.  When none is left it reports the wait
// until the next token.
func (l *LocalLimiter) Allow(key string) (bool, time.Duration) {
	now := time.Now()

	l.mu.Lock()
	kl, ok := l.limiters[key]
	if !ok {
		kl = &keyLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = kl
	}
	kl.lastAccess = now
	l.mu.Unlock()

	r := kl.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Len returns the number of tracked keys.
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Stop ends the cleanup loop.
func (l *LocalLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *LocalLimiter) cleanupLoop() {
	interval := l.ttl
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

func (l *LocalLimiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, kl := range l.limiters {
		if now.Sub(kl.lastAccess) > l.ttl {
			delete(l.limiters, k)
		}
	}
}
