package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter tracks a token bucket per client key and prunes buckets that have
// been idle for more than Expiry minutes.
type Limiter struct {
	Expiry   int
	Burst    int
	LimitRPS float64

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

func NewLimiter(burst int, expiry int, limitRPS float64) *Limiter {
	lm := &Limiter{
		Expiry:   expiry,
		Burst:    burst,
		LimitRPS: limitRPS,
		visitors: make(map[string]*visitor),
	}
	go lm.prune()
	return lm
}

// Check reports whether the client identified by key may proceed.
func (l *Limiter) Check(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(rate.Limit(l.LimitRPS), l.Burst)}
		l.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.bucket.Allow()
}

func (l *Limiter) prune() {
	for range time.Tick(time.Minute) {
		l.mu.Lock()
		for key, v := range l.visitors {
			if time.Since(v.lastSeen) > time.Duration(l.Expiry)*time.Minute {
				delete(l.visitors, key)
			}
		}
		l.mu.Unlock()
	}
}

// Every converts a minimum interval between requests into a rate.
func Every(interval time.Duration) float64 {
	return float64(rate.Every(interval))
}
