package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit configures a token bucket per client. A non-positive rate
// disables limiting.
type RateLimit struct {
	RatePerSecond float64
	Burst         int
}

const visitorIdleTTL = 5 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client address.
type RateLimiter struct {
	limit RateLimit

	mu         sync.Mutex
	visitors   map[string]*visitor
	clockNow   func() time.Time
	lastPrune  time.Time
	onThrottle func(*http.Request)
}

func NewRateLimiter(limit RateLimit) *RateLimiter {
	if limit.Burst <= 0 {
		limit.Burst = 1
	}
	return &RateLimiter{
		limit:    limit,
		visitors: make(map[string]*visitor),
		clockNow: time.Now,
	}
}

// OnThrottle registers a hook invoked for every rejected request.
func (r *RateLimiter) OnThrottle(fn func(*http.Request)) {
	r.onThrottle = fn
}

func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r == nil || r.Allow(ClientID(req)) {
			next.ServeHTTP(w, req)
			return
		}
		if r.onThrottle != nil {
			r.onThrottle(req)
		}
		w.Header().Set("Retry-After", "1")
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
	})
}

// Allow consumes one token for id.
func (r *RateLimiter) Allow(id string) bool {
	if r.limit.RatePerSecond <= 0 {
		return true
	}
	now := r.clockNow()
	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Sub(r.lastPrune) >= visitorIdleTTL {
		for key, v := range r.visitors {
			if now.Sub(v.lastSeen) >= visitorIdleTTL {
				delete(r.visitors, key)
			}
		}
		r.lastPrune = now
	}
	entry, ok := r.visitors[id]
	if !ok {
		entry = &visitor{limiter: rate.NewLimiter(rate.Limit(r.limit.RatePerSecond), r.limit.Burst)}
		r.visitors[id] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// ClientID keys a request by its remote host. Forwarding headers are ignored
// because they are caller controlled.
func ClientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
