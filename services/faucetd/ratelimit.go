package faucetd

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SubmitLimit throttles transaction submissions per client address. A zero
// RequestsPerMinute disables it.
type SubmitLimit struct {
	RequestsPerMinute float64
	Burst             int
}

const visitorTTL = 5 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	limit    SubmitLimit
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
	lastGC   time.Time
}

func newRateLimiter(limit SubmitLimit) *rateLimiter {
	return &rateLimiter{
		limit:    limit,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (r *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.limit.RequestsPerMinute <= 0 {
			next.ServeHTTP(w, req)
			return
		}
		if !r.allow(clientID(req)) {
			writeError(w, http.StatusTooManyRequests, ErrorResponse{Error: http.StatusText(http.StatusTooManyRequests)})
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *rateLimiter) allow(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if now.Sub(r.lastGC) > visitorTTL {
		for key, v := range r.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(r.visitors, key)
			}
		}
		r.lastGC = now
	}
	v, ok := r.visitors[id]
	if !ok {
		burst := r.limit.Burst
		if burst <= 0 {
			burst = 1
		}
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(r.limit.RequestsPerMinute/60.0), burst)}
		r.visitors[id] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// clientID is the remote host. chimw.RealIP has already applied any
// X-Real-IP or X-Forwarded-For header.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
