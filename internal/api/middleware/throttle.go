package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/keelwise/keel/internal/api/response"
)

// ThrottledRecorder records requests rejected by Throttle. Pass nil when metrics are disabled.
type ThrottledRecorder interface {
	RecordThrottled(ctx context.Context)
}

// clientIdleTTL is how long an idle client's bucket is kept.
const clientIdleTTL = 10 * time.Minute

// ClientThrottle keeps one token bucket per client address.
type ClientThrottle struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBucket
	swept   time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientThrottle allows perSecond requests per client with the given burst.
func NewClientThrottle(perSecond float64, burst int) *ClientThrottle {
	if burst < 1 {
		burst = 1
	}

	return &ClientThrottle{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

// Allow consumes one token for client.
func (t *ClientThrottle) Allow(client string) bool {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.swept) > clientIdleTTL {
		for key, b := range t.clients {
			if now.Sub(b.lastSeen) > clientIdleTTL {
				delete(t.clients, key)
			}
		}

		t.swept = now
	}

	b, ok := t.clients[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.clients[client] = b
	}

	b.lastSeen = now

	return b.limiter.AllowN(now, 1)
}

// Throttle rejects requests with 429 once a client exceeds its bucket.
// A nil throttle or a non-positive limit disables it.
func Throttle(t *ClientThrottle, recorder ThrottledRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if t == nil || t.limit <= 0 {
			return next
		}

		retryAfter := strconv.Itoa(max(1, int(1/float64(t.limit))))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !t.Allow(clientKey(r)) {
				if recorder != nil {
					recorder.RecordThrottled(r.Context())
				}

				w.Header().Set("Retry-After", retryAfter)
				response.RespondTooManyRequests(w, "rate limit exceeded, retry later")

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey identifies the caller by remote host.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
