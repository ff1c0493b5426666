package authapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// ipThrottle is a coarse per-IP limiter in front of all auth endpoints. The
// per-email buckets in the orchestrator do the precise work; this only stops
// one address from spraying many identities.
type ipThrottle struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *rate.Limiter]
	limit rate.Limit
	burst int
}

func newIPThrottle(perSecond float64, burst, maxEntries int) (*ipThrottle, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultConfig().IPMaxEntries
	}
	c, err := lru.New[string, *rate.Limiter](maxEntries)
	if err != nil {
		return nil, err
	}
	return &ipThrottle{cache: c, limit: rate.Limit(perSecond), burst: burst}, nil
}

// allow reports whether ip may proceed, and if not, how long to wait.
func (t *ipThrottle) allow(ip string, now time.Time) (bool, time.Duration) {
	if t == nil || ip == "" {
		return true, 0
	}
	t.mu.Lock()
	lim, ok := t.cache.Get(ip)
	if !ok {
		lim = rate.NewLimiter(t.limit, t.burst)
		t.cache.Add(ip, lim)
	}
	t.mu.Unlock()

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

func (h *Handler) throttled(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meta := h.requestMeta(r)
		if ok, wait := h.ips.allow(meta.IP, h.now()); !ok {
			h.log.Warn("authapi.ip_throttled", "ip", meta.IP, "path", r.URL.Path)
			writeRateLimited(w, wait)
			return
		}
		next(w, r)
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(retryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	fail(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
