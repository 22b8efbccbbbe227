package admin

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// idleEvictAfter is how long a per-client limiter may sit unused
	// before the sweeper drops it.
	idleEvictAfter = 10 * time.Minute

	// sweepInterval is how often the background goroutine scans for
	// idle limiters.
	sweepInterval = time.Minute
)

// Rule binds a method and path prefix to a token-bucket budget. An
// empty method or prefix matches anything, so the catch-all rule goes
// last.
type Rule struct {
	Method string
	Prefix string
	RPS    rate.Limit
	Burst  int
}

func (r Rule) key() string {
	return r.Method + ":" + r.Prefix
}

// retryAfterSeconds estimates when the client's next token arrives.
func (r Rule) retryAfterSeconds() string {
	if r.RPS >= 1 {
		return "1"
	}
	return strconv.Itoa(int(math.Ceil(1 / float64(r.RPS))))
}

// defaultRules throttles the mutating admin surface hard and leaves a
// moderate catch-all for reads. Reconcile replays the whole journal,
// so it gets the tightest budget.
func defaultRules() []Rule {
	return []Rule{
		{Method: "POST", Prefix: "/admin/v1/reconcile", RPS: rate.Limit(1.0 / 300), Burst: 1},
		{Method: "POST", Prefix: "/admin/v1/quotes/dry-run", RPS: rate.Limit(30.0 / 60), Burst: 5},
		{Method: "POST", Prefix: "/admin/v1/peers", RPS: rate.Limit(10.0 / 60), Burst: 3},
		{Method: "PUT", Prefix: "/admin/v1/fee-models", RPS: rate.Limit(10.0 / 60), Burst: 3},
		{Method: "PUT", Prefix: "/admin/v1/runtime-configs", RPS: rate.Limit(10.0 / 60), Burst: 3},
		{RPS: 1, Burst: 5},
	}
}

// limiterEntry pairs a limiter with its last use for idle eviction.
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies per-rule, per-caller rate limiting to the
// admin API. Callers are keyed by bearer capability when one is
// presented, by client IP otherwise.
type RateLimitMiddleware struct {
	rules   []Rule
	logger  *slog.Logger
	nowFunc func() time.Time // injectable clock for testing

	mu       sync.Mutex
	limiters map[string]*limiterEntry // key: rule key + "|" + caller

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimitMiddleware creates the middleware. With no explicit rules
// it installs defaultRules. A background goroutine sweeps idle
// limiters; call Stop to release it.
func NewRateLimitMiddleware(logger *slog.Logger, rules ...Rule) *RateLimitMiddleware {
	if len(rules) == 0 {
		rules = defaultRules()
	}
	rl := &RateLimitMiddleware{
		rules:    rules,
		logger:   logger,
		nowFunc:  time.Now,
		limiters: make(map[string]*limiterEntry),
		stopCh:   make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop shuts down the background sweeper. Safe to call multiple times.
func (rl *RateLimitMiddleware) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}

func (rl *RateLimitMiddleware) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

// evictIdle removes limiters unused for longer than idleEvictAfter.
func (rl *RateLimitMiddleware) evictIdle() {
	now := rl.nowFunc()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > idleEvictAfter {
			delete(rl.limiters, key)
		}
	}
}

// LimiterCount reports the number of live limiter entries.
func (rl *RateLimitMiddleware) LimiterCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Wrap returns a handler that enforces the rules before delegating to
// next.
func (rl *RateLimitMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule := rl.match(r.Method, r.URL.Path)
		caller := clientKey(r)

		if !rl.take(rule, caller) {
			w.Header().Set("Retry-After", rule.retryAfterSeconds())
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			rl.logger.Warn("admin API rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"caller", caller,
			)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// match returns the first rule covering the request. Rules are ordered
// most-specific first by construction.
func (rl *RateLimitMiddleware) match(method, path string) Rule {
	for _, rule := range rl.rules {
		if rule.Method != "" && !strings.EqualFold(rule.Method, method) {
			continue
		}
		if rule.Prefix != "" && !strings.HasPrefix(path, rule.Prefix) {
			continue
		}
		return rule
	}
	return Rule{RPS: 1, Burst: 5}
}

// take consumes one token from the caller's bucket for the rule,
// creating the bucket on first use. Allow runs outside the map lock;
// rate.Limiter is safe for concurrent use.
func (rl *RateLimitMiddleware) take(rule Rule, caller string) bool {
	key := rule.key() + "|" + caller

	rl.mu.Lock()
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rule.RPS, rule.Burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = rl.nowFunc()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

// clientKey identifies the caller by bearer capability when one is
// presented, by network address otherwise. Tokens are hashed so raw
// credentials never sit in the limiter map.
func clientKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if tok, ok := strings.CutPrefix(auth, "Bearer "); ok && tok != "" {
			sum := sha256.Sum256([]byte(tok))
			return "tok:" + hex.EncodeToString(sum[:8])
		}
	}
	return "ip:" + clientIP(r)
}

// clientIP resolves the client address from X-Forwarded-For (first
// entry), X-Real-IP, then RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
