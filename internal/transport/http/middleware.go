package http

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"triviacast-service/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// instrument logs and measures every request served under pattern.
func instrument(pattern string, log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				log.Error("panic serving request", zap.Any("panic", p), zap.String("path", r.URL.Path))
				rec.status = http.StatusInternalServerError
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
			}
			metrics.Observe(r.Method, pattern, rec.status, started)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(started)),
				zap.String("ip", clientIP(r, false)))
		}()
		next.ServeHTTP(rec, r)
	})
}

// cors answers preflight requests and tags responses for allowed origins.
// An empty list allows any origin.
func cors(allowed []string, next http.Handler) http.Handler {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (len(set) == 0 || set[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP. Idle visitors are evicted by a
// janitor goroutine until Stop is called.
type RateLimiter struct {
	limit      rate.Limit
	burst      int
	expiry     time.Duration
	now        func() time.Time
	trustProxy bool

	mu       sync.Mutex
	visitors map[string]*visitor

	stop chan struct{}
	once sync.Once
}

func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	expiry := window * 3
	if expiry < time.Minute {
		expiry = time.Minute
	}
	l := &RateLimiter{
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		expiry:   expiry,
		now:      time.Now,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}
	go l.janitor()
	return l
}

// Allow reports whether key may make another request now.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = l.now()
	l.mu.Unlock()
	return v.limiter.Allow()
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r, l.trustProxy)) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *RateLimiter) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evict()
		case <-l.stop:
			return
		}
	}
}

func (l *RateLimiter) evict() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.expiry {
			delete(l.visitors, ip)
		}
	}
}

// clientIP keys the rate limiter. Behind a trusted proxy the last
// X-Forwarded-For hop is the address the proxy saw; earlier hops are client
// supplied.
func clientIP(r *http.Request, trustProxy bool) string {
	if fwd := r.Header.Get("X-Forwarded-For"); trustProxy && fwd != "" {
		hops := strings.Split(fwd, ",")
		if last := strings.TrimSpace(hops[len(hops)-1]); last != "" {
			return last
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
