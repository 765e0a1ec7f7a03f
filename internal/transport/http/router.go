package http

import (
	"net/http"
	"time"

	"triviacast-service/internal/app"
	"triviacast-service/internal/metrics"

	"go.uber.org/zap"
)

// Services are the use cases exposed over HTTP. Profiles and Auth are optional.
type Services struct {
	Quiz        *app.QuizService
	Questions   app.QuestionFetcher
	Leaderboard *app.LeaderboardService
	Jackpot     *app.JackpotService
	Webhook     *app.WebhookService
	Profiles    app.ProfileLookup
	Auth        TokenVerifier
}

type Options struct {
	AllowedOrigins []string
	RateLimit      int
	RateWindow     time.Duration
	// TrustProxy keys rate limits by the last X-Forwarded-For hop.
	TrustProxy bool
}

// Router is the HTTP entry point of the service.
type Router struct {
	mux     *http.ServeMux
	limiter *RateLimiter
	handler http.Handler
}

func NewRouter(svc Services, opts Options, log *zap.Logger) *Router {
	log = log.Named("http")
	api := &API{svc: svc, log: log}
	auth := authenticator{verifier: svc.Auth, log: log}
	ws := NewWSHandler(svc.Leaderboard, opts.AllowedOrigins, log)

	rt := &Router{
		mux:     http.NewServeMux(),
		limiter: NewRateLimiter(opts.RateLimit, opts.RateWindow),
	}
	rt.limiter.trustProxy = opts.TrustProxy

	handle := func(pattern string, h http.Handler) {
		rt.mux.Handle(pattern, instrument(pattern, log, h))
	}
	limited := func(h http.HandlerFunc) http.Handler { return rt.limiter.Middleware(h) }

	handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	handle("GET /metrics", metrics.Handler())

	handle("GET /api/questions", limited(api.questions))
	handle("POST /api/quiz", auth.optional(limited(api.startQuiz)))
	handle("GET /api/quiz/{id}", limited(api.getQuiz))
	handle("POST /api/quiz/{id}/answer", limited(api.answer))
	handle("POST /api/quiz/{id}/finish", limited(api.finish))

	handle("GET /api/leaderboard", limited(api.leaderboard))
	handle("GET /api/points/{address}", limited(api.points))

	handle("POST /api/jackpot/spin", auth.require(limited(api.spin)))
	handle("GET /api/jackpot/history", limited(api.history))
	handle("POST /api/jackpot/claim", auth.require(limited(api.claim)))
	handle("POST /api/jackpot/confirm", auth.require(limited(api.confirm)))

	handle("GET /api/farcaster/users", limited(api.farcasterUsers))
	handle("POST /api/webhook", limited(api.webhook))

	handle("GET /ws/leaderboard", http.HandlerFunc(ws.ServeWS))

	rt.handler = cors(opts.AllowedOrigins, rt.mux)
	return rt
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

// Close stops background work owned by the router.
func (rt *Router) Close() {
	rt.limiter.Stop()
}
