package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	QuizAnswers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triviacast_quiz_answers_total",
			Help: "Answers submitted, by outcome",
		},
		[]string{"outcome"},
	)

	JackpotSpins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triviacast_jackpot_spins_total",
			Help: "Jackpot spins, by tier",
		},
		[]string{"tier"},
	)
)

// Register adds all collectors to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(RequestCounter, RequestDuration, QuizAnswers, JackpotSpins)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Observe records one finished request.
func Observe(method, endpoint string, status int, started time.Time) {
	RequestCounter.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(started).Seconds())
}
