// Package metrics definisce le metriche Prometheus del servizio
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roundtable"

// Registry è il registro del progetto, separato da quello globale
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"method", "route"},
	)

	TurnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of discussion turns by status",
		},
		[]string{"status"},
	)

	TurnDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of a single persona turn in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"speaker"},
	)

	ModelTokensTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_total",
			Help:      "Total number of tokens exchanged with the model",
		},
		[]string{"model", "direction"},
	)

	ActiveDiscussions = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_discussions",
			Help:      "Number of discussions currently running",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveTurn registra l'esito di un turno
func ObserveTurn(speaker string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	TurnsTotal.WithLabelValues(status).Inc()
	if err == nil {
		TurnDuration.WithLabelValues(speaker).Observe(elapsed.Seconds())
	}
}

// ObserveTokens registra l'usage di una chiamata al modello
func ObserveTokens(model string, prompt, completion int) {
	if prompt > 0 {
		ModelTokensTotal.WithLabelValues(model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		ModelTokensTotal.WithLabelValues(model, "completion").Add(float64(completion))
	}
}

// Handler espone il registro in formato Prometheus
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
