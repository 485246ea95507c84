package middleware

import (
	"strconv"
	"time"

	"github.com/biodoia/roundtable/pkg/metrics"
	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// MetricsConfig configurazione del middleware Prometheus
type MetricsConfig struct {
	// SkipPaths non vengono misurati
	SkipPaths []string
}

// Metrics registra conteggio e durata delle richieste HTTP.
// La label route usa il pattern registrato, non il path concreto.
func Metrics(config MetricsConfig) fiber.Handler {
	skipMap := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipMap[path] = true
	}

	return func(c fiber.Ctx) error {
		if skipMap[c.Path()] {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else if status < 400 {
				status = fiber.StatusInternalServerError
			}
		}

		metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())

		return err
	}
}

// PrometheusHandler espone il registro del progetto
func PrometheusHandler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(metrics.Handler())
	return func(c fiber.Ctx) error {
		handler(c.RequestCtx())
		return nil
	}
}
