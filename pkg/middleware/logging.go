package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ContextKey tipo per le chiavi nei locals della richiesta
type ContextKey string

// RequestIDKey chiave per il request ID nei locals
const RequestIDKey ContextKey = "request_id"

// LoggingConfig configurazione del middleware di logging
type LoggingConfig struct {
	// Logger personalizzato (opzionale)
	Logger *zerolog.Logger
	// Skip paths che non devono essere loggati
	SkipPaths []string
	// Log request body (il topic e i personaggi della richiesta)
	LogRequestBody bool
}

// RequestID middleware per generare e tracciare request ID
func RequestID() fiber.Handler {
	return func(c fiber.Ctx) error {
		// Prova a ottenere request ID dall'header
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Locals(string(RequestIDKey), requestID)
		c.Set("X-Request-ID", requestID)

		return c.Next()
	}
}

// Logging middleware per logging strutturato delle richieste
func Logging(config LoggingConfig) fiber.Handler {
	// Usa il logger globale se non specificato
	var logger *zerolog.Logger
	if config.Logger != nil {
		logger = config.Logger
	}

	skipMap := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipMap[path] = true
	}

	return func(c fiber.Ctx) error {
		if skipMap[c.Path()] {
			return c.Next()
		}

		l := log.Logger
		if logger != nil {
			l = *logger
		}

		start := time.Now()

		requestID := GetRequestID(c)
		if requestID == "" {
			requestID = uuid.New().String()
			c.Locals(string(RequestIDKey), requestID)
		}

		logEvent := l.Debug().
			Str("request_id", requestID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Str("user_agent", c.Get("User-Agent"))

		if config.LogRequestBody {
			logEvent = logEvent.Bytes("request_body", c.Body())
		}

		logEvent.Msg("request started")

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()

		// Determina il livello di log in base allo status
		var logFunc func() *zerolog.Event
		switch {
		case status >= 500:
			logFunc = l.Error
		case status >= 400:
			logFunc = l.Warn
		default:
			logFunc = l.Info
		}

		logEvent = logFunc().
			Str("request_id", requestID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", latency).
			Str("ip", c.IP())

		if err != nil {
			logEvent = logEvent.Err(err)
		}

		logEvent.Msg("request completed")

		return err
	}
}

// GetRequestID estrae il request ID dai locals
func GetRequestID(c fiber.Ctx) string {
	requestID, ok := c.Locals(string(RequestIDKey)).(string)
	if !ok {
		return ""
	}
	return requestID
}
