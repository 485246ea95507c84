package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// ErrOriginNotAllowed è restituito quando l'Origin non è tra quelli permessi
var ErrOriginNotAllowed = fiber.NewError(fiber.StatusForbidden, "origin not allowed")

// CORSConfig configurazione CORS
type CORSConfig struct {
	// AllowedOrigins accetta origin esatti, "*" e sottodomini "*.example.com"
	AllowedOrigins []string

	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string

	AllowCredentials bool

	// MaxAge in secondi per la cache delle preflight
	MaxAge int
}

// DefaultCORSConfig configurazione CORS di default
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			fiber.MethodGet,
			fiber.MethodPost,
			fiber.MethodHead,
			fiber.MethodOptions,
		},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Cache-Control", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	}
}

// CORSFromOrigins costruisce la configurazione a partire da una lista
// separata da virgole (server.cors_origins)
func CORSFromOrigins(origins string) CORSConfig {
	cfg := DefaultCORSConfig()
	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) > 0 {
		cfg.AllowedOrigins = allowed
	}
	return cfg
}

// Allows indica se l'origin è permesso
func (cfg CORSConfig) Allows(origin string) bool {
	for _, allowed := range cfg.AllowedOrigins {
		switch {
		case allowed == "*", allowed == origin:
			return true
		case strings.HasPrefix(allowed, "*.") && strings.HasSuffix(origin, allowed[1:]):
			return true
		}
	}
	return false
}

// CORS gestisce le richieste cross-origin. Un origin rifiutato passa
// dall'error handler dell'applicazione come 403.
func CORS(cfg CORSConfig) fiber.Handler {
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")

	return func(c fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin == "" {
			return c.Next()
		}
		if !cfg.Allows(origin) {
			return ErrOriginNotAllowed
		}

		c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
		c.Set(fiber.HeaderVary, fiber.HeaderOrigin)
		if cfg.AllowCredentials {
			c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		}

		if c.Method() != fiber.MethodOptions {
			if exposed != "" {
				c.Set(fiber.HeaderAccessControlExposeHeaders, exposed)
			}
			return c.Next()
		}

		c.Set(fiber.HeaderAccessControlAllowMethods, methods)
		c.Set(fiber.HeaderAccessControlAllowHeaders, headers)
		if cfg.MaxAge > 0 {
			c.Set(fiber.HeaderAccessControlMaxAge, strconv.Itoa(cfg.MaxAge))
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
