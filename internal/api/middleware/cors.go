package middleware

import (
	"time"

	"github.com/cazayus/wshub/internal/infrastructure/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig defines CORS configuration options.
type CORSConfig struct {
	AllowOrigins []string
	MaxAge       time.Duration
}

// CORSFromConfig converts the environment configuration.
func CORSFromConfig(cfg config.CORSConfig) CORSConfig {
	return CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		MaxAge:       12 * time.Hour,
	}
}

// CORS allows cross-origin calls of the HTTP API. Document saves are the
// only mutating routes, so PUT joins GET, HEAD and OPTIONS. Credentials are
// never allowed.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods: []string{"GET", "HEAD", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Accept", "Origin", "Cache-Control", "Content-Type"},
		MaxAge:       cfg.MaxAge,
	}

	if len(cfg.AllowOrigins) == 0 || (len(cfg.AllowOrigins) == 1 && cfg.AllowOrigins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowOrigins
	}
	return cors.New(c)
}
