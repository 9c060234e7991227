// Package logging logs management requests through the service logger.
package logging

import (
	"strings"
	"time"

	"github.com/nimburion/recordlock/pkg/identity"
	"github.com/nimburion/recordlock/pkg/observability/logger"
	"github.com/nimburion/recordlock/pkg/server/router"
)

// Config configures request logging middleware behavior.
type Config struct {
	Enabled bool
	// ExcludedPathPrefixes are not logged, e.g. scrape and health endpoints.
	ExcludedPathPrefixes []string
}

// DefaultConfig logs everything except /metrics and /health.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		ExcludedPathPrefixes: []string{"/metrics", "/health"},
	}
}

// Logging creates middleware with default configuration.
func Logging(log logger.Logger) router.Middleware {
	return WithConfig(log, DefaultConfig())
}

// WithConfig creates middleware that logs one line per completed request.
func WithConfig(log logger.Logger, cfg Config) router.Middleware {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			path := c.Request().URL.Path
			if !cfg.Enabled || excluded(path, cfg.ExcludedPathPrefixes) {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			ctx := c.Request().Context()
			requestID, _ := identity.RequestID(ctx)
			actor, _ := identity.Actor(ctx)
			fields := []any{
				"request_id", requestID,
				"method", c.Request().Method,
				"path", path,
				"route", c.Route(),
				"status", c.Response().Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", c.Request().RemoteAddr,
			}
			if actor != "" {
				fields = append(fields, "actor", actor)
			}

			if err != nil {
				log.Error("request failed", append(fields, "error", err)...)
				return err
			}
			log.Info("request completed", fields...)
			return nil
		}
	}
}

func excluded(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
