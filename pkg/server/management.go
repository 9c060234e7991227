package server

import (
	"net/http"
	"time"

	"github.com/nimburion/recordlock/pkg/config"
	"github.com/nimburion/recordlock/pkg/controller"
	"github.com/nimburion/recordlock/pkg/health"
	"github.com/nimburion/recordlock/pkg/locking"
	"github.com/nimburion/recordlock/pkg/middleware/actor"
	"github.com/nimburion/recordlock/pkg/middleware/logging"
	"github.com/nimburion/recordlock/pkg/middleware/metrics"
	"github.com/nimburion/recordlock/pkg/middleware/recovery"
	"github.com/nimburion/recordlock/pkg/middleware/requestid"
	"github.com/nimburion/recordlock/pkg/middleware/tracing"
	"github.com/nimburion/recordlock/pkg/observability/logger"
	obsmetrics "github.com/nimburion/recordlock/pkg/observability/metrics"
	"github.com/nimburion/recordlock/pkg/server/router"
	"github.com/nimburion/recordlock/pkg/version"
)

// ManagementActor is recorded as the actor of admin requests without an X-Actor header.
const ManagementActor = "management-api"

// ManagementServer serves the operator API for the lock manager:
//   - /health: liveness, always 200
//   - /ready: runs the health registry, 503 when unhealthy
//   - /metrics: Prometheus exposition
//   - /version: build info
//   - /locks and /policies: see controller.LockController
type ManagementServer struct {
	*Server
	healthRegistry  *health.Registry
	metricsRegistry *obsmetrics.Registry
	info            version.Info
}

// NewManagementServer wires the middleware stack and routes onto r.
func NewManagementServer(
	cfg config.ManagementConfig,
	r router.Router,
	log logger.Logger,
	manager *locking.Manager,
	healthRegistry *health.Registry,
	metricsRegistry *obsmetrics.Registry,
	info version.Info,
) *ManagementServer {
	r.Use(
		requestid.RequestID(),
		tracing.Tracing(),
		metrics.Metrics(metricsRegistry),
		logging.Logging(log),
		recovery.Recovery(log),
		actor.Actor(ManagementActor),
	)

	s := &ManagementServer{
		Server: NewServer(Config{
			Addr:            cfg.Addr,
			ReadTimeout:     cfg.ReadTimeout,
			WriteTimeout:    cfg.WriteTimeout,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: cfg.ShutdownTimeout,
		}, r, log),
		healthRegistry:  healthRegistry,
		metricsRegistry: metricsRegistry,
		info:            info,
	}

	r.Handle(http.MethodGet, "/health", s.handleHealth)
	r.Handle(http.MethodGet, "/ready", s.handleReady)
	r.Handle(http.MethodGet, "/metrics", s.handleMetrics)
	r.Handle(http.MethodGet, "/version", s.handleVersion)
	controller.NewLockController(manager).Register(r)

	return s
}

func (s *ManagementServer) handleHealth(c router.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "healthy",
	})
}

func (s *ManagementServer) handleReady(c router.Context) error {
	report := s.healthRegistry.Check(c.Request().Context())
	if !report.Ready() {
		return c.JSON(http.StatusServiceUnavailable, report)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *ManagementServer) handleMetrics(c router.Context) error {
	s.metricsRegistry.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}

func (s *ManagementServer) handleVersion(c router.Context) error {
	return c.JSON(http.StatusOK, s.info)
}
