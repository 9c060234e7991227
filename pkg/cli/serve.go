package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nimburion/recordlock/pkg/config"
	"github.com/nimburion/recordlock/pkg/health"
	"github.com/nimburion/recordlock/pkg/locking"
	"github.com/nimburion/recordlock/pkg/locking/policystore"
	"github.com/nimburion/recordlock/pkg/locking/policystore/redissource"
	"github.com/nimburion/recordlock/pkg/locking/policystore/sqlsource"
	"github.com/nimburion/recordlock/pkg/observability/logger"
	"github.com/nimburion/recordlock/pkg/observability/metrics"
	"github.com/nimburion/recordlock/pkg/observability/tracing"
	"github.com/nimburion/recordlock/pkg/resilience"
	"github.com/nimburion/recordlock/pkg/scheduler"
	"github.com/nimburion/recordlock/pkg/server"
	"github.com/nimburion/recordlock/pkg/server/router/gorilla"
	"github.com/nimburion/recordlock/pkg/version"
)

const (
	taskExpireLocks    = "expire-locks"
	taskReloadPolicies = "reload-policies"
)

// pinger is implemented by sources backed by a network connection.
type pinger interface {
	HealthCheck(ctx context.Context) error
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// PolicySource is a locking.PolicySource that owns a connection.
type PolicySource struct {
	locking.PolicySource
	// File is set for the file source when a config file is in use.
	File *config.FileSource
	// Remote is set for database and Redis sources.
	Remote pinger
	close  func() error
}

// Close releases the source's connection, if any.
func (s *PolicySource) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenPolicySource builds the policy source selected by locking.source.
// The file source reads the config file again on each reload; without a
// config file the policies loaded at startup are served as they are.
func OpenPolicySource(ctx context.Context, env *Environment) (*PolicySource, error) {
	cfg := env.Config
	switch strings.ToLower(cfg.Locking.Source) {
	case config.PolicySourceFile, "":
		if env.ConfigPath == "" {
			return &PolicySource{PolicySource: locking.StaticSource(cfg.Locking.LockPolicies())}, nil
		}
		file, err := config.NewFileSource(env.ConfigPath, env.Log)
		if err != nil {
			return nil, err
		}
		return &PolicySource{PolicySource: file, File: file}, nil

	case config.PolicySourceSQL:
		src, err := sqlsource.New(sqlsource.Config{
			Driver:          cfg.Database.Driver,
			URL:             cfg.Database.URL,
			Table:           cfg.Database.Table,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			QueryTimeout:    cfg.Database.QueryTimeout,
		}, env.Log)
		if err != nil {
			return nil, fmt.Errorf("open sql policy source: %w", err)
		}
		return guardRemote(config.PolicySourceSQL, src, src, src.Close, env)

	case config.PolicySourceRedis:
		src, err := redissource.New(redissource.Config{
			URL:              cfg.Redis.URL,
			Key:              cfg.Redis.Key,
			OperationTimeout: cfg.Redis.OperationTimeout,
		}, env.Log)
		if err != nil {
			return nil, fmt.Errorf("open redis policy source: %w", err)
		}
		return guardRemote(config.PolicySourceRedis, src, src, src.Close, env)

	default:
		return nil, fmt.Errorf("unsupported policy source %q", cfg.Locking.Source)
	}
}

func guardRemote(name string, src locking.PolicySource, check pinger, closeFn func() error, env *Environment) (*PolicySource, error) {
	guard := env.Config.Locking.Guard
	guarded, err := policystore.NewGuarded(name, src, policystore.GuardConfig{
		Timeout:     guard.Timeout,
		MaxFailures: guard.MaxFailures,
		Cooldown:    guard.Cooldown,
	}, env.Log)
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	// An open breaker fails readiness without touching the backend.
	ready := pingFunc(func(ctx context.Context) error {
		if guarded.State() == resilience.StateOpen {
			return fmt.Errorf("%s policy source: %w", name, resilience.ErrCircuitOpen)
		}
		return check.HealthCheck(ctx)
	})
	return &PolicySource{PolicySource: guarded, Remote: ready, close: closeFn}, nil
}

// Serve runs the lock manager until ctx is cancelled. Policies are loaded
// once before anything starts; a failed initial load aborts startup.
func Serve(ctx context.Context, env *Environment) error {
	cfg := env.Config
	log := env.Log

	registry := metrics.NewRegistry()
	lockMetrics, err := metrics.NewLockMetrics(registry.Registerer())
	if err != nil {
		return fmt.Errorf("register lock metrics: %w", err)
	}

	info := version.Current(cfg.Service.Name)
	tracer, err := tracing.Setup(ctx, tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Service.Name,
		ServiceVersion: info.Version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if shutdownErr := tracer.Shutdown(context.Background()); shutdownErr != nil {
			log.Error("failed to flush traces", "error", shutdownErr)
		}
	}()

	source, err := OpenPolicySource(ctx, env)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			log.Error("failed to close policy source", "error", closeErr)
		}
	}()

	resolver, err := locking.NewPolicyResolver(source)
	if err != nil {
		return err
	}
	manager, err := locking.NewManager(resolver,
		locking.WithShards(cfg.Locking.Shards),
		locking.WithLogger(log),
		locking.WithMetrics(lockMetrics),
	)
	if err != nil {
		return err
	}
	if err := manager.ReloadConfiguration(ctx); err != nil {
		return fmt.Errorf("initial policy load: %w", err)
	}

	runtime, err := newScheduler(cfg.Locking, manager, log, registry)
	if err != nil {
		return err
	}

	healthRegistry := health.NewRegistry()
	healthRegistry.Register(health.NewManagerChecker("lock-manager", manager))
	healthRegistry.Register(scheduler.NewHealthChecker("scheduler", runtime, 0))
	if source.Remote != nil {
		healthRegistry.Register(health.NewFuncChecker("policy-source", 3*time.Second, source.Remote.HealthCheck))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runtime.Start(gctx)
	})

	if cfg.Locking.Watch && source.File != nil {
		g.Go(func() error {
			return source.File.Watch(gctx, func() {
				// Errors are logged by the manager; the previous policies stay active.
				_ = manager.ReloadConfiguration(gctx)
			})
		})
	}

	if cfg.Management.Enabled {
		mgmt := server.NewManagementServer(
			cfg.Management,
			gorilla.NewRouter(),
			log,
			manager,
			healthRegistry,
			registry,
			info,
		)
		g.Go(func() error {
			return mgmt.Start(gctx)
		})
	}

	log.Info("recordlock started",
		"policy_source", cfg.Locking.Source,
		"policies", len(manager.Policies()),
		"management", cfg.Management.Enabled,
	)
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("recordlock stopped", "locks_dropped", manager.LockCount())
	return err
}

func newScheduler(cfg config.LockingConfig, manager *locking.Manager, log logger.Logger, registry *metrics.Registry) (*scheduler.Runtime, error) {
	runtime, err := scheduler.NewRuntime(log.With("component", "scheduler"), scheduler.Config{
		Registerer: registry.Registerer(),
	})
	if err != nil {
		return nil, err
	}

	if err := runtime.Register(scheduler.Task{
		Name:     taskExpireLocks,
		Schedule: cfg.ExpireSchedule,
		Run: func(context.Context) error {
			manager.ExpireLocks()
			return nil
		},
	}); err != nil {
		return nil, fmt.Errorf("register %s: %w", taskExpireLocks, err)
	}

	if strings.TrimSpace(cfg.ReloadSchedule) != "" {
		if err := runtime.Register(scheduler.Task{
			Name:     taskReloadPolicies,
			Schedule: cfg.ReloadSchedule,
			Run:      manager.ReloadConfiguration,
		}); err != nil {
			return nil, fmt.Errorf("register %s: %w", taskReloadPolicies, err)
		}
	}
	return runtime, nil
}
