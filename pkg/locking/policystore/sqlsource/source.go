// Package sqlsource loads lock policies from a database table.
package sqlsource

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/nimburion/recordlock/pkg/locking"
	"github.com/nimburion/recordlock/pkg/migrate"
	"github.com/nimburion/recordlock/pkg/observability/logger"
	"github.com/nimburion/recordlock/pkg/observability/tracing"
)

const (
	defaultTable        = "lock_policies"
	defaultQueryTimeout = 5 * time.Second
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var supportedDrivers = map[string]bool{
	"postgres": true,
	"mysql":    true,
}

// Config configures the SQL policy source.
type Config struct {
	// Driver is "postgres" or "mysql".
	Driver          string
	URL             string
	Table           string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

func (c *Config) normalize() {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if strings.TrimSpace(c.Table) == "" {
		c.Table = defaultTable
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = defaultQueryTimeout
	}
}

// Source reads rows (object_name, enabled, timeout_seconds) from a table.
type Source struct {
	db     *sql.DB
	log    logger.Logger
	config Config
}

// New opens the database and verifies connectivity.
func New(cfg Config, log logger.Logger) (*Source, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("database url is required")
	}
	cfg.normalize()
	if !supportedDrivers[cfg.Driver] {
		return nil, fmt.Errorf("unsupported policy database driver %q", cfg.Driver)
	}
	if !validTableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid policy table name %q", cfg.Table)
	}

	db, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open %s failed: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s failed: %w", cfg.Driver, err)
	}

	log.Info("policy database connected", "driver", cfg.Driver, "table", cfg.Table)
	return &Source{db: db, log: log, config: cfg}, nil
}

func newSourceWithDB(db *sql.DB, cfg Config, log logger.Logger) (*Source, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	cfg.normalize()
	if !validTableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid policy table name %q", cfg.Table)
	}
	return &Source{db: db, log: log, config: cfg}, nil
}

// Migrator returns the schema migrations for the policy table.
func (s *Source) Migrator() (*migrate.Migrator, error) {
	dialect, err := migrate.DialectFor(s.config.Driver)
	if err != nil {
		return nil, err
	}
	migrations, err := migrate.Load(migrationFiles, "migrations", s.config.Table)
	if err != nil {
		return nil, err
	}
	return migrate.New(s.db, dialect, migrations)
}

// Migrate applies pending schema migrations and returns how many ran.
func (s *Source) Migrate(ctx context.Context) (int, error) {
	m, err := s.Migrator()
	if err != nil {
		return 0, err
	}
	return m.Up(ctx)
}

// Load implements locking.PolicySource.
func (s *Source) Load(ctx context.Context) (policies []locking.Policy, err error) {
	ctx, span := tracing.StartPolicyLoadSpan(ctx, "sql",
		tracing.WithDBSystem(dbSystem(s.config.Driver)),
		tracing.WithDBTable(s.config.Table),
	)
	defer func() {
		if err != nil {
			tracing.RecordError(span, err)
		} else {
			tracing.RecordPolicyCount(span, len(policies))
			tracing.RecordSuccess(span)
		}
		span.End()
	}()

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT object_name, enabled, timeout_seconds FROM %s ORDER BY object_name`, s.config.Table)
	rows, err := s.db.QueryContext(opCtx, query)
	if err != nil {
		return nil, fmt.Errorf("query policy table %s: %w", s.config.Table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name    string
			enabled bool
			seconds sql.NullInt64
		)
		if err := rows.Scan(&name, &enabled, &seconds); err != nil {
			return nil, fmt.Errorf("scan policy row: %w", err)
		}
		policies = append(policies, locking.Policy{
			ObjectName: name,
			Enabled:    enabled,
			Timeout:    time.Duration(seconds.Int64) * time.Second,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read policy rows: %w", err)
	}

	s.log.Debug("policies loaded from database", "table", s.config.Table, "count", len(policies))
	return policies, nil
}

// HealthCheck pings the database.
func (s *Source) HealthCheck(ctx context.Context) error {
	opCtx, cancel := s.operationContext(ctx)
	defer cancel()
	if err := s.db.PingContext(opCtx); err != nil {
		return fmt.Errorf("policy database health check failed: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Source) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func dbSystem(driver string) string {
	if driver == "postgres" {
		return "postgresql"
	}
	return driver
}

func (s *Source) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.config.QueryTimeout)
}
