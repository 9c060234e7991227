package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Migrator applies and reverts migrations against one database. Each
// migration runs in its own transaction together with its MetadataTable row.
type Migrator struct {
	db         *sql.DB
	dialect    Dialect
	migrations []Migration
}

// Entry is one line of Status.
type Entry struct {
	Version int64
	Name    string
	Applied bool
}

func New(db *sql.DB, dialect Dialect, migrations []Migration) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("migrate: database handle is required")
	}
	if dialect.Placeholder == nil {
		return nil, errors.New("migrate: dialect is required")
	}
	return &Migrator{db: db, dialect: dialect, migrations: migrations}, nil
}

// Up applies every pending migration in version order and returns how many
// ran. It stops at the first failure.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	applied, err := m.appliedSet(ctx)
	if err != nil {
		return 0, err
	}
	record := fmt.Sprintf("INSERT INTO %s (version) VALUES (%s)", MetadataTable, m.dialect.Placeholder(1))

	n := 0
	for _, mig := range m.migrations {
		if applied[mig.Version] {
			continue
		}
		if err := m.step(ctx, mig, mig.UpSQL, record); err != nil {
			return n, fmt.Errorf("apply %d_%s: %w", mig.Version, mig.Name, err)
		}
		n++
	}
	return n, nil
}

// Down reverts up to steps applied migrations, newest first, and returns
// how many were reverted.
func (m *Migrator) Down(ctx context.Context, steps int) (int, error) {
	if steps < 1 {
		return 0, fmt.Errorf("migrate: steps must be >= 1, got %d", steps)
	}
	versions, err := m.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}
	record := fmt.Sprintf("DELETE FROM %s WHERE version = %s", MetadataTable, m.dialect.Placeholder(1))

	n := 0
	for i := len(versions) - 1; i >= 0 && n < steps; i-- {
		mig, ok := m.find(versions[i])
		if !ok {
			return n, fmt.Errorf("revert %d: version is not shipped with this binary", versions[i])
		}
		if strings.TrimSpace(mig.DownSQL) == "" {
			return n, fmt.Errorf("revert %d_%s: no down script", mig.Version, mig.Name)
		}
		if err := m.step(ctx, mig, mig.DownSQL, record); err != nil {
			return n, fmt.Errorf("revert %d_%s: %w", mig.Version, mig.Name, err)
		}
		n++
	}
	return n, nil
}

// Status lists the shipped migrations and whether each is applied.
func (m *Migrator) Status(ctx context.Context) ([]Entry, error) {
	applied, err := m.appliedSet(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(m.migrations))
	for _, mig := range m.migrations {
		out = append(out, Entry{Version: mig.Version, Name: mig.Name, Applied: applied[mig.Version]})
	}
	return out, nil
}

func (m *Migrator) step(ctx context.Context, mig Migration, script, record string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if _, err := tx.ExecContext(ctx, record, mig.Version); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}

func (m *Migrator) find(version int64) (Migration, bool) {
	for _, mig := range m.migrations {
		if mig.Version == version {
			return mig, true
		}
	}
	return Migration{}, false
}

func (m *Migrator) appliedSet(ctx context.Context) (map[int64]bool, error) {
	versions, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]bool, len(versions))
	for _, v := range versions {
		set[v] = true
	}
	return set, nil
}

// appliedVersions creates MetadataTable when missing and returns its
// versions in ascending order.
func (m *Migrator) appliedVersions(ctx context.Context) ([]int64, error) {
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	version BIGINT NOT NULL PRIMARY KEY,
	applied_at %s NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, MetadataTable, m.dialect.TimestampType)
	if _, err := m.db.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetadataTable, err)
	}

	rows, err := m.db.QueryContext(ctx, "SELECT version FROM "+MetadataTable+" ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", MetadataTable, err)
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("read %s: %w", MetadataTable, err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
