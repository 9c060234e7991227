// Package migrate keeps the policy table schema of the sql source in step
// with the scripts shipped in the binary.
package migrate

import (
	"fmt"
	"io/fs"
	"maps"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// MetadataTable records applied migration versions.
const MetadataTable = "recordlock_schema_migrations"

var scriptName = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_\-]+)\.(up|down)\.sql$`)

// Migration is one schema version. DownSQL may be empty, in which case the
// version cannot be reverted.
type Migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// Dialect holds what differs between the supported databases.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder   func(n int) string
	TimestampType string
}

var (
	Postgres = Dialect{
		Name:          "postgres",
		Placeholder:   func(n int) string { return "$" + strconv.Itoa(n) },
		TimestampType: "TIMESTAMPTZ",
	}
	MySQL = Dialect{
		Name:          "mysql",
		Placeholder:   func(int) string { return "?" },
		TimestampType: "TIMESTAMP",
	}
)

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	for _, d := range []Dialect{Postgres, MySQL} {
		if strings.EqualFold(driver, d.Name) {
			return d, nil
		}
	}
	return Dialect{}, fmt.Errorf("no migration dialect for driver %q", driver)
}

// Load reads NNNN_name.up.sql and NNNN_name.down.sql scripts from dir in
// fsys, sorted by version. Other files are ignored. "{{table}}" in a script
// becomes table, which the caller must have validated as an identifier.
func Load(fsys fs.FS, dir, table string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[int64]*Migration)
	for _, entry := range entries {
		m := scriptName.FindStringSubmatch(entry.Name())
		if entry.IsDir() || m == nil {
			continue
		}
		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", entry.Name(), err)
		}
		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		script := strings.ReplaceAll(string(body), "{{table}}", table)

		mig := byVersion[version]
		if mig == nil {
			mig = &Migration{Version: version, Name: m[2]}
			byVersion[version] = mig
		}
		if m[3] == "up" {
			mig.UpSQL = script
		} else {
			mig.DownSQL = script
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, version := range slices.Sorted(maps.Keys(byVersion)) {
		mig := byVersion[version]
		if strings.TrimSpace(mig.UpSQL) == "" {
			return nil, fmt.Errorf("migration %d has no up script", version)
		}
		out = append(out, *mig)
	}
	return out, nil
}
