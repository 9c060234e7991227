package migrate

import (
	"testing"
	"testing/fstest"
)

var testScripts = fstest.MapFS{
	"migrations/0001_init.up.sql":   {Data: []byte("CREATE TABLE {{table}} (id INT)")},
	"migrations/0001_init.down.sql": {Data: []byte("DROP TABLE {{table}}")},
	"migrations/0002_add.up.sql":    {Data: []byte("ALTER TABLE {{table}} ADD COLUMN name TEXT")},
	"migrations/README.md":          {Data: []byte("docs")},
	"migrations/abc_init.up.sql":    {Data: []byte("CREATE TABLE users")},
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver      string
		placeholder string
		wantErr     bool
	}{
		{driver: "postgres", placeholder: "$1"},
		{driver: "MySQL", placeholder: "?"},
		{driver: "sqlite", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := DialectFor(tt.driver)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := d.Placeholder(1); got != tt.placeholder {
				t.Fatalf("expected placeholder %q, got %q", tt.placeholder, got)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	migrations, err := Load(testScripts, "migrations", "lock_policies")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	first := migrations[0]
	if first.Version != 1 || first.Name != "init" {
		t.Fatalf("unexpected first migration %+v", first)
	}
	if first.UpSQL != "CREATE TABLE lock_policies (id INT)" || first.DownSQL != "DROP TABLE lock_policies" {
		t.Fatalf("table not substituted: %+v", first)
	}
	if migrations[1].Version != 2 || migrations[1].DownSQL != "" {
		t.Fatalf("unexpected second migration %+v", migrations[1])
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files fstest.MapFS
		dir   string
	}{
		{
			name:  "missing up",
			files: fstest.MapFS{"migrations/0001_init.down.sql": {Data: []byte("DROP TABLE x")}},
			dir:   "migrations",
		},
		{
			name:  "missing directory",
			files: fstest.MapFS{},
			dir:   "nonexistent",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.files, tt.dir, "t"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
