package migrate

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"

	"github.com/timothy-holmes/ht-tracker/internal/logging"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return n == 1
}

func TestRun_CreatesSchema(t *testing.T) {
	db := openMemory(t)

	if err := Run(context.Background(), db, logging.Discard()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, table := range []string{"schema_migrations", "temperature", "device"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %q missing after Run", table)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := Run(ctx, db, logging.Discard()); err != nil {
			t.Fatalf("Run #%d: %v", i+1, err)
		}
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 2 {
		t.Errorf("schema_migrations rows = %d, want 2", n)
	}
}

func TestRun_OrdersAndSkipsUnrelatedFiles(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"sql/0002_b.sql":   {Data: []byte(`ALTER TABLE a ADD COLUMN extra TEXT;`)},
		"sql/0001_a.sql":   {Data: []byte(`CREATE TABLE a (id INTEGER);`)},
		"sql/README.md":    {Data: []byte(`not a migration`)},
		"sql/01_short.sql": {Data: []byte(`garbage`)},
	}

	if err := run(context.Background(), db, fsys, logging.Discard()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO a (id, extra) VALUES (1, 'x')`); err != nil {
		t.Fatalf("migrations not applied in order: %v", err)
	}
}

func TestRun_FailedMigrationNotRecorded(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"sql/0001_ok.sql":     {Data: []byte(`CREATE TABLE ok (id INTEGER);`)},
		"sql/0002_broken.sql": {Data: []byte(`CREATE TABLE broken (;`)},
	}

	if err := run(context.Background(), db, fsys, logging.Discard()); err == nil {
		t.Fatal("run error = nil, want non-nil")
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = '0002'`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("broken migration recorded as applied")
	}
	if !tableExists(t, db, "ok") {
		t.Errorf("earlier migration should stay applied")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in          string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{in: "0001_temperature.sql", wantVersion: "0001", wantName: "temperature", wantOK: true},
		{in: "0010_add_index.sql", wantVersion: "0010", wantName: "add_index", wantOK: true},
		{in: "1_x.sql"},
		{in: "0001_x.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, n, ok := parseMigrationFilename(tt.in)
			if ok != tt.wantOK || v != tt.wantVersion || n != tt.wantName {
				t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.in, v, n, ok, tt.wantVersion, tt.wantName, tt.wantOK)
			}
		})
	}
}
