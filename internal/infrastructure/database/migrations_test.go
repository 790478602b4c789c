package database

import (
	"context"
	"testing"
	"testing/fstest"
	"time"
)

// testMigrations holds one sqlite migration with two statements.
var testMigrations = fstest.MapFS{
	"sqlite/20260101_000000_create_widgets.up.sql": &fstest.MapFile{Data: []byte(`
-- widgets for tests
CREATE TABLE test_widgets (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE INDEX idx_test_widgets_name ON test_widgets(name);
`)},
	"sqlite/20260101_000000_create_widgets.down.sql": &fstest.MapFile{Data: []byte(`
DROP INDEX IF EXISTS idx_test_widgets_name;
DROP TABLE IF EXISTS test_widgets;
`)},
	"postgres/20260101_000000_create_widgets.up.sql": &fstest.MapFile{Data: []byte(`CREATE TABLE test_widgets (id TEXT PRIMARY KEY);`)},
	"sqlite/README.md": &fstest.MapFile{Data: []byte("ignored")},
}

// useMigrations swaps MigrationsFS for the duration of the test.
func useMigrations(t *testing.T, fsys fstest.MapFS) {
	t.Helper()

	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
	MigrationsFS = fsys
	MigrationsDir = "."
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()

	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations)
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "test_widgets") {
		t.Fatal("table test_widgets not created")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("expected 1 applied migration, got %d", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("expected 0 pending migrations, got %d", len(pending))
	}

	// Running again should be idempotent
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, testMigrations)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "test_widgets") {
		t.Error("table test_widgets should have been dropped")
	}

	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected 0 applied migrations after rollback, got %d", len(applied))
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{name: "nil filesystem", fsys: nil},
		{name: "no dialect directory", fsys: fstest.MapFS{"postgres/x.up.sql": &fstest.MapFile{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origFS := MigrationsFS
			t.Cleanup(func() { MigrationsFS = origFS })
			if tt.fsys == nil {
				MigrationsFS = nil
			} else {
				MigrationsFS = tt.fsys
			}

			db := openTestDB(t)
			if err := db.Migrate(context.Background()); err != nil {
				t.Fatalf("Migrate() with no migrations error = %v", err)
			}
		})
	}
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"sqlite/20260101_000000_broken.up.sql": &fstest.MapFile{Data: []byte(`
CREATE TABLE half_done (id TEXT);
CREATE TABLE half_done (id TEXT);
`)},
	})
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err == nil {
		t.Fatal("Migrate() expected error for duplicate table")
	}
	if tableExists(t, db, "half_done") {
		t.Error("failed migration left table half_done behind")
	}
}

func TestGetMigrationStatus(t *testing.T) {
	useMigrations(t, testMigrations)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.createMigrationsTable(ctx); err != nil {
		t.Fatalf("createMigrationsTable() error = %v", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected 0 applied, got %d", len(applied))
	}
	if len(pending) != 1 {
		t.Errorf("expected 1 pending, got %d", len(pending))
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   int
	}{
		{name: "single", script: "CREATE TABLE a (id TEXT);", want: 1},
		{name: "two with trailing space", script: "CREATE TABLE a (id TEXT);\nCREATE TABLE b (id TEXT);\n\n", want: 2},
		{name: "comment only tail", script: "CREATE TABLE a (id TEXT);\n-- done\n", want: 1},
		{name: "empty", script: "  \n", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitStatements(tt.script); len(got) != tt.want {
				t.Errorf("splitStatements() returned %d statements %q, want %d", len(got), got, tt.want)
			}
		})
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     migrationFile
		wantOk   bool
	}{
		{"20260118_120000_create_devices.up.sql", migrationFile{"20260118_120000", "create_devices", true}, true},
		{"20260118_120000_add_picture_url.down.sql", migrationFile{"20260118_120000", "add_picture_url", false}, true},
		{"20260118_120000.up.sql", migrationFile{"20260118_120000", "20260118_120000", true}, true},
		{"readme.txt", migrationFile{}, false},
		{"20260118_120000_create_devices.sql", migrationFile{}, false},
		{"invalid.up.sql", migrationFile{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if got != tt.want {
				t.Errorf("parseMigrationFilename(%q) = %+v, want %+v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestLoadMigrations_DownWithoutUp(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"sqlite/20260101_000000_orphan.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE x;")},
	})
	if _, err := loadMigrations(DialectSQLite); err == nil {
		t.Error("loadMigrations() expected error for down script without up script")
	}
}
