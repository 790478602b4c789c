// Package database provides SQL connectivity for devicehub.
//
// Two backends are supported behind one DB type:
//   - SQLite (default), via mattn/go-sqlite3, with WAL mode and a busy timeout
//   - Postgres, via the pgx database/sql driver
//
// Queries are written once with ? placeholders. DB rebinds them for the
// active Dialect, and Dialect classifies driver errors into unique
// violations and unavailability so stores never match error strings.
//
// Usage:
//
//	db, err := database.Connect(ctx, database.Config{Path: cfg.Database.Path}, policy, notify)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations live in MigrationsFS under one directory per dialect. Each
// migration has an .up.sql and a .down.sql file named
// YYYYMMDD_HHMMSS_description, and runs in its own transaction.
package database
