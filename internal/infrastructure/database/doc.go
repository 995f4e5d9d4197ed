// Package database provides SQLite connectivity for Hydroponics Core.
//
// This package manages:
//   - Database connection with WAL mode for concurrent reads
//   - Foreign key enforcement (system deletion cascades to measurements)
//   - Embedded schema migrations with up/down files
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions since it holds password hashes and refresh token hashes.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql and
// YYYYMMDD_HHMMSS_description.down.sql.
package database
