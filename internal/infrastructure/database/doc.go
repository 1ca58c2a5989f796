// Package database provides SQLite connectivity for the transcript journal.
//
// This package manages:
//   - Opening the database with WAL mode and busy-timeout pragmas
//   - Embedded schema migrations (see the migrations package)
//   - Connection lifecycle and health checks
//
// SQLite is used in single-writer mode: the session loop is the only
// writer, which matches SQLite's concurrency model exactly.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "data/transcript.db"})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
