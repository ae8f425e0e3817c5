// Package database provides SQLite connectivity for the operator journal.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Embedded schema migrations (migrations/*.sql)
//   - Connection lifecycle and health checks
//
// Nothing stored here is read back at start-up; home state always starts
// from its defaults.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
