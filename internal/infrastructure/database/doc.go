// Package database provides SQLite connectivity and schema migrations.
//
// The door history is the only persistent data, so the schema is small, but
// the package keeps the usual guarantees:
//   - WAL mode and a busy timeout for concurrent readers
//   - a single writer connection, matching SQLite's locking model
//   - versioned up/down migrations applied one transaction each
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files live in the top-level migrations package and are named
// YYYYMMDD_HHMMSS_description.up.sql / .down.sql.
package database
