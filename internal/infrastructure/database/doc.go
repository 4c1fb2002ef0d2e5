// Package database provides SQLite connectivity for SensorHub.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Embedded, forward-only schema migrations
//   - Shared timestamp encoding for repositories
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions because it holds key digests and password hashes.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/sensorhub.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
