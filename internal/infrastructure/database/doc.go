// Package database provides SQLite storage for Scene Capture Core.
//
// It wraps database/sql with the mattn/go-sqlite3 driver and adds
// embedded schema migrations, health checks, and lifecycle management.
// The database holds capture history only; the scenes.yaml document
// itself is owned by Home Assistant and accessed through the capture
// package's Store.
//
// # Usage
//
//	db, err := database.Open(database.Config{
//	    Path:        "./data/scenecapture.db",
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
