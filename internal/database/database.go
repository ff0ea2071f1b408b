package database

import (
	"log"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Connect opens the MediStock SQLite database using the provided DSN. A
// single connection serializes writes, which is all the batch flows need:
// every draft has exactly one editor and persistence is transactional.
func Connect(dsn string) *sqlx.DB {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(1)

	// Batch items and attachments reference their batch; keep SQLite honest
	// about it regardless of what the DSN sets.
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		log.Fatalf("failed to enable foreign keys: %v", err)
	}
	return db
}
