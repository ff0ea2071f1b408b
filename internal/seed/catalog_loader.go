package seed

import (
	"encoding/csv"
	"io"
	"log"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"

	"medistock/m/internal/recon"
)

// EnsureMiscellaneous inserts the reserved adjustment pseudo-entry (id 1)
// when it is missing. It must exist before any real medicine row so the id
// stays reserved.
func EnsureMiscellaneous(db *sqlx.DB) {
	_, err := db.Exec(`INSERT OR IGNORE INTO medicines (id, name, generic_name, manufacturer) VALUES ($1, 'MISCELLANEOUS', '', '')`, recon.MiscellaneousID)
	if err != nil {
		log.Fatalf("unable to seed miscellaneous entry: %v", err)
	}
}

// LoadCatalog ingests the CSV into the medicines table, ignoring duplicates.
// Expected columns: name, generic_name, manufacturer (with a header row).
func LoadCatalog(db *sqlx.DB, csvPath string) {
	EnsureMiscellaneous(db)

	file, err := os.Open(csvPath)
	if err != nil {
		log.Printf("unable to load medicine catalog %s: %v", csvPath, err)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Printf("unable to read catalog header: %v", err)
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		log.Printf("unable to start catalog transaction: %v", err)
		return
	}
	stmt, err := tx.Preparex(`INSERT OR IGNORE INTO medicines (name, generic_name, manufacturer) VALUES (?, ?, ?)`)
	if err != nil {
		log.Printf("unable to prepare catalog insert: %v", err)
		_ = tx.Rollback()
		return
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("unable to read catalog row: %v", err)
			continue
		}
		if len(record) < 3 {
			continue
		}
		name := strings.TrimSpace(record[0])
		generic := strings.TrimSpace(record[1])
		manufacturer := strings.TrimSpace(record[2])

		if name == "" {
			continue
		}

		if _, err := stmt.Exec(name, generic, manufacturer); err != nil {
			log.Printf("unable to insert medicine %s: %v", name, err)
		} else {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("unable to commit catalog seed: %v", err)
	} else {
		log.Printf("seeded medicine catalog with %d rows", rows)
	}
}
