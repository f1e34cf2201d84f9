package db

import (
	"database/sql"
	"log"
)

const (
	sqlCreateKeyLinksTable = `CREATE TABLE IF NOT EXISTS key_links (
		id TEXT NOT NULL PRIMARY KEY,
		key_hash TEXT UNIQUE NOT NULL,
		token TEXT NOT NULL,
		username TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateKeyLinksIndices = `
		CREATE INDEX IF NOT EXISTS idx_key_links_username ON key_links(username);
	`

	sqlCreatePreferencesTable = `CREATE TABLE IF NOT EXISTS preferences (
		key_hash TEXT NOT NULL PRIMARY KEY,
		hide_zero_events INTEGER DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
)

// RunMigrations creates the tables; it is safe to run on every start.
func (db *DB) RunMigrations() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		if err := db.createTableIfNotExists(tx, sqlCreateKeyLinksTable, "key_links"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreatePreferencesTable, "preferences"); err != nil {
			return err
		}

		if _, err := tx.Exec(sqlCreateKeyLinksIndices); err != nil {
			log.Printf("Warning: Failed to create key_links indices: %v", err)
		}
		return nil
	})
}

func (db *DB) createTableIfNotExists(tx *sql.Tx, createSQL string, tableName string) error {
	_, err := tx.Exec(createSQL)
	if err != nil {
		log.Printf("Error creating table %s: %v", tableName, err)
		return err
	}
	log.Printf("Table %s created or already exists", tableName)
	return nil
}
