package semcache

import "database/sql"

// migrate creates the schema if it doesn't exist. seq is the insertion order:
// an upsert deletes and re-inserts, so an overwritten entry becomes the newest.
func migrate(db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS entries (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			key         TEXT NOT NULL UNIQUE,
			embedding   BLOB NOT NULL,
			payload     TEXT NOT NULL,
			inserted_at TEXT NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}
