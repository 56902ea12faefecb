// cache.go
package sharekit

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	_ "github.com/mattn/go-sqlite3"
)

// SnapshotCache persists the last server-confirmed snapshot per document so
// a restarted client can subscribe with its cached version. Pending
// operations are never stored.
type SnapshotCache struct {
	db *sql.DB
}

// OpenSnapshotCache opens (and initializes) the cache database.
// WAL keeps concurrent readers off the writers' backs; NORMAL sync is safe
// in WAL mode and much faster than FULL.
func OpenSnapshotCache(path string) (*SnapshotCache, error) {
	dsn := fmt.Sprintf(
		"%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL",
		path,
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache: %w", err)
	}

	schema := `
    CREATE TABLE IF NOT EXISTS snapshots (
        collection TEXT NOT NULL,
        doc_id     TEXT NOT NULL,
        updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
        envelope   JSON NOT NULL,
        PRIMARY KEY (collection, doc_id)
    );
    `
	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("begin cache schema: %w", err)
	}
	if _, err := tx.Exec(schema); err != nil {
		tx.Rollback()
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, fmt.Errorf("commit cache schema: %w", err)
	}
	return &SnapshotCache{db: db}, nil
}

// Store upserts a confirmed snapshot. The envelope row carries the version
// and type alongside the data, stamped into one JSON object.
func (sc *SnapshotCache) Store(collection, docID string, version uint64, typeName string, data []byte) error {
	envelope := []byte(`{}`)
	var err error
	if envelope, err = sjson.SetRawBytes(envelope, "data", data); err != nil {
		return fmt.Errorf("stamp data: %w", err)
	}
	if envelope, err = sjson.SetBytes(envelope, "v", version); err != nil {
		return fmt.Errorf("stamp version: %w", err)
	}
	if envelope, err = sjson.SetBytes(envelope, "type", typeName); err != nil {
		return fmt.Errorf("stamp type: %w", err)
	}

	_, err = sc.db.Exec(
		`INSERT INTO snapshots (collection, doc_id, envelope) VALUES (?, ?, json(?))
         ON CONFLICT(collection, doc_id) DO UPDATE SET
             envelope = excluded.envelope,
             updated_at = strftime('%Y-%m-%d %H:%M:%f', 'now')`,
		collection, docID, envelope,
	)
	if err != nil {
		return fmt.Errorf("cache write %s/%s: %w", collection, docID, err)
	}
	return nil
}

// Load reads a cached snapshot; ok is false on a miss.
func (sc *SnapshotCache) Load(collection, docID string) (version uint64, typeName string, data json.RawMessage, ok bool) {
	var envelope []byte
	err := sc.db.QueryRow(
		`SELECT json(envelope) FROM snapshots WHERE collection = ? AND doc_id = ?`,
		collection, docID,
	).Scan(&envelope)
	if err == sql.ErrNoRows {
		return 0, "", nil, false
	}
	if err != nil {
		log.Printf("cache read %s/%s: %v", collection, docID, err)
		return 0, "", nil, false
	}
	version = gjson.GetBytes(envelope, "v").Uint()
	typeName = gjson.GetBytes(envelope, "type").String()
	if raw := gjson.GetBytes(envelope, "data"); raw.Exists() {
		data = json.RawMessage(raw.Raw)
	}
	return version, typeName, data, true
}

// Delete drops a document's cached snapshot.
func (sc *SnapshotCache) Delete(collection, docID string) error {
	_, err := sc.db.Exec(
		`DELETE FROM snapshots WHERE collection = ? AND doc_id = ?`,
		collection, docID,
	)
	if err != nil {
		return fmt.Errorf("cache delete %s/%s: %w", collection, docID, err)
	}
	return nil
}

// Close closes the underlying database.
func (sc *SnapshotCache) Close() error {
	return sc.db.Close()
}
