package snapshot

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrSnapshotNotFound indicates the requested snapshot is not in the catalog.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Store is a content-addressed snapshot catalog backed by SQLite. Snapshots
// are keyed by the hex SHA-256 of their canonical encoding, so storing the
// same graph twice is a no-op.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) a catalog at the given path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: opening catalog: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: setting busy timeout: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		hash       TEXT PRIMARY KEY,
		id         TEXT NOT NULL,
		created_at TEXT NOT NULL,
		data       BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: creating catalog table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the catalog's database handle.
func (st *Store) Close() error {
	return st.db.Close()
}

// Put encodes and stores a snapshot, returning its content address.
func (st *Store) Put(snap *Snapshot) (string, error) {
	data, err := Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("snapshot: encoding for catalog: %w", err)
	}
	sum := Hash(data)
	key := hex.EncodeToString(sum[:])

	_, err = st.db.Exec(
		`INSERT OR IGNORE INTO snapshots (hash, id, created_at, data) VALUES (?, ?, ?, ?)`,
		key, snap.ID, snap.CreatedAt.Format(time.RFC3339Nano), data)
	if err != nil {
		return "", fmt.Errorf("snapshot: storing %s: %w", key, err)
	}
	return key, nil
}

// Get loads the snapshot with the given content address.
func (st *Store) Get(key string) (*Snapshot, error) {
	var data []byte
	err := st.db.QueryRow(
		`SELECT data FROM snapshots WHERE hash = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot: %s: %w", key, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: loading %s: %w", key, err)
	}

	// Verify the content address before trusting the payload.
	sum := Hash(data)
	if hex.EncodeToString(sum[:]) != key {
		return nil, fmt.Errorf("snapshot: %s: catalog entry fails hash check", key)
	}
	return Unmarshal(data)
}

// Entry describes one catalog row.
type Entry struct {
	Hash      string
	ID        string
	CreatedAt time.Time
}

// List returns every catalog entry, newest first.
func (st *Store) List() ([]Entry, error) {
	rows, err := st.db.Query(
		`SELECT hash, id, created_at FROM snapshots ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: listing catalog: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.Hash, &e.ID, &created); err != nil {
			return nil, fmt.Errorf("snapshot: scanning catalog row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
