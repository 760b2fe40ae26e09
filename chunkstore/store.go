// Package chunkstore keeps serialized chunks in a SQLite database, keyed by
// name and tagged with the SHA-256 digest of their persisted bytes.
package chunkstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/leola/vm"
)

var log = commonlog.GetLogger("leola.store")

// ErrNotFound indicates the requested chunk doesn't exist.
var ErrNotFound = errors.New("chunk not found")

// Entry describes one stored chunk.
type Entry struct {
	Name    string
	Hash    string // hex SHA-256 of the serialized chunk
	Size    int
	Updated time.Time
}

// Store handles SQLite storage for chunks.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		name    TEXT PRIMARY KEY,
		hash    TEXT NOT NULL,
		data    BLOB NOT NULL,
		updated INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened chunk store %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put serializes c and stores it under name, replacing any previous chunk.
func (s *Store) Put(ctx context.Context, name string, c *vm.Chunk) (Entry, error) {
	data, err := c.Serialize()
	if err != nil {
		return Entry{}, fmt.Errorf("serializing %s: %w", name, err)
	}
	return s.PutBytes(ctx, name, data)
}

// PutBytes stores an already serialized chunk. The bytes are decoded first
// so a corrupt chunk never enters the store.
func (s *Store) PutBytes(ctx context.Context, name string, data []byte) (Entry, error) {
	if name == "" {
		return Entry{}, fmt.Errorf("saving chunk: empty name")
	}
	if _, err := vm.DeserializeChunk(data); err != nil {
		return Entry{}, fmt.Errorf("saving %s: %w", name, err)
	}

	sum := sha256.Sum256(data)
	e := Entry{
		Name:    name,
		Hash:    hex.EncodeToString(sum[:]),
		Size:    len(data),
		Updated: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO chunks (name, hash, data, updated) VALUES (?, ?, ?, ?)",
		e.Name, e.Hash, data, e.Updated.UnixNano(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("saving %s: %w", name, err)
	}
	log.Infof("stored %s (%d bytes, %s)", name, e.Size, e.Hash[:12])
	return e, nil
}

// GetBytes returns the serialized chunk stored under name.
func (s *Store) GetBytes(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM chunks WHERE name = ?", name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}
	return data, nil
}

// Get loads and decodes the chunk stored under name.
func (s *Store) Get(ctx context.Context, name string) (*vm.Chunk, error) {
	data, err := s.GetBytes(ctx, name)
	if err != nil {
		return nil, err
	}
	c, err := vm.DeserializeChunk(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return c, nil
}

// List returns every stored chunk ordered by name.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, hash, length(data), updated FROM chunks ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var updated int64
		if err := rows.Scan(&e.Name, &e.Hash, &e.Size, &updated); err != nil {
			return nil, fmt.Errorf("listing chunks: %w", err)
		}
		e.Updated = time.Unix(0, updated).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	return entries, nil
}

// Delete removes the chunk stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	log.Infof("deleted %s", name)
	return nil
}
