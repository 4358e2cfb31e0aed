// Package cache provides a content-addressed store of compiled chunks,
// keyed by the SHA-256 of the source text and backed by SQLite. The CLI
// uses it to skip recompiling unchanged scripts.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite"

	"github.com/groove-lang/groove/pkg/bytecode"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	hash     BLOB PRIMARY KEY,
	envelope BLOB NOT NULL
);
`

// envelope wraps a serialized chunk with its metadata. Encoded with CBOR
// so the row survives format evolution without a schema migration.
type envelope struct {
	FormatVersion uint16 `cbor:"1,keyasint"`
	Name          string `cbor:"2,keyasint"`
	CreatedUnix   int64  `cbor:"3,keyasint"`
	Chunk         []byte `cbor:"4,keyasint"`
}

// Store is a content-addressed chunk cache. Safe for use from a single
// process; SQLite serializes concurrent writers.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open chunk cache %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot initialize chunk cache %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key returns the content hash of a source text.
func Key(source string) [32]byte {
	return sha256.Sum256([]byte(source))
}

// Put stores the compiled closure for source, replacing any existing
// entry for the same content hash.
func (s *Store) Put(source string, closure *bytecode.Closure) error {
	data, err := closure.Fn.Chunk.Serialize()
	if err != nil {
		return fmt.Errorf("cannot serialize chunk: %w", err)
	}
	env := envelope{
		FormatVersion: bytecode.ChunkVersion,
		Name:          closure.Fn.Name,
		CreatedUnix:   time.Now().Unix(),
		Chunk:         data,
	}
	blob, err := cbor.Marshal(env)
	if err != nil {
		return fmt.Errorf("cannot encode cache envelope: %w", err)
	}
	key := Key(source)
	_, err = s.db.Exec(
		`INSERT INTO chunks (hash, envelope) VALUES (?, ?)
		 ON CONFLICT(hash) DO UPDATE SET envelope = excluded.envelope`,
		key[:], blob)
	if err != nil {
		return fmt.Errorf("cannot store chunk: %w", err)
	}
	return nil
}

// Get returns the cached closure for source. A missing, corrupt or
// version-mismatched entry is a miss; the caller recompiles and the next
// Put overwrites the bad row.
func (s *Store) Get(source string) (*bytecode.Closure, bool) {
	key := Key(source)
	var blob []byte
	err := s.db.QueryRow(`SELECT envelope FROM chunks WHERE hash = ?`, key[:]).Scan(&blob)
	if err != nil {
		return nil, false
	}

	var env envelope
	if err := cbor.Unmarshal(blob, &env); err != nil {
		return nil, false
	}
	if env.FormatVersion != bytecode.ChunkVersion {
		return nil, false
	}
	chunk, err := bytecode.Deserialize(env.Chunk)
	if err != nil {
		return nil, false
	}
	return bytecode.NewClosure(&bytecode.Function{Name: env.Name, Chunk: chunk}), true
}

// Len returns the number of cached chunks.
func (s *Store) Len() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Purge removes every cached chunk.
func (s *Store) Purge() error {
	_, err := s.db.Exec(`DELETE FROM chunks`)
	return err
}
