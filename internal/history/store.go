// Package history persists attempt records in a SQLCipher encrypted
// SQLite database. The history is a supplement to the in-memory
// counter: it survives restarts, the counter does not.
package history

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/veilguard/veilguard/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const historyDBName = "history.db"

// Store implements domain.AttemptStore on an encrypted database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (or creates) the encrypted history database. The key
// is used as the SQLCipher passphrase via PRAGMA key.
func NewStore(dataDir string, key []byte) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, historyDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// Verify encryption works by running a query.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		method TEXT NOT NULL,
		count INTEGER NOT NULL,
		details TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_at ON attempts(at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends one attempt.
func (s *Store) Record(details domain.AttemptDetails) error {
	_, err := s.db.Exec(
		`INSERT INTO attempts (at, method, count, details) VALUES (?, ?, ?, ?)`,
		details.Timestamp.UnixMilli(),
		details.Method.String(),
		details.Count,
		details.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// Recent returns up to limit attempts, newest first.
func (s *Store) Recent(limit int) ([]domain.AttemptDetails, error) {
	rows, err := s.db.Query(
		`SELECT at, method, count, details FROM attempts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var result []domain.AttemptDetails
	for rows.Next() {
		var at int64
		var method string
		var d domain.AttemptDetails
		if err := rows.Scan(&at, &method, &d.Count, &d.Details); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		d.Timestamp = time.UnixMilli(at)
		d.Method = domain.DetectionMethod(method)
		result = append(result, d)
	}
	return result, rows.Err()
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path (for the status command).
func (s *Store) Path() string {
	return s.dbPath
}

var _ domain.AttemptStore = (*Store)(nil)
