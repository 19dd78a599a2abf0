package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/EduardoaMelegari/banco-projetos/internal/db"
	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_index (
    path TEXT PRIMARY KEY,
    size INTEGER NOT NULL,
    mod_time TEXT NOT NULL, -- RFC3339Nano
    fingerprint TEXT NOT NULL,
    state TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_state ON cache_index(state);
`

// dbEntry mirrors the cache_index row; time is stored as TEXT.
type dbEntry struct {
	Path        string `db:"path"`
	Size        int64  `db:"size"`
	ModTime     string `db:"mod_time"`
	Fingerprint string `db:"fingerprint"`
	State       string `db:"state"`
}

// Index is the persistent local cache index, backed by SQLite. It is the
// single source of truth for per-file sync state; only the sync executor
// writes to it.
type Index struct {
	db     *sqlx.DB
	dbPath string
}

// NewIndex prepares an Index at dbPath. Call Open before use.
// Use ":memory:" for tests.
func NewIndex(dbPath string) *Index {
	return &Index{dbPath: dbPath}
}

func (ix *Index) Open() error {
	if ix.db != nil {
		return fmt.Errorf("cache index already open")
	}

	database, err := db.NewSqliteDB(db.WithPath(ix.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open cache index: %w", err)
	}

	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return fmt.Errorf("initialize cache index schema: %w", err)
	}

	ix.db = database
	return nil
}

func (ix *Index) Close() error {
	if ix.db == nil {
		return fmt.Errorf("cache index not open")
	}
	if err := ix.db.Close(); err != nil {
		return err
	}
	ix.db = nil
	slog.Debug("cache index closed")
	return nil
}

// Get returns the entry for path, or nil if the index has none.
func (ix *Index) Get(path string) (*Entry, error) {
	var row dbEntry
	err := ix.db.Get(&row, "SELECT path, size, mod_time, fingerprint, state FROM cache_index WHERE path = ?", path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query path %s: %w", path, err)
	}
	return row.toEntry()
}

// Set inserts or updates the entry for its path.
func (ix *Index) Set(entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cannot set nil entry")
	}

	row := dbEntry{
		Path:        entry.Path,
		Size:        entry.Size,
		ModTime:     entry.ModTime.UTC().Format(time.RFC3339Nano),
		Fingerprint: entry.Fingerprint,
		State:       string(entry.State),
	}

	query := `INSERT OR REPLACE INTO cache_index (path, size, mod_time, fingerprint, state)
	          VALUES (:path, :size, :mod_time, :fingerprint, :state)`
	if _, err := ix.db.NamedExec(query, row); err != nil {
		return fmt.Errorf("set entry for path %s: %w", entry.Path, err)
	}
	slog.Debug("cache index set", "path", entry.Path, "state", entry.State)
	return nil
}

// Remove deletes the entry for path. Removing an absent path is a no-op.
func (ix *Index) Remove(path string) error {
	if _, err := ix.db.Exec("DELETE FROM cache_index WHERE path = ?", path); err != nil {
		return fmt.Errorf("remove path %s: %w", path, err)
	}
	return nil
}

// Snapshot returns the whole index keyed by path.
func (ix *Index) Snapshot() (map[string]*Entry, error) {
	var rows []dbEntry
	if err := ix.db.Select(&rows, "SELECT path, size, mod_time, fingerprint, state FROM cache_index"); err != nil {
		return nil, fmt.Errorf("query index snapshot: %w", err)
	}

	snapshot := make(map[string]*Entry, len(rows))
	for _, row := range rows {
		entry, err := row.toEntry()
		if err != nil {
			slog.Error("skipping corrupt index row", "path", row.Path, "error", err)
			continue
		}
		snapshot[row.Path] = entry
	}
	return snapshot, nil
}

// Count returns the number of indexed entries.
func (ix *Index) Count() (int, error) {
	var count int
	if err := ix.db.Get(&count, "SELECT COUNT(*) FROM cache_index"); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

func (row *dbEntry) toEntry() (*Entry, error) {
	modTime, err := time.Parse(time.RFC3339Nano, row.ModTime)
	if err != nil {
		return nil, fmt.Errorf("parse mod_time for %s: %w", row.Path, err)
	}
	return &Entry{
		Path:        row.Path,
		Size:        row.Size,
		ModTime:     modTime,
		Fingerprint: row.Fingerprint,
		State:       State(row.State),
	}, nil
}
