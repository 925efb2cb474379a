// Package database keeps normalized pixel data in SQLite so repeated runs
// over the same sources skip decoding and resampling. Entries are keyed by
// source path, normalization fingerprint and rotation, and are only reused
// while the source file's size and modification time are unchanged.
package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"imagematcher/imageprocessor"
	"imagematcher/logging"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schema = `
	CREATE TABLE IF NOT EXISTS normalized (
		path TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		rotation INTEGER NOT NULL,
		modified_at TEXT NOT NULL,
		size INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		pixels BLOB NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (path, fingerprint, rotation)
	);
	CREATE INDEX IF NOT EXISTS idx_normalized_path ON normalized(path);`

// InitDatabase opens dbPath, creating its directory and the schema if needed.
func InitDatabase(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create cache directory for %s", dbPath)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open cache %s", dbPath)
	}
	// SQLite serializes writers; one connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create cache schema")
	}
	return db, nil
}

// FileStamp identifies one version of a source file.
type FileStamp struct {
	ModifiedAt string
	Size       int64
}

// StampFile stats path.
func StampFile(path string) (FileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileStamp{}, err
	}
	return FileStamp{
		ModifiedAt: info.ModTime().UTC().Format(time.RFC3339Nano),
		Size:       info.Size(),
	}, nil
}

// Cache stores normalized images.
type Cache struct {
	db *sql.DB
}

// OpenCache opens or creates the cache at dbPath.
func OpenCache(dbPath string) (*Cache, error) {
	db, err := InitDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Lookup returns the cached image for (path, fingerprint, rotation) if it was
// stored for the same file stamp. The caller owns the returned image.
func (c *Cache) Lookup(path string, stamp FileStamp, fingerprint string, rotation int) (*imageprocessor.NormalizedImage, bool, error) {
	var (
		modifiedAt    string
		size          int64
		width, height int
		pixels        []byte
	)
	err := c.db.QueryRow(
		`SELECT modified_at, size, width, height, pixels FROM normalized
		 WHERE path = ? AND fingerprint = ? AND rotation = ?`,
		path, fingerprint, rotation,
	).Scan(&modifiedAt, &size, &width, &height, &pixels)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "cache lookup for %s", path)
	}

	if modifiedAt != stamp.ModifiedAt || size != stamp.Size {
		logging.DebugLog("cache entry stale", "path", path, "rotation", rotation)
		return nil, false, nil
	}

	img, err := imageprocessor.NormalizedFromBytes(width, height, pixels)
	if err != nil {
		logging.LogWarning("discarding unreadable cache entry", "path", path, "error", err)
		return nil, false, nil
	}
	return img, true, nil
}

// Store records img for (path, fingerprint, rotation), replacing any previous
// entry.
func (c *Cache) Store(path string, stamp FileStamp, fingerprint string, rotation int, img *imageprocessor.NormalizedImage) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO normalized (
			path, fingerprint, rotation, modified_at, size, width, height, pixels, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		path, fingerprint, rotation, stamp.ModifiedAt, stamp.Size,
		img.Width(), img.Height(), img.Bytes(), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errors.Wrapf(err, "cache store for %s", path)
	}
	return nil
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries int
	Sources int
}

// GetStats counts cached variants and distinct source paths.
func (c *Cache) GetStats() (Stats, error) {
	var stats Stats
	err := c.db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT path) FROM normalized`).Scan(&stats.Entries, &stats.Sources)
	if err != nil {
		return Stats{}, errors.Wrap(err, "cache stats")
	}
	return stats, nil
}
