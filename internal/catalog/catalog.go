// Package catalog is a small local SQLite-backed cache keyed by input
// file identity (path, modification time, size) mapping to a previously
// decoded turnpoint or airspace set, serialized as a JSON blob. It lets
// the conversion drivers skip re-parsing an unchanged input file across
// repeated invocations.
//
// Grounded on the reference's internal/storage.SQLiteDB: a thin wrapper
// around database/sql opening modernc.org/sqlite, with hand-written SQL
// and manual row scanning rather than an ORM.
package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"loggertoolsgo/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	path     TEXT NOT NULL,
	mtime    INTEGER NOT NULL,
	size     INTEGER NOT NULL,
	kind     TEXT NOT NULL,
	payload  TEXT NOT NULL,
	cached_at INTEGER NOT NULL,
	PRIMARY KEY (path, kind)
)`

const (
	kindTurnPoints = "turnpoints"
	kindAirspaces  = "airspaces"
)

// Catalog wraps a SQLite database holding cached decoded record sets.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if necessary) the catalog database at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Entry describes one cached record set, for the catalog inspection
// subcommand.
type Entry struct {
	Path     string
	Kind     string // "turnpoints" or "airspaces"
	Size     int64
	Count    int
	CachedAt time.Time
}

// List returns every cached entry, most recently cached first.
func (c *Catalog) List() ([]Entry, error) {
	rows, err := c.db.Query(`SELECT path, kind, size, payload, cached_at FROM entries ORDER BY cached_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var size, cachedAt int64
		var payload string
		if err := rows.Scan(&e.Path, &e.Kind, &size, &payload, &cachedAt); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		e.Size = size
		e.CachedAt = time.Unix(cachedAt, 0)
		e.Count = countElements(payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func countElements(payload string) int {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return 0
	}
	return len(raw)
}

// statKey identifies an input file's cache key: path plus the mtime/size
// pair that changes whenever the file's content might have changed.
func statKey(path string) (mtime int64, size int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	return info.ModTime().Unix(), info.Size(), nil
}

func (c *Catalog) lookup(path, kind string, out any) (bool, error) {
	mtime, size, err := statKey(path)
	if err != nil {
		return false, err
	}

	var payload string
	row := c.db.QueryRow(
		`SELECT payload FROM entries WHERE path = ? AND kind = ? AND mtime = ? AND size = ?`,
		path, kind, mtime, size)
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("query catalog: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return false, fmt.Errorf("decode cached entry: %w", err)
	}
	return true, nil
}

func (c *Catalog) store(path, kind string, v any) error {
	mtime, size, err := statKey(path)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	_, err = c.db.Exec(
		`INSERT INTO entries (path, mtime, size, kind, payload, cached_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path, kind) DO UPDATE SET mtime=excluded.mtime, size=excluded.size,
		   payload=excluded.payload, cached_at=excluded.cached_at`,
		path, mtime, size, kind, string(payload), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store catalog entry: %w", err)
	}
	return nil
}

// LookupTurnPoints returns the cached turnpoint set for path, if path's
// current mtime/size still matches the cached entry.
func (c *Catalog) LookupTurnPoints(path string) ([]domain.TurnPoint, bool, error) {
	var tps []domain.TurnPoint
	hit, err := c.lookup(path, kindTurnPoints, &tps)
	if err != nil || !hit {
		return nil, false, err
	}
	return tps, true, nil
}

// StoreTurnPoints caches tps under path's current mtime/size.
func (c *Catalog) StoreTurnPoints(path string, tps []domain.TurnPoint) error {
	return c.store(path, kindTurnPoints, tps)
}

// LookupAirspaces returns the cached airspace set for path, if path's
// current mtime/size still matches the cached entry.
func (c *Catalog) LookupAirspaces(path string) ([]domain.Airspace, bool, error) {
	var aspcs []domain.Airspace
	hit, err := c.lookup(path, kindAirspaces, &aspcs)
	if err != nil || !hit {
		return nil, false, err
	}
	return aspcs, true, nil
}

// StoreAirspaces caches aspcs under path's current mtime/size.
func (c *Catalog) StoreAirspaces(path string, aspcs []domain.Airspace) error {
	return c.store(path, kindAirspaces, aspcs)
}
