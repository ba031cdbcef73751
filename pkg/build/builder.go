package build

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// NewDBPath returns the path a fresh build of provider should be written
// to: "<dir>/<provider>_<unix-millis>.db". Millis is taken from the
// caller so tests can supply a deterministic clock.
func NewDBPath(dir, provider string, millis int64) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d.db", provider, millis))
}

// openFresh creates path (must not already exist) and applies the
// write-once pragmas used during a build.
func openFresh(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("build target already exists: %s", path)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	return db, nil
}

// discard closes db (ignoring the close error, since the file is being
// thrown away) and unlinks path. Called on every Builder error path so a
// failure never leaves a partial file behind.
func discard(db *sql.DB, path string) {
	if db != nil {
		_ = db.Close()
	}
	_ = os.Remove(path)
}

// nowISO returns the current UTC time formatted as the ISO-8601 stamp
// written to meta.builtAt.
func nowISO(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}
