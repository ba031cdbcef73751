package store

import (
	"database/sql"
	"time"

	"github.com/agrodata/refdata/pkg/types"
)

// loadMeta is the sentinel query: it both confirms the file is a
// genuine, complete build and loads the dataset metadata used in the
// HTTP `_meta` envelope.
func loadMeta(db *sql.DB) (types.DatasetMeta, error) {
	rows, err := db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := make(types.DatasetMeta)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
