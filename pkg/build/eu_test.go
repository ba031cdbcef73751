package build

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, dir, name string, v any) string {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, body, 0o644))
	return path
}

func TestEUBuildInsertsRecordsAndExtraFields(t *testing.T) {
	dir := t.TempDir()
	raw := writeJSON(t, dir, "data.json", []map[string]any{
		{
			"substance_id":       float64(1),
			"substance_name":     "Glyphosate",
			"as_cas_number":      "1071-83-6",
			"substance_status":   "approved",
			"substance_category": "herbicide",
			"tox_value_arfd":     "0.5",
			"tox_source_arfd":    "EFSA",
			"remark":             "reviewed 2024",
			"molecular_weight":   float64(169.07),
		},
	})

	dbPath, err := EUBuild(context.Background(), dir, raw, time.Now())
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var name, cas, extraJSON string
	require.NoError(t, db.QueryRow(`SELECT substance_name, as_cas_number, extra_json FROM substances WHERE substance_id = 1`).Scan(&name, &cas, &extraJSON))
	require.Equal(t, "Glyphosate", name)
	require.Equal(t, "1071-83-6", cas)

	var extra map[string]any
	require.NoError(t, json.Unmarshal([]byte(extraJSON), &extra))
	require.Equal(t, 169.07, extra["molecular_weight"])
	require.NotContains(t, extra, "substance_name")
}

func TestEUBuildRescuesCASFromRemarkWhenMissing(t *testing.T) {
	dir := t.TempDir()
	raw := writeJSON(t, dir, "data.json", []map[string]any{
		{
			"substance_id": float64(2),
			"substance_name": "Unknown Compound",
			"remark":       "previously listed under CAS 7440-44-0, now withdrawn",
		},
	})

	dbPath, err := EUBuild(context.Background(), dir, raw, time.Now())
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var rescued sql.NullString
	require.NoError(t, db.QueryRow(`SELECT as_cas_number_rescued FROM substances WHERE substance_id = 2`).Scan(&rescued))
	require.True(t, rescued.Valid)
	require.Equal(t, "7440-44-0", rescued.String)
}

func TestEUBuildCanonicalizesToxSourceTypo(t *testing.T) {
	dir := t.TempDir()
	raw := writeJSON(t, dir, "data.json", []map[string]any{
		{
			"substance_id":     float64(3),
			"substance_name":   "Example",
			"tox_value_arfd":   "1.0",
			"tox_source_earfd": "ECHA",
		},
	})

	dbPath, err := EUBuild(context.Background(), dir, raw, time.Now())
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var source string
	require.NoError(t, db.QueryRow(`SELECT tox_source_arfd FROM substances WHERE substance_id = 3`).Scan(&source))
	require.Equal(t, "ECHA", source)
}

func TestEUBuildAcceptsLineDelimitedFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	body := `{"substance_id": 10, "substance_name": "A"}
{"substance_id": 11, "substance_name": "B"}
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	dbPath, err := EUBuild(context.Background(), dir, path, time.Now())
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM substances`).Scan(&count))
	require.Equal(t, 2, count)
}

func TestEUBuildPopulatesFullTextIndexForEverySubstance(t *testing.T) {
	dir := t.TempDir()
	raw := writeJSON(t, dir, "data.json", []map[string]any{
		{"substance_id": float64(1), "substance_name": "Café Acid"},
	})

	dbPath, err := EUBuild(context.Background(), dir, raw, time.Now())
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM substances_fts WHERE substance_name_norm MATCH 'cafe'`).Scan(&n))
	require.Equal(t, 1, n)
}

func TestEUBuildRejectsUnparseableBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(path, []byte("not json at all {{{"), 0o644))

	_, err := EUBuild(context.Background(), dir, path, time.Now())
	require.Error(t, err)
}
