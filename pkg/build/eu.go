package build

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/agrodata/refdata/pkg/foldtext"
	"github.com/agrodata/refdata/pkg/log"
)

const euBatchSize = 1000

// casRescuePattern is the upstream-documented CAS shape, used unanchored
// to pull a candidate number out of free text. Store.GetByCas anchors the
// same pattern when validating a path parameter.
var casRescuePattern = regexp.MustCompile(`\d{2,7}-\d{2}-\d`)

var knownSubstanceFields = map[string]bool{
	"substance_id": true, "substance_name": true, "as_cas_number": true,
	"substance_status": true, "substance_category": true,
	"approval_date": true, "expiry_date": true,
	"tox_value_arfd": true, "tox_source_arfd": true, "tox_source_earfd": true,
	"remark": true,
}

// EUBuild parses rawPath (a EU active-substance JSON body, or, as a
// fallback, line-delimited JSON) and writes a fresh, fully indexed
// database file at "<dataDir>/eu_<nowMillis>.db".
func EUBuild(ctx context.Context, dataDir string, rawPath string, now time.Time) (string, error) {
	logger := log.WithProvider("eu")
	dbPath := NewDBPath(dataDir, "eu", now.UnixMilli())

	body, err := os.ReadFile(rawPath)
	if err != nil {
		return "", fmt.Errorf("read raw artifact: %w", err)
	}

	records, err := decodeEURecords(body)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", rawPath, err)
	}

	db, err := openFresh(dbPath)
	if err != nil {
		return "", err
	}
	if _, err := db.ExecContext(ctx, euSchema); err != nil {
		discard(db, dbPath)
		return "", fmt.Errorf("create schema: %w", err)
	}

	sawTypo := false
	count := 0
	for i := 0; i < len(records); i += euBatchSize {
		end := min(i+euBatchSize, len(records))
		batch := records[i:end]
		n, typoSeen, err := insertSubstanceBatch(ctx, db, batch, logger)
		if err != nil {
			discard(db, dbPath)
			return "", fmt.Errorf("insert batch %d-%d: %w", i, end, err)
		}
		count += n
		sawTypo = sawTypo || typoSeen
	}
	if sawTypo {
		logger.Warn().Msg("observed tox_source_earfd upstream field instead of tox_source_arfd; stored under canonical key")
	}

	if err := indexEUFullText(ctx, db); err != nil {
		discard(db, dbPath)
		return "", fmt.Errorf("build full-text index: %w", err)
	}

	meta := map[string]string{
		"builtAt":     nowISO(now),
		"recordCount": fmt.Sprint(count),
	}
	if err := writeMeta(ctx, db, meta); err != nil {
		discard(db, dbPath)
		return "", fmt.Errorf("write meta: %w", err)
	}

	if err := db.Close(); err != nil {
		_ = os.Remove(dbPath)
		return "", fmt.Errorf("close build: %w", err)
	}

	logger.Info().Str("path", dbPath).Int("substances", count).Msg("build complete")
	return dbPath, nil
}

// decodeEURecords parses body as a JSON array, a single JSON object
// (wrapped as a one-element list), or, if whole-body parsing fails, as
// line-delimited JSON, one object per non-blank line.
func decodeEURecords(body []byte) ([]map[string]any, error) {
	var arr []map[string]any
	if err := json.Unmarshal(body, &arr); err == nil {
		return arr, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		return []map[string]any{obj}, nil
	}

	var records []map[string]any
	for _, line := range bytes.Split(body, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("line-delimited JSON fallback: %w", err)
		}
		records = append(records, rec)
	}
	if records == nil {
		return nil, fmt.Errorf("empty or unparseable JSON body")
	}
	return records, nil
}

// insertSubstanceBatch inserts one transaction's worth of records and
// reports how many rows it wrote and whether it observed the
// tox_source_earfd upstream typo.
func insertSubstanceBatch(ctx context.Context, db *sql.DB, batch []map[string]any, logger zerolog.Logger) (int, bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO substances(
		substance_id, substance_name, as_cas_number, as_cas_number_rescued,
		substance_status, substance_category, approval_date, expiry_date,
		tox_value_arfd, tox_source_arfd, remark, extra_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, false, err
	}
	defer stmt.Close()

	n := 0
	sawTypo := false
	for _, rec := range batch {
		id, ok := getInt64(rec, "substance_id")
		if !ok {
			logger.Warn().Msg("skipping substance record with missing/invalid substance_id")
			continue
		}

		cas := getString(rec, "as_cas_number")
		var casRescued *string
		remark := getString(rec, "remark")
		if (cas == nil || *cas == "") && remark != nil {
			if m := casRescuePattern.FindString(*remark); m != "" {
				casRescued = &m
			}
		}

		toxSource := getString(rec, "tox_source_arfd")
		if v, ok := rec["tox_source_earfd"]; ok {
			sawTypo = true
			if s, ok := v.(string); ok && s != "" {
				toxSource = &s
			}
		}

		extra := make(map[string]any, len(rec))
		for k, v := range rec {
			if !knownSubstanceFields[k] {
				extra[k] = v
			}
		}
		extraJSON, err := json.Marshal(extra)
		if err != nil {
			return n, sawTypo, fmt.Errorf("marshal extra fields for substance %d: %w", id, err)
		}

		if _, err := stmt.ExecContext(ctx, id,
			getString(rec, "substance_name"), cas, casRescued,
			getString(rec, "substance_status"), getString(rec, "substance_category"),
			getString(rec, "approval_date"), getString(rec, "expiry_date"),
			getString(rec, "tox_value_arfd"), toxSource, remark, string(extraJSON),
		); err != nil {
			return n, sawTypo, fmt.Errorf("insert substance %d: %w", id, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, sawTypo, err
	}
	return n, sawTypo, nil
}

// indexEUFullText scans every substance (unlike EPPO, EU indexes all rows
// regardless of status) and populates substances_fts with the
// diacritic-folded name.
func indexEUFullText(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT substance_id, substance_name, as_cas_number, substance_category FROM substances`)
	if err != nil {
		return err
	}
	defer rows.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO substances_fts(substance_name_norm, as_cas_number, substance_category, substance_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}

	for rows.Next() {
		var (
			id       int64
			name     sql.NullString
			cas      sql.NullString
			category sql.NullString
		)
		if err := rows.Scan(&id, &name, &cas, &category); err != nil {
			stmt.Close()
			tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, foldtext.Fold(name.String), cas.String, category.String, id); err != nil {
			stmt.Close()
			tx.Rollback()
			return err
		}
	}
	if err := rows.Err(); err != nil {
		stmt.Close()
		tx.Rollback()
		return err
	}
	stmt.Close()
	return tx.Commit()
}

func getString(rec map[string]any, key string) *string {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func getInt64(rec map[string]any, key string) (int64, bool) {
	v, ok := rec[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		var i int64
		if _, err := fmt.Sscanf(n, "%d", &i); err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
