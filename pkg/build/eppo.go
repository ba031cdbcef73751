package build

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/agrodata/refdata/pkg/foldtext"
	"github.com/agrodata/refdata/pkg/log"
)

const eppoCodeBatchSize = 5000

// EPPOBuild streams rawPath (an extracted EPPO codes.xml file), admits
// only codes whose type is in allowTypes and whose isactive attribute is
// "true", and writes a fresh, fully indexed database file at
// "<dataDir>/eppo_<nowMillis>.db". It returns that path on success; on
// any error the partial file is unlinked and the error is returned.
func EPPOBuild(ctx context.Context, dataDir string, rawPath string, allowTypes []string, now time.Time) (string, error) {
	logger := log.WithProvider("eppo")
	dbPath := NewDBPath(dataDir, "eppo", now.UnixMilli())

	allow := make(map[string]bool, len(allowTypes))
	for _, t := range allowTypes {
		allow[t] = true
	}

	f, err := os.Open(rawPath)
	if err != nil {
		return "", fmt.Errorf("open raw artifact: %w", err)
	}
	defer f.Close()

	db, err := openFresh(dbPath)
	if err != nil {
		return "", err
	}

	if _, err := db.ExecContext(ctx, eppoSchema); err != nil {
		discard(db, dbPath)
		return "", fmt.Errorf("create schema: %w", err)
	}

	var (
		tx          *sql.Tx
		codeStmt    *sql.Stmt
		nameStmt    *sql.Stmt
		inBatch     int
		codeCount   int
		nameCount   int
		nextCodeID  int64 = 1
		nextNameID  int64 = 1
	)

	beginBatch := func() error {
		var err error
		tx, err = db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		codeStmt, err = tx.PrepareContext(ctx, `INSERT INTO codes(id, eppocode, type, creation, modification) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare code insert: %w", err)
		}
		nameStmt, err = tx.PrepareContext(ctx, `INSERT INTO names(id, code_id, eppocode, fullname, lang, langcountry, authority, ispreferred, isactive, creation, modification) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare name insert: %w", err)
		}
		return nil
	}

	commitBatch := func() error {
		if tx == nil {
			return nil
		}
		codeStmt.Close()
		nameStmt.Close()
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		tx = nil
		inBatch = 0
		return nil
	}

	if err := beginBatch(); err != nil {
		discard(db, dbPath)
		return "", err
	}

	onCode := func(c rawCode) error {
		if !allow[c.Type] || !c.IsActive {
			return nil
		}
		codeID := nextCodeID
		nextCodeID++
		if _, err := codeStmt.ExecContext(ctx, codeID, c.EppoCode, c.Type, c.Creation, c.Modification); err != nil {
			return fmt.Errorf("insert code %s: %w", c.EppoCode, err)
		}
		codeCount++

		for _, n := range c.Names {
			nameID := nextNameID
			nextNameID++
			if _, err := nameStmt.ExecContext(ctx, nameID, codeID, c.EppoCode, n.FullName, n.Lang, n.LangCountry, n.Authority, n.IsPreferred, n.IsActive, n.Creation, n.Modification); err != nil {
				return fmt.Errorf("insert name %s/%s: %w", c.EppoCode, n.Lang, err)
			}
			nameCount++
		}

		inBatch++
		if inBatch >= eppoCodeBatchSize {
			if err := commitBatch(); err != nil {
				return err
			}
			return beginBatch()
		}
		return nil
	}

	dateexport, version, err := streamEPPOXML(f, onCode)
	if err != nil {
		discard(db, dbPath)
		return "", fmt.Errorf("parse %s: %w", rawPath, err)
	}
	if err := commitBatch(); err != nil {
		discard(db, dbPath)
		return "", err
	}

	if err := indexEPPOFullText(ctx, db); err != nil {
		discard(db, dbPath)
		return "", fmt.Errorf("build full-text index: %w", err)
	}

	meta := map[string]string{
		"dateexport": dateexport,
		"version":    version,
		"builtAt":    nowISO(now),
		"types":      joinAllow(allowTypes),
		"codes":      fmt.Sprint(codeCount),
		"names":      fmt.Sprint(nameCount),
	}
	if err := writeMeta(ctx, db, meta); err != nil {
		discard(db, dbPath)
		return "", fmt.Errorf("write meta: %w", err)
	}

	if err := db.Close(); err != nil {
		_ = os.Remove(dbPath)
		return "", fmt.Errorf("close build: %w", err)
	}

	logger.Info().Str("path", dbPath).Int("codes", codeCount).Int("names", nameCount).Msg("build complete")
	return dbPath, nil
}

// indexEPPOFullText scans every active name and populates names_fts with
// its diacritic-folded text, per the index-time half of the fold used by
// Store.Search at query time.
func indexEPPOFullText(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT id, eppocode, lang, fullname FROM names WHERE isactive = 1`)
	if err != nil {
		return err
	}
	defer rows.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO names_fts(fullname_norm, eppocode, lang, name_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}

	var n int
	for rows.Next() {
		var (
			id       int64
			eppocode string
			lang     string
			fullname string
		)
		if err := rows.Scan(&id, &eppocode, &lang, &fullname); err != nil {
			stmt.Close()
			tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, foldtext.Fold(fullname), eppocode, lang, id); err != nil {
			stmt.Close()
			tx.Rollback()
			return err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		stmt.Close()
		tx.Rollback()
		return err
	}
	stmt.Close()
	return tx.Commit()
}

func writeMeta(ctx context.Context, db *sql.DB, meta map[string]string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO meta(key, value) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	for k, v := range meta {
		if _, err := stmt.ExecContext(ctx, k, v); err != nil {
			stmt.Close()
			tx.Rollback()
			return err
		}
	}
	stmt.Close()
	return tx.Commit()
}

func joinAllow(types []string) string {
	out := ""
	for i, t := range types {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}
