package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agrodata/refdata/pkg/foldtext"
	"github.com/agrodata/refdata/pkg/types"
)

// casPattern anchors the upstream-documented CAS shape for path-parameter
// validation; Builder uses the unanchored form to rescue a CAS number out
// of free text.
var casPattern = regexp.MustCompile(`^\d{2,7}-\d{2}-\d$`)

// EUStore is a read-only handle onto one built EU active-substance
// database file.
type EUStore struct {
	db   *sql.DB
	path string
	meta types.DatasetMeta
}

func OpenEUStore(path string) (*EUStore, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	meta, err := loadMeta(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sentinel query on %s: %w", path, err)
	}
	return &EUStore{db: db, path: path, meta: meta}, nil
}

func (s *EUStore) Path() string            { return s.path }
func (s *EUStore) Meta() types.DatasetMeta { return s.meta }
func (s *EUStore) Close() error            { return s.db.Close() }

func (s *EUStore) Stats() (substances int, err error) {
	err = s.db.QueryRow(`SELECT COUNT(*) FROM substances`).Scan(&substances)
	return
}

const substanceColumns = `substance_id, substance_name, as_cas_number, as_cas_number_rescued,
	substance_status, substance_category, approval_date, expiry_date,
	tox_value_arfd, tox_source_arfd, remark, extra_json`

// substanceColumnsQualified is substanceColumns with every column
// prefixed "sub.", needed once substances is joined against
// substances_fts, whose column names (as_cas_number, substance_category,
// substance_id) collide with the base table's.
const substanceColumnsQualified = `sub.substance_id, sub.substance_name, sub.as_cas_number, sub.as_cas_number_rescued,
	sub.substance_status, sub.substance_category, sub.approval_date, sub.expiry_date,
	sub.tox_value_arfd, sub.tox_source_arfd, sub.remark, sub.extra_json`

func (s *EUStore) GetSubstance(id int64) (*types.Substance, error) {
	row := s.db.QueryRow(`SELECT `+substanceColumns+` FROM substances WHERE substance_id = ?`, id)
	return scanSubstanceRow(row)
}

// GetByCas matches only the canonical regex; a malformed path segment
// yields not-found without ever reaching the database. The structured
// as_cas_number column is searched first; as_cas_number_rescued is
// consulted only when that lookup misses.
func (s *EUStore) GetByCas(cas string) (*types.Substance, error) {
	if !casPattern.MatchString(cas) {
		return nil, types.ErrNotFound
	}
	row := s.db.QueryRow(`SELECT `+substanceColumns+` FROM substances WHERE as_cas_number = ?`, cas)
	sub, err := scanSubstanceRow(row)
	if err != types.ErrNotFound {
		return sub, err
	}
	row = s.db.QueryRow(`SELECT `+substanceColumns+` FROM substances WHERE as_cas_number_rescued = ?`, cas)
	return scanSubstanceRow(row)
}

const euSearchDefaultLimit = 100

// SearchSubstances runs a diacritic-folded prefix match, with optional
// exact status filter and category-prefix filter. When category is given
// and includeOther is true (the default), substances in the "OT" category
// are always additionally returned.
func (s *EUStore) SearchSubstances(q, status, category string, includeOther bool, limit, offset int) (*types.SubstanceSearchResult, error) {
	if limit <= 0 {
		limit = euSearchDefaultLimit
	}
	folded := foldtext.FoldPrefix(q)
	if folded == "" {
		return nil, types.ErrBadRequest
	}

	// "*" is the wildcard shorthand for "every substance", used to
	// exercise a pure filter with no text match (see the category
	// widening scenario). FTS5 has no such token, so it bypasses the
	// virtual table entirely rather than matching it literally.
	matchAll := folded == "*"

	var (
		selectQuery, countQuery string
		args, countArgs         []any
	)
	if matchAll {
		selectQuery = `SELECT ` + substanceColumnsQualified + `, 0.0 FROM substances sub WHERE 1=1`
		countQuery = `SELECT COUNT(*) FROM substances sub WHERE 1=1`
	} else {
		selectQuery = `SELECT ` + substanceColumnsQualified + `, fts.rank
			FROM substances_fts fts
			JOIN substances sub ON sub.substance_id = fts.substance_id
			WHERE substances_fts MATCH ?`
		countQuery = `SELECT COUNT(*) FROM substances_fts fts JOIN substances sub ON sub.substance_id = fts.substance_id WHERE substances_fts MATCH ?`
		args = append(args, folded+"*")
		countArgs = append(countArgs, folded+"*")
	}

	if status != "" {
		selectQuery += ` AND sub.substance_status = ?`
		countQuery += ` AND sub.substance_status = ?`
		args = append(args, status)
		countArgs = append(countArgs, status)
	}
	if category != "" {
		clause := ` AND sub.substance_category LIKE ?`
		if includeOther {
			clause = ` AND (sub.substance_category LIKE ? OR sub.substance_category LIKE 'OT%')`
		}
		selectQuery += clause
		countQuery += clause
		args = append(args, category+"%")
		countArgs = append(countArgs, category+"%")
	}
	if matchAll {
		selectQuery += ` ORDER BY sub.substance_id`
	} else {
		selectQuery += ` ORDER BY fts.rank`
	}
	selectQuery += ` LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(selectQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []types.SubstanceHit
	for rows.Next() {
		sub, score, err := scanSubstanceWithScore(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, types.SubstanceHit{Substance: *sub, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var total int
	if err := s.db.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, err
	}

	return &types.SubstanceSearchResult{Hits: hits, Total: total, Limit: limit, Offset: offset}, nil
}

func scanSubstanceRow(row *sql.Row) (*types.Substance, error) {
	var sub types.Substance
	var cas, casRescued, status, category, approval, expiry, toxValue, toxSource, remark, extraJSON sql.NullString
	if err := row.Scan(&sub.SubstanceID, &sub.SubstanceName, &cas, &casRescued, &status, &category,
		&approval, &expiry, &toxValue, &toxSource, &remark, &extraJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	fillSubstance(&sub, cas, casRescued, status, category, approval, expiry, toxValue, toxSource, remark, extraJSON)
	return &sub, nil
}

func scanSubstanceWithScore(rows *sql.Rows) (*types.Substance, float64, error) {
	var sub types.Substance
	var cas, casRescued, status, category, approval, expiry, toxValue, toxSource, remark, extraJSON sql.NullString
	var score float64
	if err := rows.Scan(&sub.SubstanceID, &sub.SubstanceName, &cas, &casRescued, &status, &category,
		&approval, &expiry, &toxValue, &toxSource, &remark, &extraJSON, &score); err != nil {
		return nil, 0, err
	}
	fillSubstance(&sub, cas, casRescued, status, category, approval, expiry, toxValue, toxSource, remark, extraJSON)
	return &sub, score, nil
}

func fillSubstance(sub *types.Substance, cas, casRescued, status, category, approval, expiry, toxValue, toxSource, remark, extraJSON sql.NullString) {
	sub.ASCasNumber = nullableString(cas)
	sub.ASCasNumberRescued = nullableString(casRescued)
	sub.SubstanceStatus = status.String
	sub.SubstanceCategory = category.String
	sub.ApprovalDate = nullableString(approval)
	sub.ExpiryDate = nullableString(expiry)
	sub.ToxValueARfD = nullableString(toxValue)
	sub.ToxSourceARfD = nullableString(toxSource)
	sub.Remark = nullableString(remark)
	if extraJSON.Valid && extraJSON.String != "" {
		var extra map[string]any
		if err := json.Unmarshal([]byte(extraJSON.String), &extra); err == nil {
			sub.Extra = extra
		}
	}
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
