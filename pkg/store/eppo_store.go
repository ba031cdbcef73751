package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agrodata/refdata/pkg/foldtext"
	"github.com/agrodata/refdata/pkg/types"
)

// EPPOStore is a read-only handle onto one built EPPO database file.
type EPPOStore struct {
	db   *sql.DB
	path string
	meta types.DatasetMeta
}

// OpenEPPOStore opens path read-only and loads its meta table. A sentinel
// query against meta confirms the file is a genuine, complete build
// before it is handed back to the caller.
func OpenEPPOStore(path string) (*EPPOStore, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	meta, err := loadMeta(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sentinel query on %s: %w", path, err)
	}

	return &EPPOStore{db: db, path: path, meta: meta}, nil
}

func (s *EPPOStore) Path() string            { return s.path }
func (s *EPPOStore) Meta() types.DatasetMeta { return s.meta }

func (s *EPPOStore) Close() error { return s.db.Close() }

// Stats returns counts used by the health/stats surface.
func (s *EPPOStore) Stats() (codes, names, namesActive int, err error) {
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM codes`).Scan(&codes); err != nil {
		return
	}
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM names`).Scan(&names); err != nil {
		return
	}
	err = s.db.QueryRow(`SELECT COUNT(*) FROM names WHERE isactive = 1`).Scan(&namesActive)
	return
}

// GetCode looks up one code by its (case-insensitive) eppocode. If lang is
// non-empty, Names is filtered to that language; Preferred is always the
// code's preferred active name regardless of the lang filter.
func (s *EPPOStore) GetCode(eppocode, lang string) (*types.Code, error) {
	eppocode = strings.ToUpper(strings.TrimSpace(eppocode))

	var c types.Code
	c.EppoCode = eppocode
	row := s.db.QueryRow(`SELECT id, type, creation, modification FROM codes WHERE eppocode = ?`, eppocode)
	var creation, modification sql.NullString
	if err := row.Scan(&c.ID, &c.Type, &creation, &modification); err != nil {
		if err == sql.ErrNoRows {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	c.Creation = parseTimePtr(creation)
	c.Modification = parseTimePtr(modification)

	query := `SELECT id, code_id, eppocode, fullname, lang, langcountry, authority, ispreferred, isactive, creation, modification
		FROM names WHERE code_id = ? AND isactive = 1`
	args := []any{c.ID}
	if lang != "" {
		query += ` AND lang = ?`
		args = append(args, lang)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		n, err := scanName(rows)
		if err != nil {
			return nil, err
		}
		c.Names = append(c.Names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if pref, err := s.preferredFor(eppocode); err == nil {
		c.Preferred = pref
	} else if err != types.ErrNotFound {
		return nil, err
	}
	return &c, nil
}

// GetName resolves the preferred name for eppocode under the fallback
// chain: lang+country, then lang with no country, then any lang row.
func (s *EPPOStore) GetName(eppocode, lang, country string) (*types.Name, error) {
	eppocode = strings.ToUpper(strings.TrimSpace(eppocode))
	if lang == "" {
		return nil, types.ErrBadRequest
	}
	if country != "" {
		country = strings.ToUpper(country)
		if n, err := s.queryOneName(eppocode, lang, &country); err == nil {
			return n, nil
		} else if err != types.ErrNotFound {
			return nil, err
		}
	}
	if n, err := s.queryOneNameNullCountry(eppocode, lang); err == nil {
		return n, nil
	} else if err != types.ErrNotFound {
		return nil, err
	}
	if n, err := s.queryOneName(eppocode, lang, nil); err == nil {
		return n, nil
	} else if err != types.ErrNotFound {
		return nil, err
	}
	return nil, types.ErrNotFound
}

func (s *EPPOStore) queryOneName(eppocode, lang string, country *string) (*types.Name, error) {
	query := `SELECT id, code_id, eppocode, fullname, lang, langcountry, authority, ispreferred, isactive, creation, modification
		FROM names WHERE eppocode = ? AND lang = ? AND isactive = 1`
	args := []any{eppocode, lang}
	if country != nil {
		query += ` AND langcountry = ?`
		args = append(args, *country)
	}
	query += ` ORDER BY ispreferred DESC LIMIT 1`
	row := s.db.QueryRow(query, args...)
	return scanNameRow(row)
}

func (s *EPPOStore) queryOneNameNullCountry(eppocode, lang string) (*types.Name, error) {
	query := `SELECT id, code_id, eppocode, fullname, lang, langcountry, authority, ispreferred, isactive, creation, modification
		FROM names WHERE eppocode = ? AND lang = ? AND langcountry IS NULL AND isactive = 1
		ORDER BY ispreferred DESC LIMIT 1`
	row := s.db.QueryRow(query, eppocode, lang)
	return scanNameRow(row)
}

const eppoSearchDefaultLimit = 100

// Search runs a diacritic-folded prefix match against names_fts, joins
// back to names/codes for metadata, and paginates. Duplicate
// (eppocode, fullname, lang) triples within a page are suppressed.
func (s *EPPOStore) Search(q, lang, country string, limit, offset int) (*types.SearchResult, error) {
	if limit <= 0 {
		limit = eppoSearchDefaultLimit
	}
	folded := foldtext.FoldPrefix(q)
	if folded == "" {
		return nil, types.ErrBadRequest
	}

	query := `SELECT n.eppocode, n.fullname, n.lang, c.type, n.ispreferred, fts.rank
		FROM names_fts fts
		JOIN names n ON n.id = fts.name_id
		JOIN codes c ON c.eppocode = n.eppocode
		WHERE names_fts MATCH ?`
	args := []any{folded + "*"}
	if lang != "" {
		query += ` AND n.lang = ?`
		args = append(args, lang)
	}
	if country != "" {
		query += ` AND n.langcountry = ?`
		args = append(args, strings.ToUpper(country))
	}
	query += ` ORDER BY fts.rank LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var hits []types.SearchHit
	for rows.Next() {
		var h types.SearchHit
		var isPreferred bool
		if err := rows.Scan(&h.EppoCode, &h.FullName, &h.Lang, &h.Type, &isPreferred, &h.Score); err != nil {
			return nil, err
		}
		key := h.EppoCode + "\x00" + h.FullName + "\x00" + h.Lang
		if seen[key] {
			continue
		}
		seen[key] = true

		if pref, err := s.preferredFor(h.EppoCode); err == nil {
			h.Preferred = pref
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	countQuery := `SELECT COUNT(DISTINCT n.eppocode || char(0) || n.fullname || char(0) || n.lang)
		FROM names_fts fts JOIN names n ON n.id = fts.name_id WHERE names_fts MATCH ?`
	countArgs := []any{folded + "*"}
	if lang != "" {
		countQuery += ` AND n.lang = ?`
		countArgs = append(countArgs, lang)
	}
	if country != "" {
		countQuery += ` AND n.langcountry = ?`
		countArgs = append(countArgs, strings.ToUpper(country))
	}
	var total int
	if err := s.db.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, err
	}

	return &types.SearchResult{Hits: hits, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *EPPOStore) preferredFor(eppocode string) (*types.Name, error) {
	row := s.db.QueryRow(`SELECT id, code_id, eppocode, fullname, lang, langcountry, authority, ispreferred, isactive, creation, modification
		FROM names WHERE eppocode = ? AND ispreferred = 1 AND isactive = 1 LIMIT 1`, eppocode)
	return scanNameRow(row)
}

func scanName(rows *sql.Rows) (types.Name, error) {
	var n types.Name
	var langcountry, authority, creation, modification sql.NullString
	if err := rows.Scan(&n.ID, &n.CodeID, &n.EppoCode, &n.FullName, &n.Lang, &langcountry, &authority, &n.IsPreferred, &n.IsActive, &creation, &modification); err != nil {
		return n, err
	}
	if langcountry.Valid {
		n.LangCountry = &langcountry.String
	}
	if authority.Valid {
		n.Authority = &authority.String
	}
	n.Creation = parseTimePtr(creation)
	n.Modification = parseTimePtr(modification)
	return n, nil
}

func scanNameRow(row *sql.Row) (*types.Name, error) {
	var n types.Name
	var langcountry, authority, creation, modification sql.NullString
	if err := row.Scan(&n.ID, &n.CodeID, &n.EppoCode, &n.FullName, &n.Lang, &langcountry, &authority, &n.IsPreferred, &n.IsActive, &creation, &modification); err != nil {
		if err == sql.ErrNoRows {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	if langcountry.Valid {
		n.LangCountry = &langcountry.String
	}
	if authority.Valid {
		n.Authority = &authority.String
	}
	n.Creation = parseTimePtr(creation)
	n.Modification = parseTimePtr(modification)
	return &n, nil
}
