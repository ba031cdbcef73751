package build

// eppoSchema creates the tables, indexes, and full-text virtual table for
// an EPPO database file, per the DDL fixed in the service's schema
// contract. A single transaction-less Exec is fine here: the file is
// freshly created and empty.
const eppoSchema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE codes (
	id           INTEGER PRIMARY KEY,
	eppocode     TEXT UNIQUE NOT NULL,
	type         TEXT NOT NULL,
	creation     TEXT,
	modification TEXT
);

CREATE TABLE names (
	id           INTEGER PRIMARY KEY,
	code_id      INTEGER NOT NULL,
	eppocode     TEXT NOT NULL,
	fullname     TEXT NOT NULL,
	lang         TEXT NOT NULL,
	langcountry  TEXT,
	authority    TEXT,
	ispreferred  INTEGER NOT NULL,
	isactive     INTEGER NOT NULL,
	creation     TEXT,
	modification TEXT
);

CREATE INDEX idx_codes_eppo        ON codes(eppocode);
CREATE INDEX idx_names_eppo        ON names(eppocode);
CREATE INDEX idx_names_code_id     ON names(code_id);
CREATE INDEX idx_names_lang        ON names(eppocode, lang);
CREATE INDEX idx_names_lang_country ON names(eppocode, lang, langcountry);

CREATE VIRTUAL TABLE names_fts USING fts5(
	fullname_norm,
	eppocode UNINDEXED,
	lang UNINDEXED,
	name_id UNINDEXED
);
`

// euSchema creates the tables, indexes, and full-text virtual table for a
// EU active-substance database file. The ~40 further descriptive upstream
// fields this service treats as opaque pass-through are carried in
// extra_json rather than as 40 hand-named columns; every field the
// service actually reasons about (name, CAS, status, category, the
// tox_value_arfd/tox_source_arfd pair, remark) gets its own column.
const euSchema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE substances (
	substance_id          INTEGER PRIMARY KEY,
	substance_name        TEXT,
	as_cas_number         TEXT,
	as_cas_number_rescued TEXT,
	substance_status      TEXT,
	substance_category    TEXT,
	approval_date         TEXT,
	expiry_date           TEXT,
	tox_value_arfd        TEXT,
	tox_source_arfd       TEXT,
	remark                TEXT,
	extra_json            TEXT
);

CREATE INDEX idx_substances_name     ON substances(substance_name);
CREATE INDEX idx_substances_cas      ON substances(as_cas_number);
CREATE INDEX idx_substances_status   ON substances(substance_status);
CREATE INDEX idx_substances_category ON substances(substance_category);

CREATE VIRTUAL TABLE substances_fts USING fts5(
	substance_name_norm,
	as_cas_number UNINDEXED,
	substance_category UNINDEXED,
	substance_id UNINDEXED
);
`

// pragmas disables journaling and synchronous writes for the duration of
// a build: the file is write-once and any crash mid-write discards it, so
// durability guarantees the journal buys are pure overhead here.
const pragmas = `
PRAGMA journal_mode = OFF;
PRAGMA synchronous = OFF;
PRAGMA locking_mode = EXCLUSIVE;
`
