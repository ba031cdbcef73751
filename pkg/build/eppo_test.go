package build

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

const sampleEPPOXML = `<codes dateexport="2026-01-15" version="5.9">
	<code type="PFL" isactive="true" creation="2010-01-01" modification="2020-01-01">
		<eppocode>abcdg</eppocode>
		<name ispreferred="true" isactive="true">
			<fullname>Abies alba</fullname>
			<lang>la</lang>
		</name>
		<name ispreferred="false" isactive="true">
			<fullname>silver fir</fullname>
			<lang>en</lang>
			<langcountry>gb</langcountry>
			<authority>common</authority>
		</name>
	</code>
	<code type="PST" isactive="true">
		<eppocode>xyzzz</eppocode>
		<name ispreferred="true" isactive="true">
			<fullname>Xestia species</fullname>
			<lang>la</lang>
		</name>
	</code>
	<code type="PFL" isactive="false">
		<eppocode>deadg</eppocode>
		<name ispreferred="true" isactive="true">
			<fullname>Inactive plant</fullname>
			<lang>la</lang>
		</name>
	</code>
</codes>`

func writeRaw(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEPPOBuildAdmitsOnlyAllowedActiveTypes(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "codes.xml", sampleEPPOXML)

	dbPath, err := EPPOBuild(context.Background(), dir, raw, []string{"PFL"}, time.Unix(0, 1700000000000*int64(time.Millisecond)))
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM codes`).Scan(&count))
	require.Equal(t, 1, count, "only the active PFL code should be admitted")

	var eppocode string
	require.NoError(t, db.QueryRow(`SELECT eppocode FROM codes`).Scan(&eppocode))
	require.Equal(t, "ABCDG", eppocode)

	var nameCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM names`).Scan(&nameCount))
	require.Equal(t, 2, nameCount)
}

func TestEPPOBuildPopulatesFullTextIndex(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "codes.xml", sampleEPPOXML)

	dbPath, err := EPPOBuild(context.Background(), dir, raw, []string{"PFL", "PST"}, time.Now())
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM names_fts WHERE fullname_norm MATCH 'silver'`).Scan(&n))
	require.Equal(t, 1, n)
}

func TestEPPOBuildWritesMeta(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "codes.xml", sampleEPPOXML)

	dbPath, err := EPPOBuild(context.Background(), dir, raw, []string{"PFL"}, time.Now())
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var dateexport string
	require.NoError(t, db.QueryRow(`SELECT value FROM meta WHERE key = 'dateexport'`).Scan(&dateexport))
	require.Equal(t, "2026-01-15", dateexport)
}

func TestEPPOBuildCleansUpOnParseError(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "codes.xml", "<codes dateexport=\"x\"><code type=\"PFL\" isactive=\"true\"><eppocode>a</eppocode>")

	dbPath, err := EPPOBuild(context.Background(), dir, raw, []string{"PFL"}, time.Now())
	require.Error(t, err)

	_, statErr := os.Stat(dbPath)
	require.True(t, os.IsNotExist(statErr), "partial build file must not survive a parse error")
}

func TestEPPOBuildRejectsExistingTarget(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, "codes.xml", sampleEPPOXML)

	now := time.Now()
	dbPath := NewDBPath(dir, "eppo", now.UnixMilli())
	require.NoError(t, os.WriteFile(dbPath, []byte("stale"), 0o644))

	_, err := EPPOBuild(context.Background(), dir, raw, []string{"PFL"}, now)
	require.Error(t, err)
}
