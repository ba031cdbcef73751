package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrodata/refdata/pkg/build"
	"github.com/agrodata/refdata/pkg/types"
)

func buildEPPOFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	raw := filepath.Join(dir, "codes.xml")
	xml := `<codes dateexport="2026-01-01" version="1.0">
		<code type="PFL" isactive="true">
			<eppocode>lypes</eppocode>
			<name ispreferred="false" isactive="true"><fullname>Tomato</fullname><lang>en</lang></name>
			<name ispreferred="false" isactive="true"><fullname>Tomato (US)</fullname><lang>en</lang><langcountry>us</langcountry></name>
			<name ispreferred="true" isactive="true"><fullname>Solanum lycopersicum</fullname><lang>la</lang></name>
		</code>
	</codes>`
	require.NoError(t, os.WriteFile(raw, []byte(xml), 0o644))

	dbPath, err := build.EPPOBuild(context.Background(), dir, raw, []string{"PFL"}, time.Now())
	require.NoError(t, err)
	return dbPath
}

func TestEPPOStoreGetCode(t *testing.T) {
	dbPath := buildEPPOFixture(t)
	s, err := OpenEPPOStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	c, err := s.GetCode("lypes", "")
	require.NoError(t, err)
	require.Equal(t, "LYPES", c.EppoCode)
	require.Len(t, c.Names, 3)
	require.NotNil(t, c.Preferred)
	require.Equal(t, "Solanum lycopersicum", c.Preferred.FullName)
}

func TestEPPOStoreGetCodeNotFound(t *testing.T) {
	dbPath := buildEPPOFixture(t)
	s, err := OpenEPPOStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetCode("ZZZZZ", "")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestEPPOStoreGetNameFallbackChain(t *testing.T) {
	dbPath := buildEPPOFixture(t)
	s, err := OpenEPPOStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.GetName("LYPES", "en", "US")
	require.NoError(t, err)
	require.Equal(t, "Tomato (US)", n.FullName)

	n, err = s.GetName("LYPES", "en", "CA")
	require.NoError(t, err)
	require.Equal(t, "Tomato", n.FullName)

	_, err = s.GetName("LYPES", "de", "")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestEPPOStoreSearchDiacriticFold(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "codes.xml")
	xml := `<codes dateexport="2026-01-01" version="1.0">
		<code type="PFL" isactive="true">
			<eppocode>cafex</eppocode>
			<name ispreferred="true" isactive="true"><fullname>café</fullname><lang>fr</lang></name>
		</code>
	</codes>`
	require.NoError(t, os.WriteFile(raw, []byte(xml), 0o644))
	dbPath, err := build.EPPOBuild(context.Background(), dir, raw, []string{"PFL"}, time.Now())
	require.NoError(t, err)

	s, err := OpenEPPOStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Search("cafe", "", "", 0, 0)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	require.Equal(t, "CAFEX", res.Hits[0].EppoCode)
}
