package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrodata/refdata/pkg/build"
	"github.com/agrodata/refdata/pkg/types"
)

func buildEUFixture(t *testing.T, records []map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	raw := filepath.Join(dir, "data.json")
	body, err := json.Marshal(records)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(raw, body, 0o644))

	dbPath, err := build.EUBuild(context.Background(), dir, raw, time.Now())
	require.NoError(t, err)
	return dbPath
}

func TestEUStoreGetSubstanceAndByCas(t *testing.T) {
	dbPath := buildEUFixture(t, []map[string]any{
		{"substance_id": float64(1), "substance_name": "Example Acid", "as_cas_number": "1072957-71-1"},
	})
	s, err := OpenEUStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	sub, err := s.GetSubstance(1)
	require.NoError(t, err)
	require.Equal(t, "Example Acid", sub.SubstanceName)

	sub, err = s.GetByCas("1072957-71-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), sub.SubstanceID)

	_, err = s.GetByCas("nonsense")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestEUStoreCategoryWidening(t *testing.T) {
	dbPath := buildEUFixture(t, []map[string]any{
		{"substance_id": float64(1), "substance_name": "A", "substance_category": "HB"},
		{"substance_id": float64(2), "substance_name": "B", "substance_category": "OT"},
		{"substance_id": float64(3), "substance_name": "C", "substance_category": "IN"},
	})
	s, err := OpenEUStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	res, err := s.SearchSubstances("*", "", "HB", true, 0, 0)
	require.NoError(t, err)
	names := namesOf(res)
	require.ElementsMatch(t, []string{"A", "B"}, names)

	res, err = s.SearchSubstances("*", "", "HB", false, 0, 0)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"A"}, namesOf(res))
}

func namesOf(res *types.SubstanceSearchResult) []string {
	out := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		out[i] = h.Substance.SubstanceName
	}
	return out
}
