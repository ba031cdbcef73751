package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEUFetchWritesBodyVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"substance_id": 1}]`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := EUFetch(context.Background(), srv.Client(), EUConfig{URL: srv.URL, Dir: dir})
	require.NoError(t, err)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `[{"substance_id": 1}]`, string(body))
}

func TestEUFetchPropagatesNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := EUFetch(context.Background(), srv.Client(), EUConfig{URL: srv.URL, Dir: dir})
	require.Error(t, err)
}
