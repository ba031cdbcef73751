package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrodata/refdata/pkg/provider"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

const fixtureXML = `<codes dateexport="2026-01-01" version="1.0">
	<code type="PFL" isactive="true">
		<eppocode>tomat</eppocode>
		<name ispreferred="true" isactive="true"><fullname>Tomato</fullname><lang>en</lang></name>
	</code>
</codes>`

func newReadyEPPOCoordinator(t *testing.T) *provider.EPPOCoordinator {
	t.Helper()
	zipBytes := buildZip(t, map[string]string{"codes.xml": fixtureXML})
	zipMux := http.NewServeMux()
	zipMux.HandleFunc("/zip", func(w http.ResponseWriter, r *http.Request) { w.Write(zipBytes) })
	zipSrv := httptest.NewServer(zipMux)
	t.Cleanup(zipSrv.Close)

	datasetMux := http.NewServeMux()
	datasetMux.HandleFunc("/datasets", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name": "XML Full", "url": "` + zipSrv.URL + `/zip"}]`))
	})
	datasetSrv := httptest.NewServer(datasetMux)
	t.Cleanup(datasetSrv.Close)

	c := provider.NewEPPOCoordinator(provider.EPPOConfig{
		Dir:        t.TempDir(),
		APIURL:     datasetSrv.URL + "/datasets",
		AllowTypes: []string{"PFL"},
	})
	t.Cleanup(c.Stop)
	require.NoError(t, c.Initialise(context.Background()))
	return c
}

func newReadyEUCoordinator(t *testing.T, body string) *provider.EUCoordinator {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c := provider.NewEUCoordinator(provider.EUConfig{Dir: t.TempDir(), URL: srv.URL})
	t.Cleanup(c.Stop)
	require.NoError(t, c.Initialise(context.Background()))
	return c
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthReports200EvenWhenNotReady(t *testing.T) {
	eppo := provider.NewEPPOCoordinator(provider.EPPOConfig{Dir: t.TempDir(), APIURL: "http://example.invalid"})
	t.Cleanup(eppo.Stop)
	eu := provider.NewEUCoordinator(provider.EUConfig{Dir: t.TempDir(), URL: "http://example.invalid"})
	t.Cleanup(eu.Stop)
	router := NewRouter(eppo, eu)

	req := httptest.NewRequest(http.MethodGet, "/eppo/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, false, body["ok"])
}

func TestQueryReturns503BeforeReady(t *testing.T) {
	eppo := provider.NewEPPOCoordinator(provider.EPPOConfig{Dir: t.TempDir(), APIURL: "http://example.invalid"})
	t.Cleanup(eppo.Stop)
	eu := provider.NewEUCoordinator(provider.EUConfig{Dir: t.TempDir(), URL: "http://example.invalid"})
	t.Cleanup(eu.Stop)
	router := NewRouter(eppo, eu)

	req := httptest.NewRequest(http.MethodGet, "/eppo/code/TOMAT", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEPPOSearchRoundTrip(t *testing.T) {
	eppo := newReadyEPPOCoordinator(t)
	eu := provider.NewEUCoordinator(provider.EUConfig{Dir: t.TempDir()})
	t.Cleanup(eu.Stop)
	router := NewRouter(eppo, eu)

	req := httptest.NewRequest(http.MethodGet, "/eppo/search?q=tom", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	meta := body["_meta"].(map[string]any)
	require.Equal(t, "eppo", meta["provider"])
	hits := body["hits"].([]any)
	require.Len(t, hits, 1)
}

func TestEPPOGetNameBadRequestWithoutLang(t *testing.T) {
	eppo := newReadyEPPOCoordinator(t)
	eu := provider.NewEUCoordinator(provider.EUConfig{Dir: t.TempDir()})
	t.Cleanup(eu.Stop)
	router := NewRouter(eppo, eu)

	req := httptest.NewRequest(http.MethodGet, "/eppo/name/TOMAT", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEUSubstanceAndCasRoundTrip(t *testing.T) {
	eu := newReadyEUCoordinator(t, `[{"substance_id": 1, "substance_name": "Glyphosate", "as_cas_number": "1071-83-6", "substance_category": "HB"}]`)
	eppo := provider.NewEPPOCoordinator(provider.EPPOConfig{Dir: t.TempDir()})
	t.Cleanup(eppo.Stop)
	router := NewRouter(eppo, eu)

	req := httptest.NewRequest(http.MethodGet, "/eu/substance/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	sub := body["substance"].(map[string]any)
	require.Equal(t, "Glyphosate", sub["SubstanceName"])

	req2 := httptest.NewRequest(http.MethodGet, "/eu/cas/1071-83-6", nil)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)

	req3 := httptest.NewRequest(http.MethodGet, "/eu/cas/nonsense", nil)
	rec3 := httptest.NewRecorder()
	router.ServeHTTP(rec3, req3)
	require.Equal(t, http.StatusNotFound, rec3.Code)
}

func TestEUCategoryWideningOverHTTP(t *testing.T) {
	eu := newReadyEUCoordinator(t, `[
		{"substance_id": 1, "substance_name": "A", "substance_category": "HB"},
		{"substance_id": 2, "substance_name": "B", "substance_category": "OT"},
		{"substance_id": 3, "substance_name": "C", "substance_category": "IN"}
	]`)
	eppo := provider.NewEPPOCoordinator(provider.EPPOConfig{Dir: t.TempDir()})
	t.Cleanup(eppo.Stop)
	router := NewRouter(eppo, eu)

	req := httptest.NewRequest(http.MethodGet, "/eu/search?q=*&category=HB", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, float64(2), body["total"])

	req2 := httptest.NewRequest(http.MethodGet, "/eu/search?q=*&category=HB&includeOther=false", nil)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	body2 := decodeBody(t, rec2)
	require.Equal(t, float64(1), body2["total"])
}

func TestForwardedHeaderRejected(t *testing.T) {
	eppo := provider.NewEPPOCoordinator(provider.EPPOConfig{Dir: t.TempDir()})
	t.Cleanup(eppo.Stop)
	eu := provider.NewEUCoordinator(provider.EUConfig{Dir: t.TempDir()})
	t.Cleanup(eu.Stop)
	router := NewRouter(eppo, eu)

	req := httptest.NewRequest(http.MethodGet, "/eppo/health", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFetchReportsLockedByPeerAsOKFalse(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/fetch.lock", []byte(`{}`), 0o644))
	eppo := provider.NewEPPOCoordinator(provider.EPPOConfig{Dir: dir, APIURL: "http://example.invalid"})
	t.Cleanup(eppo.Stop)
	eu := provider.NewEUCoordinator(provider.EUConfig{Dir: t.TempDir()})
	t.Cleanup(eu.Stop)
	router := NewRouter(eppo, eu)

	req := httptest.NewRequest(http.MethodPost, "/eppo/fetch", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, false, body["ok"])
	require.Equal(t, "locked by another node", body["error"])
}
