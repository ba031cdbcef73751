package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildTestZip(t *testing.T, files map[string]string) []byte {
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

func TestEPPOFetchSelectsXMLFullAndExtracts(t *testing.T) {
	zipBytes := buildTestZip(t, map[string]string{
		"readme.txt": "ignore me",
		"codes.xml":  "<codes></codes>",
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/datasets", func(w http.ResponseWriter, r *http.Request) {
		descriptors := []map[string]any{
			{"name": "CSV Full", "url": "IGNORED"},
			{"name": "XML Full", "url": "http://example.invalid/zip"},
		}
		json.NewEncoder(w).Encode(descriptors)
	})
	mux.HandleFunc("/zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	cfg := EPPOConfig{APIURL: srv.URL + "/datasets", APIKey: "key", Dir: dir}

	client := srv.Client()
	descriptors, err := fetchDatasetDescriptors(context.Background(), client, cfg.APIURL, cfg.APIKey)
	require.NoError(t, err)
	desc, err := selectEPPODescriptor(descriptors)
	require.NoError(t, err)
	require.Equal(t, "XML Full", desc["name"])

	require.NoError(t, downloadTo(context.Background(), client, srv.URL+"/zip", "", filepath.Join(dir, "fullcodes.zip")))
	xmlPath, err := extractFirstXML(filepath.Join(dir, "fullcodes.zip"), dir)
	require.NoError(t, err)

	body, err := os.ReadFile(xmlPath)
	require.NoError(t, err)
	require.Equal(t, "<codes></codes>", string(body))
}

func TestSelectEPPODescriptorFallsBackToXmlfullSubstring(t *testing.T) {
	descriptors := []map[string]any{
		{"name": "CSV Full"},
		{"name": "Other", "description": "contains XmlFull data"},
	}
	desc, err := selectEPPODescriptor(descriptors)
	require.NoError(t, err)
	require.Equal(t, "Other", desc["name"])
}

func TestSelectEPPODescriptorNoMatch(t *testing.T) {
	_, err := selectEPPODescriptor([]map[string]any{{"name": "CSV Full"}})
	require.Error(t, err)
}
