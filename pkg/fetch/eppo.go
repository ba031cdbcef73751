package fetch

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// EPPOConfig carries everything EPPOFetch needs to reach the upstream
// dataset-listing and download endpoints.
type EPPOConfig struct {
	APIURL string
	APIKey string
	Dir    string
}

// EPPOFetch retrieves the dataset descriptor list, selects the "XML Full"
// descriptor (or the first descriptor whose stringified values contain
// "xmlfull", case-insensitively), downloads its ZIP, and extracts the
// first .xml entry to cfg.Dir. It returns the extracted file's path.
func EPPOFetch(ctx context.Context, client *http.Client, cfg EPPOConfig) (string, error) {
	descriptors, err := fetchDatasetDescriptors(ctx, client, cfg.APIURL, cfg.APIKey)
	if err != nil {
		return "", fmt.Errorf("list datasets: %w", err)
	}

	desc, err := selectEPPODescriptor(descriptors)
	if err != nil {
		return "", err
	}

	url, ok := desc["url"].(string)
	if !ok || url == "" {
		return "", fmt.Errorf("dataset descriptor missing url field")
	}

	zipPath := filepath.Join(cfg.Dir, "fullcodes.zip")
	if err := downloadTo(ctx, client, url, cfg.APIKey, zipPath); err != nil {
		_ = os.Remove(zipPath)
		return "", fmt.Errorf("download dataset: %w", err)
	}

	xmlPath, err := extractFirstXML(zipPath, cfg.Dir)
	if err != nil {
		_ = os.Remove(zipPath)
		return "", fmt.Errorf("extract dataset: %w", err)
	}

	_ = os.Remove(zipPath)
	return xmlPath, nil
}

func fetchDatasetDescriptors(ctx context.Context, client *http.Client, apiURL, apiKey string) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Token "+apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var descriptors []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&descriptors); err != nil {
		return nil, fmt.Errorf("decode dataset list: %w", err)
	}
	return descriptors, nil
}

// selectEPPODescriptor prefers the descriptor labelled exactly "XML
// Full"; failing that, the first descriptor whose stringified values
// contain "xmlfull" case-insensitively. No further tie-break is applied
// when more than one descriptor matches; the first one the upstream
// returned wins.
func selectEPPODescriptor(descriptors []map[string]any) (map[string]any, error) {
	for _, d := range descriptors {
		if s, ok := d["name"].(string); ok && s == "XML Full" {
			return d, nil
		}
	}
	for _, d := range descriptors {
		for _, v := range d {
			if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), "xmlfull") {
				return d, nil
			}
		}
	}
	return nil, fmt.Errorf("no XML Full dataset descriptor found")
}

func downloadTo(ctx context.Context, client *http.Client, url, apiKey, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Token "+apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, resp.Body)
	return err
}

func extractFirstXML(zipPath, dir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	for _, f := range r.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".xml") {
			continue
		}
		dest := filepath.Join(dir, filepath.Base(f.Name))
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		out, err := os.Create(dest)
		if err != nil {
			rc.Close()
			return "", err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return "", copyErr
		}
		return dest, nil
	}
	return "", fmt.Errorf("zip contains no .xml entry")
}

// NewHTTPClient returns the plain HTTP client used by every Fetcher: no
// retries, no imposed timeout beyond the context the caller supplies.
func NewHTTPClient() *http.Client {
	return &http.Client{}
}
