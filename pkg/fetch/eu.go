package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// EUConfig carries the upstream URL for the EU active-substance feed.
type EUConfig struct {
	URL string
	Dir string
}

// EUFetch downloads the EU active-substance feed and writes the response
// body verbatim to "<dir>/data.json".
func EUFetch(ctx context.Context, client *http.Client, cfg EUConfig) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	dest := filepath.Join(cfg.Dir, "data.json")
	f, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = os.Remove(dest)
		return "", err
	}
	return dest, nil
}
