package provider

import (
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/agrodata/refdata/pkg/metrics"
)

// findLatestDB returns the lexicographically greatest "<provider>_*.db"
// path in dir (ties never occur: the suffix is a millisecond timestamp).
// Returns "" if none exist.
func findLatestDB(dir, providerName string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, providerName+"_*.db"))
	if err != nil {
		return "", err
	}
	latest := ""
	for _, m := range matches {
		if m > latest {
			latest = m
		}
	}
	return latest, nil
}

// gcSuperseded deletes every "<provider>_*.db" file in dir except
// keepPath. Files that cannot be unlinked, typically because a peer
// process on the shared filesystem still has them open, are skipped
// silently and retried on the next swap.
func gcSuperseded(dir, providerName, keepPath string, logger zerolog.Logger, remove func(string) error) {
	matches, err := filepath.Glob(filepath.Join(dir, providerName+"_*.db"))
	if err != nil {
		logger.Warn().Err(err).Msg("gc glob failed")
		return
	}
	for _, m := range matches {
		if m == keepPath {
			continue
		}
		if err := remove(m); err != nil {
			metrics.GCSkippedTotal.WithLabelValues(providerName).Inc()
			logger.Debug().Err(err).Str("path", m).Msg("gc skipped file")
			continue
		}
		metrics.GCDeletedTotal.WithLabelValues(providerName).Inc()
		logger.Info().Str("path", m).Msg("gc deleted superseded file")
	}
}
