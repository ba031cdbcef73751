package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agrodata/refdata/pkg/log"
)

// StaleAfter is the crash-recovery bound: a lock file older than this is
// assumed abandoned by a dead holder and is reclaimable.
const StaleAfter = 30 * time.Minute

// payload is the forensic JSON body written inside a lock file.
type payload struct {
	PID   int       `json:"pid"`
	Host  string    `json:"host"`
	Owner string    `json:"owner"`
	Time  time.Time `json:"time"`
}

// Lock is an advisory, file-presence-based cross-node lock on one
// operation ("fetch" or "rebuild") within a provider's data directory.
type Lock struct {
	path      string
	operation string
	owner     string
	logger    zerolog.Logger
}

// New returns a Lock for the named operation under dir. It does not touch
// the filesystem until Acquire is called.
func New(dir, operation string) *Lock {
	return &Lock{
		path:      filepath.Join(dir, operation+".lock"),
		operation: operation,
		owner:     uuid.NewString(),
		logger:    log.WithOperation(operation),
	}
}

// Path returns the lock file's path.
func (l *Lock) Path() string { return l.path }

// Acquire attempts to claim the lock. It returns (true, nil) on success,
// (false, nil) if another live holder has it, and a non-nil error only on
// an unexpected filesystem failure.
func (l *Lock) Acquire() (bool, error) {
	if info, err := os.Stat(l.path); err == nil {
		if time.Since(info.ModTime()) > StaleAfter {
			l.logger.Warn().Str("path", l.path).Dur("age", time.Since(info.ModTime())).
				Msg("reclaiming stale lock")
			_ = os.Remove(l.path)
		}
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat lock %s: %w", l.path, err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("create lock %s: %w", l.path, err)
	}
	defer f.Close()

	hostname, _ := os.Hostname()
	body, err := json.Marshal(payload{
		PID:   os.Getpid(),
		Host:  hostname,
		Owner: l.owner,
		Time:  time.Now().UTC(),
	})
	if err == nil {
		// Forensic value only: a write failure here must not fail acquisition.
		_, _ = f.Write(body)
	}

	l.logger.Info().Str("path", l.path).Str("owner", l.owner).Msg("lock acquired")
	return true, nil
}

// Release unlinks the lock file. Failure is logged, not returned, since a
// missing lock file on release is not actionable by the caller.
func (l *Lock) Release() {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		l.logger.Warn().Err(err).Str("path", l.path).Msg("failed to release lock")
		return
	}
	l.logger.Info().Str("path", l.path).Msg("lock released")
}

// Touch refreshes the lock file's mtime so a long-running holder is not
// reclaimed as stale mid-operation.
func (l *Lock) Touch() error {
	now := time.Now()
	return os.Chtimes(l.path, now, now)
}
