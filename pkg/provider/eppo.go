package provider

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agrodata/refdata/pkg/build"
	"github.com/agrodata/refdata/pkg/fetch"
	"github.com/agrodata/refdata/pkg/lock"
	"github.com/agrodata/refdata/pkg/log"
	"github.com/agrodata/refdata/pkg/metrics"
	"github.com/agrodata/refdata/pkg/store"
	"github.com/agrodata/refdata/pkg/types"
)

// EPPOConfig is the Initialise(config) input for the EPPO provider.
type EPPOConfig struct {
	Dir        string
	APIURL     string
	APIKey     string
	AllowTypes []string
}

// EPPOCoordinator owns the EPPO provider's lifecycle: state machine,
// weekly refresh, cross-node lock acquisition, and the Swap & GC that
// follows every successful Build.
type EPPOCoordinator struct {
	cfg    EPPOConfig
	client *http.Client
	logger zerolog.Logger

	mu        sync.RWMutex
	live      *eppoLiveStore
	fetching  bool
	building  bool
	lastFetch *time.Time
	rawPath   string

	stopCh chan struct{}
}

// eppoLiveStore pairs a published Store with a count of queries
// currently reading from it. swap() replaces the coordinator's pointer
// immediately so new queries always see the fresh Store, but the
// superseded Store's Close is deferred until every query that had
// already obtained it through snapshot() releases its reference, so no
// in-flight query ever sees a closed *sql.DB.
type eppoLiveStore struct {
	store *store.EPPOStore
	wg    sync.WaitGroup
}

func (l *eppoLiveStore) release() { l.wg.Done() }

// NewEPPOCoordinator constructs a coordinator for the EPPO provider.
// Initialise must be called before Fetch/Rebuild/Query are meaningful.
func NewEPPOCoordinator(cfg EPPOConfig) *EPPOCoordinator {
	return &EPPOCoordinator{
		cfg:    cfg,
		client: fetch.NewHTTPClient(),
		logger: log.WithProvider("eppo"),
		stopCh: make(chan struct{}),
	}
}

// Initialise adopts the latest on-disk database if one opens cleanly,
// otherwise builds from an existing raw artifact, otherwise fetches.
// Any failure at the build-from-raw or fetch step is logged and
// Initialise still returns nil, leaving the provider running with no
// live Store (State().Ready is false): queries answer ErrNotReady
// instead of panicking or blocking startup.
func (c *EPPOCoordinator) Initialise(ctx context.Context) error {
	if err := os.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if latest, err := findLatestDB(c.cfg.Dir, "eppo"); err == nil && latest != "" {
		if s, err := store.OpenEPPOStore(latest); err == nil {
			c.publish(s)
			c.logger.Info().Str("path", latest).Msg("adopted existing database")
			c.scheduleWeekly()
			return nil
		}
		c.logger.Warn().Str("path", latest).Msg("existing database failed sentinel query, rebuilding")
	}

	rawPath := c.findRawArtifact()
	if rawPath != "" {
		c.rawPath = rawPath
		if err := c.buildFrom(ctx, rawPath, c.cfg.AllowTypes); err != nil {
			c.logger.Error().Err(err).Msg("initial build from existing artifact failed")
		}
		c.scheduleWeekly()
		return nil
	}

	if err := c.Fetch(ctx); err != nil {
		c.logger.Error().Err(err).Msg("initial fetch failed")
	}
	c.scheduleWeekly()
	return nil
}

func (c *EPPOCoordinator) findRawArtifact() string {
	matches, _ := filepath.Glob(filepath.Join(c.cfg.Dir, "*.xml"))
	if len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// Fetch is idempotent under concurrent callers and fails fast with a
// sentinel error if a fetch is already running locally or the cross-node
// lock is held by a peer. On success it drives a Build.
func (c *EPPOCoordinator) Fetch(ctx context.Context) error {
	c.mu.Lock()
	if c.fetching {
		c.mu.Unlock()
		return types.ErrAlreadyInProgress
	}
	c.fetching = true
	c.mu.Unlock()
	metrics.ProviderFetching.WithLabelValues("eppo").Set(1)
	defer func() {
		c.mu.Lock()
		c.fetching = false
		c.mu.Unlock()
		metrics.ProviderFetching.WithLabelValues("eppo").Set(0)
	}()

	l := lock.New(c.cfg.Dir, "fetch")
	acquired, err := l.Acquire()
	if err != nil {
		return fmt.Errorf("acquire fetch lock: %w", err)
	}
	if !acquired {
		metrics.LockAcquireTotal.WithLabelValues("eppo", "fetch", "denied").Inc()
		return types.ErrLockedByPeer
	}
	metrics.LockAcquireTotal.WithLabelValues("eppo", "fetch", "acquired").Inc()
	defer l.Release()

	timer := metrics.NewTimer()
	xmlPath, err := fetch.EPPOFetch(ctx, c.client, fetch.EPPOConfig{
		APIURL: c.cfg.APIURL,
		APIKey: c.cfg.APIKey,
		Dir:    c.cfg.Dir,
	})
	if err != nil {
		timer.ObserveDurationVec(metrics.FetchDuration, "eppo", "error")
		return fmt.Errorf("fetch: %w", err)
	}
	timer.ObserveDurationVec(metrics.FetchDuration, "eppo", "ok")

	now := time.Now()
	c.mu.Lock()
	c.rawPath = xmlPath
	c.lastFetch = &now
	c.mu.Unlock()

	return c.Rebuild(ctx, nil)
}

// Rebuild builds from the existing raw artifact. allowTypes, if non-nil,
// replaces the allow-list used for this and future builds.
func (c *EPPOCoordinator) Rebuild(ctx context.Context, allowTypes []string) error {
	c.mu.Lock()
	if c.building {
		c.mu.Unlock()
		return types.ErrAlreadyInProgress
	}
	rawPath := c.rawPath
	if allowTypes != nil {
		c.cfg.AllowTypes = allowTypes
	}
	allow := c.cfg.AllowTypes
	c.building = true
	c.mu.Unlock()
	metrics.ProviderBuilding.WithLabelValues("eppo").Set(1)
	defer func() {
		c.mu.Lock()
		c.building = false
		c.mu.Unlock()
		metrics.ProviderBuilding.WithLabelValues("eppo").Set(0)
	}()

	if rawPath == "" {
		return fmt.Errorf("no raw artifact to build from")
	}

	l := lock.New(c.cfg.Dir, "rebuild")
	acquired, err := l.Acquire()
	if err != nil {
		return fmt.Errorf("acquire rebuild lock: %w", err)
	}
	if !acquired {
		metrics.LockAcquireTotal.WithLabelValues("eppo", "rebuild", "denied").Inc()
		return types.ErrLockedByPeer
	}
	metrics.LockAcquireTotal.WithLabelValues("eppo", "rebuild", "acquired").Inc()
	defer l.Release()

	return c.buildFrom(ctx, rawPath, allow)
}

func (c *EPPOCoordinator) buildFrom(ctx context.Context, rawPath string, allowTypes []string) error {
	timer := metrics.NewTimer()
	dbPath, err := build.EPPOBuild(ctx, c.cfg.Dir, rawPath, allowTypes, time.Now())
	if err != nil {
		timer.ObserveDurationVec(metrics.BuildDuration, "eppo", "error")
		return fmt.Errorf("build: %w", err)
	}
	timer.ObserveDurationVec(metrics.BuildDuration, "eppo", "ok")

	s, err := store.OpenEPPOStore(dbPath)
	if err != nil {
		return fmt.Errorf("open built store: %w", err)
	}
	c.swap(s)
	return nil
}

// swap publishes s as the live Store, drains and closes the previous
// one, and schedules a deferred GC pass.
func (c *EPPOCoordinator) swap(s *store.EPPOStore) {
	next := &eppoLiveStore{store: s}
	c.mu.Lock()
	prev := c.live
	c.live = next
	c.mu.Unlock()
	metrics.SwapsTotal.WithLabelValues("eppo").Inc()
	metrics.ProviderReady.WithLabelValues("eppo").Set(1)

	if prev != nil {
		go func() {
			prev.wg.Wait()
			_ = prev.store.Close()
		}()
	}

	go func() {
		time.Sleep(1 * time.Second)
		c.mu.RLock()
		keep := c.live.store.Path()
		c.mu.RUnlock()
		gcSuperseded(c.cfg.Dir, "eppo", keep, c.logger, os.Remove)
	}()
}

func (c *EPPOCoordinator) publish(s *store.EPPOStore) {
	c.mu.Lock()
	c.live = &eppoLiveStore{store: s}
	c.mu.Unlock()
	metrics.ProviderReady.WithLabelValues("eppo").Set(1)
}

func (c *EPPOCoordinator) scheduleWeekly() {
	go c.weeklyLoop()
}

func (c *EPPOCoordinator) weeklyLoop() {
	for {
		next := nextWeekly(time.Now(), time.Sunday, 2)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			if err := c.Fetch(context.Background()); err != nil {
				c.logger.Warn().Err(err).Msg("scheduled weekly refresh did not complete")
			}
		case <-c.stopCh:
			timer.Stop()
			return
		}
	}
}

// Stop ends the weekly refresh loop. It does not close the live Store.
func (c *EPPOCoordinator) Stop() {
	close(c.stopCh)
}

// State returns a process-local snapshot for the health/stats surface.
func (c *EPPOCoordinator) State() types.ProviderState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := types.ProviderState{
		Ready:     c.live != nil,
		Fetching:  c.fetching,
		Building:  c.building,
		RawPath:   c.rawPath,
		LastFetch: c.lastFetch,
	}
	if c.live != nil {
		st.StorePath = c.live.store.Path()
		st.Meta = c.live.store.Meta()
	}
	return st
}

// GetCode, GetName, and Search delegate to the live Store; they fail
// with ErrNotReady if none has been published yet.
func (c *EPPOCoordinator) GetCode(eppocode, lang string) (*types.Code, error) {
	ls, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	defer ls.release()
	return ls.store.GetCode(eppocode, lang)
}

func (c *EPPOCoordinator) GetName(eppocode, lang, country string) (*types.Name, error) {
	ls, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	defer ls.release()
	return ls.store.GetName(eppocode, lang, country)
}

func (c *EPPOCoordinator) Search(q, lang, country string, limit, offset int) (*types.SearchResult, error) {
	ls, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	defer ls.release()
	return ls.store.Search(q, lang, country, limit, offset)
}

func (c *EPPOCoordinator) Stats() (codes, names, namesActive int, err error) {
	ls, err := c.snapshot()
	if err != nil {
		return 0, 0, 0, err
	}
	defer ls.release()
	return ls.store.Stats()
}

// snapshot returns the live Store with its reference count already
// incremented; callers must defer ls.release() before returning.
func (c *EPPOCoordinator) snapshot() (*eppoLiveStore, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.live == nil {
		return nil, types.ErrNotReady
	}
	c.live.wg.Add(1)
	return c.live, nil
}
