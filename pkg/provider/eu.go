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

// EUConfig is the Initialise(config) input for the EU provider.
type EUConfig struct {
	Dir string
	URL string
}

// EUCoordinator owns the EU provider's lifecycle. Its shape mirrors
// EPPOCoordinator exactly; see that type's comments for the reasoning
// behind keeping the two concrete rather than sharing a generic base.
type EUCoordinator struct {
	cfg    EUConfig
	client *http.Client
	logger zerolog.Logger

	mu        sync.RWMutex
	live      *euLiveStore
	fetching  bool
	building  bool
	lastFetch *time.Time
	rawPath   string

	stopCh chan struct{}
}

// euLiveStore pairs a published Store with a count of queries currently
// reading from it; see eppoLiveStore for the drain rationale.
type euLiveStore struct {
	store *store.EUStore
	wg    sync.WaitGroup
}

func (l *euLiveStore) release() { l.wg.Done() }

func NewEUCoordinator(cfg EUConfig) *EUCoordinator {
	return &EUCoordinator{
		cfg:    cfg,
		client: fetch.NewHTTPClient(),
		logger: log.WithProvider("eu"),
		stopCh: make(chan struct{}),
	}
}

func (c *EUCoordinator) Initialise(ctx context.Context) error {
	if err := os.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if latest, err := findLatestDB(c.cfg.Dir, "eu"); err == nil && latest != "" {
		if s, err := store.OpenEUStore(latest); err == nil {
			c.publish(s)
			c.logger.Info().Str("path", latest).Msg("adopted existing database")
			c.scheduleWeekly()
			return nil
		}
		c.logger.Warn().Str("path", latest).Msg("existing database failed sentinel query, rebuilding")
	}

	rawPath := filepath.Join(c.cfg.Dir, "data.json")
	if _, err := os.Stat(rawPath); err == nil {
		c.rawPath = rawPath
		if err := c.buildFrom(ctx, rawPath); err != nil {
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

func (c *EUCoordinator) Fetch(ctx context.Context) error {
	c.mu.Lock()
	if c.fetching {
		c.mu.Unlock()
		return types.ErrAlreadyInProgress
	}
	c.fetching = true
	c.mu.Unlock()
	metrics.ProviderFetching.WithLabelValues("eu").Set(1)
	defer func() {
		c.mu.Lock()
		c.fetching = false
		c.mu.Unlock()
		metrics.ProviderFetching.WithLabelValues("eu").Set(0)
	}()

	l := lock.New(c.cfg.Dir, "fetch")
	acquired, err := l.Acquire()
	if err != nil {
		return fmt.Errorf("acquire fetch lock: %w", err)
	}
	if !acquired {
		metrics.LockAcquireTotal.WithLabelValues("eu", "fetch", "denied").Inc()
		return types.ErrLockedByPeer
	}
	metrics.LockAcquireTotal.WithLabelValues("eu", "fetch", "acquired").Inc()
	defer l.Release()

	timer := metrics.NewTimer()
	rawPath, err := fetch.EUFetch(ctx, c.client, fetch.EUConfig{URL: c.cfg.URL, Dir: c.cfg.Dir})
	if err != nil {
		timer.ObserveDurationVec(metrics.FetchDuration, "eu", "error")
		return fmt.Errorf("fetch: %w", err)
	}
	timer.ObserveDurationVec(metrics.FetchDuration, "eu", "ok")

	now := time.Now()
	c.mu.Lock()
	c.rawPath = rawPath
	c.lastFetch = &now
	c.mu.Unlock()

	return c.Rebuild(ctx)
}

func (c *EUCoordinator) Rebuild(ctx context.Context) error {
	c.mu.Lock()
	if c.building {
		c.mu.Unlock()
		return types.ErrAlreadyInProgress
	}
	rawPath := c.rawPath
	c.building = true
	c.mu.Unlock()
	metrics.ProviderBuilding.WithLabelValues("eu").Set(1)
	defer func() {
		c.mu.Lock()
		c.building = false
		c.mu.Unlock()
		metrics.ProviderBuilding.WithLabelValues("eu").Set(0)
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
		metrics.LockAcquireTotal.WithLabelValues("eu", "rebuild", "denied").Inc()
		return types.ErrLockedByPeer
	}
	metrics.LockAcquireTotal.WithLabelValues("eu", "rebuild", "acquired").Inc()
	defer l.Release()

	return c.buildFrom(ctx, rawPath)
}

func (c *EUCoordinator) buildFrom(ctx context.Context, rawPath string) error {
	timer := metrics.NewTimer()
	dbPath, err := build.EUBuild(ctx, c.cfg.Dir, rawPath, time.Now())
	if err != nil {
		timer.ObserveDurationVec(metrics.BuildDuration, "eu", "error")
		return fmt.Errorf("build: %w", err)
	}
	timer.ObserveDurationVec(metrics.BuildDuration, "eu", "ok")

	s, err := store.OpenEUStore(dbPath)
	if err != nil {
		return fmt.Errorf("open built store: %w", err)
	}
	c.swap(s)
	return nil
}

func (c *EUCoordinator) swap(s *store.EUStore) {
	next := &euLiveStore{store: s}
	c.mu.Lock()
	prev := c.live
	c.live = next
	c.mu.Unlock()
	metrics.SwapsTotal.WithLabelValues("eu").Inc()
	metrics.ProviderReady.WithLabelValues("eu").Set(1)

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
		gcSuperseded(c.cfg.Dir, "eu", keep, c.logger, os.Remove)
	}()
}

func (c *EUCoordinator) publish(s *store.EUStore) {
	c.mu.Lock()
	c.live = &euLiveStore{store: s}
	c.mu.Unlock()
	metrics.ProviderReady.WithLabelValues("eu").Set(1)
}

func (c *EUCoordinator) scheduleWeekly() {
	go c.weeklyLoop()
}

func (c *EUCoordinator) weeklyLoop() {
	for {
		next := nextWeekly(time.Now(), time.Sunday, 3)
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

func (c *EUCoordinator) Stop() {
	close(c.stopCh)
}

func (c *EUCoordinator) State() types.ProviderState {
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

func (c *EUCoordinator) GetSubstance(id int64) (*types.Substance, error) {
	ls, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	defer ls.release()
	return ls.store.GetSubstance(id)
}

func (c *EUCoordinator) GetByCas(cas string) (*types.Substance, error) {
	ls, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	defer ls.release()
	return ls.store.GetByCas(cas)
}

func (c *EUCoordinator) SearchSubstances(q, status, category string, includeOther bool, limit, offset int) (*types.SubstanceSearchResult, error) {
	ls, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	defer ls.release()
	return ls.store.SearchSubstances(q, status, category, includeOther, limit, offset)
}

func (c *EUCoordinator) Stats() (int, error) {
	ls, err := c.snapshot()
	if err != nil {
		return 0, err
	}
	defer ls.release()
	return ls.store.Stats()
}

// snapshot returns the live Store with its reference count already
// incremented; callers must defer ls.release() before returning.
func (c *EUCoordinator) snapshot() (*euLiveStore, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.live == nil {
		return nil, types.ErrNotReady
	}
	c.live.wg.Add(1)
	return c.live, nil
}
