// Package manager decides which cache a run uses: a caller-provided cache,
// a non-persistent in-memory cache, or the handler's persistent default —
// and coordinates the optional remote cache service around a run.
package manager

import (
	"context"
	"fmt"

	"github.com/promptmemo/promptmemo/pkg/cache"
	"github.com/promptmemo/promptmemo/pkg/config"
	"github.com/promptmemo/promptmemo/pkg/handler"
)

// Remote is the contract of the remote cache service: fetch by key and bulk
// store, over entries keyed identically to the local cache. The wire
// protocol behind it is the service's business.
type Remote interface {
	Fetch(ctx context.Context, keys []string) ([]*cache.Entry, error)
	Store(ctx context.Context, entries []*cache.Entry) error
}

// Manager resolves run caches from configuration.
type Manager struct {
	cfg    *config.Config
	remote Remote
}

// Option configures a Manager.
type Option func(*Manager)

// WithRemote attaches a remote cache client. It is consulted only when the
// config enables remote caching.
func WithRemote(r Remote) Option {
	return func(m *Manager) { m.remote = r }
}

// New creates a Manager.
func New(cfg *config.Config, opts ...Option) *Manager {
	m := &Manager{cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunCache is the cache handed to a run, plus the bookkeeping needed to
// persist and sync it when the run ends.
type RunCache struct {
	*cache.Cache
	mgr        *Manager
	persistent *handler.PersistentCache
}

// Acquire resolves the cache for a run. A non-nil provided cache always
// wins. Otherwise cache.mode selects a non-persistent cache ("memory" or
// "off") or the persistent default ("default").
func (m *Manager) Acquire(provided *cache.Cache) (*RunCache, error) {
	if provided != nil {
		return &RunCache{Cache: provided, mgr: m}, nil
	}

	switch m.cfg.Cache.Mode {
	case "memory", "off":
		// Non-persistent caches always buffer writes, so stores only count
		// when the surrounding operation commits its batch.
		opts := append(m.cacheOptions(), cache.WithDeferredWrites())
		return &RunCache{Cache: cache.New(opts...), mgr: m}, nil
	case "", "default":
		opts := m.cacheOptions()
		if m.cfg.Cache.DeferredWrites {
			opts = append(opts, cache.WithDeferredWrites())
		}
		pc, err := handler.New(m.cfg.DBPath, opts...).GetCache()
		if err != nil {
			return nil, err
		}
		return &RunCache{Cache: pc.Cache, mgr: m, persistent: pc}, nil
	default:
		return nil, fmt.Errorf("unknown cache mode %q", m.cfg.Cache.Mode)
	}
}

func (m *Manager) cacheOptions() []cache.Option {
	var opts []cache.Option
	if m.cfg.Cache.Service != "" {
		opts = append(opts, cache.WithService(m.cfg.Cache.Service))
	}
	return opts
}

// Prefetch pulls entries for the given requests from the remote service
// into the run cache, skipping keys already present locally. It is a no-op
// when remote caching is disabled or no client is attached.
func (rc *RunCache) Prefetch(ctx context.Context, reqs []cache.Request) error {
	if !rc.remoteEnabled() {
		return nil
	}
	var missing []string
	for _, req := range reqs {
		key := req.Key()
		if _, ok := rc.Get(key); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	entries, err := rc.mgr.remote.Fetch(ctx, missing)
	if err != nil {
		return fmt.Errorf("remote prefetch: %w", err)
	}
	rc.AddEntries(entries, true)
	return nil
}

// Release ends the run: session additions are pushed to the remote service
// when enabled, and the persistent store (if any) is flushed and closed.
func (rc *RunCache) Release(ctx context.Context) error {
	if rc.remoteEnabled() {
		added := rc.NewEntries().Entries()
		if len(added) > 0 {
			if err := rc.mgr.remote.Store(ctx, added); err != nil {
				return fmt.Errorf("remote push: %w", err)
			}
		}
	}
	if rc.persistent != nil {
		return rc.persistent.Close()
	}
	return nil
}

func (rc *RunCache) remoteEnabled() bool {
	return rc.mgr != nil && rc.mgr.remote != nil && rc.mgr.cfg.Remote.Enabled
}
