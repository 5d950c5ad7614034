// Package cache implements an exact-match memoization cache for LLM
// responses. Entries are keyed by a deterministic hash of the request
// identity (model, parameters, prompts, iteration), so repeating a request
// returns the recorded output instead of a fresh provider call.
package cache

import (
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/promptmemo/promptmemo/pkg/models"
)

// Cache is a keyed collection of entries. All methods are safe for
// concurrent use.
//
// A cache runs in one of two write modes. In immediate mode (the default)
// Store and AddEntries make entries visible to Fetch right away. In deferred
// mode writes accumulate in a pending buffer and only land when a batch
// started with BeginBatch commits, so that stores made during a larger
// operation count only if that operation completes.
type Cache struct {
	mu       sync.Mutex
	data     map[string]*Entry
	newKeys  map[string]struct{}
	pending  map[string]*Entry
	deferred bool
	batches  int
	warned   bool
	service  string

	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithDeferredWrites puts the cache in deferred write mode: stores are
// buffered until a batch commits.
func WithDeferredWrites() Option {
	return func(c *Cache) { c.deferred = true }
}

// WithService sets the provider name stamped on entries created by Store.
func WithService(name string) Option {
	return func(c *Cache) { c.service = name }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		data:    make(map[string]*Entry),
		newKeys: make(map[string]struct{}),
		pending: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromEntries creates a cache pre-populated with the given entries, keyed
// under their recomputed keys. Loaded entries do not count as new entries.
func FromEntries(entries []*Entry, opts ...Option) *Cache {
	c := New(opts...)
	for _, e := range entries {
		c.data[e.Key()] = e
	}
	return c
}

// Fetch looks up the recorded output for a request. A miss is a normal
// outcome, reported by ok=false with empty output and a nil entry.
func (c *Cache) Fetch(req Request) (output string, entry *Entry, ok bool) {
	c.mu.Lock()
	e, found := c.data[req.Key()]
	c.mu.Unlock()
	if !found {
		c.misses.Add(1)
		return "", nil, false
	}
	c.hits.Add(1)
	return e.Output, e, true
}

// Get returns the entry stored under key, if any.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	return e, ok
}

// Store records a response for a request and returns the derived key. The
// response is JSON-serialized into the entry's output. In deferred mode the
// entry is buffered until the enclosing batch commits.
func (c *Cache) Store(req Request, response any) (string, error) {
	e, err := NewEntry(req, response)
	if err != nil {
		return "", err
	}
	e.Service = c.service
	return c.StoreEntry(e), nil
}

// StoreEntry inserts a fully built entry under its recomputed key and
// returns that key. Callers that need to set Service or Validated construct
// the entry themselves and insert it here.
func (c *Cache) StoreEntry(e *Entry) string {
	key := e.Key()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insert(key, e)
	return key
}

// AddEntries bulk-imports entries (for example from a remote sync payload),
// keying each under its own recomputed key. With writeNow=false the entries
// join the same pending buffer as deferred stores and commit with the next
// batch.
func (c *Cache) AddEntries(entries []*Entry, writeNow bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		key := e.Key()
		if writeNow {
			c.data[key] = e
			c.newKeys[key] = struct{}{}
			continue
		}
		c.bufferLocked(key, e)
	}
}

// insert applies the cache's write mode. Callers hold mu.
func (c *Cache) insert(key string, e *Entry) {
	if c.deferred {
		c.bufferLocked(key, e)
		return
	}
	c.data[key] = e
	c.newKeys[key] = struct{}{}
}

func (c *Cache) bufferLocked(key string, e *Entry) {
	if c.batches == 0 && !c.warned {
		log.Printf("cache: deferred write outside a batch; entry %s is buffered until the next commit", key)
		c.warned = true
	}
	c.pending[key] = e
}

// CommitPending flushes the pending buffer into the cache outside of any
// batch. It exists so deferred-mode callers can make buffered writes durable
// without a batch scope.
func (c *Cache) CommitPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commitLocked()
}

func (c *Cache) commitLocked() {
	for key, e := range c.pending {
		c.data[key] = e
		c.newKeys[key] = struct{}{}
	}
	c.pending = make(map[string]*Entry)
}

// Len returns the number of committed entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Keys returns the committed keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns the committed entries ordered by key.
func (c *Cache) Entries() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]*Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, c.data[k])
	}
	return entries
}

// Subset returns a new cache containing only the entries whose key appears
// in keys. Unknown keys are ignored: subset extraction is routinely driven
// by a caller's observed key list, which may name entries no longer present.
func (c *Cache) Subset(keys []string) *Cache {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := New()
	for _, k := range keys {
		if e, ok := c.data[k]; ok {
			out.data[k] = e
		}
	}
	return out
}

// Merge returns a new cache holding the union of both caches' entries.
// When both sides hold an entry for the same key the receiver's entry wins;
// colliding identity means colliding request, so in practice the outputs
// already match.
func (c *Cache) Merge(other *Cache) *Cache {
	out := New()
	for _, e := range other.Entries() {
		out.data[e.Key()] = e
	}
	for _, e := range c.Entries() {
		out.data[e.Key()] = e
	}
	return out
}

// NewEntries returns a cache view of only the entries added during this
// process session, as opposed to entries present from initial load. It is
// how a long-running process persists its increment instead of rewriting
// the whole store.
func (c *Cache) NewEntries() *Cache {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := New()
	for k := range c.newKeys {
		if e, ok := c.data[k]; ok {
			out.data[k] = e
		}
	}
	return out
}

// Equal reports whether both caches hold the same keys with equal entries
// (entry equality ignores timestamps).
func (c *Cache) Equal(other *Cache) bool {
	a := c.Entries()
	b := other.Entries()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key() != b[i].Key() || !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Stats reports entry count and hit/miss counters for this cache instance.
func (c *Cache) Stats() (models.CacheStats, error) {
	return models.CacheStats{
		Entries: int64(c.Len()),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}
