package cache

// Batch scopes a group of deferred writes. Entries stored while the batch is
// open accumulate in the cache's pending buffer; Commit flushes them into the
// cache atomically and Discard drops them. Exactly one of the two must be
// called; the usual shape is
//
//	b := c.BeginBatch()
//	defer b.Discard()
//	... stores ...
//	b.Commit()
type Batch struct {
	c    *Cache
	done bool
}

// BeginBatch opens a write batch. In immediate mode the batch is inert:
// stores land directly and Commit has nothing to flush.
func (c *Cache) BeginBatch() *Batch {
	c.mu.Lock()
	c.batches++
	c.mu.Unlock()
	return &Batch{c: c}
}

// Commit flushes every buffered entry into the cache and closes the batch.
func (b *Batch) Commit() {
	b.finish(true)
}

// Discard drops the buffered entries and closes the batch. Calling Discard
// after Commit is a no-op, which makes it safe to defer.
func (b *Batch) Discard() {
	b.finish(false)
}

func (b *Batch) finish(commit bool) {
	if b.done {
		return
	}
	b.done = true
	b.c.mu.Lock()
	defer b.c.mu.Unlock()
	b.c.batches--
	if commit {
		b.c.commitLocked()
	} else {
		b.c.pending = make(map[string]*Entry)
	}
}
