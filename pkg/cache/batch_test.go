package cache

import "testing"

func TestImmediateWriteVisibleAtOnce(t *testing.T) {
	c := New()
	mustStore(t, c, exampleRequest(), "hi")
	if _, _, ok := c.Fetch(exampleRequest()); !ok {
		t.Error("immediate mode: store must be visible right away")
	}
}

func TestDeferredStoreInvisibleUntilCommit(t *testing.T) {
	c := New(WithDeferredWrites())

	b := c.BeginBatch()
	mustStore(t, c, exampleRequest(), "hi")

	if _, _, ok := c.Fetch(exampleRequest()); ok {
		t.Fatal("deferred store must not be visible before commit")
	}
	if c.Len() != 0 {
		t.Fatalf("len = %d before commit, want 0", c.Len())
	}

	b.Commit()

	if _, _, ok := c.Fetch(exampleRequest()); !ok {
		t.Error("deferred store must be visible after commit")
	}
	if c.NewEntries().Len() != 1 {
		t.Error("committed entries must count as new")
	}
}

func TestDiscardDropsBufferedStores(t *testing.T) {
	c := New(WithDeferredWrites())

	b := c.BeginBatch()
	mustStore(t, c, exampleRequest(), "hi")
	b.Discard()

	if c.Len() != 0 {
		t.Errorf("len = %d after discard, want 0", c.Len())
	}

	// A later batch must not resurrect discarded entries.
	b2 := c.BeginBatch()
	b2.Commit()
	if c.Len() != 0 {
		t.Error("discarded entries leaked into a later commit")
	}
}

func TestDiscardAfterCommitIsNoop(t *testing.T) {
	c := New(WithDeferredWrites())

	b := c.BeginBatch()
	mustStore(t, c, exampleRequest(), "hi")
	b.Commit()
	b.Discard()

	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}

func TestDeferredStoreOutsideBatchBuffers(t *testing.T) {
	c := New(WithDeferredWrites())

	// No batch open: the store is buffered (with a logged warning), not
	// silently dropped, and CommitPending makes it durable.
	mustStore(t, c, exampleRequest(), "hi")
	if c.Len() != 0 {
		t.Fatal("store outside batch must not land directly in deferred mode")
	}

	c.CommitPending()
	if _, _, ok := c.Fetch(exampleRequest()); !ok {
		t.Error("CommitPending must flush buffered stores")
	}
}

func TestDeferredAddEntries(t *testing.T) {
	e, err := NewEntry(exampleRequest(), "hi")
	if err != nil {
		t.Fatal(err)
	}

	c := New()
	b := c.BeginBatch()
	c.AddEntries([]*Entry{e}, false)
	if c.Len() != 0 {
		t.Fatal("writeNow=false must buffer until commit")
	}
	b.Commit()
	if c.Len() != 1 {
		t.Error("buffered AddEntries must commit with the batch")
	}
}
