package task

import "testing"

func TestRunExecutesThunkOnce(t *testing.T) {
	calls := 0
	tk := New()
	tk.SetThunk(func() { calls++ })

	tk.Run()
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if !tk.Empty() {
		t.Fatal("task should be empty after Run")
	}

	// Running again is a no-op: the thunk was cleared by Run.
	tk.Run()
	if calls != 1 {
		t.Fatalf("expected thunk not to run twice, got %d calls", calls)
	}
}

func TestRunOnEmptyTaskIsNoop(t *testing.T) {
	tk := New()
	tk.Run() // must not panic
}

func TestResetClearsEverything(t *testing.T) {
	tk := New()
	tk.SetPriority(5)
	tk.SetLabel("x")
	tk.SetType(Sync)
	tk.SetThunk(func() {})

	tk.Reset()

	if tk.Priority() != 0 || tk.Label() != "" || tk.Type() != Empty || !tk.Empty() {
		t.Fatal("reset did not clear all fields")
	}
}

func TestCopyToMovesThunk(t *testing.T) {
	src := New()
	src.SetPriority(7)
	src.SetLabel("copy-me")
	ran := false
	src.SetThunk(func() { ran = true })

	dest := New()
	src.CopyTo(dest)

	if !src.Empty() {
		t.Fatal("source should no longer hold the thunk after CopyTo")
	}
	if dest.Priority() != 7 || dest.Label() != "copy-me" {
		t.Fatal("dest did not receive copied attributes")
	}
	dest.Run()
	if !ran {
		t.Fatal("dest should have received the movable thunk")
	}
}

func TestCacheGrowsWhenExhausted(t *testing.T) {
	c := NewCache(1)
	if c.Size() != 1 {
		t.Fatalf("expected preallocated size 1, got %d", c.Size())
	}

	first := c.Pop()
	if c.Size() != 0 {
		t.Fatalf("expected size 0 after pop, got %d", c.Size())
	}

	// Cache is exhausted; Pop must still return a usable fresh Task
	// rather than blocking or returning nil.
	second := c.Pop()
	if second == nil {
		t.Fatal("expected a fresh task when cache is exhausted")
	}

	// Pushing both back refills the cache only up to its capacity of 1;
	// the second slot is dropped.
	c.Push(first)
	c.Push(second)
	if c.Size() != 1 {
		t.Fatalf("expected size capped back at capacity 1, got %d", c.Size())
	}
}

func TestCacheRespectsCapacityOnPush(t *testing.T) {
	c := NewCache(1)
	c.Pop()
	c.Push(New())
	c.Push(New()) // over capacity, dropped on the floor

	if c.Size() != 1 {
		t.Fatalf("expected size capped at capacity 1, got %d", c.Size())
	}
}

func TestNonPositiveCapacityNeverPanics(t *testing.T) {
	c := NewCache(0)
	tk := c.Pop()
	c.Push(tk)
	if c.Size() != 0 {
		t.Fatalf("zero-capacity cache should never retain a slot, got size %d", c.Size())
	}
}
