package ring

import "testing"

func TestBufferFillsBeforeEvicting(t *testing.T) {
	b := New(3)
	if b.Full() {
		t.Fatal("empty buffer reports full")
	}
	for _, v := range []float64{1, 2, 3} {
		if _, evicted := b.Push(v); evicted {
			t.Fatalf("push %v evicted before buffer was full", v)
		}
	}
	if !b.Full() {
		t.Fatal("buffer should be full after 3 pushes into capacity 3")
	}
	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}
}

func TestBufferEvictsOldest(t *testing.T) {
	b := New(3)
	b.Push(1)
	b.Push(2)
	b.Push(3)
	evicted, ok := b.Push(4)
	if !ok || evicted != 1 {
		t.Fatalf("Push(4) evicted=%v ok=%v, want 1 true", evicted, ok)
	}
	if b.Oldest() != 2 {
		t.Fatalf("Oldest() = %v, want 2", b.Oldest())
	}
	if b.Newest() != 4 {
		t.Fatalf("Newest() = %v, want 4", b.Newest())
	}
	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (capacity never exceeded)", b.Len())
	}
}

func TestBufferAtOrdering(t *testing.T) {
	b := New(4)
	for _, v := range []float64{10, 20, 30, 40, 50} {
		b.Push(v)
	}
	want := []float64{20, 30, 40, 50}
	for i, w := range want {
		if got := b.At(i); got != w {
			t.Errorf("At(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestBufferSum(t *testing.T) {
	b := New(3)
	b.Push(1)
	b.Push(2)
	b.Push(3)
	if got := b.Sum(); got != 6 {
		t.Fatalf("Sum() = %v, want 6", got)
	}
	b.Push(4)
	if got := b.Sum(); got != 9 {
		t.Fatalf("Sum() after eviction = %v, want 9", got)
	}
}

func TestNewPanicsOnNonPositiveCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-positive capacity")
		}
	}()
	New(0)
}

func TestAtPanicsOutOfRange(t *testing.T) {
	b := New(2)
	b.Push(1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range index")
		}
	}()
	b.At(5)
}
