package ring

import "testing"

func TestBuffer_PushAndValues(t *testing.T) {
	b := New[int](3)

	if b.Len() != 0 || b.Cap() != 3 {
		t.Fatalf("Fresh buffer: len=%d cap=%d", b.Len(), b.Cap())
	}
	if _, ok := b.Last(); ok {
		t.Error("Last on empty buffer must report false")
	}

	b.Push(1)
	b.Push(2)
	if got := b.Values(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Values: %v", got)
	}

	b.Push(3)
	b.Push(4) // evicts 1
	if b.Len() != 3 {
		t.Errorf("Len after overflow: %d", b.Len())
	}
	if got := b.Values(); len(got) != 3 || got[0] != 2 || got[2] != 4 {
		t.Errorf("Values after eviction: %v", got)
	}
	if last, ok := b.Last(); !ok || last != 4 {
		t.Errorf("Last: %v %v", last, ok)
	}
}

func TestBuffer_WrapsManyTimes(t *testing.T) {
	b := New[int](4)
	for i := 0; i < 100; i++ {
		b.Push(i)
	}
	want := []int{96, 97, 98, 99}
	got := b.Values()
	if len(got) != len(want) {
		t.Fatalf("Len: %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Values[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBuffer_CapacityOne(t *testing.T) {
	b := New[string](1)
	b.Push("a")
	b.Push("b")
	if last, _ := b.Last(); last != "b" {
		t.Errorf("Last: %s", last)
	}
	if b.Len() != 1 {
		t.Errorf("Len: %d", b.Len())
	}
}
