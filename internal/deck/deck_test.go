package deck

import "testing"

func TestDrawYieldsEachItemOncePerCycle(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	d := NewWithSeed(items, 42)

	seen := make(map[string]int)
	for i := 0; i < len(items); i++ {
		item, ok := d.Draw()
		if !ok {
			t.Fatalf("draw %d: unexpected empty deck", i)
		}
		seen[item]++
	}

	for _, item := range items {
		if seen[item] != 1 {
			t.Errorf("item %q drawn %d times in one cycle, want 1", item, seen[item])
		}
	}
}

func TestDrawEmptyUniverse(t *testing.T) {
	d := New([]int{})
	for i := 0; i < 3; i++ {
		if _, ok := d.Draw(); ok {
			t.Fatal("draw on empty universe should report empty")
		}
	}
}

func TestExhaustionTriggersReshuffle(t *testing.T) {
	items := []int{1, 2, 3}
	d := NewWithSeed(items, 7)

	for i := 0; i < len(items); i++ {
		if _, ok := d.Draw(); !ok {
			t.Fatal("unexpected empty deck")
		}
	}
	if d.Remaining() != 0 {
		t.Fatalf("expected exhausted pile, %d remaining", d.Remaining())
	}

	item, ok := d.Draw()
	if !ok {
		t.Fatal("draw after exhaustion should reshuffle, not report empty")
	}
	found := false
	for _, v := range items {
		if v == item {
			found = true
		}
	}
	if !found {
		t.Fatalf("reshuffled draw returned %d, not in universe", item)
	}
}

func TestSetItemsReplacesUniverse(t *testing.T) {
	d := NewWithSeed([]int{1, 2, 3}, 1)
	d.SetItems([]int{10, 20})

	if d.Size() != 2 {
		t.Fatalf("expected universe of 2, got %d", d.Size())
	}
	for i := 0; i < 4; i++ {
		item, ok := d.Draw()
		if !ok {
			t.Fatal("unexpected empty deck")
		}
		if item != 10 && item != 20 {
			t.Fatalf("drew %d from stale universe", item)
		}
	}
}
