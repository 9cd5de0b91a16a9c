package history

import (
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/roman-kulish/marine-echogram/internal/ping"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newPing(seq int, value float32) *ping.Ping {
	return ping.NewFloat32(baseTime.Add(time.Duration(seq)*time.Second), 1500, 750, 0, []float32{value})
}

func timestamps(h *History) []time.Time {
	var ts []time.Time
	for t := range h.All() {
		ts = append(ts, t)
	}
	return ts
}

func TestHistory_Ordering(t *testing.T) {
	h, err := New(10)
	if err != nil {
		t.Fatalf("Failed to create history: %v", err)
	}

	for _, seq := range []int{5, 1, 3, 9, 2} {
		h.Insert(newPing(seq, 0))
	}

	got := timestamps(h)
	if !slices.IsSortedFunc(got, time.Time.Compare) {
		t.Errorf("Expected ascending timestamps, got %v", got)
	}
	if h.Len() != 5 {
		t.Errorf("Expected 5 pings, got %d", h.Len())
	}

	oldest, _ := h.Oldest()
	newest, _ := h.Newest()
	if !oldest.Timestamp().Equal(baseTime.Add(time.Second)) {
		t.Errorf("Unexpected oldest ping: %v", oldest.Timestamp())
	}
	if !newest.Timestamp().Equal(baseTime.Add(9 * time.Second)) {
		t.Errorf("Unexpected newest ping: %v", newest.Timestamp())
	}
}

func TestHistory_OverwriteOnEqualTimestamp(t *testing.T) {
	h, _ := New(3)
	h.Insert(newPing(1, -10))
	h.Insert(newPing(2, -10))

	if evicted := h.Insert(newPing(1, -42)); len(evicted) != 0 {
		t.Errorf("Overwrite must not evict, evicted %d", len(evicted))
	}
	if h.Len() != 2 {
		t.Errorf("Expected 2 pings after overwrite, got %d", h.Len())
	}

	p, ok := h.Get(baseTime.Add(time.Second))
	if !ok {
		t.Fatal("Expected overwritten ping to be present")
	}
	if v := p.SampleAt(0); v != -42 {
		t.Errorf("Expected overwritten value -42, got %v", v)
	}
}

func TestHistory_EvictsOldestByTimestamp(t *testing.T) {
	const capacity = 2048

	h, _ := New(capacity)
	for seq := 0; seq < capacity+2; seq++ {
		h.Insert(newPing(seq, 0))
	}

	if h.Len() != capacity {
		t.Fatalf("Expected %d pings, got %d", capacity, h.Len())
	}
	for _, seq := range []int{0, 1} {
		if _, ok := h.Get(baseTime.Add(time.Duration(seq) * time.Second)); ok {
			t.Errorf("Ping %d should have been evicted", seq)
		}
	}
	if _, ok := h.Get(baseTime.Add(2 * time.Second)); !ok {
		t.Error("Ping 2 should be retained")
	}
}

func TestHistory_LateOldPingIsEvictedImmediately(t *testing.T) {
	h, _ := New(3)
	for seq := 10; seq < 13; seq++ {
		h.Insert(newPing(seq, 0))
	}

	late := newPing(1, 0)
	evicted := h.Insert(late)
	if len(evicted) != 1 || evicted[0] != late {
		t.Errorf("Expected the late ping to be evicted, got %d evictions", len(evicted))
	}
	if _, ok := h.Get(baseTime.Add(time.Second)); ok {
		t.Error("Older-than-everything ping should be the one evicted")
	}
}

func TestHistory_RetainsMostRecentKeys(t *testing.T) {
	const capacity = 16

	rng := rand.New(rand.NewPCG(1, 2))
	h, _ := New(capacity)
	for i := 0; i < 500; i++ {
		h.Insert(newPing(rng.IntN(200), 0))

		if h.Len() > capacity {
			t.Fatalf("History grew past capacity: %d", h.Len())
		}
	}

	// keys may be re-inserted after eviction, so compare against a reference replay
	want := replay(capacity, rand.New(rand.NewPCG(1, 2)))
	got := timestamps(h)
	if !slices.EqualFunc(got, want, time.Time.Equal) {
		t.Errorf("Retained set mismatch:\n got %v\nwant %v", got, want)
	}
}

// replay is a naive reference model: a set of keys trimmed by removing the
// minimum while over capacity.
func replay(capacity int, rng *rand.Rand) []time.Time {
	set := make(map[int]struct{})
	for i := 0; i < 500; i++ {
		set[rng.IntN(200)] = struct{}{}
		for len(set) > capacity {
			smallest := -1
			for k := range set {
				if smallest == -1 || k < smallest {
					smallest = k
				}
			}
			delete(set, smallest)
		}
	}

	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	ts := make([]time.Time, len(keys))
	for i, k := range keys {
		ts[i] = baseTime.Add(time.Duration(k) * time.Second)
	}
	return ts
}

func TestHistory_SetCapacity(t *testing.T) {
	h, _ := New(10)
	for seq := 0; seq < 10; seq++ {
		h.Insert(newPing(seq, 0))
	}

	evicted, err := h.SetCapacity(4)
	if err != nil {
		t.Fatalf("SetCapacity: %v", err)
	}
	if evicted != 6 || h.Len() != 4 {
		t.Errorf("Expected 6 evicted and 4 retained, got %d and %d", evicted, h.Len())
	}
	if oldest, _ := h.Oldest(); !oldest.Timestamp().Equal(baseTime.Add(6 * time.Second)) {
		t.Errorf("Unexpected oldest ping after shrink: %v", oldest.Timestamp())
	}

	if _, err = h.SetCapacity(0); err == nil {
		t.Error("Expected error for zero capacity")
	}
}

func TestHistory_ClearAndRestartableIteration(t *testing.T) {
	h, _ := New(5)
	for seq := 0; seq < 3; seq++ {
		h.Insert(newPing(seq, 0))
	}

	first := timestamps(h)
	second := timestamps(h)
	if !slices.EqualFunc(first, second, time.Time.Equal) {
		t.Error("Iteration should be restartable and stable")
	}

	// early break must be honoured
	n := 0
	for range h.All() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("Expected early break after 1 item, got %d", n)
	}

	h.Clear()
	if h.Len() != 0 {
		t.Errorf("Expected empty history, got %d", h.Len())
	}
	if _, ok := h.Oldest(); ok {
		t.Error("Oldest on empty history should report false")
	}
	if len(timestamps(h)) != 0 {
		t.Error("Iteration over empty history should yield nothing")
	}
}

func TestHistory_EdgeCases(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Error("Expected error for zero capacity")
	}
	if _, err := New(-1); err == nil {
		t.Error("Expected error for negative capacity")
	}

	h, _ := New(1)
	if evicted := h.Insert(nil); len(evicted) != 0 || h.Len() != 0 {
		t.Error("Inserting nil should be ignored")
	}
	if _, ok := h.Remove(baseTime); ok {
		t.Error("Removing from an empty history should report false")
	}
}

func TestHistory_RemoveUndoesInsert(t *testing.T) {
	h, _ := New(3)
	for seq := 0; seq < 3; seq++ {
		h.Insert(newPing(seq, 0))
	}
	before := timestamps(h)

	p := newPing(7, 0)
	evicted := h.Insert(p)
	if len(evicted) != 1 || !evicted[0].Timestamp().Equal(baseTime) {
		t.Fatalf("Expected ping 0 to be evicted, got %d evictions", len(evicted))
	}

	removed, ok := h.Remove(p.Timestamp())
	if !ok || removed != p {
		t.Fatal("Expected the inserted ping to be removed")
	}
	for _, e := range evicted {
		if got := h.Insert(e); len(got) != 0 {
			t.Errorf("Restoring an evicted ping must not evict, evicted %d", len(got))
		}
	}

	if got := timestamps(h); !slices.EqualFunc(got, before, time.Time.Equal) {
		t.Errorf("Expected history restored to %v, got %v", before, got)
	}
}
