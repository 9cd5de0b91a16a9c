package history

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/roman-kulish/marine-echogram/internal/ping"
)

// DefaultCapacity is the number of pings kept when no capacity is configured.
const DefaultCapacity = 2048

// History stores pings ordered by timestamp and bounded by a capacity. When
// the capacity is exceeded the ping with the smallest timestamp is evicted
// first, regardless of how recently it was inserted or read.
//
// History is not safe for concurrent use: it is owned by the display thread.
type History struct {
	capacity int
	pings    []*ping.Ping // ascending by timestamp
}

// New creates an empty history that holds up to capacity pings.
//
// Returns an error if capacity is not positive.
func New(capacity int) (*History, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid history capacity: %d", capacity)
	}
	return &History{
		capacity: capacity,
		pings:    make([]*ping.Ping, 0, min(capacity, DefaultCapacity)),
	}, nil
}

// Insert adds p to the history in timestamp order. A ping whose timestamp is
// already present replaces the stored one without changing the count.
// Returns the pings evicted to stay within capacity, oldest first. p itself
// is among them when it is older than every retained ping of a full history.
//
// Locating the slot is a binary search. Live feeds deliver pings in time
// order, so the common case appends at the tail and evicts from the head.
func (h *History) Insert(p *ping.Ping) []*ping.Ping {
	if p == nil {
		return nil
	}

	i, found := h.search(p.Timestamp())
	if found {
		h.pings[i] = p
		return nil
	}

	h.pings = slices.Insert(h.pings, i, p)
	return h.evict()
}

// Remove deletes the ping stored under the timestamp and returns it.
func (h *History) Remove(ts time.Time) (*ping.Ping, bool) {
	i, found := h.search(ts)
	if !found {
		return nil, false
	}
	p := h.pings[i]
	h.pings = slices.Delete(h.pings, i, i+1)
	return p, true
}

// SetCapacity changes the capacity, evicting the oldest pings if the
// history no longer fits. Returns the number of evicted pings.
func (h *History) SetCapacity(capacity int) (int, error) {
	if capacity <= 0 {
		return 0, fmt.Errorf("invalid history capacity: %d", capacity)
	}
	h.capacity = capacity
	return len(h.evict()), nil
}

// evict drops pings from the head until the history fits its capacity.
func (h *History) evict() []*ping.Ping {
	excess := len(h.pings) - h.capacity
	if excess <= 0 {
		return nil
	}

	evicted := slices.Clone(h.pings[:excess])

	// the dead prefix is released the next time append reallocates
	clear(h.pings[:excess])
	h.pings = h.pings[excess:]
	return evicted
}

func (h *History) search(ts time.Time) (int, bool) {
	return slices.BinarySearchFunc(h.pings, ts, func(p *ping.Ping, t time.Time) int {
		return p.Timestamp().Compare(t)
	})
}

// Get returns the ping stored under the timestamp.
func (h *History) Get(ts time.Time) (*ping.Ping, bool) {
	if i, found := h.search(ts); found {
		return h.pings[i], true
	}
	return nil, false
}

// Len returns the number of retained pings.
func (h *History) Len() int {
	return len(h.pings)
}

// Cap returns the configured capacity.
func (h *History) Cap() int {
	return h.capacity
}

// Clear removes all pings.
func (h *History) Clear() {
	clear(h.pings)
	h.pings = h.pings[:0]
}

// Oldest returns the ping with the smallest timestamp.
func (h *History) Oldest() (*ping.Ping, bool) {
	if len(h.pings) == 0 {
		return nil, false
	}
	return h.pings[0], true
}

// Newest returns the ping with the largest timestamp.
func (h *History) Newest() (*ping.Ping, bool) {
	if len(h.pings) == 0 {
		return nil, false
	}
	return h.pings[len(h.pings)-1], true
}

// All returns an iterator over the retained pings from oldest to newest. The
// sequence can be ranged over any number of times; the history must not be
// modified while a range is in progress.
func (h *History) All() iter.Seq2[time.Time, *ping.Ping] {
	return func(yield func(time.Time, *ping.Ping) bool) {
		for _, p := range h.pings {
			if !yield(p.Timestamp(), p) {
				return
			}
		}
	}
}
