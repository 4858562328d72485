// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package history

import "fmt"

// CircularHistory is a fixed-capacity FIFO of Entry values. Append overwrites
// the oldest entry once the history is full; FindByOffset walks entries in
// FIFO order to resolve a virtual byte offset.
//
// CircularHistory performs no locking of its own: per the component
// contract, any necessary serialisation is the caller's responsibility. It
// never allocates on the hot path and none of its operations can fail.
type CircularHistory struct {
	entries  []*Entry
	capacity int
	head     int // next insert position
	tail     int // oldest populated position
	full     bool
}

// New creates an empty CircularHistory with the given fixed capacity.
// capacity must be positive.
func New(capacity int) *CircularHistory {
	if capacity <= 0 {
		panic(fmt.Sprintf("history: capacity must be positive, got %d", capacity))
	}
	return &CircularHistory{
		entries:  make([]*Entry, capacity),
		capacity: capacity,
	}
}

// Capacity returns the fixed number of slots N.
func (h *CircularHistory) Capacity() int {
	return h.capacity
}

// Count returns the number of populated slots, in [0, capacity].
func (h *CircularHistory) Count() int {
	if h.full {
		return h.capacity
	}
	if h.head >= h.tail {
		return h.head - h.tail
	}
	return h.capacity - h.tail + h.head
}

// TotalSize returns the sum of entry sizes in FIFO order.
func (h *CircularHistory) TotalSize() int64 {
	var total int64
	h.walk(func(e *Entry) bool {
		total += int64(e.Size())
		return true
	})
	return total
}

// Append inserts entry at head, advancing head with wraparound. entry must
// be non-empty. If the history was already full, the entry at tail is
// evicted (its buffer ownership returned to the caller) and tail advances;
// otherwise full becomes true exactly when head catches up to tail.
func (h *CircularHistory) Append(entry *Entry) (evicted *Entry, ok bool) {
	if entry == nil || entry.Size() == 0 {
		panic("history: entry must be non-empty")
	}

	if h.full {
		evicted = h.entries[h.tail]
		h.entries[h.tail] = nil
		h.tail = h.incWrap(h.tail)
		ok = true
	}

	h.entries[h.head] = entry
	h.head = h.incWrap(h.head)
	h.full = h.head == h.tail
	return evicted, ok
}

// FindByOffset walks entries from tail in FIFO order, accumulating a running
// total s. It returns the first entry for which s+size > charOffset, and the
// byte offset within that entry. Returns ok=false if charOffset is at or
// beyond the total logical size, or the history is empty. At an exact
// boundary (charOffset == s) the next entry is chosen, never end-of-prior.
func (h *CircularHistory) FindByOffset(charOffset int64) (entry *Entry, byteOffset int, ok bool) {
	var s int64
	found := false
	h.walk(func(e *Entry) bool {
		next := s + int64(e.Size())
		if next > charOffset {
			entry = e
			byteOffset = int(charOffset - s)
			found = true
			return false
		}
		s = next
		return true
	})
	return entry, byteOffset, found
}

// FreeAll releases every populated entry and resets the history to empty.
func (h *CircularHistory) FreeAll() {
	for i := range h.entries {
		h.entries[i] = nil
	}
	h.head = 0
	h.tail = 0
	h.full = false
}

// walk invokes fn for each populated entry from tail in FIFO order, stopping
// early if fn returns false.
func (h *CircularHistory) walk(fn func(*Entry) bool) {
	if h.head == h.tail && !h.full {
		return // empty
	}
	i := h.tail
	for {
		if !fn(h.entries[i]) {
			return
		}
		i = h.incWrap(i)
		if i == h.head {
			return
		}
	}
}

func (h *CircularHistory) incWrap(i int) int {
	i++
	if i == h.capacity {
		return 0
	}
	return i
}
