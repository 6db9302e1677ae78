package lru

import "github.com/pkg/errors"

// nilSlot marks the absence of a neighboring node.
const nilSlot = -1

type node struct {
	id   string
	prev int
	next int
}

// Index maintains a strict recency ordering over a bounded set of
// identifiers. The most recently used identifier is at the hot end and the
// least recently used is at the cold end. Index is not safe for concurrent use.
type Index struct {
	capacity int
	slots    map[string]int
	nodes    []node
	free     []int
	// head is the hot end, tail is the cold end.
	head int
	tail int
}

// New returns an empty index that holds at most capacity identifiers.
func New(capacity int) (*Index, error) {
	if capacity < 1 {
		return nil, errors.Errorf("capacity must be positive, but got %d", capacity)
	}
	return &Index{
		capacity: capacity,
		slots:    map[string]int{},
		head:     nilSlot,
		tail:     nilSlot,
	}, nil
}

// Len returns the number of identifiers in the index.
func (idx *Index) Len() int {
	return len(idx.slots)
}

// Cap returns the maximum number of identifiers the index can hold.
func (idx *Index) Cap() int {
	return idx.capacity
}

// Contains returns whether the identifier is in the index without changing its
// recency.
func (idx *Index) Contains(id string) bool {
	_, ok := idx.slots[id]
	return ok
}

// Touch marks the identifier as the most recently used. It returns false and
// does nothing if the identifier is not in the index.
func (idx *Index) Touch(id string) bool {
	slot, ok := idx.slots[id]
	if !ok {
		return false
	}
	idx.moveToHead(slot)
	return true
}

// Insert adds the identifier as the most recently used. If the identifier is
// already present, this is equivalent to Touch. If adding the identifier
// exceeds the capacity, the least recently used identifier is evicted and
// returned.
func (idx *Index) Insert(id string) (evicted string, ok bool) {
	if idx.Touch(id) {
		return "", false
	}

	slot := idx.alloc(id)
	idx.slots[id] = slot
	idx.pushHead(slot)

	if len(idx.slots) <= idx.capacity {
		return "", false
	}

	cold := idx.nodes[idx.tail].id
	idx.Remove(cold)
	return cold, true
}

// Remove removes the identifier from the index. It returns false if the
// identifier was not in the index.
func (idx *Index) Remove(id string) bool {
	slot, ok := idx.slots[id]
	if !ok {
		return false
	}
	idx.unlink(slot)
	delete(idx.slots, id)
	idx.nodes[slot] = node{prev: nilSlot, next: nilSlot}
	idx.free = append(idx.free, slot)
	return true
}

// Reset removes all identifiers from the index and releases its storage.
func (idx *Index) Reset() {
	idx.slots = map[string]int{}
	idx.nodes = nil
	idx.free = nil
	idx.head = nilSlot
	idx.tail = nilSlot
}

// Keys returns the identifiers ordered from most to least recently used. This
// walks the entire index.
func (idx *Index) Keys() []string {
	keys := make([]string, 0, len(idx.slots))
	for slot := idx.head; slot != nilSlot; slot = idx.nodes[slot].next {
		keys = append(keys, idx.nodes[slot].id)
	}
	return keys
}

func (idx *Index) alloc(id string) int {
	n := node{id: id, prev: nilSlot, next: nilSlot}
	if len(idx.free) > 0 {
		slot := idx.free[len(idx.free)-1]
		idx.free = idx.free[:len(idx.free)-1]
		idx.nodes[slot] = n
		return slot
	}
	idx.nodes = append(idx.nodes, n)
	return len(idx.nodes) - 1
}

func (idx *Index) pushHead(slot int) {
	n := &idx.nodes[slot]
	n.prev = nilSlot
	n.next = idx.head
	if idx.head != nilSlot {
		idx.nodes[idx.head].prev = slot
	}
	idx.head = slot
	if idx.tail == nilSlot {
		idx.tail = slot
	}
}

func (idx *Index) unlink(slot int) {
	n := idx.nodes[slot]
	if n.prev != nilSlot {
		idx.nodes[n.prev].next = n.next
	} else {
		idx.head = n.next
	}
	if n.next != nilSlot {
		idx.nodes[n.next].prev = n.prev
	} else {
		idx.tail = n.prev
	}
}

func (idx *Index) moveToHead(slot int) {
	if idx.head == slot {
		return
	}
	idx.unlink(slot)
	idx.pushHead(slot)
}
