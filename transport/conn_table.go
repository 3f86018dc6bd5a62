package transport

import (
	"github.com/sirupsen/logrus"
)

const (
	// defaultTableCapacity is the initial slot count of a connection table.
	defaultTableCapacity = 32

	// loadFactorThreshold triggers a grow-and-rehash when reached after an
	// insert. The table never shrinks.
	loadFactorThreshold = 0.75
)

// tableEntry is one occupied slot. The slot index is cached so removal by
// address is O(1) once the entry is found.
type tableEntry struct {
	peer *Peer
	slot uint32
}

// ConnectionTable maps peer Addresses to connection records using open
// addressing with quadratic probing. The probe sequence for an address with
// hash h is (h + i*i) mod capacity for i = 0, 1, 2, ... Insertion probing
// stops at the first empty slot or at a slot holding the same address (an
// update); lookup probing is bounded by capacity probes. An insert that
// exhausts its probe bound without finding either grows the table and
// retries, since the quadratic sequence visits only a subset of slots.
//
// The table favors simplicity and cache-friendliness over worst-case bounds:
// pathological hash collisions degrade lookup to O(capacity), which is
// acceptable because the peer count is bounded by the engine's admission
// limit. It is not safe for concurrent use; each table is owned by exactly
// one driver instance.
type ConnectionTable struct {
	slots []*tableEntry
	count uint32
}

// NewConnectionTable creates a table with the default initial capacity.
func NewConnectionTable() *ConnectionTable {
	return NewConnectionTableWithCapacity(defaultTableCapacity)
}

// NewConnectionTableWithCapacity creates a table with the given initial slot
// count. Capacity must be positive.
func NewConnectionTableWithCapacity(capacity uint32) *ConnectionTable {
	return &ConnectionTable{
		slots: make([]*tableEntry, capacity),
	}
}

// Count returns the number of occupied slots.
func (t *ConnectionTable) Count() int {
	return int(t.count)
}

// Capacity returns the current slot count. It only ever increases.
func (t *ConnectionTable) Capacity() int {
	return len(t.slots)
}

// LoadFactor returns occupied slots divided by capacity.
func (t *ConnectionTable) LoadFactor() float64 {
	return float64(t.count) / float64(len(t.slots))
}

// Insert adds a peer record keyed by its address. If a record with the same
// address is already present it is replaced and the occupied count is
// unchanged. A grow-and-rehash is triggered when the load factor reaches the
// threshold after the insert.
func (t *ConnectionTable) Insert(peer *Peer) {
	t.insertEntry(&tableEntry{peer: peer})

	if t.LoadFactor() >= loadFactorThreshold {
		t.grow()
	}
}

// Lookup returns the record stored for the address, if any.
func (t *ConnectionTable) Lookup(addr Address) (*Peer, bool) {
	entry := t.findEntry(addr)
	if entry == nil {
		return nil, false
	}
	return entry.peer, true
}

// Remove removes and returns the record stored for the address. Ownership of
// the record passes to the caller, who is responsible for releasing any
// engine-side resources it holds. Removing an absent address is a no-op.
func (t *ConnectionTable) Remove(addr Address) (*Peer, bool) {
	entry := t.findEntry(addr)
	if entry == nil {
		return nil, false
	}

	t.slots[entry.slot] = nil
	t.count--

	return entry.peer, true
}

// Each calls fn for every occupied slot until fn returns false. Iteration
// order is unspecified. The table must not be modified during iteration.
func (t *ConnectionTable) Each(fn func(*Peer) bool) {
	for _, entry := range t.slots {
		if entry == nil {
			continue
		}
		if !fn(entry.peer) {
			return
		}
	}
}

func (t *ConnectionTable) insertEntry(entry *tableEntry) {
	for {
		slot, existing, found := t.findFreeSlot(entry.peer.Addr)
		if !found {
			// The probe sequence visits only a subset of slots, so a
			// class of same-hash addresses can exhaust it while the
			// table is still under the load threshold. Growing changes
			// the residue set and spreads the class.
			t.grow()
			continue
		}

		entry.slot = slot
		t.slots[slot] = entry

		if !existing {
			t.count++
		}
		return
	}
}

// findFreeSlot probes for the slot where an entry keyed by addr belongs:
// either the first empty slot or the slot already holding addr. The second
// return value reports whether an occupied slot is being reused; the third
// is false when capacity probes found neither.
func (t *ConnectionTable) findFreeSlot(addr Address) (uint32, bool, bool) {
	hash := addr.hash()
	capacity := uint32(len(t.slots))

	for i := uint32(0); i < capacity; i++ {
		slot := (hash + i*i) % capacity
		entry := t.slots[slot]

		if entry == nil {
			return slot, false, true
		}
		if entry.peer.Addr == addr {
			return slot, true, true
		}
	}

	return 0, false, false
}

// findEntry probes for the entry keyed by addr, giving up after capacity
// probes to bound the worst case.
func (t *ConnectionTable) findEntry(addr Address) *tableEntry {
	hash := addr.hash()
	capacity := uint32(len(t.slots))

	for i := uint32(0); i < capacity; i++ {
		slot := (hash + i*i) % capacity
		entry := t.slots[slot]

		if entry != nil && entry.peer.Addr == addr {
			return entry
		}
	}

	return nil
}

// grow doubles the capacity and rehashes every occupied entry. Hashes are
// pure functions of the address, so the result does not depend on the
// original insertion order.
func (t *ConnectionTable) grow() {
	oldSlots := t.slots
	newCapacity := uint32(len(t.slots)) * 2

	t.slots = make([]*tableEntry, newCapacity)
	t.count = 0

	for _, entry := range oldSlots {
		if entry != nil {
			t.insertEntry(entry)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "grow",
		"capacity": newCapacity,
		"count":    t.count,
	}).Debug("Connection table grown")
}
