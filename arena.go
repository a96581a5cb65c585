// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chainmap

// empty marks the end of a bucket chain or of the free list, and a bucket
// with no chain.
const empty int32 = -1

type slotState uint8

const (
	slotFree slotState = iota
	slotOccupied
)

func (s slotState) String() string {
	switch s {
	case slotFree:
		return "free"
	case slotOccupied:
		return "occupied"
	default:
		return "unknown"
	}
}

// Slot holds a key and value. The next field is overloaded: for an occupied
// slot it links to the next slot in the same bucket chain, for a free slot it
// links to the next slot in the free list.
type Slot[K, V any] struct {
	key   K
	value V
	next  int32
	state slotState
}

// allocate returns the index of an unused arena slot. The most recently
// released slot is reused first. When the free list is empty the slot at the
// high-water mark is claimed; at that point every slot below the mark is
// occupied, so the mark equals the live count. ok is false if the arena is
// exhausted, in which case nothing is modified.
func (m *Map[K, V]) allocate() (i int32, ok bool) {
	if m.freeHead != empty {
		i = m.freeHead
		m.freeHead = m.slots[i].next
		return i, true
	}
	if int(m.highWater) == len(m.slots) {
		return empty, false
	}
	i = m.highWater
	m.highWater++
	return i, true
}

// release pushes slot i onto the free list. The slot must already have been
// unlinked from its bucket chain.
func (m *Map[K, V]) release(i int32) {
	m.slots[i] = Slot[K, V]{next: m.freeHead}
	m.freeHead = i
}

// occupy stores key and value in slot i and splices it in at the head of
// bucket b's chain.
func (m *Map[K, V]) occupy(b int, i int32, key K, value V) {
	m.slots[i] = Slot[K, V]{
		key:   key,
		value: value,
		next:  m.buckets[b],
		state: slotOccupied,
	}
	m.buckets[b] = i
}

// unlink removes slot i from bucket b's chain given its predecessor prev
// (empty if i is the chain head) and releases it.
func (m *Map[K, V]) unlink(b int, i, prev int32) {
	if prev == empty {
		m.buckets[b] = m.slots[i].next
	} else {
		m.slots[prev].next = m.slots[i].next
	}
	m.release(i)
}

// reset returns the bucket table, arena and free list to their state
// immediately after construction. Slots below the high-water mark are zeroed
// so they no longer retain keys and values.
func (m *Map[K, V]) reset() {
	for b := range m.buckets {
		m.buckets[b] = empty
	}
	clear(m.slots[:m.highWater])
	m.freeHead = empty
	m.highWater = 0
	m.used = 0
}
