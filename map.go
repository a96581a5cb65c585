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

// Package chainmap is a hash map from keys to values built on flat arrays
// rather than Go's builtin map type.
//
// # Layout
//
// A Map owns three structures, all allocated once at construction:
//
//   - The bucket table: B int32 entries, each either empty (-1) or the arena
//     index of the first slot of a chain.
//   - The slot arena: N slots, each holding a key, a value and a next index.
//   - The free list: a singly linked list of released slots, threaded
//     through the next index of the free slots themselves.
//
// A key lives in bucket |hash(key) mod B|. Collisions are resolved by
// chaining: every slot whose key maps to bucket b is reachable by following
// next indices from the head stored in bucket b. New entries are spliced in
// at the head of their chain, so a chain runs from the most recently inserted
// entry to the oldest.
//
//	buckets          slots
//	+---+            +------------------+
//	| 0 | -1         | 0: k=1   next=-1 | <-.
//	+---+            +------------------+   |
//	| 1 | --> 2 ---> | 2: k=11  next=0  | --'
//	+---+            +------------------+
//	| 2 | -1         | 1: free  next=-1 | <-- freeHead
//	+---+            +------------------+
//
// Removing an entry unlinks its slot from the chain and pushes it onto the
// free list. Inserting pops the free list first, so the most recently
// released slot is reused first, and otherwise claims the lowest never used
// slot (the high-water mark).
//
// Neither B nor N ever changes. An insert that would need more than N live
// slots fails with ErrCapacityExceeded.
//
// # Hashing
//
// Hashing and key equality are supplied by a Hasher. The stock IntHasher,
// StringHasher, BytesHasher and ComparableHasher cover the common key types.
// Value equality, used by Contains and RemoveEntry, is reflect.DeepEqual
// unless WithValueEqual is given.
package chainmap

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Entry is a key and value pair as copied out of a Map by CopyInto.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// Map is a fixed-capacity chained hash map. The zero value is not usable;
// construct one with New.
//
// A Map is NOT goroutine-safe.
type Map[K, V any] struct {
	hasher     Hasher[K]
	valueEqual func(a, b V) bool
	// The allocator to use for the buckets and slots slices.
	allocator Allocator[K, V]
	logger    *zap.Logger

	// The configured sizes. They are kept after Close releases the slices.
	bucketCount int
	capacity    int

	// buckets[b] is the index of the head slot of bucket b's chain, or empty.
	buckets []int32
	slots   []Slot[K, V]
	// freeHead is the index of the most recently released slot, or empty.
	freeHead int32
	// highWater is the lowest slot index that has never been allocated since
	// construction or the last Clear.
	highWater int32
	// The number of occupied slots (i.e. the number of entries in the map).
	used int
}

// New constructs a new Map using hasher for keys. The bucket count and arena
// capacity default to DefaultBucketCount and DefaultCapacity and can be set
// with WithBucketCount and WithCapacity. Both must be in [1, math.MaxInt32].
func New[K, V any](hasher Hasher[K], options ...option[K, V]) (*Map[K, V], error) {
	if hasher == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "nil hasher")
	}
	m := &Map[K, V]{
		hasher: hasher,
		valueEqual: func(a, b V) bool {
			return reflect.DeepEqual(a, b)
		},
		allocator:   defaultAllocator[K, V]{},
		logger:      zap.NewNop(),
		bucketCount: DefaultBucketCount,
		capacity:    DefaultCapacity,
	}

	for _, op := range options {
		op.apply(m)
	}

	switch {
	case m.bucketCount < 1 || m.bucketCount > math.MaxInt32:
		return nil, errors.Wrapf(ErrInvalidArgument, "bucket count %d", m.bucketCount)
	case m.capacity < 1 || m.capacity > math.MaxInt32:
		return nil, errors.Wrapf(ErrInvalidArgument, "capacity %d", m.capacity)
	case m.valueEqual == nil:
		return nil, errors.Wrap(ErrInvalidArgument, "nil value equality")
	case m.allocator == nil:
		return nil, errors.Wrap(ErrInvalidArgument, "nil allocator")
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}

	m.buckets = m.allocator.AllocBuckets(m.bucketCount)
	m.slots = m.allocator.AllocSlots(m.capacity)
	m.reset()
	m.checkInvariants()
	return m, nil
}

// Close closes the map, releasing the bucket table and arena back to its
// configured allocator. It is unnecessary to close a map using the default
// allocator. It is invalid to use a Map after it has been closed, though
// Close itself is idempotent.
func (m *Map[K, V]) Close() {
	if m.slots != nil {
		m.allocator.FreeSlots(m.slots)
		m.allocator.FreeBuckets(m.buckets)
	}
	m.slots = nil
	m.buckets = nil
	m.freeHead = empty
	m.highWater = 0
	m.used = 0
}

// Add inserts an entry into the map. It fails with ErrDuplicateKey if the key
// is already present and with ErrCapacityExceeded if every arena slot is in
// use. A failed Add leaves the map unchanged.
func (m *Map[K, V]) Add(key K, value V) error {
	if isNilKey(key) {
		return errors.Wrap(ErrInvalidKey, "add")
	}
	b, i, _ := m.locate(key)
	if i != empty {
		return errors.Wrapf(ErrDuplicateKey, "add %v", key)
	}
	return m.insert(b, key, value)
}

// Set overwrites the value of an existing entry in place, or inserts a new
// entry as Add does if the key is not present.
func (m *Map[K, V]) Set(key K, value V) error {
	if isNilKey(key) {
		return errors.Wrap(ErrInvalidKey, "set")
	}
	b, i, _ := m.locate(key)
	if i != empty {
		m.slots[i].value = value
		m.checkInvariants()
		return nil
	}
	return m.insert(b, key, value)
}

// insert stores an entry known not to be in the map at the head of bucket
// b's chain.
func (m *Map[K, V]) insert(b int, key K, value V) error {
	i, ok := m.allocate()
	if !ok {
		if ce := m.logger.Check(zap.WarnLevel, "chainmap: arena exhausted"); ce != nil {
			ce.Write(zap.Any("key", key), zap.Int("capacity", len(m.slots)))
		}
		return errors.Wrapf(ErrCapacityExceeded, "insert %v: %d slots in use", key, m.used)
	}
	m.occupy(b, i, key, value)
	m.used++
	if ce := m.logger.Check(zap.DebugLevel, "chainmap: add"); ce != nil {
		ce.Write(zap.Any("key", key), zap.Int("bucket", b), zap.Int32("slot", i),
			zap.Int("len", m.used))
	}
	m.checkInvariants()
	return nil
}

// Remove deletes the entry for key, reporting whether it was present.
func (m *Map[K, V]) Remove(key K) (bool, error) {
	if isNilKey(key) {
		return false, errors.Wrap(ErrInvalidKey, "remove")
	}
	b, i, prev := m.locate(key)
	if i == empty {
		return false, nil
	}
	m.remove(b, i, prev)
	return true, nil
}

// RemoveEntry deletes the entry for key only if its value is equal to value,
// reporting whether an entry was deleted.
func (m *Map[K, V]) RemoveEntry(key K, value V) (bool, error) {
	if isNilKey(key) {
		return false, errors.Wrap(ErrInvalidKey, "remove entry")
	}
	b, i, prev := m.locate(key)
	if i == empty || !m.valueEqual(m.slots[i].value, value) {
		return false, nil
	}
	m.remove(b, i, prev)
	return true, nil
}

func (m *Map[K, V]) remove(b int, i, prev int32) {
	if ce := m.logger.Check(zap.DebugLevel, "chainmap: remove"); ce != nil {
		ce.Write(zap.Any("key", m.slots[i].key), zap.Int("bucket", b), zap.Int32("slot", i),
			zap.Int("len", m.used-1))
	}
	m.unlink(b, i, prev)
	m.used--
	m.checkInvariants()
}

// Get retrieves the value for key, failing with ErrKeyNotFound if the key is
// not present.
func (m *Map[K, V]) Get(key K) (V, error) {
	var value V
	if isNilKey(key) {
		return value, errors.Wrap(ErrInvalidKey, "get")
	}
	_, i, _ := m.locate(key)
	if i == empty {
		return value, errors.Wrapf(ErrKeyNotFound, "get %v", key)
	}
	return m.slots[i].value, nil
}

// TryGet retrieves the value for key, returning ok=false if the key is not
// present. A missing key is not an error.
func (m *Map[K, V]) TryGet(key K) (value V, ok bool, err error) {
	if isNilKey(key) {
		return value, false, errors.Wrap(ErrInvalidKey, "try get")
	}
	if _, i, _ := m.locate(key); i != empty {
		return m.slots[i].value, true, nil
	}
	return value, false, nil
}

// ContainsKey reports whether key is present.
func (m *Map[K, V]) ContainsKey(key K) (bool, error) {
	if isNilKey(key) {
		return false, errors.Wrap(ErrInvalidKey, "contains key")
	}
	_, i, _ := m.locate(key)
	return i != empty, nil
}

// Contains reports whether key is present with a value equal to value. A nil
// key is never contained.
func (m *Map[K, V]) Contains(key K, value V) bool {
	if isNilKey(key) {
		return false
	}
	_, i, _ := m.locate(key)
	return i != empty && m.valueEqual(m.slots[i].value, value)
}

// Clear removes all entries. The map behaves as if freshly constructed
// afterwards, including reuse of arena slots from index 0 upward.
func (m *Map[K, V]) Clear() {
	if ce := m.logger.Check(zap.DebugLevel, "chainmap: clear"); ce != nil {
		ce.Write(zap.Int("len", m.used))
	}
	m.reset()
	m.checkInvariants()
}

// CopyInto copies every entry, in the order All visits them, into dst
// starting at dst[offset]. It fails with ErrInvalidArgument if dst is nil,
// offset is negative, or dst[offset:] has room for fewer than Len entries.
func (m *Map[K, V]) CopyInto(dst []Entry[K, V], offset int) error {
	switch {
	case dst == nil:
		return errors.Wrap(ErrInvalidArgument, "copy into nil destination")
	case offset < 0:
		return errors.Wrapf(ErrInvalidArgument, "copy into negative offset %d", offset)
	case len(dst)-offset < m.used:
		return errors.Wrapf(ErrInvalidArgument,
			"copy %d entries into destination of length %d at offset %d", m.used, len(dst), offset)
	}
	j := offset
	m.All(func(key K, value V) bool {
		dst[j] = Entry[K, V]{Key: key, Value: value}
		j++
		return true
	})
	return nil
}

// All calls yield sequentially for each key and value present in the map. If
// yield returns false, iteration stops. Buckets are visited in ascending
// order and each chain from its most recently inserted entry to its oldest.
// Mutating the map during iteration has undefined results.
//
// All conforms to the range-over-function protocol:
//
//	for k, v := range m.All {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	for b := range m.buckets {
		for i := m.buckets[b]; i != empty; {
			s := &m.slots[i]
			i = s.next
			if !yield(s.key, s.value) {
				return
			}
		}
	}
}

// Keys returns the keys in the order All visits them.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.used)
	m.All(func(key K, _ V) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Values returns the values in the order All visits them.
func (m *Map[K, V]) Values() []V {
	values := make([]V, 0, m.used)
	m.All(func(_ K, value V) bool {
		values = append(values, value)
		return true
	})
	return values
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// Capacity returns the number of arena slots, the maximum Len.
func (m *Map[K, V]) Capacity() int {
	return m.capacity
}

// BucketCount returns the number of buckets.
func (m *Map[K, V]) BucketCount() int {
	return m.bucketCount
}

// locate returns the bucket for key, the index of the slot holding key (or
// empty) and the index of that slot's predecessor in the chain (or empty if
// it is the chain head).
func (m *Map[K, V]) locate(key K) (b int, i, prev int32) {
	b = bucketIndex(m.hasher.Hash(key), len(m.buckets))
	prev = empty
	for i = m.buckets[b]; i != empty; i = m.slots[i].next {
		if m.hasher.Equal(m.slots[i].key, key) {
			return b, i, prev
		}
		prev = i
	}
	return b, empty, prev
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		if err := m.verify(); err != nil {
			panic(err)
		}
	}
}

// verify walks every chain and the free list and checks that they partition
// the allocated slots, that every chained key hashes to its bucket and is
// the only key equal to itself, and that the live count matches.
func (m *Map[K, V]) verify() error {
	if len(m.buckets) != m.bucketCount || len(m.slots) != m.capacity {
		return errors.AssertionFailedf("invariant failed: %d buckets and %d slots, configured %d and %d",
			len(m.buckets), len(m.slots), m.bucketCount, m.capacity)
	}
	if m.highWater < 0 || int(m.highWater) > len(m.slots) {
		return errors.AssertionFailedf("invariant failed: high-water %d outside [0, %d]\n%s",
			m.highWater, len(m.slots), m.debugString())
	}

	seen := make([]bool, len(m.slots))
	visit := func(what string, i int32) error {
		if i < 0 || i >= m.highWater {
			return errors.AssertionFailedf("invariant failed: %s: slot %d outside [0, %d)\n%s",
				what, i, m.highWater, m.debugString())
		}
		if seen[i] {
			return errors.AssertionFailedf("invariant failed: %s: slot %d reached twice\n%s",
				what, i, m.debugString())
		}
		seen[i] = true
		return nil
	}

	var used int
	for b := range m.buckets {
		for i := m.buckets[b]; i != empty; i = m.slots[i].next {
			what := fmt.Sprintf("bucket %d", b)
			if err := visit(what, i); err != nil {
				return err
			}
			s := &m.slots[i]
			if s.state != slotOccupied {
				return errors.AssertionFailedf("invariant failed: %s: slot %d is %s\n%s",
					what, i, s.state, m.debugString())
			}
			if h := bucketIndex(m.hasher.Hash(s.key), len(m.buckets)); h != b {
				return errors.AssertionFailedf("invariant failed: %s: slot %d key %v hashes to bucket %d\n%s",
					what, i, s.key, h, m.debugString())
			}
			if _, j, _ := m.locate(s.key); j != i {
				return errors.AssertionFailedf("invariant failed: %s: slot %d key %v located at slot %d\n%s",
					what, i, s.key, j, m.debugString())
			}
			used++
		}
	}
	if used != m.used {
		return errors.AssertionFailedf("invariant failed: found %d chained slots, but used count is %d\n%s",
			used, m.used, m.debugString())
	}

	var free int
	for i := m.freeHead; i != empty; i = m.slots[i].next {
		if err := visit("free list", i); err != nil {
			return err
		}
		if s := m.slots[i].state; s != slotFree {
			return errors.AssertionFailedf("invariant failed: free list: slot %d is %s\n%s",
				i, s, m.debugString())
		}
		free++
	}
	if used+free != int(m.highWater) {
		return errors.AssertionFailedf("invariant failed: %d used and %d free slots, but high-water is %d\n%s",
			used, free, m.highWater, m.debugString())
	}
	for i := int(m.highWater); i < len(m.slots); i++ {
		if s := m.slots[i].state; s != slotFree {
			return errors.AssertionFailedf("invariant failed: unallocated slot %d is %s\n%s",
				i, s, m.debugString())
		}
	}
	return nil
}

// debugString renders the bucket chains and the free list without following
// more links than there are slots, so it is safe on a corrupted map.
func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "buckets=%d  capacity=%d  used=%d  high-water=%d  free-head=%d\n",
		len(m.buckets), len(m.slots), m.used, m.highWater, m.freeHead)
	walk := func(i int32) {
		for n := 0; i != empty; n++ {
			if n > len(m.slots) || i < 0 || int(i) >= len(m.slots) {
				fmt.Fprintf(&buf, " -> %d (corrupt)", i)
				return
			}
			s := &m.slots[i]
			if s.state == slotOccupied {
				fmt.Fprintf(&buf, " -> %d[%v=%v]", i, s.key, s.value)
			} else {
				fmt.Fprintf(&buf, " -> %d[%s]", i, s.state)
			}
			i = s.next
		}
	}
	for b := range m.buckets {
		fmt.Fprintf(&buf, "  %4d:", b)
		walk(m.buckets[b])
		buf.WriteString("\n")
	}
	buf.WriteString("  free:")
	walk(m.freeHead)
	buf.WriteString("\n")
	return buf.String()
}
