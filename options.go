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

import "go.uber.org/zap"

const (
	// DefaultBucketCount is the number of buckets used when WithBucketCount
	// is not supplied.
	DefaultBucketCount = 5
	// DefaultCapacity is the number of arena slots used when WithCapacity is
	// not supplied.
	DefaultCapacity = 5
)

// option provide an interface to do work on Map while it is being created.
type option[K, V any] interface {
	apply(m *Map[K, V])
}

type bucketCountOption[K, V any] struct {
	n int
}

func (op bucketCountOption[K, V]) apply(m *Map[K, V]) {
	m.bucketCount = op.n
}

// WithBucketCount is an option to specify the number of buckets in the
// bucket table. The bucket count is fixed for the lifetime of the map.
func WithBucketCount[K, V any](n int) option[K, V] {
	return bucketCountOption[K, V]{n}
}

type capacityOption[K, V any] struct {
	n int
}

func (op capacityOption[K, V]) apply(m *Map[K, V]) {
	m.capacity = op.n
}

// WithCapacity is an option to specify the number of slots in the arena,
// which bounds the number of live entries the map can hold.
func WithCapacity[K, V any](n int) option[K, V] {
	return capacityOption[K, V]{n}
}

type valueEqualOption[K, V any] struct {
	equal func(a, b V) bool
}

func (op valueEqualOption[K, V]) apply(m *Map[K, V]) {
	m.valueEqual = op.equal
}

// WithValueEqual is an option to specify the equality predicate used for
// values by Contains and RemoveEntry. The default is reflect.DeepEqual.
func WithValueEqual[K, V any](equal func(a, b V) bool) option[K, V] {
	return valueEqualOption[K, V]{equal}
}

type loggerOption[K, V any] struct {
	logger *zap.Logger
}

func (op loggerOption[K, V]) apply(m *Map[K, V]) {
	m.logger = op.logger
}

// WithLogger is an option to specify the logger that structural changes are
// traced to at debug level.
func WithLogger[K, V any](logger *zap.Logger) option[K, V] {
	return loggerOption[K, V]{logger}
}

// Allocator specifies an interface for allocating and releasing memory used
// by a Map. The default allocator utilizes Go's builtin make() and allows the
// GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that slots and
// buckets be freed then Map.Close must be called in order to ensure
// FreeSlots and FreeBuckets are called.
type Allocator[K, V any] interface {
	// AllocSlots should return a slice equivalent to make([]Slot[K,V], n).
	AllocSlots(n int) []Slot[K, V]

	// AllocBuckets should return a slice equivalent to make([]int32, n).
	AllocBuckets(n int) []int32

	// FreeSlots can optional release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by AllocSlots.
	FreeSlots(v []Slot[K, V])

	// FreeBuckets can optional release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocBuckets.
	FreeBuckets(v []int32)
}

type defaultAllocator[K, V any] struct{}

func (defaultAllocator[K, V]) AllocSlots(n int) []Slot[K, V] {
	return make([]Slot[K, V], n)
}

func (defaultAllocator[K, V]) AllocBuckets(n int) []int32 {
	return make([]int32, n)
}

func (defaultAllocator[K, V]) FreeSlots(v []Slot[K, V]) {
}

func (defaultAllocator[K, V]) FreeBuckets(v []int32) {
}

type allocatorOption[K, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(m *Map[K, V]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map[K,V].
func WithAllocator[K, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}
