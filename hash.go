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

import (
	"bytes"
	"hash/maphash"
	"reflect"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/constraints"
)

// A Hasher defines a hash function and an equivalence relation over keys of
// type K. Keys that are Equal must produce the same Hash. Hash may return any
// int, including negative values.
type Hasher[K any] interface {
	Hash(key K) int
	Equal(a, b K) bool
}

// IntHasher hashes an integer key to itself.
type IntHasher[K constraints.Integer] struct{}

func (IntHasher[K]) Hash(key K) int     { return int(key) }
func (IntHasher[K]) Equal(a, b K) bool { return a == b }

// StringHasher hashes string keys with xxhash.
type StringHasher struct{}

func (StringHasher) Hash(key string) int     { return int(xxhash.Sum64String(key)) }
func (StringHasher) Equal(a, b string) bool { return a == b }

// BytesHasher hashes byte slice keys with xxhash. A nil slice is not a valid
// key, though an empty non-nil one is.
type BytesHasher struct{}

func (BytesHasher) Hash(key []byte) int     { return int(xxhash.Sum64(key)) }
func (BytesHasher) Equal(a, b []byte) bool { return bytes.Equal(a, b) }

// ComparableHasher hashes any comparable key with a seeded maphash. The zero
// value is not usable; construct one with NewComparableHasher.
type ComparableHasher[K comparable] struct {
	seed maphash.Seed
}

// NewComparableHasher returns a ComparableHasher with a random seed.
func NewComparableHasher[K comparable]() ComparableHasher[K] {
	return ComparableHasher[K]{seed: maphash.MakeSeed()}
}

func (h ComparableHasher[K]) Hash(key K) int  { return int(maphash.Comparable(h.seed, key)) }
func (ComparableHasher[K]) Equal(a, b K) bool { return a == b }

// bucketIndex reduces h to [0, n). The remainder is taken before the sign is
// dropped so that the minimum int does not overflow.
func bucketIndex(h, n int) int {
	i := h % n
	if i < 0 {
		i = -i
	}
	return i
}

// isNilKey reports whether key is the nil value of a pointer-like kind.
func isNilKey[K any](key K) bool {
	v := reflect.ValueOf(any(key))
	if !v.IsValid() {
		// A nil interface.
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice,
		reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return v.IsNil()
	}
	return false
}
