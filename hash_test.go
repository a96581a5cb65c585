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
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestBucketIndex(t *testing.T) {
	testCases := []struct {
		h, n     int
		expected int
	}{
		{0, 5, 0},
		{1, 5, 1},
		{10, 5, 0},
		{11, 5, 1},
		{-1, 5, 1},
		{-7, 5, 2},
		{-10, 5, 0},
		{7, 1, 0},
		{math.MaxInt, 5, math.MaxInt % 5},
		{math.MinInt, 5, -(math.MinInt % 5)},
		{math.MinInt, 1, 0},
	}
	for _, c := range testCases {
		require.EqualValues(t, c.expected, bucketIndex(c.h, c.n), "bucketIndex(%d, %d)", c.h, c.n)
	}
}

func TestIsNilKey(t *testing.T) {
	var p *int
	var e error
	var s []byte
	var mp map[int]int
	var ch chan int
	var fn func()
	var up unsafe.Pointer

	require.True(t, isNilKey(p))
	require.True(t, isNilKey(e))
	require.True(t, isNilKey[any](nil))
	require.True(t, isNilKey[any](p))
	require.True(t, isNilKey(s))
	require.True(t, isNilKey(mp))
	require.True(t, isNilKey(ch))
	require.True(t, isNilKey(fn))
	require.True(t, isNilKey(up))

	require.False(t, isNilKey(0))
	require.False(t, isNilKey(""))
	require.False(t, isNilKey(struct{}{}))
	require.False(t, isNilKey(new(int)))
	require.False(t, isNilKey([]byte{}))
	require.False(t, isNilKey[any](0))
}

func TestHashers(t *testing.T) {
	t.Run("int", func(t *testing.T) {
		require.EqualValues(t, 10, IntHasher[int]{}.Hash(10))
		require.EqualValues(t, -3, IntHasher[int8]{}.Hash(-3))
		require.True(t, IntHasher[uint16]{}.Equal(7, 7))
		require.False(t, IntHasher[uint16]{}.Equal(7, 8))
	})

	t.Run("string", func(t *testing.T) {
		var h StringHasher
		require.Equal(t, h.Hash("hello"), h.Hash("hel"+"lo"))
		require.NotEqual(t, h.Hash("hello"), h.Hash("world"))
		require.True(t, h.Equal("a", "a"))
	})

	t.Run("bytes", func(t *testing.T) {
		var h BytesHasher
		require.Equal(t, h.Hash([]byte("hello")), StringHasher{}.Hash("hello"))
		require.True(t, h.Equal([]byte("ab"), []byte{'a', 'b'}))
		require.False(t, h.Equal([]byte("ab"), []byte("abc")))
	})

	t.Run("comparable", func(t *testing.T) {
		type point struct{ x, y int }
		h := NewComparableHasher[point]()
		require.Equal(t, h.Hash(point{1, 2}), h.Hash(point{1, 2}))
		require.True(t, h.Equal(point{1, 2}, point{1, 2}))
		require.False(t, h.Equal(point{1, 2}, point{2, 1}))
	})
}

func TestStringKeys(t *testing.T) {
	m, err := New[string, int](StringHasher{},
		WithBucketCount[string, int](3), WithCapacity[string, int](27))
	require.NoError(t, err)

	for i := 0; i < 26; i++ {
		require.NoError(t, m.Add(string(rune('a'+i)), i))
	}
	require.NoError(t, m.verify())
	for i := 0; i < 26; i++ {
		v, err := m.Get(string(rune('a' + i)))
		require.NoError(t, err)
		require.EqualValues(t, i, v)
	}
	require.NoError(t, m.Add("", -1))
	require.EqualValues(t, 27, m.Len())
	require.True(t, m.Contains("", -1))
}
