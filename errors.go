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

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidKey is returned when an operation is handed a nil key (a nil
	// pointer, interface, map, slice, channel or func).
	ErrInvalidKey = errors.New("invalid key")
	// ErrDuplicateKey is returned by Add when the key is already present.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrKeyNotFound is returned by Get when the key is not present.
	ErrKeyNotFound = errors.New("key not found")
	// ErrInvalidArgument is returned for a bad destination or offset passed
	// to CopyInto, and for a bad configuration passed to New.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCapacityExceeded is returned when inserting would need more live
	// slots than the arena holds.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)
