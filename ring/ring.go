// Copyright (c) 2024 The netio Authors
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

// Package ring implements the fixed-capacity, append-only byte store that
// backs one shard of outbound packet data. Appends are always laid out
// contiguously; an append that does not fit in the tail of the buffer wraps
// to the start and overwrites the oldest data. Each wrap bumps a generation
// counter so that callers comparing offsets for adjacency can tell a true
// continuation apart from a wrapped-to-same-offset append.
package ring

import (
	"fmt"

	"github.com/feathermc/netio/errors"
)

// Ring is a fixed-capacity append-only byte buffer. It is not safe for
// concurrent use; each shard's ring is owned by exactly one writer.
type Ring struct {
	buf  []byte
	head int    // next position to write
	gen  uint64 // incremented every time head wraps to 0
}

// New returns a new Ring with the given capacity.
func New(size int) *Ring {
	if size <= 0 {
		panic(fmt.Sprintf("ring: non-positive capacity %d", size))
	}
	return &Ring{buf: make([]byte, size)}
}

// Append copies p into the ring and returns the offset of its first byte.
// The returned region stays valid until a later append wraps past it.
// Appending more bytes than the ring's capacity is a caller bug.
func (r *Ring) Append(p []byte) uint32 {
	if len(p) > len(r.buf) {
		panic(fmt.Errorf("%w: append of %d bytes, capacity %d", errors.ErrRegionTooLarge, len(p), len(r.buf)))
	}
	if r.head+len(p) > len(r.buf) {
		r.head = 0
		r.gen++
	}
	off := r.head
	copy(r.buf[off:], p)
	r.head += len(p)
	return uint32(off)
}

// Alloc reserves n contiguous bytes and returns their offset along with the
// writable slice, letting encoders write in place instead of copying.
func (r *Ring) Alloc(n int) (uint32, []byte) {
	if n > len(r.buf) {
		panic(fmt.Errorf("%w: alloc of %d bytes, capacity %d", errors.ErrRegionTooLarge, n, len(r.buf)))
	}
	if r.head+n > len(r.buf) {
		r.head = 0
		r.gen++
	}
	off := r.head
	r.head += n
	return uint32(off), r.buf[off : off+n]
}

// At resolves a previously returned region to its backing bytes.
func (r *Ring) At(off, n uint32) []byte {
	return r.buf[off : off+n]
}

// Buffer exposes the whole backing array, for registration with the I/O
// subsystem. The returned slice aliases the ring's storage and its address
// is stable for the ring's lifetime.
func (r *Ring) Buffer() []byte {
	return r.buf
}

// Gen reports how many times the ring has wrapped back to the start.
func (r *Ring) Gen() uint64 {
	return r.gen
}

// Cap returns the capacity of the ring.
func (r *Ring) Cap() int {
	return len(r.buf)
}
