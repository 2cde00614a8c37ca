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

package protocol

import "github.com/feathermc/netio/errors"

// MaxVarintLen is the maximum number of bytes a 32-bit varint occupies on the wire.
const MaxVarintLen = 5

// AppendVarint appends the wire encoding of v to dst and returns the extended slice.
// The encoding is the protocol's 7-bits-per-byte little-endian varint, with the
// value treated as unsigned 32-bit.
func AppendVarint(dst []byte, v int32) []byte {
	u := uint32(v)
	for u >= 0x80 {
		dst = append(dst, byte(u)|0x80)
		u >>= 7
	}
	return append(dst, byte(u))
}

// Varint decodes a varint from the head of src. It returns the value and the
// number of bytes consumed. n == 0 with a nil error means src holds an
// incomplete varint; overlong encodings yield errors.ErrInvalidVarint.
func Varint(src []byte) (v int32, n int, err error) {
	var u uint32
	for i := 0; i < len(src); i++ {
		b := src[i]
		if i == MaxVarintLen-1 && b&0xF0 != 0 {
			return 0, 0, errors.ErrInvalidVarint
		}
		u |= uint32(b&0x7F) << (7 * uint(i))
		if b&0x80 == 0 {
			return int32(u), i + 1, nil
		}
	}
	return 0, 0, nil
}

// VarintLen reports how many bytes the wire encoding of v occupies.
func VarintLen(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}
