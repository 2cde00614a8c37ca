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

import (
	"github.com/feathermc/netio/errors"
	"github.com/feathermc/netio/pool/bytebuffer"
	"github.com/feathermc/netio/ring"
)

// Encoder turns packets into framed bytes inside a shard's ring buffer.
// Frames are length-prefixed with a varint; when compression is enabled,
// a second varint carries the uncompressed payload length (0 for payloads
// below the threshold, which travel uncompressed).
type Encoder struct {
	threshold int32
}

// NewEncoder returns an Encoder with the given compression threshold.
// A threshold of CompressionDisabled encodes every packet uncompressed.
func NewEncoder(threshold int32) *Encoder {
	return &Encoder{threshold: threshold}
}

// CompressionThreshold returns the current compression threshold.
func (e *Encoder) CompressionThreshold() int32 {
	return e.threshold
}

// SetCompression sets the compression threshold.
func (e *Encoder) SetCompression(threshold int32) {
	e.threshold = threshold
}

// AppendPacket encodes pkt into r, compressing the payload when it exceeds
// the threshold, and returns the written region as (offset, length).
// On error nothing is recorded in the ring's caller-visible state.
func (e *Encoder) AppendPacket(pkt Packet, r *ring.Ring, scratch *bytebuffer.ByteBuffer, c *Compressor) (off, n uint32, err error) {
	body, err := appendPacketBody(pkt, scratch)
	if err != nil {
		return 0, 0, err
	}

	if e.threshold < 0 {
		return appendFrame(r, int32(len(body)), nil, body)
	}

	if int32(len(body)) > e.threshold {
		compressed, cerr := c.Compress(body)
		if cerr != nil {
			return 0, 0, cerr
		}
		dataLen := int32(len(body))
		total := int32(VarintLen(dataLen) + len(compressed))
		if total > MaxPacketSize {
			return 0, 0, errors.ErrPacketTooLarge
		}
		return appendFrame(r, total, AppendVarint(nil, dataLen), compressed)
	}

	// Below the threshold the payload travels raw, flagged by a zero data length.
	total := int32(VarintLen(0) + len(body))
	return appendFrame(r, total, AppendVarint(nil, 0), body)
}

// AppendPacketWithoutCompression encodes pkt into r with the plain
// length-prefixed framing, regardless of any compression threshold.
func AppendPacketWithoutCompression(pkt Packet, r *ring.Ring) (off, n uint32, err error) {
	scratch := bytebuffer.Get()
	defer bytebuffer.Put(scratch)

	body, err := appendPacketBody(pkt, scratch)
	if err != nil {
		return 0, 0, err
	}
	return appendFrame(r, int32(len(body)), nil, body)
}

// appendPacketBody renders the packet id and payload into scratch.
func appendPacketBody(pkt Packet, scratch *bytebuffer.ByteBuffer) ([]byte, error) {
	b := AppendVarint(scratch.B[:0], pkt.ID())
	b, err := pkt.AppendBody(b)
	scratch.B = b
	if err != nil {
		return nil, err
	}
	if len(b) > MaxPacketSize {
		return nil, errors.ErrPacketTooLarge
	}
	return b, nil
}

// appendFrame writes varint(frameLen) followed by the optional prefix and the
// payload as one contiguous region of r.
func appendFrame(r *ring.Ring, frameLen int32, prefix, payload []byte) (uint32, uint32, error) {
	if frameLen > MaxPacketSize {
		return 0, 0, errors.ErrPacketTooLarge
	}
	total := VarintLen(frameLen) + len(prefix) + len(payload)
	off, dst := r.Alloc(total)
	w := AppendVarint(dst[:0], frameLen)
	w = append(w, prefix...)
	copy(dst[len(w):], payload)
	return off, uint32(total), nil
}
