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

package netio

import (
	"github.com/feathermc/netio/pool/bytebuffer"
	"github.com/feathermc/netio/protocol"
	"github.com/feathermc/netio/ring"
)

// IoBuf owns one shard's encoder state and ring buffer. It is never shared
// across shards: every append through it must come from the worker that owns
// shard Index().
type IoBuf struct {
	enc   *protocol.Encoder
	buf   *ring.Ring
	index int
}

// NewIoBuf returns an IoBuf for the given shard with the default
// S2CBufferSize ring capacity.
func NewIoBuf(threshold int32, index int) *IoBuf {
	return NewIoBufCapacity(threshold, index, S2CBufferSize)
}

// NewIoBufCapacity is NewIoBuf with an explicit ring capacity.
func NewIoBufCapacity(threshold int32, index, capacity int) *IoBuf {
	return &IoBuf{
		enc:   protocol.NewEncoder(threshold),
		buf:   ring.New(capacity),
		index: index,
	}
}

// Enc returns the shard's packet encoder.
func (b *IoBuf) Enc() *protocol.Encoder {
	return b.enc
}

// Buf returns the shard's ring buffer.
func (b *IoBuf) Buf() *ring.Ring {
	return b.buf
}

// Index identifies the shard this IoBuf belongs to.
func (b *IoBuf) Index() int {
	return b.index
}

// IoBufs is the fixed set of IoBufs, one per shard, created once at server
// start. Only the interior state of each IoBuf mutates afterwards.
type IoBufs struct {
	locals []*IoBuf
}

// InitIoBufs builds one IoBuf per shard and registers every shard's ring
// buffer with the event loop before any packet is appended. shards <= 0
// means one per logical CPU and capacity <= 0 means S2CBufferSize.
func InitIoBufs(threshold int32, shards, capacity int, server ServerDef) (*IoBufs, error) {
	opts := loadOptions(WithNumShards(shards), WithBufferCapacity(capacity))

	locals := make([]*IoBuf, opts.NumShards)
	regions := make([][]byte, opts.NumShards)
	for i := range locals {
		locals[i] = NewIoBufCapacity(threshold, i, opts.BufferCapacity)
		regions[i] = locals[i].buf.Buffer()
	}

	if err := server.AllocateBuffers(regions); err != nil {
		return nil, err
	}
	return &IoBufs{locals: locals}, nil
}

// Len returns the number of shards.
func (b *IoBufs) Len() int {
	return len(b.locals)
}

// Shard returns the IoBuf owned by the given shard.
func (b *IoBufs) Shard(i int) *IoBuf {
	return b.locals[i]
}

// Compressors holds one reusable compressor per shard.
type Compressors struct {
	locals []*protocol.Compressor
}

// NewCompressors returns one compressor per shard with the given zlib level.
func NewCompressors(level, shards int) *Compressors {
	locals := make([]*protocol.Compressor, shards)
	for i := range locals {
		locals[i] = protocol.NewCompressor(level)
	}
	return &Compressors{locals: locals}
}

// Shard returns the compressor owned by the given shard.
func (c *Compressors) Shard(i int) *protocol.Compressor {
	return c.locals[i]
}

// Scratches holds one persistent encode scratch buffer per shard.
type Scratches struct {
	locals []*bytebuffer.ByteBuffer
}

// NewScratches returns one scratch buffer per shard.
func NewScratches(shards int) *Scratches {
	locals := make([]*bytebuffer.ByteBuffer, shards)
	for i := range locals {
		locals[i] = bytebuffer.Get()
	}
	return &Scratches{locals: locals}
}

// Shard returns the scratch buffer owned by the given shard.
func (s *Scratches) Shard(i int) *bytebuffer.ByteBuffer {
	return s.locals[i]
}

// Compose bundles everything a packet producer needs to encode on its own
// shard: buffers, compressors and scratch space, all resolved by the same
// shard index.
type Compose struct {
	Bufs        *IoBufs
	Compressors *Compressors
	Scratches   *Scratches
}

// NewCompose wires the per-shard state for the given options.
func NewCompose(bufs *IoBufs, opts *Options) *Compose {
	return &Compose{
		Bufs:        bufs,
		Compressors: NewCompressors(opts.CompressionLevel, bufs.Len()),
		Scratches:   NewScratches(bufs.Len()),
	}
}

// Shard resolves one shard's buffer, compressor and scratch space.
func (c *Compose) Shard(i int) (*IoBuf, *protocol.Compressor, *bytebuffer.ByteBuffer) {
	return c.Bufs.Shard(i), c.Compressors.Shard(i), c.Scratches.Shard(i)
}
