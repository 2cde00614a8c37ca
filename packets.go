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
	"fmt"
	"sync/atomic"

	nerrors "github.com/feathermc/netio/errors"
	"github.com/feathermc/netio/protocol"
)

// PacketWriteInfo is one pending write region: Start is a byte offset into
// the producing shard's ring buffer and Len the region's length. The region
// is fully written and immutable until the event loop consumes it, and stays
// resolvable until the ring wraps past it.
type PacketWriteInfo struct {
	Start uint32
	Len   uint32
}

// shardQueue is one shard's ordered pending writes. lastGen remembers the
// ring generation observed by the latest push so that a wrap between two
// appends can never be mistaken for contiguity.
type shardQueue struct {
	infos   []PacketWriteInfo
	lastGen uint64
}

// Packets is the outbound queue of one logical target: per-shard lists of
// pending write regions plus a single cross-shard in-flight counter. Each
// shard's list is written only by that shard's worker; numberSending is the
// only field shared across threads.
type Packets struct {
	toWrite       []shardQueue
	numberSending atomic.Int64
}

// NewPackets returns a Packets with one queue per shard.
func NewPackets(shards int) *Packets {
	return &Packets{toWrite: make([]shardQueue, shards)}
}

// Broadcast is the distinguished Packets instance used for server-wide
// messages. It is constructed once, with process lifetime, and handed
// explicitly to every component that needs it.
type Broadcast struct {
	Packets
}

// NewBroadcast returns the server-wide broadcast queue.
func NewBroadcast(shards int) *Broadcast {
	return &Broadcast{Packets{toWrite: make([]shardQueue, shards)}}
}

// Shards returns the number of per-shard queues.
func (p *Packets) Shards() int {
	return len(p.toWrite)
}

// ShardInfos returns shard i's pending regions in send order. The slice is
// owned by the shard's worker; the I/O submission path may read it only
// between PrepareForSend and the completion of the batch.
func (p *Packets) ShardInfos(i int) []PacketWriteInfo {
	return p.toWrite[i].infos
}

// CanSend reports whether a new batch may be flushed: no send is in flight
// and at least one shard has pending regions.
func (p *Packets) CanSend() bool {
	if p.numberSending.Load() != 0 {
		return false
	}
	for i := range p.toWrite {
		if len(p.toWrite[i].infos) > 0 {
			return true
		}
	}
	return false
}

// PrepareForSend snapshots the total pending region count into the in-flight
// counter and returns it. Calling it while a batch is outstanding is a
// broken accounting contract and panics.
func (p *Packets) PrepareForSend() int {
	if n := p.numberSending.Load(); n != 0 {
		panic(fmt.Errorf("%w: %d sends outstanding", nerrors.ErrSendInFlight, n))
	}
	var count int
	for i := range p.toWrite {
		count += len(p.toWrite[i].infos)
	}
	p.numberSending.Store(int64(count))
	return count
}

// SetSuccessfullySent subtracts n completed regions from the in-flight
// counter. It may be called concurrently from multiple completion
// notifications; driving the counter below zero panics.
func (p *Packets) SetSuccessfullySent(n int) {
	if p.numberSending.Load() <= 0 {
		panic(nerrors.ErrSendNotInFlight)
	}
	if left := p.numberSending.Add(-int64(n)); left < 0 {
		panic(fmt.Errorf("%w: completions exceed the prepared batch by %d", nerrors.ErrSendNotInFlight, -left))
	}
}

// Clear empties all shard queues. The in-flight counter is untouched.
func (p *Packets) Clear() {
	for i := range p.toWrite {
		p.toWrite[i].infos = p.toWrite[i].infos[:0]
	}
}

// Extend merges other's per-shard queues into p, shard for shard, preserving
// order. When the shard counts differ, only the shards both sides have are
// merged.
func (p *Packets) Extend(other *Packets) {
	n := len(p.toWrite)
	if len(other.toWrite) < n {
		n = len(other.toWrite)
	}
	for i := 0; i < n; i++ {
		if len(other.toWrite[i].infos) == 0 {
			continue
		}
		p.toWrite[i].infos = append(p.toWrite[i].infos, other.toWrite[i].infos...)
		p.toWrite[i].lastGen = other.toWrite[i].lastGen
	}
}

// push appends w to the queue of buf's shard. When the ring has not wrapped
// since the previous push and the new region starts exactly where the last
// one ends, the last entry is extended instead: all writers of one shard's
// ring are serialized by shard ownership, so the adjacency check is
// race-free.
func (p *Packets) push(w PacketWriteInfo, buf *IoBuf) {
	q := &p.toWrite[buf.index]
	gen := buf.buf.Gen()

	if len(q.infos) > 0 && q.lastGen == gen {
		last := &q.infos[len(q.infos)-1]
		if last.Start+last.Len == w.Start {
			last.Len += w.Len
			return
		}
	}

	q.infos = append(q.infos, w)
	q.lastGen = gen
}

// Append encodes pkt on the given shard, compressing per the shard buffer's
// current threshold, and queues the resulting region. On error the queue is
// unchanged.
func (p *Packets) Append(pkt protocol.Packet, compose *Compose, shard int) error {
	buf, compressor, scratch := compose.Shard(shard)

	off, n, err := buf.enc.AppendPacket(pkt, buf.buf, scratch, compressor)
	if err != nil {
		return err
	}

	p.push(PacketWriteInfo{Start: off, Len: n}, buf)
	return nil
}

// AppendPreCompressionPacket encodes pkt without compression, restoring the
// buffer's compression threshold afterwards on every exit path. Used for
// packets that must never be compressed, such as the handshake exchange.
func (p *Packets) AppendPreCompressionPacket(pkt protocol.Packet, buf *IoBuf) error {
	threshold := buf.enc.CompressionThreshold()
	buf.enc.SetCompression(protocol.CompressionDisabled)
	defer buf.enc.SetCompression(threshold)

	off, n, err := protocol.AppendPacketWithoutCompression(pkt, buf.buf)
	if err != nil {
		return err
	}

	p.push(PacketWriteInfo{Start: off, Len: n}, buf)
	return nil
}

// AppendRaw queues pre-serialized bytes, bypassing the encoder.
func (p *Packets) AppendRaw(data []byte, buf *IoBuf) {
	off := buf.buf.Append(data)
	p.push(PacketWriteInfo{Start: off, Len: uint32(len(data))}, buf)
}
