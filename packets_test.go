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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feathermc/netio/protocol"
)

// testPacket is a minimal outbound packet for codec-path tests.
type testPacket struct {
	id   int32
	body []byte
	err  error
}

func (p *testPacket) ID() int32 { return p.id }

func (p *testPacket) AppendBody(dst []byte) ([]byte, error) {
	if p.err != nil {
		return dst, p.err
	}
	return append(dst, p.body...), nil
}

func TestAppendRawCoalescesContiguousWrites(t *testing.T) {
	buf := NewIoBufCapacity(protocol.CompressionDisabled, 0, 1024)
	packets := NewPackets(1)

	packets.AppendRaw([]byte("abcd"), buf)
	packets.AppendRaw([]byte("efghij"), buf)
	packets.AppendRaw([]byte("klmn"), buf)

	infos := packets.ShardInfos(0)
	require.Len(t, infos, 1, "contiguous writes must coalesce into one region")
	assert.EqualValues(t, 0, infos[0].Start)
	assert.EqualValues(t, 14, infos[0].Len, "expect the summed length of all appends")
}

func TestAppendRawDoesNotCoalesceAcrossShards(t *testing.T) {
	bufA := NewIoBufCapacity(protocol.CompressionDisabled, 0, 1024)
	bufB := NewIoBufCapacity(protocol.CompressionDisabled, 1, 1024)
	packets := NewPackets(2)

	packets.AppendRaw([]byte("abcd"), bufA)
	packets.AppendRaw([]byte("efghij"), bufA)
	packets.AppendRaw([]byte("klmn"), bufA)
	packets.AppendRaw([]byte("wxyz"), bufB)

	require.Len(t, packets.ShardInfos(0), 1)
	assert.EqualValues(t, 14, packets.ShardInfos(0)[0].Len, "shard A must keep its single coalesced region")
	require.Len(t, packets.ShardInfos(1), 1)
	assert.EqualValues(t, 4, packets.ShardInfos(1)[0].Len, "shard B must get its own region")
}

func TestPushDoesNotCoalesceAcrossWraparound(t *testing.T) {
	// Two queues share one 8-byte ring. After the ring wraps, an append for
	// p1 lands at the offset where p1's previous region ends; the generation
	// check must keep the regions distinct.
	buf := NewIoBufCapacity(protocol.CompressionDisabled, 0, 8)
	p1 := NewPackets(1)
	p2 := NewPackets(1)

	p1.AppendRaw([]byte("aaaa"), buf) // p1: (0,4)
	p2.AppendRaw([]byte("bbbb"), buf) // ring head at 8
	p2.AppendRaw([]byte("cccc"), buf) // wraps, lands at 0
	p1.AppendRaw([]byte("dddd"), buf) // lands at 4, offset-adjacent to p1's (0,4)

	infos := p1.ShardInfos(0)
	require.Len(t, infos, 2, "a wrapped ring must not produce false contiguity")
	assert.EqualValues(t, PacketWriteInfo{Start: 0, Len: 4}, infos[0])
	assert.EqualValues(t, PacketWriteInfo{Start: 4, Len: 4}, infos[1])
}

func TestPrepareForSendAndCompletionCycle(t *testing.T) {
	buf := NewIoBufCapacity(protocol.CompressionDisabled, 0, 64)
	buf2 := NewIoBufCapacity(protocol.CompressionDisabled, 1, 64)
	packets := NewPackets(2)

	// Shard queues of sizes 2 and 3. Raw appends to one shard coalesce, so
	// interleave across shards to keep the entries distinct.
	packets.AppendRaw([]byte("a"), buf)
	packets.AppendRaw([]byte("b"), buf2)
	packets.AppendRaw([]byte("c"), buf)
	packets.AppendRaw([]byte("d"), buf2)
	packets.AppendRaw([]byte("e"), buf2)
	require.Len(t, packets.ShardInfos(0), 2)
	require.Len(t, packets.ShardInfos(1), 3)

	assert.True(t, packets.CanSend(), "queue is non-empty and nothing is in flight")

	n := packets.PrepareForSend()
	assert.Equal(t, 5, n, "snapshot must count entries across all shards")
	assert.False(t, packets.CanSend(), "no new batch while one is outstanding")

	packets.SetSuccessfullySent(2)
	assert.False(t, packets.CanSend(), "batch is still partially outstanding")
	packets.SetSuccessfullySent(3)
	assert.True(t, packets.CanSend(), "counter drained to zero with a non-empty queue")
}

func TestPrepareForSendTwicePanics(t *testing.T) {
	buf := NewIoBufCapacity(protocol.CompressionDisabled, 0, 64)
	packets := NewPackets(1)
	packets.AppendRaw([]byte("abcd"), buf)

	packets.PrepareForSend()
	assert.Panics(t, func() { packets.PrepareForSend() },
		"preparing while a batch is outstanding is a broken accounting contract")
}

func TestSetSuccessfullySentUnderflowPanics(t *testing.T) {
	buf := NewIoBufCapacity(protocol.CompressionDisabled, 0, 64)
	packets := NewPackets(1)

	assert.Panics(t, func() { packets.SetSuccessfullySent(1) },
		"completions without an outstanding batch must be fatal")

	packets.AppendRaw([]byte("abcd"), buf)
	packets.PrepareForSend()
	assert.Panics(t, func() { packets.SetSuccessfullySent(2) },
		"more completions than prepared must be fatal")
}

func TestClearIsIdempotent(t *testing.T) {
	buf := NewIoBufCapacity(protocol.CompressionDisabled, 0, 64)
	packets := NewPackets(1)

	packets.Clear()
	packets.Clear()
	assert.Empty(t, packets.ShardInfos(0))

	packets.AppendRaw([]byte("abcd"), buf)
	packets.Clear()
	assert.Empty(t, packets.ShardInfos(0))
	packets.Clear()
	assert.Empty(t, packets.ShardInfos(0))
}

func TestExtendMergesShardForShard(t *testing.T) {
	buf := NewIoBufCapacity(protocol.CompressionDisabled, 0, 1024)
	own := NewPackets(1)
	other := NewPackets(1)

	own.AppendRaw([]byte("aaaa"), buf)
	other.AppendRaw([]byte("zzzzzz"), buf)

	own.Extend(other)

	infos := own.ShardInfos(0)
	require.Len(t, infos, 2, "extend must preserve entries and their order")
	assert.EqualValues(t, PacketWriteInfo{Start: 0, Len: 4}, infos[0])
	assert.EqualValues(t, PacketWriteInfo{Start: 4, Len: 6}, infos[1])
}

func TestExtendToleratesMismatchedShardCounts(t *testing.T) {
	buf := NewIoBufCapacity(protocol.CompressionDisabled, 0, 1024)

	wide := NewPackets(2)
	narrow := NewPackets(1)
	narrow.AppendRaw([]byte("aaaa"), buf)

	assert.NotPanics(t, func() { wide.Extend(narrow) })
	require.Len(t, wide.ShardInfos(0), 1, "the shared shard must still merge")
	assert.Empty(t, wide.ShardInfos(1))

	// The other direction drops the surplus shard instead of panicking.
	surplus := NewPackets(2)
	surplus.AppendRaw([]byte("bbbb"), buf)
	target := NewPackets(1)
	assert.NotPanics(t, func() { target.Extend(surplus) })
	require.Len(t, target.ShardInfos(0), 1)
}

func TestAppendPreCompressionPacketRestoresThreshold(t *testing.T) {
	buf := NewIoBufCapacity(256, 0, 1024)
	packets := NewPackets(1)

	require.EqualValues(t, 256, buf.Enc().CompressionThreshold())

	err := packets.AppendPreCompressionPacket(&testPacket{id: 0x00, body: []byte("hello")}, buf)
	require.NoError(t, err)
	assert.EqualValues(t, 256, buf.Enc().CompressionThreshold(),
		"threshold must be restored after an uncompressed append")

	require.Len(t, packets.ShardInfos(0), 1)

	boom := assert.AnError
	err = packets.AppendPreCompressionPacket(&testPacket{id: 0x00, err: boom}, buf)
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 256, buf.Enc().CompressionThreshold(),
		"threshold must be restored even when the encode fails")
	assert.Len(t, packets.ShardInfos(0), 1, "queue state must be unchanged on error")
}

func TestAppendEncodesThroughCompose(t *testing.T) {
	srv := &recordingServerDef{}
	bufs, err := InitIoBufs(protocol.CompressionDisabled, 2, 1024, srv)
	require.NoError(t, err)
	compose := NewCompose(bufs, loadOptions(WithNumShards(2), WithCompressionLevel(protocol.DefaultCompressionLevel)))
	packets := NewPackets(2)

	err = packets.Append(&testPacket{id: 0x01, body: []byte("ping")}, compose, 1)
	require.NoError(t, err)

	assert.Empty(t, packets.ShardInfos(0))
	infos := packets.ShardInfos(1)
	require.Len(t, infos, 1)
	// varint frame length + varint id + 4-byte body
	assert.EqualValues(t, 6, infos[0].Len)
}

func TestAppendPropagatesEncodeErrors(t *testing.T) {
	srv := &recordingServerDef{}
	bufs, err := InitIoBufs(protocol.CompressionDisabled, 1, 1024, srv)
	require.NoError(t, err)
	compose := NewCompose(bufs, loadOptions(WithNumShards(1)))
	packets := NewPackets(1)

	err = packets.Append(&testPacket{id: 0x01, err: assert.AnError}, compose, 0)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, packets.ShardInfos(0), "queue state must be unchanged on error")
}
