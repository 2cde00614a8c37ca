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

// Package protocol implements the wire codec consumed by the netio core:
// varint coding, the packet framing with its optional zlib compression
// layer, and the reusable per-shard compressor state.
package protocol

const (
	// ProtocolVersion is the protocol version this library currently targets.
	ProtocolVersion int32 = 763

	// GameVersion is the stringified name of the game version this library
	// currently targets.
	GameVersion = "1.20.1"

	// MaxPacketSize is the maximum number of bytes in a single packet.
	MaxPacketSize = 0x1F_FFFF

	// CompressionDisabled is the threshold value that turns compression off.
	CompressionDisabled int32 = -1
)

// Packet is a structured outbound packet: an identifier plus a body encoder
// that appends the packet's payload to dst and returns the extended slice.
type Packet interface {
	ID() int32
	AppendBody(dst []byte) ([]byte, error)
}
