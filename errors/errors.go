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

package errors

import "errors"

var (
	// ErrUnsupportedPlatform occurs when an operation is invoked on the stub backend.
	ErrUnsupportedPlatform = errors.New("unsupported platform in netio")
	// ErrServerShutdown occurs when the server is closing.
	ErrServerShutdown = errors.New("server is going to be shutdown")
	// ErrBuffersAlreadyRegistered occurs when AllocateBuffers is called more than once.
	ErrBuffersAlreadyRegistered = errors.New("shard buffers are already registered")
	// ErrBuffersNotRegistered occurs when a write is issued before AllocateBuffers.
	ErrBuffersNotRegistered = errors.New("shard buffers are not registered yet")
	// ErrSendInFlight occurs when a new batch is prepared while one is still outstanding.
	ErrSendInFlight = errors.New("a send batch is already in flight")
	// ErrSendNotInFlight occurs when a completion is reported with no batch outstanding.
	ErrSendNotInFlight = errors.New("no send batch is in flight")

	// ================================================= codec errors =================================================.

	// ErrPacketTooLarge occurs when an encoded or received packet exceeds MaxPacketSize.
	ErrPacketTooLarge = errors.New("packet exceeds the maximum packet size")
	// ErrInvalidVarint occurs when a varint is malformed or overlong.
	ErrInvalidVarint = errors.New("invalid or overlong varint")
	// ErrIncompletePacket occurs when there is not enough data to decode a full frame.
	ErrIncompletePacket = errors.New("incomplete packet")
	// ErrNegativeLength occurs when a decoded frame carries a negative length.
	ErrNegativeLength = errors.New("frame length is negative")

	// =============================================== internal errors ===============================================.

	// ErrShortWritev occurs when Writev fails to send all data.
	ErrShortWritev = errors.New("short writev")
	// ErrWriteStalled occurs when a backpressured connection stays unwritable past the stall deadline.
	ErrWriteStalled = errors.New("connection write stalled")
	// ErrRegionTooLarge occurs when an append does not fit into a shard's ring buffer.
	ErrRegionTooLarge = errors.New("region does not fit into the ring buffer")
)
