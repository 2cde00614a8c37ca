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

// Package netio is the outbound network I/O core of a high-throughput,
// many-connection game server. Game logic on per-core worker shards encodes
// packets into per-shard ring buffers; the per-connection and broadcast
// queues coalesce adjacent write regions; a single submission path hands the
// queued regions to a platform backend that batches them into as few write
// operations as possible.
package netio

import (
	"github.com/feathermc/netio/logging"
	"github.com/feathermc/netio/protocol"
)

const (
	// ProtocolVersion is the protocol version this library currently targets.
	ProtocolVersion = protocol.ProtocolVersion

	// GameVersion is the stringified name of the game version this library
	// currently targets.
	GameVersion = protocol.GameVersion

	// MaxPacketSize is the maximum number of bytes that can be sent in a single packet.
	MaxPacketSize = protocol.MaxPacketSize

	// S2CBufferSize is the server-to-client buffer capacity of one shard,
	// so the total is S2CBufferSize * number of shards.
	S2CBufferSize = 1024 * 1024 * 128
)

// Fd identifies one connection for the lifetime of that connection. It is
// opaque to callers; only equality matters. The platform backend chooses the
// encoding.
type Fd uint64

// EventKind discriminates ServerEvent.
type EventKind int8

const (
	// AddPlayer reports a newly accepted connection.
	AddPlayer EventKind = iota
	// RemovePlayer reports a closed connection.
	RemovePlayer
	// RecvData carries bytes received from a connection.
	RecvData
	// SentData reports completion of a previously submitted write batch.
	SentData
)

// ServerEvent is one inbound or completion event delivered by Drain.
// Data is only set for RecvData and is valid for the duration of the
// drain callback.
type ServerEvent struct {
	Kind EventKind
	Fd   Fd
	Data []byte
}

// RefreshItem pairs a connection with its outbound queue for WriteAll.
type RefreshItem struct {
	Fd    Fd
	Write *Packets
}

// ServerDef is the platform capability behind the event loop. One
// implementation exists per target platform, selected at build time.
type ServerDef interface {
	// Drain polls completed kernel operations without blocking and invokes f
	// once per ready event. Events for the same connection are delivered in
	// order; ordering across connections is unspecified.
	Drain(f func(ServerEvent)) error

	// AllocateBuffers registers the shard ring buffers with the I/O
	// subsystem. It must be called exactly once, after the IoBufs are
	// constructed and before the first WriteAll; the regions' addresses must
	// stay stable afterwards.
	AllocateBuffers(regions [][]byte) error

	// WriteAll enqueues the pending write regions of every item, resolving
	// them against the registered buffers. A connection's own queued packets
	// are flushed before broadcast-queued packets for that connection.
	// Completions surface as SentData events via Drain after SubmitEvents.
	WriteAll(broadcast *Broadcast, items []RefreshItem)

	// SubmitEvents flushes everything enqueued by WriteAll to the kernel.
	SubmitEvents()

	// Shutdown releases the listener and all connections.
	Shutdown() error
}

// Server wraps the backend chosen for this build.
type Server struct {
	ServerDef

	opts *Options
}

// NewServer binds and listens on address with the platform backend of this
// build. Address is a plain "host:port" TCP address.
func NewServer(address string, opts ...Option) (*Server, error) {
	options := loadOptions(opts...)

	if options.Logger == nil {
		if options.LogPath != "" {
			logger, _, err := logging.CreateLoggerAsLocalFile(options.LogPath, options.LogLevel)
			if err != nil {
				return nil, err
			}
			options.Logger = logger
		} else {
			options.Logger = logging.GetDefaultLogger()
		}
	}

	def, err := newServerDef(address, options)
	if err != nil {
		return nil, err
	}
	return &Server{ServerDef: def, opts: options}, nil
}

// Options returns the effective options the server was built with.
func (s *Server) Options() *Options {
	return s.opts
}
