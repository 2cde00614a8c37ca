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
	"runtime"
	"time"

	"github.com/feathermc/netio/logging"
	"github.com/feathermc/netio/protocol"
)

// Option is a function that will set up option.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := &Options{CompressionThreshold: protocol.CompressionDisabled}
	for _, option := range options {
		option(opts)
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}
	if opts.BufferCapacity <= 0 {
		opts.BufferCapacity = S2CBufferSize
	}
	if opts.CompressionLevel == 0 {
		opts.CompressionLevel = protocol.DefaultCompressionLevel
	}
	return opts
}

// Options are configured before the server starts.
type Options struct {
	// NumShards is the number of execution shards, one per packet-producing
	// worker. It defaults to the number of logical CPUs usable by the
	// current process.
	NumShards int

	// CompressionThreshold is the minimum packet body size above which the
	// payload is compressed. A negative value disables compression, which is
	// also the default.
	CompressionThreshold int32

	// CompressionLevel is the zlib level used by the per-shard compressors.
	CompressionLevel int

	// BufferCapacity is the per-shard ring buffer capacity in bytes,
	// defaulting to S2CBufferSize.
	BufferCapacity int

	// TCPKeepAlive sets the SO_KEEPALIVE socket option on accepted
	// connections when non-zero.
	TCPKeepAlive time.Duration

	// LogPath makes the default logger write to a rotating local file.
	LogPath string

	// LogLevel is the logging level of the default logger.
	LogLevel logging.Level

	// Logger replaces the default logger.
	Logger logging.Logger
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithNumShards sets the number of execution shards.
func WithNumShards(n int) Option {
	return func(opts *Options) {
		opts.NumShards = n
	}
}

// WithCompressionThreshold sets the compression threshold.
func WithCompressionThreshold(threshold int32) Option {
	return func(opts *Options) {
		opts.CompressionThreshold = threshold
	}
}

// WithCompressionLevel sets the zlib level of the shard compressors.
func WithCompressionLevel(level int) Option {
	return func(opts *Options) {
		opts.CompressionLevel = level
	}
}

// WithBufferCapacity sets the per-shard ring buffer capacity.
func WithBufferCapacity(capacity int) Option {
	return func(opts *Options) {
		opts.BufferCapacity = capacity
	}
}

// WithTCPKeepAlive sets the SO_KEEPALIVE socket option.
func WithTCPKeepAlive(d time.Duration) Option {
	return func(opts *Options) {
		opts.TCPKeepAlive = d
	}
}

// WithLogPath makes the default logger write to a rotating local file.
func WithLogPath(path string) Option {
	return func(opts *Options) {
		opts.LogPath = path
	}
}

// WithLogLevel sets the logging level of the default logger.
func WithLogLevel(lvl logging.Level) Option {
	return func(opts *Options) {
		opts.LogLevel = lvl
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}
