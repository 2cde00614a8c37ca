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
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// DefaultCompressionLevel is a reasonable speed/ratio trade-off for packet payloads.
const DefaultCompressionLevel = 4

// Compressor deflates packet payloads. One instance is owned by exactly one
// shard and reused across packets so the underlying zlib state is allocated
// once.
type Compressor struct {
	zw  *zlib.Writer
	buf bytes.Buffer
}

// NewCompressor returns a Compressor with the given zlib level.
func NewCompressor(level int) *Compressor {
	zw, err := zlib.NewWriterLevel(io.Discard, level)
	if err != nil {
		zw = zlib.NewWriter(io.Discard)
	}
	return &Compressor{zw: zw}
}

// Compress deflates src and returns the compressed bytes. The returned slice
// is only valid until the next call on this Compressor.
func (c *Compressor) Compress(src []byte) ([]byte, error) {
	c.buf.Reset()
	c.zw.Reset(&c.buf)
	if _, err := c.zw.Write(src); err != nil {
		return nil, err
	}
	if err := c.zw.Close(); err != nil {
		return nil, err
	}
	return c.buf.Bytes(), nil
}
