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

	"github.com/feathermc/netio/errors"
)

// Frame is one decoded inbound packet.
type Frame struct {
	ID   int32
	Body []byte // valid until the next call on the Decoder that produced it
}

// Decoder accumulates inbound bytes and yields complete packet frames,
// inflating compressed payloads when a compression threshold is set.
// A Decoder is owned by a single connection and is not safe for concurrent use.
type Decoder struct {
	buf       []byte
	body      []byte // storage handed out via Frame.Body
	threshold int32
	zr        io.ReadCloser
	inflated  bytes.Buffer
}

// NewDecoder returns a Decoder with compression disabled.
func NewDecoder() *Decoder {
	return &Decoder{threshold: CompressionDisabled}
}

// SetCompression sets the compression threshold; any non-negative value makes
// the decoder expect the compressed framing.
func (d *Decoder) SetCompression(threshold int32) {
	d.threshold = threshold
}

// CompressionThreshold returns the current compression threshold.
func (d *Decoder) CompressionThreshold() int32 {
	return d.threshold
}

// Queue appends raw bytes received from the peer.
func (d *Decoder) Queue(p []byte) {
	d.buf = append(d.buf, p...)
}

// TryNextPacket decodes the next complete frame, or returns (nil, nil) when
// more bytes are needed. Frame bodies alias decoder-owned storage.
func (d *Decoder) TryNextPacket() (*Frame, error) {
	frameLen, hdr, err := Varint(d.buf)
	if err != nil {
		return nil, err
	}
	if hdr == 0 {
		return nil, nil
	}
	if frameLen < 0 {
		return nil, errors.ErrNegativeLength
	}
	if frameLen > MaxPacketSize {
		return nil, errors.ErrPacketTooLarge
	}
	if len(d.buf) < hdr+int(frameLen) {
		return nil, nil
	}

	frame := d.buf[hdr : hdr+int(frameLen)]
	body := frame
	if d.threshold >= 0 {
		if body, err = d.inflate(frame); err != nil {
			return nil, err
		}
	}

	id, n, err := Varint(body)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.ErrIncompletePacket
	}

	// The body may alias d.buf, which is compacted below; move it into
	// decoder-owned storage before releasing the consumed frame.
	d.body = append(d.body[:0], body[n:]...)
	d.buf = append(d.buf[:0], d.buf[hdr+int(frameLen):]...)
	return &Frame{ID: id, Body: d.body}, nil
}

// inflate unwraps the compressed framing: a varint uncompressed length
// followed by either a zlib stream or, when the length is 0, the raw payload.
func (d *Decoder) inflate(frame []byte) ([]byte, error) {
	dataLen, n, err := Varint(frame)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.ErrIncompletePacket
	}
	if dataLen == 0 {
		return frame[n:], nil
	}
	if dataLen < 0 {
		return nil, errors.ErrNegativeLength
	}
	if dataLen > MaxPacketSize {
		return nil, errors.ErrPacketTooLarge
	}

	src := bytes.NewReader(frame[n:])
	if d.zr == nil {
		if d.zr, err = zlib.NewReader(src); err != nil {
			return nil, err
		}
	} else if err = d.zr.(zlib.Resetter).Reset(src, nil); err != nil {
		return nil, err
	}

	d.inflated.Reset()
	if _, err = io.CopyN(&d.inflated, d.zr, int64(dataLen)); err != nil {
		return nil, err
	}
	return d.inflated.Bytes(), nil
}
