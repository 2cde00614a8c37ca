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

//go:build !linux
// +build !linux

package netio

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feathermc/netio/protocol"
)

// drainUntil polls Drain until done flips true or the deadline passes.
func drainUntil(t *testing.T, def ServerDef, f func(ServerEvent), done *bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, def.Drain(f))
		if *done {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, *done, "timed out waiting for event")
}

func TestGenericServerEndToEnd(t *testing.T) {
	def, err := newServerDef("127.0.0.1:0", loadOptions(WithNumShards(1)))
	require.NoError(t, err)
	srv := def.(*genericServer)
	defer srv.Shutdown()

	bufs, err := InitIoBufs(protocol.CompressionDisabled, 1, 4096, srv)
	require.NoError(t, err)

	client, err := net.Dial("tcp", srv.ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	var playerFd Fd
	added := false
	drainUntil(t, srv, func(ev ServerEvent) {
		if ev.Kind == AddPlayer {
			playerFd = ev.Fd
			added = true
		}
	}, &added)

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)

	var inbound []byte
	received := false
	drainUntil(t, srv, func(ev ServerEvent) {
		if ev.Kind == RecvData && ev.Fd == playerFd {
			inbound = append([]byte(nil), ev.Data...)
			received = true
		}
	}, &received)
	assert.Equal(t, []byte("ping"), inbound)

	packets := NewPackets(1)
	packets.AppendRaw([]byte("pong"), bufs.Shard(0))
	n := packets.PrepareForSend()

	srv.WriteAll(nil, []RefreshItem{{Fd: playerFd, Write: packets}})
	srv.SubmitEvents()

	sent := false
	drainUntil(t, srv, func(ev ServerEvent) {
		if ev.Kind == SentData && ev.Fd == playerFd {
			sent = true
		}
	}, &sent)
	packets.SetSuccessfullySent(n)

	reply := make([]byte, 4)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = io.ReadFull(client, reply)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(reply))
}

func TestGenericServerLocalWritesPrecedeBroadcast(t *testing.T) {
	def, err := newServerDef("127.0.0.1:0", loadOptions(WithNumShards(1)))
	require.NoError(t, err)
	srv := def.(*genericServer)
	defer srv.Shutdown()

	bufs, err := InitIoBufs(protocol.CompressionDisabled, 1, 4096, srv)
	require.NoError(t, err)

	client, err := net.Dial("tcp", srv.ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	var playerFd Fd
	added := false
	drainUntil(t, srv, func(ev ServerEvent) {
		if ev.Kind == AddPlayer {
			playerFd = ev.Fd
			added = true
		}
	}, &added)

	broadcast := NewBroadcast(1)
	broadcast.AppendRaw([]byte("BULK"), bufs.Shard(0))

	local := NewPackets(1)
	local.AppendRaw([]byte("urgent:"), bufs.Shard(0))
	local.PrepareForSend()

	srv.WriteAll(broadcast, []RefreshItem{{Fd: playerFd, Write: local}})
	srv.SubmitEvents()

	reply := make([]byte, len("urgent:BULK"))
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = io.ReadFull(client, reply)
	require.NoError(t, err)
	assert.Equal(t, "urgent:BULK", string(reply), "per-connection packets must be flushed before broadcast packets")
}

func TestGenericServerRemovePlayerOnDisconnect(t *testing.T) {
	def, err := newServerDef("127.0.0.1:0", loadOptions(WithNumShards(1)))
	require.NoError(t, err)
	srv := def.(*genericServer)
	defer srv.Shutdown()

	client, err := net.Dial("tcp", srv.ln.Addr().String())
	require.NoError(t, err)

	var playerFd Fd
	added := false
	drainUntil(t, srv, func(ev ServerEvent) {
		if ev.Kind == AddPlayer {
			playerFd = ev.Fd
			added = true
		}
	}, &added)

	require.NoError(t, client.Close())

	removed := false
	drainUntil(t, srv, func(ev ServerEvent) {
		if ev.Kind == RemovePlayer && ev.Fd == playerFd {
			removed = true
		}
	}, &removed)
}
