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
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	nerrors "github.com/feathermc/netio/errors"
	"github.com/feathermc/netio/logging"
	"github.com/feathermc/netio/pool/bytes"
	"github.com/feathermc/netio/pool/goroutine"
)

const genericReadBufferCap = 64 * 1024

// genericServer is the portable fallback backend: standard library sockets,
// one reader goroutine per connection feeding the event queue, and writes
// executed on a worker pool. It honors the same ServerDef contract as the
// zero-copy backend, without the zero-copy.
type genericServer struct {
	ln        net.Listener
	mu        sync.Mutex
	conns     map[Fd]net.Conn
	regions   [][]byte
	events    *eventQueue
	pending   []genericWrite
	inFlight  sync.WaitGroup
	pool      *goroutine.Pool
	nextFd    uint64
	closed    atomic.Bool
	keepAlive time.Duration
	logger    logging.Logger
}

type genericWrite struct {
	fd   Fd
	bufs [][]byte
}

func newServerDef(address string, opts *Options) (ServerDef, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}

	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	logger.Infof("listening on %s", ln.Addr())

	s := &genericServer{
		ln:        ln,
		conns:     make(map[Fd]net.Conn),
		events:    newEventQueue(),
		pool:      goroutine.Default(),
		keepAlive: opts.TCPKeepAlive,
		logger:    logger,
	}
	go s.acceptLoop()
	return s, nil
}

func (s *genericServer) acceptLoop() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			if !s.closed.Load() {
				s.logger.Errorf("accept: %v", err)
			}
			return
		}

		if tc, ok := c.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
			if s.keepAlive > 0 {
				_ = tc.SetKeepAlive(true)
				_ = tc.SetKeepAlivePeriod(s.keepAlive)
			}
		}

		fd := Fd(atomic.AddUint64(&s.nextFd, 1))
		s.mu.Lock()
		s.conns[fd] = c
		s.mu.Unlock()

		s.events.push(ServerEvent{Kind: AddPlayer, Fd: fd})
		go s.readLoop(fd, c)
	}
}

func (s *genericServer) readLoop(fd Fd, c net.Conn) {
	buf := make([]byte, genericReadBufferCap)
	for {
		n, err := c.Read(buf)
		if n > 0 {
			data := bytes.GetLen(n)
			copy(data, buf[:n])
			s.events.push(ServerEvent{Kind: RecvData, Fd: fd, Data: data})
		}
		if err != nil {
			if err != io.EOF && !s.closed.Load() {
				s.logger.Debugf("read from connection %d: %v", fd, err)
			}
			s.dropConn(fd)
			return
		}
	}
}

func (s *genericServer) dropConn(fd Fd) {
	s.mu.Lock()
	c, ok := s.conns[fd]
	if ok {
		delete(s.conns, fd)
	}
	s.mu.Unlock()
	if ok {
		_ = c.Close()
		s.events.push(ServerEvent{Kind: RemovePlayer, Fd: fd})
	}
}

func (s *genericServer) Drain(f func(ServerEvent)) error {
	if s.closed.Load() {
		return nerrors.ErrServerShutdown
	}
	for _, ev := range s.events.popAll() {
		f(ev)
		if ev.Kind == RecvData {
			bytes.Put(ev.Data)
		}
	}
	return nil
}

func (s *genericServer) AllocateBuffers(regions [][]byte) error {
	if s.regions != nil {
		return nerrors.ErrBuffersAlreadyRegistered
	}
	for idx, region := range regions {
		s.logger.Debugf("buffer %d of len %d = %s", idx, len(region), humanize.IBytes(uint64(len(region))))
	}
	s.regions = regions
	return nil
}

// WriteAll resolves each connection's pending regions against the registered
// buffers, local packets strictly before broadcast packets.
func (s *genericServer) WriteAll(broadcast *Broadcast, items []RefreshItem) {
	if s.regions == nil {
		s.logger.Errorf("write all: %v", nerrors.ErrBuffersNotRegistered)
		return
	}
	for _, item := range items {
		bufs := s.gather(nil, item.Write)
		if broadcast != nil {
			bufs = s.gather(bufs, &broadcast.Packets)
		}
		if len(bufs) == 0 {
			continue
		}
		s.pending = append(s.pending, genericWrite{fd: item.Fd, bufs: bufs})
	}
}

func (s *genericServer) gather(bufs [][]byte, p *Packets) [][]byte {
	for shard := 0; shard < p.Shards(); shard++ {
		for _, info := range p.ShardInfos(shard) {
			bufs = append(bufs, s.regions[shard][info.Start:info.Start+info.Len])
		}
	}
	return bufs
}

// SubmitEvents hands every pending batch to the worker pool; each completed
// batch surfaces as a SentData event on the next Drain.
func (s *genericServer) SubmitEvents() {
	for _, pw := range s.pending {
		s.mu.Lock()
		c, ok := s.conns[pw.fd]
		s.mu.Unlock()
		if !ok {
			continue
		}

		pw := pw
		s.inFlight.Add(1)
		err := s.pool.Submit(func() {
			defer s.inFlight.Done()
			for _, b := range pw.bufs {
				if _, werr := c.Write(b); werr != nil {
					s.logger.Errorf("write to connection %d: %v", pw.fd, werr)
					s.dropConn(pw.fd)
					return
				}
			}
			s.events.push(ServerEvent{Kind: SentData, Fd: pw.fd})
		})
		if err != nil {
			s.inFlight.Done()
			s.logger.Errorf("submit write for connection %d: %v", pw.fd, err)
		}
	}
	s.pending = s.pending[:0]
}

func (s *genericServer) Shutdown() error {
	s.closed.Store(true)
	err := s.ln.Close()

	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for fd, c := range s.conns {
		conns = append(conns, c)
		delete(s.conns, fd)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}

	s.inFlight.Wait()
	s.pool.Release()
	return err
}
