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

//go:build linux
// +build linux

package netio

import (
	"net"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	nerrors "github.com/feathermc/netio/errors"
	"github.com/feathermc/netio/logging"
	"github.com/feathermc/netio/pool/bytes"
)

const (
	// iovMax is the maximum number of vectors in one writev call.
	iovMax = 1024

	readBufferCap = 64 * 1024

	// writeStallTimeout bounds how long one backpressured connection may hold
	// the submission path before it is dropped.
	writeStallTimeout = time.Second
)

// linuxServer is the Linux backend: an epoll loop over nonblocking sockets
// with scatter-gather submission of the registered shard buffers. Buffer
// registration pins the shard rings so their addresses stay stable for the
// kernel's view of the queued iovecs.
type linuxServer struct {
	ln        net.Listener
	lnFile    *os.File
	lnFd      int
	epFd      int
	conns     map[Fd]int
	regions   [][]byte
	events    *eventQueue
	pending   []pendingWrite
	keepAlive time.Duration
	logger    logging.Logger
}

// pendingWrite is one connection's gathered iovecs, enqueued by WriteAll and
// issued by SubmitEvents.
type pendingWrite struct {
	fd  Fd
	iov [][]byte
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

	lnFile, err := ln.(*net.TCPListener).File()
	if err != nil {
		ln.Close()
		return nil, err
	}
	lnFd := int(lnFile.Fd())
	if err = unix.SetNonblock(lnFd, true); err != nil {
		lnFile.Close()
		ln.Close()
		return nil, os.NewSyscallError("setnonblock", err)
	}

	epFd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		lnFile.Close()
		ln.Close()
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	err = unix.EpollCtl(epFd, unix.EPOLL_CTL_ADD, lnFd,
		&unix.EpollEvent{Fd: int32(lnFd), Events: unix.EPOLLIN})
	if err != nil {
		unix.Close(epFd)
		lnFile.Close()
		ln.Close()
		return nil, os.NewSyscallError("epoll_ctl", err)
	}

	logger.Infof("listening on %s", ln.Addr())

	return &linuxServer{
		ln:        ln,
		lnFile:    lnFile,
		lnFd:      lnFd,
		epFd:      epFd,
		conns:     make(map[Fd]int),
		events:    newEventQueue(),
		keepAlive: opts.TCPKeepAlive,
		logger:    logger,
	}, nil
}

func (s *linuxServer) Drain(f func(ServerEvent)) error {
	for _, ev := range s.events.popAll() {
		f(ev)
	}

	var events [128]unix.EpollEvent
	for {
		n, err := unix.EpollWait(s.epFd, events[:], 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return os.NewSyscallError("epoll_wait", err)
		}
		for i := 0; i < n; i++ {
			s.dispatch(&events[i], f)
		}
		if n < len(events) {
			return nil
		}
	}
}

func (s *linuxServer) dispatch(ev *unix.EpollEvent, f func(ServerEvent)) {
	fd := int(ev.Fd)
	if fd == s.lnFd {
		s.accept(f)
		return
	}

	if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		s.closeConn(Fd(fd), f)
		return
	}

	buf := bytes.GetLen(readBufferCap)
	defer bytes.Put(buf)

	n, err := unix.Read(fd, buf)
	switch {
	case n > 0:
		f(ServerEvent{Kind: RecvData, Fd: Fd(fd), Data: buf[:n]})
	case n == 0:
		s.closeConn(Fd(fd), f)
	case err != unix.EAGAIN:
		s.logger.Errorf("read from fd %d: %v", fd, err)
		s.closeConn(Fd(fd), f)
	}
}

func (s *linuxServer) accept(f func(ServerEvent)) {
	for {
		cfd, _, err := unix.Accept4(s.lnFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err != unix.EAGAIN {
				s.logger.Errorf("accept: %v", err)
			}
			return
		}

		if secs := int(s.keepAlive / time.Second); secs > 0 {
			_ = unix.SetsockoptInt(cfd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
			_ = unix.SetsockoptInt(cfd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, secs)
			_ = unix.SetsockoptInt(cfd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, secs)
		}
		_ = unix.SetsockoptInt(cfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

		err = unix.EpollCtl(s.epFd, unix.EPOLL_CTL_ADD, cfd,
			&unix.EpollEvent{Fd: int32(cfd), Events: unix.EPOLLIN | unix.EPOLLRDHUP})
		if err != nil {
			s.logger.Errorf("epoll_ctl add fd %d: %v", cfd, err)
			unix.Close(cfd)
			continue
		}

		s.conns[Fd(cfd)] = cfd
		f(ServerEvent{Kind: AddPlayer, Fd: Fd(cfd)})
	}
}

func (s *linuxServer) closeConn(fd Fd, f func(ServerEvent)) {
	cfd, ok := s.conns[fd]
	if !ok {
		return
	}
	delete(s.conns, fd)
	if err := unix.Close(cfd); err != nil {
		s.logger.Errorf("close fd %d: %v", cfd, err)
	}
	f(ServerEvent{Kind: RemovePlayer, Fd: fd})
}

func (s *linuxServer) AllocateBuffers(regions [][]byte) error {
	if s.regions != nil {
		return nerrors.ErrBuffersAlreadyRegistered
	}
	for idx, region := range regions {
		s.logger.Debugf("buffer %d of len %d = %s", idx, len(region), humanize.IBytes(uint64(len(region))))
		if err := unix.Mlock(region); err != nil {
			return os.NewSyscallError("mlock", err)
		}
	}
	s.regions = regions
	return nil
}

// WriteAll gathers each connection's pending regions into iovecs, local
// packets strictly before broadcast packets for that connection.
func (s *linuxServer) WriteAll(broadcast *Broadcast, items []RefreshItem) {
	if s.regions == nil {
		s.logger.Errorf("write all: %v", nerrors.ErrBuffersNotRegistered)
		return
	}
	for _, item := range items {
		iov := s.gather(nil, item.Write)
		if broadcast != nil {
			iov = s.gather(iov, &broadcast.Packets)
		}
		if len(iov) == 0 {
			continue
		}
		s.pending = append(s.pending, pendingWrite{fd: item.Fd, iov: iov})
	}
}

func (s *linuxServer) gather(iov [][]byte, p *Packets) [][]byte {
	for shard := 0; shard < p.Shards(); shard++ {
		for _, info := range p.ShardInfos(shard) {
			iov = append(iov, s.regions[shard][info.Start:info.Start+info.Len])
		}
	}
	return iov
}

func (s *linuxServer) SubmitEvents() {
	for _, pw := range s.pending {
		cfd, ok := s.conns[pw.fd]
		if !ok {
			continue
		}
		if err := writevAll(cfd, pw.iov); err != nil {
			s.logger.Errorf("writev to fd %d: %v", cfd, err)
			unix.Close(cfd)
			delete(s.conns, pw.fd)
			s.events.push(ServerEvent{Kind: RemovePlayer, Fd: pw.fd})
			continue
		}
		s.events.push(ServerEvent{Kind: SentData, Fd: pw.fd})
	}
	s.pending = s.pending[:0]
}

func (s *linuxServer) Shutdown() error {
	for fd, cfd := range s.conns {
		delete(s.conns, fd)
		_ = unix.Close(cfd)
	}
	err := unix.Close(s.epFd)
	if cerr := s.lnFile.Close(); err == nil {
		err = cerr
	}
	if cerr := s.ln.Close(); err == nil {
		err = cerr
	}
	return err
}

// writevAll issues iov in chunks of at most iovMax vectors, retrying partial
// writes until every byte is handed to the kernel. A full socket buffer is
// waited out with poll; a peer that stays unwritable past writeStallTimeout
// is reported as stalled so one slow connection cannot hold the submission
// path indefinitely.
func writevAll(fd int, iov [][]byte) error {
	deadline := time.Now().Add(writeStallTimeout)
	for len(iov) > 0 {
		batch := iov
		if len(batch) > iovMax {
			batch = batch[:iovMax]
		}
		n, err := unix.Writev(fd, batch)
		if err != nil {
			if err == unix.EAGAIN {
				if err = awaitWritable(fd, deadline); err != nil {
					return err
				}
				continue
			}
			return os.NewSyscallError("writev", err)
		}
		if n == 0 {
			return nerrors.ErrShortWritev
		}
		for n > 0 {
			if n >= len(iov[0]) {
				n -= len(iov[0])
				iov = iov[1:]
			} else {
				iov[0] = iov[0][n:]
				n = 0
			}
		}
	}
	return nil
}

// awaitWritable blocks until fd accepts more data or the deadline passes.
func awaitWritable(fd int, deadline time.Time) error {
	for {
		timeout := int(time.Until(deadline) / time.Millisecond)
		if timeout <= 0 {
			return nerrors.ErrWriteStalled
		}
		pfds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(pfds, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return os.NewSyscallError("poll", err)
		}
		if n > 0 {
			return nil
		}
	}
}
