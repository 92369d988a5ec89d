// Copyright 2026 The Warden Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package warden

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"sync"
)

// Conn adapts a stream connection to the Subscriber interface.  Each
// outbound message is buffered and, on Close, written as one frame: a
// big-endian uint32 length followed by the payload.
type Conn struct {
	c  net.Conn
	wx sync.Mutex
}

// NewConn wraps an established stream connection.
func NewConn(c net.Conn) *Conn {
	return &Conn{c: c}
}

type message struct {
	conn *Conn
	buf  bytes.Buffer
	done bool
}

func (m *message) Write(b []byte) (int, error) {
	return m.buf.Write(b)
}

// Close frames and flushes the message.
func (m *message) Close() error {
	if m.done {
		return nil
	}
	m.done = true
	return m.conn.writeFrame(m.buf.Bytes())
}

func (c *Conn) writeFrame(payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	c.wx.Lock()
	defer c.wx.Unlock()
	if _, e := c.c.Write(hdr[:]); e != nil {
		return e
	}
	_, e := c.c.Write(payload)
	return e
}

// WriteMessage opens one outbound message on the connection.
func (c *Conn) WriteMessage() (io.WriteCloser, error) {
	return &message{conn: c}, nil
}

func (c *Conn) Close() error {
	return c.c.Close()
}

// ReadFrame reads one length-prefixed frame.  This is the inbound half of
// the protocol, used for the subscriber handshake and by clients reading
// the event stream.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, e := io.ReadFull(r, hdr[:]); e != nil {
		return nil, e
	}
	payload := make([]byte, binary.BigEndian.Uint32(hdr[:]))
	if _, e := io.ReadFull(r, payload); e != nil {
		return nil, e
	}
	return payload, nil
}

// ControlServer accepts subscriber sessions for a supervisor.  A session
// opens with one frame carrying the raw bytes of a registered process's
// authentication key; an unrecognized key closes the connection.  An
// authenticated session joins the broadcast set and immediately receives a
// full PROCESS_INVENTORY.
type ControlServer struct {
	s *Supervisor
}

func NewControlServer(s *Supervisor) *ControlServer {
	return &ControlServer{s: s}
}

// Serve accepts sessions on l until it is closed.
func (cs *ControlServer) Serve(l net.Listener) error {
	for {
		c, e := l.Accept()
		if e != nil {
			return e
		}
		go cs.handle(c)
	}
}

// ListenAndServe listens on the TCP address addr and serves sessions.
func (cs *ControlServer) ListenAndServe(addr string) error {
	l, e := net.Listen("tcp", addr)
	if e != nil {
		return e
	}
	return cs.Serve(l)
}

func (cs *ControlServer) handle(nc net.Conn) {
	key, e := ReadFrame(nc)
	if e != nil {
		nc.Close()
		return
	}
	if p := cs.s.GetByAuthKey(key); p == nil {
		cs.s.logf("Rejected control connection from %s: %v",
			nc.RemoteAddr(), ErrAuthFailed)
		nc.Close()
		return
	}
	c := NewConn(nc)
	if e := cs.s.AddSubscriber(c); e != nil {
		c.Close()
		return
	}
	cs.s.SendInventory()

	// Drain the inbound side until the peer goes away, then detach.
	// Inbound commands arrive over the REST surface, not this stream.
	buf := make([]byte, 512)
	for {
		if _, e := nc.Read(buf); e != nil {
			break
		}
	}
	cs.s.RemoveSubscriber(c)
	c.Close()
}
