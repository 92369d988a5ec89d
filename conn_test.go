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
	"bufio"
	"bytes"
	"encoding/binary"
	"net"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestConnFraming(t *testing.T) {
	Convey("Conn frames each message with a length prefix", t, func() {
		a, b := net.Pipe()
		defer a.Close()
		defer b.Close()

		c := NewConn(a)
		go func() {
			w, e := c.WriteMessage()
			if e != nil {
				return
			}
			(&ProcessStarted{Name: "web"}).Encode(w)
			w.Close()
		}()

		payload, e := ReadFrame(b)
		So(e, ShouldBeNil)
		So(len(payload), ShouldEqual, 5)
		ev, e := DecodeEvent(bufio.NewReader(bytes.NewReader(payload)))
		So(e, ShouldBeNil)
		So(ev, ShouldResemble, &ProcessStarted{Name: "web"})
	})
}

func sendFrame(c net.Conn, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, e := c.Write(hdr[:]); e != nil {
		return e
	}
	_, e := c.Write(payload)
	return e
}

func TestControlServerHandshake(t *testing.T) {
	Convey("Control server authenticates by process key", t,
		withSupervisor(t, "Control", func(s *Supervisor, drivers map[string]*fakeDriver) {
			So(addTestProcess(s, "alpha"), ShouldBeNil)
			key := []byte(s.GetProcess("alpha").AuthKey())

			l, e := net.Listen("tcp", "127.0.0.1:0")
			So(e, ShouldBeNil)
			defer l.Close()
			cs := NewControlServer(s)
			go cs.Serve(l)

			dial := func() net.Conn {
				c, e := net.Dial("tcp", l.Addr().String())
				So(e, ShouldBeNil)
				c.SetDeadline(time.Now().Add(5 * time.Second))
				return c
			}

			Convey("A registered key is admitted and gets the inventory", func() {
				c := dial()
				defer c.Close()
				So(sendFrame(c, key), ShouldBeNil)

				payload, e := ReadFrame(c)
				So(e, ShouldBeNil)
				ev, e := DecodeEvent(bufio.NewReader(bytes.NewReader(payload)))
				So(e, ShouldBeNil)
				inv, ok := ev.(*ProcessInventory)
				So(ok, ShouldBeTrue)
				So(len(inv.Entries), ShouldEqual, 1)
				So(inv.Entries[0].Name, ShouldEqual, "alpha")
				So(inv.Entries[0].AuthKey, ShouldResemble, key)

				Convey("And receives subsequent lifecycle events", func() {
					s.StartProcess("alpha")
					payload, e := ReadFrame(c)
					So(e, ShouldBeNil)
					ev, e := DecodeEvent(bufio.NewReader(bytes.NewReader(payload)))
					So(e, ShouldBeNil)
					So(ev, ShouldResemble, &ProcessStarted{Name: "alpha"})
				})
			})

			Convey("A truncated key is refused", func() {
				c := dial()
				defer c.Close()
				So(sendFrame(c, key[:len(key)-1]), ShouldBeNil)
				_, e := ReadFrame(c)
				So(e, ShouldNotBeNil)
			})

			Convey("An unknown key is refused", func() {
				c := dial()
				defer c.Close()
				So(sendFrame(c, bytes.Repeat([]byte{'z'}, AuthKeyEncodedLength)), ShouldBeNil)
				_, e := ReadFrame(c)
				So(e, ShouldNotBeNil)
			})
		}))
}
