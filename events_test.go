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
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func encode(t *testing.T, ev Event) []byte {
	var buf bytes.Buffer
	if e := ev.Encode(&buf); e != nil {
		t.Fatalf("encode failed: %v", e)
	}
	return buf.Bytes()
}

func decode(t *testing.T, b []byte) Event {
	ev, e := DecodeEvent(bufio.NewReader(bytes.NewReader(b)))
	if e != nil {
		t.Fatalf("decode failed: %v", e)
	}
	return ev
}

func TestEventWireFormat(t *testing.T) {
	Convey("Event wire format", t, func() {

		Convey("PROCESS_ADDED is opcode then NUL-terminated name", func() {
			b := encode(t, &ProcessAdded{Name: "web"})
			So(b, ShouldResemble, []byte{OpcodeProcessAdded, 'w', 'e', 'b', 0})
		})

		Convey("PROCESS_STOPPED carries big-endian uptime millis", func() {
			b := encode(t, &ProcessStopped{Name: "db", Uptime: 1500 * time.Millisecond})
			So(b, ShouldResemble, []byte{
				OpcodeProcessStopped, 'd', 'b', 0,
				0, 0, 0, 0, 0, 0, 0x05, 0xdc,
			})
		})

		Convey("OPERATION_FAILED carries the operation code", func() {
			b := encode(t, &OperationFailed{Op: OperationStop, Name: "x"})
			So(b, ShouldResemble, []byte{
				OpcodeOperationFailed, byte(OperationStop), 'x', 0,
			})
		})

		Convey("Every kind survives a round trip", func() {
			key := bytes.Repeat([]byte{'k'}, AuthKeyEncodedLength)
			evs := []Event{
				&ProcessAdded{Name: "a"},
				&ProcessStarted{Name: "b"},
				&ProcessStopped{Name: "c", Uptime: time.Minute},
				&ProcessRemoved{Name: "d"},
				&ProcessInventory{Entries: []InventoryEntry{
					{Name: "e", AuthKey: key, Running: true, Stopping: false},
					{Name: "f", AuthKey: key, Running: false, Stopping: true},
				}},
				&OperationFailed{Op: OperationReconnect, Name: "g"},
			}
			for _, ev := range evs {
				So(decode(t, encode(t, ev)), ShouldResemble, ev)
			}
		})

		Convey("An unknown opcode is rejected", func() {
			_, e := DecodeEvent(bufio.NewReader(bytes.NewReader([]byte{0xff})))
			So(e, ShouldNotBeNil)
		})
	})
}
