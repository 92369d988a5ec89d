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
	"fmt"
	"io"
	"time"
)

// Lifecycle event opcodes.  Each control message is one opcode byte followed
// by operation specific fields.  The numbering is local to this protocol;
// subscribers and supervisor must simply agree.
const (
	OpcodeProcessAdded     byte = 0x10
	OpcodeProcessStarted   byte = 0x11
	OpcodeProcessStopped   byte = 0x12
	OpcodeProcessRemoved   byte = 0x13
	OpcodeProcessInventory byte = 0x14
	OpcodeOperationFailed  byte = 0x15
)

// OperationType identifies the lifecycle operation that an OperationFailed
// event reports on.
type OperationType byte

const (
	OperationStart OperationType = iota + 1
	OperationStop
	OperationDestroy
	OperationKill
	OperationRemove
	OperationSendStdin
	OperationReconnect
)

func (t OperationType) String() string {
	switch t {
	case OperationStart:
		return "start"
	case OperationStop:
		return "stop"
	case OperationDestroy:
		return "destroy"
	case OperationKill:
		return "kill"
	case OperationRemove:
		return "remove"
	case OperationSendStdin:
		return "send-stdin"
	case OperationReconnect:
		return "reconnect"
	}
	return fmt.Sprintf("operation-%d", byte(t))
}

// Event is one lifecycle broadcast.  The concrete types below form a closed
// set; each knows how to encode itself onto a message stream.
type Event interface {
	// Encode writes the opcode and payload to w.  The caller owns framing.
	Encode(w io.Writer) error
	// Tag returns the protocol name of the event, for logging.
	Tag() string
}

type ProcessAdded struct {
	Name string
}

func (ev *ProcessAdded) Tag() string { return "PROCESS_ADDED" }

func (ev *ProcessAdded) Encode(w io.Writer) error {
	if _, e := w.Write([]byte{OpcodeProcessAdded}); e != nil {
		return e
	}
	return writeUTFZ(w, ev.Name)
}

type ProcessStarted struct {
	Name string
}

func (ev *ProcessStarted) Tag() string { return "PROCESS_STARTED" }

func (ev *ProcessStarted) Encode(w io.Writer) error {
	if _, e := w.Write([]byte{OpcodeProcessStarted}); e != nil {
		return e
	}
	return writeUTFZ(w, ev.Name)
}

type ProcessStopped struct {
	Name   string
	Uptime time.Duration
}

func (ev *ProcessStopped) Tag() string { return "PROCESS_STOPPED" }

func (ev *ProcessStopped) Encode(w io.Writer) error {
	if _, e := w.Write([]byte{OpcodeProcessStopped}); e != nil {
		return e
	}
	if e := writeUTFZ(w, ev.Name); e != nil {
		return e
	}
	return writeLong(w, ev.Uptime.Milliseconds())
}

type ProcessRemoved struct {
	Name string
}

func (ev *ProcessRemoved) Tag() string { return "PROCESS_REMOVED" }

func (ev *ProcessRemoved) Encode(w io.Writer) error {
	if _, e := w.Write([]byte{OpcodeProcessRemoved}); e != nil {
		return e
	}
	return writeUTFZ(w, ev.Name)
}

// InventoryEntry is one record in a full process snapshot.  The key is the
// raw encoded authentication key bytes, always AuthKeyEncodedLength long.
type InventoryEntry struct {
	Name     string
	AuthKey  []byte
	Running  bool
	Stopping bool
}

type ProcessInventory struct {
	Entries []InventoryEntry
}

func (ev *ProcessInventory) Tag() string { return "PROCESS_INVENTORY" }

func (ev *ProcessInventory) Encode(w io.Writer) error {
	if _, e := w.Write([]byte{OpcodeProcessInventory}); e != nil {
		return e
	}
	if e := writeInt(w, int32(len(ev.Entries))); e != nil {
		return e
	}
	for _, ent := range ev.Entries {
		if e := writeUTFZ(w, ent.Name); e != nil {
			return e
		}
		if _, e := w.Write(ent.AuthKey); e != nil {
			return e
		}
		if e := writeBool(w, ent.Running); e != nil {
			return e
		}
		if e := writeBool(w, ent.Stopping); e != nil {
			return e
		}
	}
	return nil
}

type OperationFailed struct {
	Op   OperationType
	Name string
}

func (ev *OperationFailed) Tag() string { return "OPERATION_FAILED" }

func (ev *OperationFailed) Encode(w io.Writer) error {
	if _, e := w.Write([]byte{OpcodeOperationFailed, byte(ev.Op)}); e != nil {
		return e
	}
	return writeUTFZ(w, ev.Name)
}

// DecodeEvent reads one event payload from r.  This is the subscriber side
// of the protocol; r must be positioned at the opcode byte of an unframed
// message payload.
func DecodeEvent(r *bufio.Reader) (Event, error) {
	op, e := r.ReadByte()
	if e != nil {
		return nil, e
	}
	switch op {
	case OpcodeProcessAdded:
		name, e := readUTFZ(r)
		if e != nil {
			return nil, e
		}
		return &ProcessAdded{Name: name}, nil
	case OpcodeProcessStarted:
		name, e := readUTFZ(r)
		if e != nil {
			return nil, e
		}
		return &ProcessStarted{Name: name}, nil
	case OpcodeProcessStopped:
		name, e := readUTFZ(r)
		if e != nil {
			return nil, e
		}
		ms, e := readLong(r)
		if e != nil {
			return nil, e
		}
		return &ProcessStopped{
			Name:   name,
			Uptime: time.Duration(ms) * time.Millisecond,
		}, nil
	case OpcodeProcessRemoved:
		name, e := readUTFZ(r)
		if e != nil {
			return nil, e
		}
		return &ProcessRemoved{Name: name}, nil
	case OpcodeProcessInventory:
		cnt, e := readInt(r)
		if e != nil {
			return nil, e
		}
		inv := &ProcessInventory{}
		for i := int32(0); i < cnt; i++ {
			var ent InventoryEntry
			if ent.Name, e = readUTFZ(r); e != nil {
				return nil, e
			}
			ent.AuthKey = make([]byte, AuthKeyEncodedLength)
			if _, e = io.ReadFull(r, ent.AuthKey); e != nil {
				return nil, e
			}
			if ent.Running, e = readBool(r); e != nil {
				return nil, e
			}
			if ent.Stopping, e = readBool(r); e != nil {
				return nil, e
			}
			inv.Entries = append(inv.Entries, ent)
		}
		return inv, nil
	case OpcodeOperationFailed:
		t, e := r.ReadByte()
		if e != nil {
			return nil, e
		}
		name, e := readUTFZ(r)
		if e != nil {
			return nil, e
		}
		return &OperationFailed{Op: OperationType(t), Name: name}, nil
	}
	return nil, fmt.Errorf("unknown event opcode 0x%02x", op)
}
