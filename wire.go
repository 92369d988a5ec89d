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
	"encoding/binary"
	"errors"
	"io"
)

// Low-level field encoding for the control protocol.  Strings are UTF-8
// terminated by a NUL byte, integers are big-endian, booleans one byte.
// The transport layer is responsible for framing entire messages.

const (
	// AuthKeyLength is the number of random bytes in an authentication key.
	AuthKeyLength = 16
	// AuthKeyEncodedLength is the length of a key after base64 encoding.
	// This is the form that travels on the wire.
	AuthKeyEncodedLength = 24
)

func writeUTFZ(w io.Writer, s string) error {
	if _, e := w.Write([]byte(s)); e != nil {
		return e
	}
	_, e := w.Write([]byte{0})
	return e
}

func readUTFZ(r *bufio.Reader) (string, error) {
	b, e := r.ReadBytes(0)
	if e != nil {
		return "", e
	}
	return string(b[:len(b)-1]), nil
}

func writeInt(w io.Writer, v int32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	_, e := w.Write(b[:])
	return e
}

func readInt(r io.Reader) (int32, error) {
	var b [4]byte
	if _, e := io.ReadFull(r, b[:]); e != nil {
		return 0, e
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

func writeLong(w io.Writer, v int64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	_, e := w.Write(b[:])
	return e
}

func readLong(r io.Reader) (int64, error) {
	var b [8]byte
	if _, e := io.ReadFull(r, b[:]); e != nil {
		return 0, e
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}

func writeBool(w io.Writer, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	_, e := w.Write([]byte{b})
	return e
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, e := io.ReadFull(r, b[:]); e != nil {
		return false, e
	}
	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, errors.New("invalid boolean on wire")
}
