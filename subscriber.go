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
	"io"
	"sync"
)

// Subscriber is one attached management session.  The supervisor writes
// each lifecycle event by opening an outbound message, encoding the
// opcode and payload into it, and closing it to frame and flush.
type Subscriber interface {
	// WriteMessage opens one outbound message.  Closing the returned
	// writer frames and flushes it.
	WriteMessage() (io.WriteCloser, error)

	// Close tears the session down, best effort.
	Close() error
}

// subscriberSet holds the live sessions.  It has its own small lock and
// hands out snapshots, so membership can change from I/O goroutines while
// a broadcast is iterating under the supervisor lock.  Removal in
// particular must be safe from inside a broadcast's failure handling.
type subscriberSet struct {
	mx   sync.Mutex
	subs []Subscriber
}

func (ss *subscriberSet) add(c Subscriber) {
	ss.mx.Lock()
	defer ss.mx.Unlock()
	for _, x := range ss.subs {
		if x == c {
			return
		}
	}
	ss.subs = append(ss.subs, c)
}

func (ss *subscriberSet) remove(c Subscriber) {
	ss.mx.Lock()
	defer ss.mx.Unlock()
	for i, x := range ss.subs {
		if x == c {
			// Copy-on-write so snapshots stay valid.
			nsubs := make([]Subscriber, 0, len(ss.subs)-1)
			nsubs = append(nsubs, ss.subs[:i]...)
			nsubs = append(nsubs, ss.subs[i+1:]...)
			ss.subs = nsubs
			return
		}
	}
}

func (ss *subscriberSet) snapshot() []Subscriber {
	ss.mx.Lock()
	defer ss.mx.Unlock()
	return ss.subs
}
