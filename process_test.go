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

//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

// The exec driver tests need a POSIX shell.  Other systems are left as an
// exercise for the reader.

package warden

import (
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func waitFor(pred func() bool, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if pred() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return pred()
}

func TestExecDriverStartStop(t *testing.T) {
	Convey("Exec driver start/stop", t, func() {
		s := NewSupervisor("ExecStartStop")
		s.SetLogWriter(&testLog{t: t})

		e := s.AddProcess("sleeper", 1,
			[]string{"/bin/sh", "-c", "sleep 3600"}, nil, "", false, false)
		So(e, ShouldBeNil)
		p := s.GetProcess("sleeper")
		So(p, ShouldNotBeNil)
		So(p.IsRunning(), ShouldBeFalse)

		s.StartProcess("sleeper")
		So(p.IsRunning(), ShouldBeTrue)

		s.KillProcess("sleeper")
		So(waitFor(func() bool { return !p.IsRunning() }, 5*time.Second),
			ShouldBeTrue)

		// The record survives exit until explicitly removed.
		So(s.GetProcess("sleeper"), ShouldNotBeNil)
		s.RemoveProcess("sleeper")
		So(s.GetProcess("sleeper"), ShouldBeNil)
	})
}

func TestExecDriverOutput(t *testing.T) {
	Convey("Exec driver pumps child output into the log", t, func() {
		s := NewSupervisor("ExecOutput")
		s.SetLogWriter(&testLog{t: t})

		e := s.AddProcess("echoer", 2,
			[]string{"/bin/sh", "-c", "echo hello-out; echo hello-err 1>&2"},
			nil, "", false, false)
		So(e, ShouldBeNil)
		s.StartProcess("echoer")

		logged := func(want string) bool {
			recs, _ := s.GetLog(0)
			for _, r := range recs {
				if strings.Contains(r.Text, want) {
					return true
				}
			}
			return false
		}
		So(waitFor(func() bool {
			return logged("stdout> hello-out") && logged("stderr> hello-err")
		}, 5*time.Second), ShouldBeTrue)
	})
}

func TestExecDriverStdin(t *testing.T) {
	Convey("Exec driver forwards stdin", t, func() {
		s := NewSupervisor("ExecStdin")
		s.SetLogWriter(&testLog{t: t})

		e := s.AddProcess("catter", 3,
			[]string{"/bin/sh", "-c", "read line; echo got:$line"},
			nil, "", false, false)
		So(e, ShouldBeNil)
		s.StartProcess("catter")

		So(s.SendStdin("catter", strings.NewReader("ping\n")), ShouldBeNil)
		So(waitFor(func() bool {
			recs, _ := s.GetLog(0)
			for _, r := range recs {
				if strings.Contains(r.Text, "got:ping") {
					return true
				}
			}
			return false
		}, 5*time.Second), ShouldBeTrue)
	})
}

func TestExecDriverDestroyAndDrain(t *testing.T) {
	Convey("Destroy retires the record; shutdown drains everything", t, func() {
		s := NewSupervisor("ExecDrain")
		s.SetLogWriter(&testLog{t: t})

		So(s.AddProcess("worker", 4,
			[]string{"/bin/sh", "-c", "sleep 3600"}, nil, "", false, false),
			ShouldBeNil)
		So(s.AddProcess("idle", 5,
			[]string{"/bin/true"}, nil, "", false, false),
			ShouldBeNil)
		s.StartProcess("worker")

		s.DestroyProcess("worker")
		So(waitFor(func() bool { return s.GetProcess("worker") == nil },
			5*time.Second), ShouldBeTrue)

		// "idle" never started; the drain must still retire it.
		s.Shutdown()
		So(s.OngoingProcessCount(), ShouldEqual, 0)
		So(s.GetProcess("idle"), ShouldBeNil)
	})
}
