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

package rest

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/net/context"

	"github.com/opsforge/warden"
)

// stubDriver is a minimal warden.Driver for exercising the HTTP surface.
type stubDriver struct {
	s *warden.Supervisor
	p *warden.Process

	sync.Mutex
	running bool
	stdin   bytes.Buffer
}

func (d *stubDriver) Start() error {
	d.Lock()
	defer d.Unlock()
	d.running = true
	return nil
}

func (d *stubDriver) Stop() error {
	d.Lock()
	defer d.Unlock()
	d.running = false
	return nil
}

func (d *stubDriver) Destroy() error {
	d.Stop()
	go d.s.RemoveProcess(d.p.Name())
	return nil
}

func (d *stubDriver) Kill() error {
	return d.Stop()
}

func (d *stubDriver) Shutdown() {
	d.Destroy()
}

func (d *stubDriver) SendStdin(src io.Reader) error {
	d.Lock()
	defer d.Unlock()
	_, e := io.Copy(&d.stdin, src)
	return e
}

func (d *stubDriver) Reconnect(scheme, host string, port int, mgmt bool, key string) error {
	return nil
}

func (d *stubDriver) IsRunning() bool {
	d.Lock()
	defer d.Unlock()
	return d.running
}

func (d *stubDriver) IsStopping() bool {
	return false
}

func withServer(fn func(s *warden.Supervisor, h *Handler, c *Client, drivers map[string]*stubDriver)) func() {
	return func() {
		drivers := make(map[string]*stubDriver)
		s := warden.NewSupervisor("rest-test")
		s.SetLogWriter(io.Discard)
		s.SetDriverFactory(func(p *warden.Process) warden.Driver {
			d := &stubDriver{s: s, p: p}
			drivers[p.Name()] = d
			return d
		})
		h := NewHandler(s)
		srv := httptest.NewServer(h)
		Reset(func() {
			srv.Close()
		})
		fn(s, h, NewClient(srv.Client(), srv.URL), drivers)
	}
}

func TestRestSurface(t *testing.T) {
	ctx := context.Background()

	Convey("REST command surface", t,
		withServer(func(s *warden.Supervisor, h *Handler, c *Client, drivers map[string]*stubDriver) {

			Convey("Registration, listing, and info", func() {
				e := c.Register(ctx, &RegisterRequest{
					Name:    "web",
					ID:      7,
					Command: []string{"/bin/httpd", "-f"},
					Respawn: true,
				})
				So(e, ShouldBeNil)

				names, e := c.Processes(ctx)
				So(e, ShouldBeNil)
				So(names, ShouldResemble, []string{"web"})

				info, e := c.GetProcess(ctx, "web")
				So(e, ShouldBeNil)
				So(info.ID, ShouldEqual, 7)
				So(info.Command, ShouldResemble, []string{"/bin/httpd", "-f"})
				So(info.Respawn, ShouldBeTrue)
				So(info.Running, ShouldBeFalse)

				Convey("Lifecycle round trip", func() {
					So(c.Start(ctx, "web"), ShouldBeNil)
					info, e = c.GetProcess(ctx, "web")
					So(e, ShouldBeNil)
					So(info.Running, ShouldBeTrue)

					n, e := c.Count(ctx)
					So(e, ShouldBeNil)
					So(n, ShouldEqual, 1)

					So(c.SendStdin(ctx, "web", strings.NewReader("ping")), ShouldBeNil)
					So(drivers["web"].stdin.String(), ShouldEqual, "ping")

					So(c.Stop(ctx, "web"), ShouldBeNil)
					So(drivers["web"].IsRunning(), ShouldBeFalse)

					So(c.Remove(ctx, "web"), ShouldBeNil)
					_, e = c.GetProcess(ctx, "web")
					re, ok := e.(*Error)
					So(ok, ShouldBeTrue)
					So(re.Code, ShouldEqual, 404)
				})
			})

			Convey("A defective command is a 400", func() {
				e := c.Register(ctx, &RegisterRequest{
					Name:    "bad",
					Command: []string{"/bin/true", ""},
				})
				re, ok := e.(*Error)
				So(ok, ShouldBeTrue)
				So(re.Code, ShouldEqual, 400)
				names, e := c.Processes(ctx)
				So(e, ShouldBeNil)
				So(len(names), ShouldEqual, 0)
			})

			Convey("Lifecycle of an unknown name is still a 200", func() {
				So(c.Start(ctx, "ghost"), ShouldBeNil)
				So(c.Stop(ctx, "ghost"), ShouldBeNil)
				So(c.Remove(ctx, "ghost"), ShouldBeNil)
			})

			Convey("The log endpoint serves buffered records", func() {
				e := c.Register(ctx, &RegisterRequest{
					Name:    "noisy",
					Command: []string{"/bin/true"},
				})
				So(e, ShouldBeNil)
				// Provoke a logged no-op.
				So(c.Register(ctx, &RegisterRequest{
					Name:    "noisy",
					Command: []string{"/bin/true"},
				}), ShouldBeNil)

				recs, e := c.Log(ctx, 0, 0)
				So(e, ShouldBeNil)
				found := false
				for _, r := range recs {
					if strings.Contains(r.Text, "Duplicate process name") {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})

			Convey("Basic auth", func() {
				hash, e := bcrypt.GenerateFromPassword([]byte("sekret"), bcrypt.MinCost)
				So(e, ShouldBeNil)
				h.SetAuth("admin", hash)

				_, e = c.Processes(ctx)
				So(e, ShouldNotBeNil)

				c.SetAuth("admin", "wrong")
				_, e = c.Processes(ctx)
				So(e, ShouldNotBeNil)

				c.SetAuth("admin", "sekret")
				_, e = c.Processes(ctx)
				So(e, ShouldBeNil)
			})
		}))
}
