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
	"log"
	"time"
)

// Process is the supervisor's record of one managed child process.  The
// launch parameters are fixed at registration; live state (running,
// stopping) is owned by the record's Driver.  Records are created by
// Supervisor.AddProcess and destroyed only by Supervisor.RemoveProcess.
type Process struct {
	name       string
	id         int
	command    []string
	env        map[string]string
	dir        string
	privileged bool
	respawn    bool
	authKey    string // base64, AuthKeyEncodedLength characters
	driver     Driver
	super      *Supervisor
	logger     *log.Logger
}

func (p *Process) Name() string {
	return p.name
}

func (p *Process) ID() int {
	return p.id
}

// Command returns a copy of the launch argv.
func (p *Process) Command() []string {
	return append([]string{}, p.command...)
}

// Env returns a copy of the extra environment for the process.
func (p *Process) Env() map[string]string {
	rv := make(map[string]string, len(p.env))
	for k, v := range p.env {
		rv[k] = v
	}
	return rv
}

func (p *Process) Dir() string {
	return p.dir
}

func (p *Process) Privileged() bool {
	return p.privileged
}

func (p *Process) Respawn() bool {
	return p.respawn
}

// AuthKey returns the record's encoded authentication key.  The raw bytes
// of this string are what a reconnecting process presents on the wire.
func (p *Process) AuthKey() string {
	return p.authKey
}

// Logger returns the per-process logger.  Drivers write child output and
// lifecycle notes here; it fans out to the supervisor's log destinations.
func (p *Process) Logger() *log.Logger {
	return p.logger
}

// IsRunning reports whether the driver considers the process running.
// State queries go straight to the driver, never through the supervisor
// lock, so they are safe from any goroutine.
func (p *Process) IsRunning() bool {
	return p.driver.IsRunning()
}

func (p *Process) IsStopping() bool {
	return p.driver.IsStopping()
}

// ReportStarted is called by drivers when the process (re)starts outside
// a Supervisor.StartProcess call, e.g. on a respawn.  It must not be
// called from inside a Driver method that the supervisor invoked.
func (p *Process) ReportStarted() {
	p.super.processStarted(p.name)
}

// ReportStopped is called by drivers when the process exits.  The uptime
// is broadcast to subscribers in milliseconds.
func (p *Process) ReportStopped(uptime time.Duration) {
	p.super.processStopped(p.name, uptime)
}
