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
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// AuthKeyEnv is the environment variable through which the exec driver
// hands a child its authentication key, so the child can connect back to
// the supervisor and claim its identity.
const AuthKeyEnv = "WARDEN_PROCESS_AUTH_KEY"

// Grace period between SIGTERM and SIGKILL on a stop.
const stopGrace = time.Second * 10

// execDriver is the default Driver, running the process via os/exec.
// It owns all live process state under its own lock; the supervisor lock
// is never held while this lock is taken from a driver goroutine, which
// keeps exit reporting free of lock-order trouble.
type execDriver struct {
	p      *Process
	logger *log.Logger

	mx       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	running  bool
	stopping bool
	stopped  bool // deliberately stopped; suppresses respawn
	doomed   bool // remove the record once the process is gone
	started  time.Time
	respawns int
}

// NewExecDriver is the default DriverFactory.
func NewExecDriver(p *Process) Driver {
	return &execDriver{p: p, logger: p.Logger()}
}

func (d *execDriver) pump(r io.ReadCloser, prefix string) {
	// Gather output in chunks of lines.
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) != 0 {
			d.logger.Print(prefix, strings.Trim(line, "\n"))
		}
		if err != nil {
			return
		}
	}
}

func (d *execDriver) Start() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.running {
		return nil
	}
	return d.startLocked()
}

// startLocked spawns the process.  Call with d.mx held.
func (d *execDriver) startLocked() error {
	argv := d.p.Command()
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = d.p.Dir()
	cmd.Env = os.Environ()
	for k, v := range d.p.Env() {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Env = append(cmd.Env, AuthKeyEnv+"="+d.p.AuthKey())

	// The pumps must drain before Wait reaps the process, or trailing
	// output is lost when Wait closes the pipes.
	pumps := &sync.WaitGroup{}
	if stdout, e := cmd.StdoutPipe(); e != nil {
		d.logger.Printf("Failed to capture stdout: %v", e)
	} else {
		pumps.Add(1)
		go func() {
			defer pumps.Done()
			d.pump(stdout, "stdout> ")
		}()
	}
	if stderr, e := cmd.StderrPipe(); e != nil {
		d.logger.Printf("Failed to capture stderr: %v", e)
	} else {
		pumps.Add(1)
		go func() {
			defer pumps.Done()
			d.pump(stderr, "stderr> ")
		}()
	}
	stdin, e := cmd.StdinPipe()
	if e != nil {
		return e
	}

	if e := cmd.Start(); e != nil {
		stdin.Close()
		return e
	}
	d.cmd = cmd
	d.stdin = stdin
	d.running = true
	d.stopping = false
	d.stopped = false
	d.started = time.Now()
	go d.wait(cmd, pumps)
	return nil
}

// wait reaps the process and reports the exit back to the supervisor.
// Runs on its own goroutine; never called with any lock held.
func (d *execDriver) wait(cmd *exec.Cmd, pumps *sync.WaitGroup) {
	pumps.Wait()
	e := cmd.Wait()

	d.mx.Lock()
	uptime := time.Since(d.started)
	d.running = false
	d.stopping = false
	if d.stdin != nil {
		d.stdin.Close()
		d.stdin = nil
	}
	doomed := d.doomed
	respawn := d.p.Respawn() && !d.stopped && !doomed
	d.mx.Unlock()

	if e != nil {
		d.logger.Printf("Exited: %v", e)
	} else {
		d.logger.Printf("Exited cleanly")
	}
	d.p.ReportStopped(uptime)

	if doomed {
		d.p.super.RemoveProcess(d.p.Name())
		return
	}
	if respawn {
		d.mx.Lock()
		d.respawns++
		d.logger.Printf("Respawning, attempt %d", d.respawns)
		err := d.startLocked()
		d.mx.Unlock()
		if err != nil {
			d.logger.Printf("Respawn failed: %v", err)
			return
		}
		d.p.ReportStarted()
	}
}

// terminate asks the process to exit, escalating to SIGKILL after the
// grace period.  Call with d.mx held.
func (d *execDriver) terminateLocked() {
	proc := d.cmd.Process
	if proc == nil {
		return
	}
	d.stopping = true
	d.stopped = true
	if e := proc.Signal(syscall.SIGTERM); e != nil {
		d.logger.Printf("Failed sending SIGTERM: %v", e)
	}
	time.AfterFunc(stopGrace, func() {
		d.mx.Lock()
		defer d.mx.Unlock()
		if d.running && d.cmd != nil && d.cmd.Process == proc {
			d.logger.Printf("Graceful stop timed out, killing")
			proc.Kill()
		}
	})
}

func (d *execDriver) Stop() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.running {
		return nil
	}
	d.terminateLocked()
	return nil
}

func (d *execDriver) Destroy() error {
	d.mx.Lock()
	d.doomed = true
	running := d.running
	if running {
		d.terminateLocked()
	}
	d.mx.Unlock()
	if !running {
		// Nothing to reap; retire the record off this call stack,
		// since the supervisor holds its lock while invoking us.
		go d.p.super.RemoveProcess(d.p.Name())
	}
	return nil
}

func (d *execDriver) Kill() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.running || d.cmd == nil || d.cmd.Process == nil {
		return nil
	}
	d.stopped = true
	return d.cmd.Process.Kill()
}

func (d *execDriver) Shutdown() {
	// Drain-phase stop: identical to Destroy, the record must go away
	// even if the process never started, or the drain would hang.
	d.Destroy()
}

func (d *execDriver) SendStdin(src io.Reader) error {
	d.mx.Lock()
	w := d.stdin
	d.mx.Unlock()
	if w == nil {
		return ErrStdinClosed
	}
	_, e := io.Copy(w, src)
	return e
}

// Reconnect hands the new management coordinates to the child over its
// standard input as one NUL-terminated control line.  Interpretation is
// the child's business; the supervisor stays transport-agnostic.
func (d *execDriver) Reconnect(scheme, host string, port int, mgmtEndpoint bool, authKey string) error {
	d.mx.Lock()
	w := d.stdin
	d.mx.Unlock()
	if w == nil {
		return ErrNotRunning
	}
	line := fmt.Sprintf("reconnect %s %s %d %t %s",
		scheme, host, port, mgmtEndpoint, authKey)
	return writeUTFZ(w, line)
}

func (d *execDriver) IsRunning() bool {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.running
}

func (d *execDriver) IsStopping() bool {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.stopping
}
