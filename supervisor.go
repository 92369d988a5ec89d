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
	"crypto/rand"
	"encoding/base64"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCoordinator is the reserved name of the process that must drain
// before its peers during shutdown.  The rest of the platform shares this
// name as a configuration constant.
const DefaultCoordinator = "controller"

// Supervisor owns the process table, the authentication-key index, and the
// subscriber set.  A single coarse mutex serializes table and index
// mutation, the shutdown sequence, and every broadcast; the same mutex
// backs the drain condition variable.  Lifecycle commands favor control
// plane availability over acknowledgement: duplicate names, unknown names,
// and commands after shutdown are logged and ignored, never returned as
// errors.
type Supervisor struct {
	name        string
	coordinator string
	processes   map[string]*Process
	byAuthKey   map[string]*Process
	subs        subscriberSet
	newDriver   DriverFactory
	logger      *log.Logger
	mlog        *MultiLogger
	log         *Log
	mx          sync.Mutex
	cond        *sync.Cond

	// shutdown and count are also read without the main lock, so that
	// size probes never block behind a broadcast or the drain wait.
	shutdown atomic.Bool
	count    atomic.Int64
}

// NewSupervisor returns a supervisor with the default exec driver, the
// default coordinator name, and logging to stderr plus the in-memory ring.
func NewSupervisor(name string) *Supervisor {
	if name == "" {
		name = "warden"
	}
	s := &Supervisor{
		name:        name,
		coordinator: DefaultCoordinator,
		processes:   make(map[string]*Process),
		byAuthKey:   make(map[string]*Process),
		newDriver:   NewExecDriver,
	}
	s.cond = sync.NewCond(&s.mx)
	s.mlog = NewMultiLogger()
	s.log = NewLog()
	s.mlog.AddLogger(log.New(s.log, "", 0))
	s.logger = log.New(os.Stderr, "", 0)
	s.mlog.AddLogger(s.logger)
	return s
}

func (s *Supervisor) lock() {
	s.mx.Lock()
}

func (s *Supervisor) unlock() {
	s.mx.Unlock()
}

func (s *Supervisor) logf(format string, v ...interface{}) {
	s.mlog.Logger().Printf(format, v...)
}

// Name returns the name the supervisor was created with.
func (s *Supervisor) Name() string {
	return s.name
}

// SetCoordinator changes the reserved coordinator process name.  Call
// before registering processes.
func (s *Supervisor) SetCoordinator(name string) {
	s.lock()
	s.coordinator = name
	s.unlock()
}

// SetDriverFactory replaces the driver constructor used for subsequently
// registered processes.
func (s *Supervisor) SetDriverFactory(f DriverFactory) {
	s.lock()
	s.newDriver = f
	s.unlock()
}

// SetLogger replaces the default stderr logger.
func (s *Supervisor) SetLogger(l *log.Logger) {
	if s.logger != nil {
		s.mlog.DelLogger(s.logger)
	}
	s.logger = l
	s.mlog.AddLogger(l)
}

// SetLogWriter arranges for log output to be written to w, in addition to
// the other destinations.
func (s *Supervisor) SetLogWriter(w io.Writer) {
	s.SetLogger(log.New(w, "", 0))
}

// GetLog returns buffered log records newer than lastid.
func (s *Supervisor) GetLog(lastid int64) ([]LogRecord, int64) {
	return s.log.GetRecords(lastid)
}

// WatchLog blocks until the log has changed from old, or expire passes.
func (s *Supervisor) WatchLog(old int64, expire time.Duration) int64 {
	return s.log.Watch(old, expire)
}

func newAuthKey() (string, error) {
	raw := make([]byte, AuthKeyLength)
	if _, e := rand.Read(raw); e != nil {
		return "", e
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// AddProcess registers a process under a unique name.  The only hard
// failure is a defective command; a duplicate name or a registration after
// shutdown began is logged and ignored, observable via the PROCESS_ADDED
// broadcast (or its absence), not via the return value.
func (s *Supervisor) AddProcess(name string, id int, command []string,
	env map[string]string, dir string, privileged, respawn bool) error {

	if len(command) == 0 {
		return ErrEmptyCommand
	}
	for _, arg := range command {
		if arg == "" {
			return ErrNullCommandComponent
		}
	}

	// A fresh key for the loop back from the process to the supervisor.
	authKey, e := newAuthKey()
	if e != nil {
		return e
	}

	s.lock()
	defer s.unlock()
	if s.shutdown.Load() {
		return nil
	}
	if _, ok := s.processes[name]; ok {
		s.logf("Duplicate process name %s, ignoring registration", name)
		return nil
	}
	p := &Process{
		name:       name,
		id:         id,
		command:    append([]string{}, command...),
		env:        env,
		dir:        dir,
		privileged: privileged,
		respawn:    respawn,
		authKey:    authKey,
		super:      s,
		logger:     log.New(s.mlog, "["+name+"] ", 0),
	}
	p.driver = s.newDriver(p)
	s.processes[name] = p
	s.byAuthKey[authKey] = p
	s.count.Store(int64(len(s.processes)))
	s.broadcast(&ProcessAdded{Name: name})
	return nil
}

// StartProcess launches a registered process.
func (s *Supervisor) StartProcess(name string) {
	s.lock()
	defer s.unlock()
	if s.shutdown.Load() {
		return
	}
	p, ok := s.processes[name]
	if !ok {
		s.logf("Attempt to start non-existent process %s", name)
		return
	}
	if e := p.driver.Start(); e != nil {
		s.logf("Failed to start %s: %v", name, e)
		s.broadcast(&OperationFailed{Op: OperationStart, Name: name})
		return
	}
	s.broadcast(&ProcessStarted{Name: name})
}

// StopProcess requests a graceful stop.  Permitted during shutdown.
func (s *Supervisor) StopProcess(name string) {
	s.lock()
	defer s.unlock()
	p, ok := s.processes[name]
	if !ok {
		s.logf("Attempt to stop non-existent process %s", name)
		return
	}
	if e := p.driver.Stop(); e != nil {
		s.logf("Failed to stop %s: %v", name, e)
		s.broadcast(&OperationFailed{Op: OperationStop, Name: name})
	}
}

// DestroyProcess stops a process and removes its record once it exits.
func (s *Supervisor) DestroyProcess(name string) {
	s.lock()
	defer s.unlock()
	p, ok := s.processes[name]
	if !ok {
		return
	}
	if e := p.driver.Destroy(); e != nil {
		s.logf("Failed to destroy %s: %v", name, e)
		s.broadcast(&OperationFailed{Op: OperationDestroy, Name: name})
	}
}

// KillProcess forcibly terminates a process.
func (s *Supervisor) KillProcess(name string) {
	s.lock()
	defer s.unlock()
	p, ok := s.processes[name]
	if !ok {
		return
	}
	if e := p.driver.Kill(); e != nil {
		s.logf("Failed to kill %s: %v", name, e)
		s.broadcast(&OperationFailed{Op: OperationKill, Name: name})
	}
}

// RemoveProcess erases a record from the table and the key index, then
// wakes the drain wait.  Drivers call this when a destroyed or drained
// process has fully exited.
func (s *Supervisor) RemoveProcess(name string) {
	s.lock()
	defer s.unlock()
	p, ok := s.processes[name]
	if !ok {
		s.logf("Attempt to remove non-existent process %s", name)
		return
	}
	delete(s.processes, name)
	delete(s.byAuthKey, p.authKey)
	s.count.Store(int64(len(s.processes)))
	s.broadcast(&ProcessRemoved{Name: name})
	s.cond.Broadcast()
}

// SendStdin forwards a byte source to a process's standard input.  This is
// the one lifecycle path whose I/O failures surface to the caller.
func (s *Supervisor) SendStdin(name string, src io.Reader) error {
	s.lock()
	defer s.unlock()
	if s.shutdown.Load() {
		return nil
	}
	p, ok := s.processes[name]
	if !ok {
		return nil
	}
	return p.driver.SendStdin(src)
}

// SendReconnect instructs a process to re-establish its management channel
// using new coordinates and a freshly issued key.  The key is minted by
// the caller and is unrelated to the record's registration key.
func (s *Supervisor) SendReconnect(name, scheme, host string, port int,
	mgmtEndpoint bool, authKey string) {

	s.lock()
	defer s.unlock()
	p, ok := s.processes[name]
	if !ok {
		s.logf("Attempt to reconnect non-existent process %s", name)
		return
	}
	if e := p.driver.Reconnect(scheme, host, port, mgmtEndpoint, authKey); e != nil {
		s.logf("Failed to reconnect %s: %v", name, e)
		s.broadcast(&OperationFailed{Op: OperationReconnect, Name: name})
	}
}

// GetByAuthKey resolves a record from the raw bytes of its encoded
// authentication key.  Equality is over the full byte sequence; a prefix
// of a valid key finds nothing.  Returns nil when no record matches.
func (s *Supervisor) GetByAuthKey(code []byte) *Process {
	s.lock()
	defer s.unlock()
	return s.byAuthKey[string(code)]
}

// GetProcess returns the record for name, or nil.
func (s *Supervisor) GetProcess(name string) *Process {
	s.lock()
	defer s.unlock()
	return s.processes[name]
}

// Processes returns a snapshot of all records, in arbitrary order.
func (s *Supervisor) Processes() []*Process {
	s.lock()
	defer s.unlock()
	rv := make([]*Process, 0, len(s.processes))
	for _, p := range s.processes {
		rv = append(rv, p)
	}
	return rv
}

// OngoingProcessCount returns the number of registered processes, or zero
// once shutdown has begun.  It never takes the main lock.
func (s *Supervisor) OngoingProcessCount() int {
	if s.shutdown.Load() {
		return 0
	}
	return int(s.count.Load())
}

// AddSubscriber attaches a management session to the broadcast set.  The
// shutdown check runs under the main lock so a session cannot slip in
// after the drain has started.
func (s *Supervisor) AddSubscriber(c Subscriber) error {
	s.lock()
	defer s.unlock()
	if s.shutdown.Load() {
		return ErrShuttingDown
	}
	s.subs.add(c)
	return nil
}

// RemoveSubscriber detaches a session.  No main lock required: this is
// called from broadcast failure handling on the supervisor's own thread
// and from I/O goroutines at any time.
func (s *Supervisor) RemoveSubscriber(c Subscriber) {
	s.subs.remove(c)
}

// Shutdown drains the supervisor: the coordinator process first, then all
// remaining processes, blocking until the table is empty.  Idempotent; a
// second call returns once the flag is set.  There is no timeout and no
// cancellation: a stuck child stalls shutdown rather than leaving a torn
// state, and forced termination is the driver's job.
func (s *Supervisor) Shutdown() {
	s.lock()
	defer s.unlock()
	if s.shutdown.Load() {
		return
	}
	s.logf("*** %s shutting down ***", s.name)
	s.shutdown.Store(true)

	// The coordinator stops its own dependents and must be fully gone
	// before ordinary peers are torn down, so that in-flight commands
	// cannot race a disappearing coordinator.
	if hc, ok := s.processes[s.coordinator]; ok {
		hc.driver.Shutdown()
		for {
			if _, ok := s.processes[s.coordinator]; !ok {
				break
			}
			s.cond.Wait()
		}
	}
	for _, p := range s.processes {
		p.driver.Shutdown()
	}
	for len(s.processes) > 0 {
		s.cond.Wait()
	}
	s.logf("*** %s shutdown complete ***", s.name)
}

// SendInventory broadcasts a full snapshot of the process table, raw key
// bytes included, to every subscriber.  Sent on demand, typically right
// after a new subscriber attaches.
func (s *Supervisor) SendInventory() {
	s.lock()
	defer s.unlock()
	inv := &ProcessInventory{}
	for _, p := range s.processes {
		inv.Entries = append(inv.Entries, InventoryEntry{
			Name:     p.name,
			AuthKey:  []byte(p.authKey),
			Running:  p.driver.IsRunning(),
			Stopping: p.driver.IsStopping(),
		})
	}
	s.broadcast(inv)
}

func (s *Supervisor) processStarted(name string) {
	s.lock()
	defer s.unlock()
	s.broadcast(&ProcessStarted{Name: name})
}

func (s *Supervisor) processStopped(name string, uptime time.Duration) {
	s.lock()
	defer s.unlock()
	s.broadcast(&ProcessStopped{Name: name, Uptime: uptime})
}

// broadcast delivers one event to every subscriber.  Call with the lock
// held.  A write failure is isolated to its session: it is logged, the
// session is evicted and closed, and delivery continues to the rest.
func (s *Supervisor) broadcast(ev Event) {
	for _, c := range s.subs.snapshot() {
		w, e := c.WriteMessage()
		if e == nil {
			if e = ev.Encode(w); e == nil {
				e = w.Close()
			} else {
				w.Close()
			}
		}
		if e != nil {
			s.logf("Failed to write %s message: %v", ev.Tag(), e)
			s.subs.remove(c)
			c.Close()
		}
	}
}
