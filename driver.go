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
)

// Driver performs the operating system level work for one Process record:
// spawning, signaling, stream plumbing, and exit detection.  The supervisor
// calls these methods while holding its own lock, so implementations must
// not call back into the supervisor synchronously; exit reporting and
// respawn run on the driver's own goroutines via Process.ReportStarted,
// Process.ReportStopped, and Supervisor.RemoveProcess.
//
// Lifecycle errors returned from Start, Stop, Destroy, Kill, and Reconnect
// are not surfaced to the supervisor's callers; the supervisor logs them
// and broadcasts OPERATION_FAILED.  SendStdin errors do reach the caller.
type Driver interface {
	// Start spawns the process.  Starting a running process is a no-op.
	Start() error

	// Stop requests a graceful shutdown of the process, escalating as the
	// driver sees fit.  The record remains registered after exit.
	Stop() error

	// Destroy stops the process and removes its record once it is gone.
	Destroy() error

	// Kill forcibly terminates the process.
	Kill() error

	// Shutdown is the drain-phase stop: like Destroy, it guarantees the
	// record is eventually removed, even if the process never started.
	Shutdown()

	// SendStdin copies the byte source to the process standard input.
	SendStdin(src io.Reader) error

	// Reconnect instructs the process to re-establish its management
	// connection using new transport coordinates and a fresh key.
	Reconnect(scheme, host string, port int, mgmtEndpoint bool, authKey string) error

	IsRunning() bool
	IsStopping() bool
}

// DriverFactory builds the Driver for a newly registered record.  The
// default is NewExecDriver; tests substitute fakes through
// Supervisor.SetDriverFactory.
type DriverFactory func(p *Process) Driver
