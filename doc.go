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

// Package warden provides a single-node process supervisor.  It launches,
// tracks, and tears down a set of named child processes on behalf of a
// larger platform, and streams their lifecycle events to any number of
// attached management sessions over a small framed control protocol.
//
// The Supervisor is the coordination point between the processes that
// should exist and the processes that actually exist.  It owns a table of
// process records keyed by name, a secondary index keyed by each record's
// random authentication key (used to authenticate a managed process that
// connects back to claim its identity), and the set of subscriber sessions
// that receive lifecycle broadcasts.
//
// The actual spawning and reaping of operating system processes is done
// by a Driver.  The default exec-based driver lives in this package;
// tests and embedders may substitute their own via a DriverFactory.
package warden
