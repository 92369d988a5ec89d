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

const (
	mimeJson = "application/json; charset=UTF-8"
)

// ProcessInfo describes one registered process.  The authentication key is
// deliberately absent: it travels only on the private control stream.
type ProcessInfo struct {
	Name       string   `json:"name"`
	ID         int      `json:"id"`
	Command    []string `json:"command"`
	Dir        string   `json:"dir"`
	Privileged bool     `json:"privileged"`
	Respawn    bool     `json:"respawn"`
	Running    bool     `json:"running"`
	Stopping   bool     `json:"stopping"`
}

// RegisterRequest is the body of POST /processes.
type RegisterRequest struct {
	Name       string            `json:"name"`
	ID         int               `json:"id"`
	Command    []string          `json:"command"`
	Env        map[string]string `json:"env"`
	Dir        string            `json:"dir"`
	Privileged bool              `json:"privileged"`
	Respawn    bool              `json:"respawn"`
}

// ReconnectRequest is the body of POST /processes/{process}/reconnect.
type ReconnectRequest struct {
	Scheme       string `json:"scheme"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	MgmtEndpoint bool   `json:"mgmtEndpoint"`
	AuthKey      string `json:"authKey"`
}

// CountInfo is the body of GET /count.
type CountInfo struct {
	Count int `json:"count"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}
