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
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/opsforge/warden"
)

// Handler wraps a Supervisor, adding http.Handler functionality.  The
// lifecycle endpoints mirror the supervisor's log-don't-fail contract:
// they return 200 even when the command was a logical no-op, and only
// caller-input errors surface as 4xx.
type Handler struct {
	s    *warden.Supervisor
	r    *mux.Router
	user string
	hash []byte
	auth bool
}

var ok struct{}

// NewHandler returns an http.Handler exposing the supervisor command set.
func NewHandler(s *warden.Supervisor) *Handler {
	r := mux.NewRouter()
	h := &Handler{s: s, r: r}
	r.HandleFunc("/processes", h.listProcesses).Methods("GET")
	r.HandleFunc("/processes", h.registerProcess).Methods("POST")
	r.HandleFunc("/processes/{process}", h.getProcess).Methods("GET")
	r.HandleFunc("/processes/{process}", h.removeProcess).Methods("DELETE")
	r.HandleFunc("/processes/{process}/start", h.startProcess).Methods("POST")
	r.HandleFunc("/processes/{process}/stop", h.stopProcess).Methods("POST")
	r.HandleFunc("/processes/{process}/destroy", h.destroyProcess).Methods("POST")
	r.HandleFunc("/processes/{process}/kill", h.killProcess).Methods("POST")
	r.HandleFunc("/processes/{process}/reconnect", h.reconnectProcess).Methods("POST")
	r.HandleFunc("/processes/{process}/stdin", h.sendStdin).Methods("POST")
	r.HandleFunc("/count", h.getCount).Methods("GET")
	r.HandleFunc("/log", h.getLog).Methods("GET")
	r.HandleFunc("/shutdown", h.shutdown).Methods("POST")
	return h
}

// SetAuth enables HTTP basic authentication.  The hash is a bcrypt hash of
// the password; the plaintext is never stored server side.
func (h *Handler) SetAuth(user string, passwordHash []byte) {
	h.user = user
	h.hash = passwordHash
	h.auth = true
}

func (h *Handler) authorized(r *http.Request) bool {
	if !h.auth {
		return true
	}
	user, pass, got := r.BasicAuth()
	if !got {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(user), []byte(h.user)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword(h.hash, []byte(pass)) == nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !h.authorized(req) {
		w.Header().Set("WWW-Authenticate", `Basic realm="warden"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	h.r.ServeHTTP(w, req)
}

func (h *Handler) internalError(w http.ResponseWriter, e error) {
	http.Error(w, e.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeJson(w http.ResponseWriter, v interface{}) {
	if b, e := json.Marshal(v); e != nil {
		h.internalError(w, e)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.Write(b)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, e *Error) {
	if b, err := json.Marshal(e); err != nil {
		h.internalError(w, err)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.WriteHeader(e.Code)
		w.Write(b)
	}
}

func info(p *warden.Process) *ProcessInfo {
	return &ProcessInfo{
		Name:       p.Name(),
		ID:         p.ID(),
		Command:    p.Command(),
		Dir:        p.Dir(),
		Privileged: p.Privileged(),
		Respawn:    p.Respawn(),
		Running:    p.IsRunning(),
		Stopping:   p.IsStopping(),
	}
}

func (h *Handler) listProcesses(w http.ResponseWriter, r *http.Request) {
	procs := h.s.Processes()
	l := make([]string, 0, len(procs))
	for _, p := range procs {
		l = append(l, p.Name())
	}
	h.writeJson(w, l)
}

func (h *Handler) registerProcess(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if e := json.NewDecoder(r.Body).Decode(&req); e != nil {
		h.writeError(w, &Error{http.StatusBadRequest, e.Error()})
		return
	}
	if req.Name == "" {
		h.writeError(w, &Error{http.StatusBadRequest, "Process name required"})
		return
	}
	e := h.s.AddProcess(req.Name, req.ID, req.Command, req.Env,
		req.Dir, req.Privileged, req.Respawn)
	switch {
	case errors.Is(e, warden.ErrEmptyCommand),
		errors.Is(e, warden.ErrNullCommandComponent):
		h.writeError(w, &Error{http.StatusBadRequest, e.Error()})
	case e != nil:
		h.internalError(w, e)
	default:
		h.writeJson(w, ok)
	}
}

func (h *Handler) getProcess(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["process"]
	p := h.s.GetProcess(name)
	if p == nil {
		h.writeError(w, &Error{http.StatusNotFound, "Process not found"})
		return
	}
	h.writeJson(w, info(p))
}

func (h *Handler) startProcess(w http.ResponseWriter, r *http.Request) {
	h.s.StartProcess(mux.Vars(r)["process"])
	h.writeJson(w, ok)
}

func (h *Handler) stopProcess(w http.ResponseWriter, r *http.Request) {
	h.s.StopProcess(mux.Vars(r)["process"])
	h.writeJson(w, ok)
}

func (h *Handler) destroyProcess(w http.ResponseWriter, r *http.Request) {
	h.s.DestroyProcess(mux.Vars(r)["process"])
	h.writeJson(w, ok)
}

func (h *Handler) killProcess(w http.ResponseWriter, r *http.Request) {
	h.s.KillProcess(mux.Vars(r)["process"])
	h.writeJson(w, ok)
}

func (h *Handler) removeProcess(w http.ResponseWriter, r *http.Request) {
	h.s.RemoveProcess(mux.Vars(r)["process"])
	h.writeJson(w, ok)
}

func (h *Handler) reconnectProcess(w http.ResponseWriter, r *http.Request) {
	var req ReconnectRequest
	if e := json.NewDecoder(r.Body).Decode(&req); e != nil {
		h.writeError(w, &Error{http.StatusBadRequest, e.Error()})
		return
	}
	h.s.SendReconnect(mux.Vars(r)["process"], req.Scheme, req.Host,
		req.Port, req.MgmtEndpoint, req.AuthKey)
	h.writeJson(w, ok)
}

func (h *Handler) sendStdin(w http.ResponseWriter, r *http.Request) {
	if e := h.s.SendStdin(mux.Vars(r)["process"], r.Body); e != nil {
		h.writeError(w, &Error{http.StatusInternalServerError, e.Error()})
		return
	}
	h.writeJson(w, ok)
}

func (h *Handler) getCount(w http.ResponseWriter, r *http.Request) {
	h.writeJson(w, &CountInfo{Count: h.s.OngoingProcessCount()})
}

// getLog returns buffered records newer than "since".  A "poll" query
// parameter (seconds) long-polls for a change first.
func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		n, e := strconv.ParseInt(v, 10, 64)
		if e != nil {
			h.writeError(w, &Error{http.StatusBadRequest, "Bad since value"})
			return
		}
		since = n
	}
	if v := r.URL.Query().Get("poll"); v != "" {
		secs, e := strconv.Atoi(v)
		if e != nil || secs < 0 {
			h.writeError(w, &Error{http.StatusBadRequest, "Bad poll value"})
			return
		}
		h.s.WatchLog(since, time.Duration(secs)*time.Second)
	}
	recs, id := h.s.GetLog(since)
	w.Header().Set("Etag", strconv.FormatInt(id, 10))
	h.writeJson(w, recs)
}

func (h *Handler) shutdown(w http.ResponseWriter, r *http.Request) {
	// The drain can stall on a stuck child, so answer first and drain
	// in the background.
	go h.s.Shutdown()
	h.writeJson(w, ok)
}
