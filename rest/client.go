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
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/net/context"

	"github.com/opsforge/warden"
)

// Client speaks to a Handler on the other end of an HTTP connection.
type Client struct {
	user   string // HTTP Basic-Auth
	pass   string
	base   string // URI to root of tree on server
	auth   bool
	client *http.Client
}

// NewClient returns a client for the handler rooted at base.  A nil
// http.Client uses http.DefaultClient.
func NewClient(client *http.Client, base string) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{client: client, base: base}
}

func (c *Client) SetAuth(user string, pass string) {
	c.user = user
	c.pass = pass
	c.auth = true
}

func (c *Client) url(name string) string {
	if name == "" {
		return c.base + "/processes"
	}
	return c.base + "/processes/" + url.QueryEscape(name)
}

func (c *Client) do(ctx context.Context, method, uri string, body io.Reader, v interface{}) error {
	req, e := http.NewRequest(method, uri, body)
	if e != nil {
		return e
	}
	req = req.WithContext(ctx)
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	if body != nil {
		req.Header.Set("Content-Type", mimeJson)
	}
	res, e := c.client.Do(req)
	if e != nil {
		return e
	}
	defer res.Body.Close()
	b, e := ioutil.ReadAll(res.Body)
	if e != nil {
		return e
	}
	if res.StatusCode != http.StatusOK {
		re := &Error{Code: res.StatusCode, Message: res.Status}
		if json.Unmarshal(b, re) == nil && re.Message != "" {
			re.Code = res.StatusCode
		}
		return re
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal(b, v)
}

func (c *Client) post(ctx context.Context, uri string, reqBody interface{}) error {
	var body io.Reader
	if reqBody != nil {
		b, e := json.Marshal(reqBody)
		if e != nil {
			return e
		}
		body = bytes.NewReader(b)
	}
	return c.do(ctx, "POST", uri, body, nil)
}

// Processes returns the names of all registered processes.
func (c *Client) Processes(ctx context.Context) ([]string, error) {
	names := []string{}
	if e := c.do(ctx, "GET", c.url(""), nil, &names); e != nil {
		return nil, e
	}
	return names, nil
}

// GetProcess returns the info for one process.
func (c *Client) GetProcess(ctx context.Context, name string) (*ProcessInfo, error) {
	info := &ProcessInfo{}
	if e := c.do(ctx, "GET", c.url(name), nil, info); e != nil {
		return nil, e
	}
	return info, nil
}

// Register adds a process to the supervisor.
func (c *Client) Register(ctx context.Context, req *RegisterRequest) error {
	return c.post(ctx, c.url(""), req)
}

func (c *Client) Start(ctx context.Context, name string) error {
	return c.post(ctx, c.url(name)+"/start", nil)
}

func (c *Client) Stop(ctx context.Context, name string) error {
	return c.post(ctx, c.url(name)+"/stop", nil)
}

func (c *Client) Destroy(ctx context.Context, name string) error {
	return c.post(ctx, c.url(name)+"/destroy", nil)
}

func (c *Client) Kill(ctx context.Context, name string) error {
	return c.post(ctx, c.url(name)+"/kill", nil)
}

func (c *Client) Remove(ctx context.Context, name string) error {
	return c.do(ctx, "DELETE", c.url(name), nil, nil)
}

// Reconnect tells a process to re-establish its management channel.
func (c *Client) Reconnect(ctx context.Context, name string, req *ReconnectRequest) error {
	return c.post(ctx, c.url(name)+"/reconnect", req)
}

// SendStdin streams src to the process standard input.
func (c *Client) SendStdin(ctx context.Context, name string, src io.Reader) error {
	return c.do(ctx, "POST", c.url(name)+"/stdin", src, nil)
}

// Count returns the ongoing process count (zero once shutdown began).
func (c *Client) Count(ctx context.Context) (int, error) {
	ci := &CountInfo{}
	if e := c.do(ctx, "GET", c.base+"/count", nil, ci); e != nil {
		return 0, e
	}
	return ci.Count, nil
}

// Log returns the buffered supervisor log records, long-polling for up to
// pollSecs seconds when nothing has changed since the given id.
func (c *Client) Log(ctx context.Context, since int64, pollSecs int) ([]warden.LogRecord, error) {
	uri := c.base + "/log?since=" + strconv.FormatInt(since, 10)
	if pollSecs > 0 {
		uri += "&poll=" + strconv.Itoa(pollSecs)
	}
	recs := []warden.LogRecord{}
	if e := c.do(ctx, "GET", uri, nil, &recs); e != nil {
		return nil, e
	}
	return recs, nil
}

// Shutdown begins the supervisor drain.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.post(ctx, c.base+"/shutdown", nil)
}
