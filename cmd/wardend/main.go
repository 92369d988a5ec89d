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

// Command wardend runs a warden process supervisor: it registers the
// processes described by a manifest directory, serves the REST command
// surface, and streams lifecycle events to authenticated control
// connections.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"

	"github.com/opsforge/warden"
	"github.com/opsforge/warden/rest"
)

type authConfig struct {
	User         string `toml:"user"`
	PasswordHash string `toml:"password_hash"`
}

type config struct {
	Name        string     `toml:"name"`
	Listen      string     `toml:"listen"`
	Control     string     `toml:"control"`
	Coordinator string     `toml:"coordinator"`
	ManifestDir string     `toml:"manifest_dir"`
	Auth        authConfig `toml:"auth"`
}

func loadConfig(file string) (config, error) {
	cfg := config{
		Name:        "wardend",
		Listen:      "127.0.0.1:8321",
		ManifestDir: ".",
	}
	if file != "" {
		if _, e := toml.DecodeFile(file, &cfg); e != nil {
			return cfg, e
		}
	}
	return cfg, nil
}

// manifest is one per-process JSON file in the manifest directory.
type manifest struct {
	Name       string            `json:"name"`
	ID         int               `json:"id"`
	Command    []string          `json:"command"`
	Env        map[string]string `json:"env"`
	Dir        string            `json:"dir"`
	Privileged bool              `json:"privileged"`
	Respawn    bool              `json:"respawn"`
	Autostart  bool              `json:"autostart"`
}

func loadManifests(s *warden.Supervisor, dir string) []string {
	var start []string
	d, e := os.Open(dir)
	if e != nil {
		log.Fatalf("Failed to open manifest directory %s: %v", dir, e)
	}
	files, e := d.Readdirnames(-1)
	d.Close()
	if e != nil {
		log.Fatalf("Failed to scan manifests: %v", e)
	}
	for _, f := range files {
		if !strings.HasSuffix(f, ".json") {
			continue
		}
		fname := path.Join(dir, f)
		mf, e := os.Open(fname)
		if e != nil {
			log.Printf("Failed to open manifest %s: %v", fname, e)
			continue
		}
		var m manifest
		e = json.NewDecoder(mf).Decode(&m)
		mf.Close()
		if e != nil {
			log.Printf("Failed to load manifest %s: %v", fname, e)
			continue
		}
		if e = s.AddProcess(m.Name, m.ID, m.Command, m.Env, m.Dir,
			m.Privileged, m.Respawn); e != nil {
			log.Printf("Rejected manifest %s: %v", fname, e)
			continue
		}
		if m.Autostart {
			start = append(start, m.Name)
		}
	}
	return start
}

func main() {
	var cfgFile, addr, ctrl, dir, name string
	flag.StringVar(&cfgFile, "c", "", "config file (TOML)")
	flag.StringVar(&addr, "a", "", "REST listen address")
	flag.StringVar(&ctrl, "l", "", "control stream listen address")
	flag.StringVar(&dir, "d", "", "manifest directory")
	flag.StringVar(&name, "n", "", "supervisor name")
	flag.Parse()

	cfg, e := loadConfig(cfgFile)
	if e != nil {
		log.Fatalf("Failed to load config: %v", e)
	}
	if addr != "" {
		cfg.Listen = addr
	}
	if ctrl != "" {
		cfg.Control = ctrl
	}
	if dir != "" {
		cfg.ManifestDir = dir
	}
	if name != "" {
		cfg.Name = name
	}

	s := warden.NewSupervisor(cfg.Name)
	if cfg.Coordinator != "" {
		s.SetCoordinator(cfg.Coordinator)
	}

	for _, n := range loadManifests(s, cfg.ManifestDir) {
		s.StartProcess(n)
	}

	h := rest.NewHandler(s)
	if cfg.Auth.User != "" {
		h.SetAuth(cfg.Auth.User, []byte(cfg.Auth.PasswordHash))
	}
	go func() {
		log.Fatal(http.ListenAndServe(cfg.Listen, h))
	}()

	if cfg.Control != "" {
		cs := warden.NewControlServer(s)
		go func() {
			log.Fatal(cs.ListenAndServe(cfg.Control))
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Wait for a termination signal, then drain everything before
	// exiting.  The drain has no timeout; a stuck child stalls exit.
	<-sigs
	s.Shutdown()
	os.Exit(0)
}
