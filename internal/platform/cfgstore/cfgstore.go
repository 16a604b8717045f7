// Package cfgstore reads the device's application configuration tree.
//
// The tree is loaded once from a TOML file at startup; every accessor is a
// read against that snapshot, matching the read-transaction semantics of the
// on-device store. The path `apps.<name>` exists iff the app is installed.
package cfgstore

import (
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// ProcConfig describes one configured process of an app.
type ProcConfig struct {
	Name           string   `toml:"name"`
	Exec           string   `toml:"exec"`
	Args           []string `toml:"args"`
	Priority       string   `toml:"priority"`
	FaultAction    string   `toml:"faultAction"`
	WatchdogAction string   `toml:"watchdogAction"`
}

// AppConfig is the configuration subtree of one installed app.
type AppConfig struct {
	StartManual bool         `toml:"startManual"`
	Procs       []ProcConfig `toml:"procs"`
}

type tree struct {
	Apps map[string]AppConfig `toml:"apps"`
}

// Store is a read-only snapshot of the configuration tree.
type Store struct {
	apps map[string]AppConfig
}

// Load reads and parses the configuration tree from path.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config tree: %w", err)
	}
	return Parse(data)
}

// Parse builds a store from raw TOML.
func Parse(data []byte) (*Store, error) {
	var t tree
	if err := toml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse config tree: %w", err)
	}

	if t.Apps == nil {
		t.Apps = make(map[string]AppConfig)
	}
	return &Store{apps: t.Apps}, nil
}

// Empty returns a store with no apps installed.
func Empty() *Store {
	return &Store{apps: make(map[string]AppConfig)}
}

// Apps returns the names of all installed apps in a stable order.
func (s *Store) Apps() []string {
	names := make([]string, 0, len(s.apps))
	for name := range s.apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasApp reports whether the app has a configuration subtree.
func (s *Store) HasApp(name string) bool {
	_, ok := s.apps[name]
	return ok
}

// StartManual returns the app's startManual leaf, defaulting to false when
// the leaf or the app is absent.
func (s *Store) StartManual(name string) bool {
	return s.apps[name].StartManual
}

// App returns the app's configuration subtree.
func (s *Store) App(name string) (AppConfig, bool) {
	cfg, ok := s.apps[name]
	return cfg, ok
}
