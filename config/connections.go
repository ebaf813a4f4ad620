// connections.go manages saved database connections.
//
// Connections are stored in ~/.shelfcare/connections.json so a pharmacy
// with several stores can switch databases with `--conn <name>`.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Connection is a named, saveable database connection profile.
type Connection struct {
	Name string `json:"name"`
	Config
}

// ConnectionStore manages saved connections on disk.
type ConnectionStore struct {
	path        string
	Connections []Connection `json:"connections"`
}

// NewConnectionStore creates a store, loading from <dir>/connections.json.
func NewConnectionStore(dir string) (*ConnectionStore, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	store := &ConnectionStore{
		path: filepath.Join(dir, "connections.json"),
	}

	data, err := os.ReadFile(store.path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, store); err != nil {
		return nil, fmt.Errorf("parse connections: %w", err)
	}

	return store, nil
}

// Save writes all connections to disk, sorted by name.
func (s *ConnectionStore) Save() error {
	sort.Slice(s.Connections, func(i, j int) bool {
		return s.Connections[i].Name < s.Connections[j].Name
	})
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Add adds or updates a connection by name.
func (s *ConnectionStore) Add(conn Connection) {
	for i, c := range s.Connections {
		if c.Name == conn.Name {
			s.Connections[i] = conn
			return
		}
	}
	s.Connections = append(s.Connections, conn)
}

// Delete removes a connection by name and reports whether it existed.
func (s *ConnectionStore) Delete(name string) bool {
	for i, c := range s.Connections {
		if c.Name == name {
			s.Connections = append(s.Connections[:i], s.Connections[i+1:]...)
			return true
		}
	}
	return false
}

// Get retrieves a connection by name.
func (s *ConnectionStore) Get(name string) (Connection, bool) {
	for _, c := range s.Connections {
		if c.Name == name {
			return c, true
		}
	}
	return Connection{}, false
}

// Apply replaces the database section of cfg with the named profile.
// Pool sizing from the profile only wins when set.
func (s *ConnectionStore) Apply(cfg *AppConfig, name string) error {
	conn, ok := s.Get(name)
	if !ok {
		return fmt.Errorf("no saved connection named %q", name)
	}
	pool, overflow := cfg.DB.PoolSize, cfg.DB.MaxOverflow
	cfg.DB = conn.Config
	if cfg.DB.PoolSize == 0 {
		cfg.DB.PoolSize = pool
	}
	if cfg.DB.MaxOverflow == 0 {
		cfg.DB.MaxOverflow = overflow
	}
	return nil
}
