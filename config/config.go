// Package config defines the application configuration structures.
//
// Separated from cmd to allow other packages (db, ssh, ai, server) to
// depend on config without importing Cobra.
package config

import (
	"net"
	"net/url"
	"strconv"
)

// Config holds the database connection settings.
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`

	// PoolSize is the number of connections kept open; MaxOverflow is how
	// many extra connections may be opened under load.
	PoolSize    int `json:"pool_size"`
	MaxOverflow int `json:"max_overflow"`

	SSH SSHConfig `json:"ssh"`
}

// SSHConfig holds SSH tunnel settings.
type SSHConfig struct {
	Enabled        bool   `json:"enabled,omitempty"`
	Host           string `json:"host,omitempty"`
	Port           int    `json:"port,omitempty"`
	User           string `json:"user,omitempty"`
	KeyPath        string `json:"key_path,omitempty"`
	KeyPassphrase  string `json:"key_passphrase,omitempty"`
	KnownHostsPath string `json:"known_hosts_path,omitempty"`
	// InsecureHostKey skips host key verification. Only for throwaway
	// development bastions.
	InsecureHostKey bool `json:"insecure_host_key,omitempty"`
}

// DefaultConfig returns local development defaults.
func DefaultConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        5432,
		User:        "postgres",
		Database:    "shelfcare",
		SSLMode:     "disable",
		PoolSize:    5,
		MaxOverflow: 10,
		SSH:         SSHConfig{Port: 22},
	}
}

// DSN builds a pgx-compatible connection URL.
// When SSH tunnel is active, the caller should override Host/Port
// with the local tunnel endpoint.
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// MaxConns is the hard ceiling on open connections.
func (c Config) MaxConns() int {
	n := c.PoolSize + c.MaxOverflow
	if n <= 0 {
		return 1
	}
	return n
}
