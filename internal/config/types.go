// Package config loads and validates the hookpipe YAML configuration.
package config

import "time"

// DefaultTimeoutSeconds applies when the timeout key is absent. An explicit
// zero disables the timeout entirely.
const DefaultTimeoutSeconds = 60

// Config represents the complete hookpipe configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`

	// Listen is a TCP bind address; Socket is a local-domain socket path.
	// At most one may be set. When both are empty the daemon expects an
	// inherited listening descriptor.
	Listen string `yaml:"listen,omitempty"`
	Socket string `yaml:"socket,omitempty"`

	// Timeout bounds each hook process's lifetime, in whole seconds.
	// Zero means no limit.
	Timeout *int `yaml:"timeout,omitempty"`

	Hooks []HookConfig `yaml:"hooks"`
}

// ServiceConfig defines daemon-level settings.
type ServiceConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LockFile  string `yaml:"lock_file,omitempty"`
}

// HookConfig defines a single hook entry.
type HookConfig struct {
	Path    string   `yaml:"path"`
	Program string   `yaml:"program"`
	Args    []string `yaml:"args,omitempty"`
	Secret  string   `yaml:"secret,omitempty"`
}

// TimeoutDuration returns the hook timeout as a duration, zero meaning
// unlimited.
func (c *Config) TimeoutDuration() time.Duration {
	if c.Timeout == nil {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(*c.Timeout) * time.Second
}
