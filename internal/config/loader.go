package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up when a directory is given instead of a file.
const DefaultFileName = "hookpipe.yaml"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, expands, verifies, and validates configuration from a file, or
// from hookpipe.yaml inside a directory.
func Load(configPath string) (*Config, error) {
	return load(configPath, true)
}

// LoadUnverified parses and validates configuration without checking the
// integrity manifest. 'config lock' uses it to re-authorize an edited file.
func LoadUnverified(configPath string) (*Config, error) {
	return load(configPath, false)
}

func load(configPath string, verify bool) (*Config, error) {
	absPath, err := ResolvePath(configPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expandConfigEnv(&cfg)

	// Integrity check against the .checksums manifest, when one exists.
	if verify {
		if err := VerifyChecksums(absPath); err != nil && err != ErrNoChecksums {
			return nil, err
		}
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ResolvePath resolves a file-or-directory config path to the absolute path
// of the config file itself.
func ResolvePath(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, DefaultFileName)
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but %s not found: %s", DefaultFileName, absPath)
		}
	}
	return absPath, nil
}

// expandConfigEnv substitutes ${VAR} placeholders in string values. Unknown
// variables are left in place so validation can reject them where they
// matter.
func expandConfigEnv(cfg *Config) {
	cfg.Listen = expandEnvVars(cfg.Listen)
	cfg.Socket = expandEnvVars(cfg.Socket)
	cfg.Service.LockFile = expandEnvVars(cfg.Service.LockFile)
	for i := range cfg.Hooks {
		h := &cfg.Hooks[i]
		h.Program = expandEnvVars(h.Program)
		h.Secret = expandEnvVars(h.Secret)
		for j := range h.Args {
			h.Args[j] = expandEnvVars(h.Args[j])
		}
	}
}

func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	if cfg.Listen != "" && cfg.Socket != "" {
		return fmt.Errorf("listen and socket are mutually exclusive")
	}
	if cfg.Timeout != nil && *cfg.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	for i, h := range cfg.Hooks {
		if h.Path == "" {
			return fmt.Errorf("hooks[%d].path is required", i)
		}
		if h.Path[0] != '/' {
			return fmt.Errorf("hooks[%d].path %q must start with '/'", i, h.Path)
		}
		if h.Program == "" {
			return fmt.Errorf("hooks[%d].program is required", i)
		}
		if envVarPattern.MatchString(h.Secret) {
			matches := envVarPattern.FindStringSubmatch(h.Secret)
			return fmt.Errorf("hooks[%d].secret: environment variable ${%s} is not set", i, matches[1])
		}
	}
	return nil
}
