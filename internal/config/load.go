package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the settings document is looked up when --config is
// not given.
const DefaultPath = "/etc/wandering-echo/config.yaml"

// matches $(VAR_NAME)
var envPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

// replaces $(VAR) with os.Getenv(VAR)
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envPattern.FindStringSubmatch(m)[1])
	})
}

// Load reads the settings document at path on top of Default. A missing file
// is not an error. WANDERING_ECHO_* environment variables win over the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		// expand $(ENV_VAR) placeholders
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("unmarshalling yaml: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no run could work with.
func (c *Config) Validate() error {
	if c.Paths.MountPoint == "" {
		return fmt.Errorf("paths.mountPoint must be set")
	}
	if c.Paths.Registry == "" {
		return fmt.Errorf("paths.registry must be set")
	}
	if c.Paths.Associations == "" {
		return fmt.Errorf("paths.associations must be set")
	}
	if c.Paths.SnapshotDirName == "" {
		c.Paths.SnapshotDirName = "Snapshots"
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	switch c.Remote.Type {
	case "", "local", "sftp", "s3":
	default:
		return fmt.Errorf("unsupported remote type %q", c.Remote.Type)
	}
	switch c.ConfigReload.Mode {
	case "", "auto", "poll", "fsnotify":
	default:
		return fmt.Errorf("unknown configReload mode %q", c.ConfigReload.Mode)
	}
	return nil
}
