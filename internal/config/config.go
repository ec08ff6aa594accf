// Package config loads the launcher configuration: built-in defaults for
// the Video Forge workspace, an optional YAML file and DEVUP_ environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for devup.
type Config struct {
	Runtime         RuntimeConfig  `mapstructure:"runtime"`
	Install         InstallConfig  `mapstructure:"install"`
	Database        DatabaseConfig `mapstructure:"database"`
	Services        ServicesConfig `mapstructure:"services"`
	Browser         BrowserConfig  `mapstructure:"browser"`
	ShutdownTimeout time.Duration  `mapstructure:"shutdown_timeout"`
	LogLevel        string         `mapstructure:"log_level"`
}

// RuntimeConfig names the runtime that must be callable before anything runs.
type RuntimeConfig struct {
	Name  string   `mapstructure:"name"`
	Probe []string `mapstructure:"probe"`
}

// InstallConfig describes the per-project dependency install.
type InstallConfig struct {
	Projects []string `mapstructure:"projects"`
	Marker   string   `mapstructure:"marker"`
	Command  []string `mapstructure:"command"`
}

// DatabaseConfig describes the best-effort schema setup command.
type DatabaseConfig struct {
	Dir     string   `mapstructure:"dir"`
	Command []string `mapstructure:"command"`
}

// ServicesConfig holds the three long-running services.
type ServicesConfig struct {
	Backend  ServiceConfig `mapstructure:"backend"`
	Worker   ServiceConfig `mapstructure:"worker"`
	Frontend ServiceConfig `mapstructure:"frontend"`
}

// ServiceConfig is one background command and its working directory.
type ServiceConfig struct {
	Dir     string   `mapstructure:"dir"`
	Command []string `mapstructure:"command"`
}

// BrowserConfig controls the browser tab opened once services are up.
type BrowserConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// Load reads config from the optional YAML file at path, then overlays
// environment variables with the DEVUP_ prefix (e.g. DEVUP_BROWSER_URL).
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	// Lets DEVUP_INSTALL_COMMAND="pnpm install" split into argv like the defaults.
	v.SetTypeByDefaultValue(true)

	v.SetEnvPrefix("DEVUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("runtime.name", "Node.js")
	v.SetDefault("runtime.probe", []string{"node", "-v"})

	v.SetDefault("install.projects", []string{"backend", "frontend"})
	v.SetDefault("install.marker", "node_modules")
	v.SetDefault("install.command", []string{"npm", "install"})

	v.SetDefault("database.dir", "backend")
	v.SetDefault("database.command", []string{"node", "setup-db.js"})

	v.SetDefault("services.backend.dir", "backend")
	v.SetDefault("services.backend.command", []string{"node", "server.js"})
	v.SetDefault("services.worker.dir", "backend")
	v.SetDefault("services.worker.command", []string{"node", "worker.js"})
	v.SetDefault("services.frontend.dir", "frontend")
	v.SetDefault("services.frontend.command", []string{"npm", "run", "dev"})

	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.url", "http://localhost:5173")

	v.SetDefault("shutdown_timeout", 5*time.Second)
	v.SetDefault("log_level", "info")
}

// Validate reports every configuration problem found.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Runtime.Probe) == 0 {
		errs = append(errs, errors.New("runtime.probe is empty"))
	}
	if len(c.Install.Command) == 0 {
		errs = append(errs, errors.New("install.command is empty"))
	}
	if c.Install.Marker == "" || filepath.IsAbs(c.Install.Marker) {
		errs = append(errs, fmt.Errorf("install.marker must be a relative directory name, got %q", c.Install.Marker))
	}
	if len(c.Database.Command) == 0 {
		errs = append(errs, errors.New("database.command is empty"))
	}
	for _, svc := range []struct {
		name string
		cfg  ServiceConfig
	}{
		{"backend", c.Services.Backend},
		{"worker", c.Services.Worker},
		{"frontend", c.Services.Frontend},
	} {
		if len(svc.cfg.Command) == 0 {
			errs = append(errs, fmt.Errorf("services.%s.command is empty", svc.name))
		}
	}
	if c.Browser.URL != "" {
		if u, err := url.Parse(c.Browser.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("browser.url %q is not an absolute URL", c.Browser.URL))
		}
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
