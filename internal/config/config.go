// Package config loads runtime settings for the rollup binary from an optional
// YAML file and ROLLUP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexanderramin/rollup/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DBConfig selects the record store backend. Path is used by sqlite, DSN by
// postgres.
type DBConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// Config is the runtime configuration of the rollup binary.
type Config struct {
	DB                DBConfig       `yaml:"db"`
	LogMode           string         `yaml:"log_mode"`
	PropagatingStates []domain.State `yaml:"propagating_states"`
	DefaultSegment    string         `yaml:"default_segment"`
}

// Default returns a Config with a sqlite database under the user's home
// directory and quiet logging.
func Default() Config {
	return Config{
		DB: DBConfig{
			Driver: DriverSQLite,
			Path:   defaultDBPath(),
		},
		LogMode:           "silent",
		PropagatingStates: append([]domain.State(nil), domain.DefaultPropagatingStates...),
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "rollup.db"
	}
	return filepath.Join(home, ".rollup", "rollup.db")
}

// Load starts from Default, overlays the YAML file at path when path is not
// empty, then applies environment overrides. A missing file is an error only
// when path was given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ROLLUP_DB"); v != "" {
		cfg.DB.Path = v
	}
	if v := os.Getenv("ROLLUP_DB_DRIVER"); v != "" {
		cfg.DB.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("ROLLUP_DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("ROLLUP_LOG_MODE"); v != "" {
		cfg.LogMode = v
	}
	if v, ok := os.LookupEnv("ROLLUP_DEFAULT_SEGMENT"); ok {
		cfg.DefaultSegment = v
	}
	if v := os.Getenv("ROLLUP_PROPAGATING_STATES"); v != "" {
		var states []domain.State
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				states = append(states, domain.State(s))
			}
		}
		cfg.PropagatingStates = states
	}
}

// Validate rejects unknown drivers, a postgres driver without a DSN, and
// propagating states that a Project or Task could never be moved into.
func (c Config) Validate() error {
	var errs []error
	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			errs = append(errs, errors.New("db.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.DB.DSN == "" {
			errs = append(errs, errors.New("db.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown db driver %q", c.DB.Driver))
	}
	for _, s := range c.PropagatingStates {
		for _, k := range []domain.Kind{domain.KindProject, domain.KindTask} {
			if !domain.MachineFor(k).HasState(s) {
				errs = append(errs, fmt.Errorf("propagating state %q is not defined for %s", s, k))
			}
		}
	}
	return errors.Join(errs...)
}
