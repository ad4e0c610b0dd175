package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. INFRAAUDIT_AWS_REGION.
const EnvPrefix = "INFRAAUDIT"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the top-level application configuration.
// It is read from an optional YAML file and overridden by environment
// variables. It carries no secrets: AWS credentials come from the ambient
// credential chain.
type Config struct {
	Server ServerConfig `yaml:"server" json:"server"`
	AWS    AWSConfig    `yaml:"aws"    json:"aws"`
	Audit  AuditConfig  `yaml:"audit"  json:"audit"`
	Log    LogConfig    `yaml:"log"    json:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address of the API server.
	Addr string `yaml:"addr" json:"addr" split_words:"true"`
}

// AWSConfig holds the defaults used to reach target accounts.
type AWSConfig struct {
	// Region scopes the STS client and every service client of a session.
	Region string `yaml:"region" json:"region" split_words:"true"`

	// DefaultRoleName is assumed when an audit request names no role.
	DefaultRoleName string `yaml:"default_role_name" json:"default_role_name" split_words:"true"`

	// SessionName is the RoleSessionName recorded in the target account.
	SessionName string `yaml:"session_name" json:"session_name" split_words:"true"`

	// SessionDuration is the requested lifetime of scoped credentials.
	SessionDuration time.Duration `yaml:"session_duration" json:"session_duration" split_words:"true"`
}

// AuditConfig tunes audit execution.
type AuditConfig struct {
	// Concurrency is the number of checks of one audit that may run at the
	// same time. 1 runs checks sequentially.
	Concurrency int `yaml:"concurrency" json:"concurrency" split_words:"true"`

	// DisabledChecks are left out of the registry.
	DisabledChecks []string `yaml:"disabled_checks" json:"disabled_checks" split_words:"true"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is a logrus level name: debug, info, warn or error.
	Level string `yaml:"level" json:"level" split_words:"true"`

	// Format is "text" or "json".
	Format string `yaml:"format" json:"format" split_words:"true"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8000"},
		AWS: AWSConfig{
			Region:          "us-east-1",
			DefaultRoleName: "InfraAuditRole",
			SessionName:     "InfraAuditSession",
			SessionDuration: time.Hour,
		},
		Audit: AuditConfig{Concurrency: 1},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Validate reports the first problem with c, wrapped with ErrInvalid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalid)
	}
	if strings.TrimSpace(c.AWS.DefaultRoleName) == "" {
		return fmt.Errorf("%w: aws.default_role_name is required", ErrInvalid)
	}
	// STS accepts 15 minutes up to 12 hours.
	if c.AWS.SessionDuration < 15*time.Minute || c.AWS.SessionDuration > 12*time.Hour {
		return fmt.Errorf("%w: aws.session_duration %s outside 15m..12h", ErrInvalid, c.AWS.SessionDuration)
	}
	if c.Audit.Concurrency < 1 {
		return fmt.Errorf("%w: audit.concurrency must be at least 1, got %d", ErrInvalid, c.Audit.Concurrency)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Loader is the interface for reading Config.
type Loader interface {
	// Load reads, parses, and validates the configuration.
	Load() (*Config, error)

	// ConfigPath returns the path of the configuration file, or "" when
	// only defaults and the environment are used.
	ConfigPath() string
}

// FileLoader layers an optional YAML file and the environment on top of
// Default.
type FileLoader struct {
	path string
}

// NewFileLoader returns a Loader reading path. An empty path skips the file.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// ConfigPath implements Loader.
func (l *FileLoader) ConfigPath() string {
	return l.path
}

// Load implements Loader.
func (l *FileLoader) Load() (*Config, error) {
	cfg := Default()

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("read config %q: %w", l.path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", l.path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides cfg with INFRAAUDIT_<SECTION>_<FIELD> variables, e.g.
// INFRAAUDIT_AUDIT_DISABLED_CHECKS. Unset variables leave the file or
// default value untouched.
func applyEnv(cfg *Config) error {
	sections := []struct {
		name string
		dst  any
	}{
		{"SERVER", &cfg.Server},
		{"AWS", &cfg.AWS},
		{"AUDIT", &cfg.Audit},
		{"LOG", &cfg.Log},
	}
	for _, s := range sections {
		if err := envconfig.Process(EnvPrefix+"_"+s.name, s.dst); err != nil {
			return fmt.Errorf("%w: environment: %w", ErrInvalid, err)
		}
	}
	return nil
}
