package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file at the root of a books directory.
const FileName = "recon.yaml"

// Matcher kinds.
const (
	MatcherHeuristic = "heuristic"
	MatcherHTTP      = "http"
	MatcherProcess   = "process"
)

// Store backends.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Config represents the top-level recon.yaml configuration.
type Config struct {
	Business  BusinessConfig  `yaml:"business"`
	Statement StatementConfig `yaml:"statement"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	Store     StoreConfig     `yaml:"store"`
	Git       GitConfig       `yaml:"git"`
	Log       LogConfig       `yaml:"log"`
}

// BusinessConfig identifies the business whose books these are.
type BusinessConfig struct {
	Name string `yaml:"name"`
}

// StatementConfig selects the default statement parser.
type StatementConfig struct {
	Format string `yaml:"format"`
}

// MatcherConfig chooses and configures the suggestion source.
type MatcherConfig struct {
	Kind string `yaml:"kind"`

	// http
	Endpoint      string        `yaml:"endpoint,omitempty"`
	Model         string        `yaml:"model,omitempty"`
	APIKeyEnv     string        `yaml:"api_key_env,omitempty"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerMinute int           `yaml:"rate_per_minute,omitempty"`

	// process
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`

	// heuristic
	Window time.Duration `yaml:"window,omitempty"`
}

// APIKey returns the value of the environment variable named by APIKeyEnv.
func (m MatcherConfig) APIKey() string {
	if m.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(m.APIKeyEnv)
}

// StoreConfig selects where bank transactions and pairs are persisted.
type StoreConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path,omitempty"` // relative to the books directory
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Load reads a recon.yaml file from disk. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadBooks loads <root>/.env, if present, then <root>/recon.yaml.
func LoadBooks(root string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return Load(filepath.Join(root, FileName))
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks enumerated fields and the settings each matcher kind needs.
func (c *Config) Validate() error {
	switch c.Matcher.Kind {
	case MatcherHeuristic:
	case MatcherHTTP:
		if c.Matcher.Endpoint == "" {
			return fmt.Errorf("matcher: http matcher needs an endpoint")
		}
	case MatcherProcess:
		if c.Matcher.Command == "" {
			return fmt.Errorf("matcher: process matcher needs a command")
		}
	default:
		return fmt.Errorf("matcher: unknown kind %q", c.Matcher.Kind)
	}

	switch c.Store.Backend {
	case BackendCSV:
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store: sqlite backend needs sqlite_path")
		}
	default:
		return fmt.Errorf("store: unknown backend %q", c.Store.Backend)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new books directory.
func Default(businessName string) *Config {
	return &Config{
		Business:  BusinessConfig{Name: businessName},
		Statement: StatementConfig{Format: "generic"},
		Matcher: MatcherConfig{
			Kind:          MatcherHeuristic,
			APIKeyEnv:     "RECON_MATCHER_API_KEY",
			Timeout:       30 * time.Second,
			RatePerMinute: 30,
			Window:        7 * 24 * time.Hour,
		},
		Store: StoreConfig{
			Backend:    BackendCSV,
			SQLitePath: "ledger/recon.db",
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Recon",
			AuthorEmail: "recon@fleetbooks.local",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
