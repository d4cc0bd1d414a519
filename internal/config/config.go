// Package config loads and validates the YAML sync configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when the file leaves a field empty.
const (
	DefaultPageSize      = 50
	DefaultSOAPNamespace = "urn:ifPonto"
	DefaultCachePath     = "hrbridge.db"
	DefaultKeyField      = "cpf"
)

// Config is the full sync configuration. Credential-bearing fields accept
// ${ENV_VAR} references, expanded at load time, so secrets stay out of the
// file itself.
type Config struct {
	Source    Source    `yaml:"source"`
	Target    Target    `yaml:"target"`
	SOAP      SOAP      `yaml:"soap"`
	Companies Companies `yaml:"companies"`
	Cache     Cache     `yaml:"cache"`
	Sync      Sync      `yaml:"sync"`
	Log       Log       `yaml:"log"`
}

// Source configures the HR feed API.
type Source struct {
	BaseURL string `yaml:"base_url"`
	// Token is a pre-issued bearer token. When set and usable, the login
	// flow is skipped entirely.
	Token         string `yaml:"token"`
	LoginURL      string `yaml:"login_url"`
	Alias         string `yaml:"alias"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	SituationsURL string `yaml:"situations_url"`
	// TokenCacheFile persists the last issued token across runs.
	TokenCacheFile string `yaml:"token_cache_file"`
	PageSize       int    `yaml:"page_size"`
}

// Target configures the payroll system's multipart import endpoint.
type Target struct {
	URL  string `yaml:"url"`
	User string `yaml:"user"`
	// TokenBase is the shared secret the daily request signature is
	// derived from.
	TokenBase string `yaml:"token_base"`
}

// SOAP configures the target's per-record termination endpoint.
type SOAP struct {
	URL       string `yaml:"url"`
	ClientID  string `yaml:"client_id"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Namespace string `yaml:"namespace"`
}

// Companies restricts which company codes leave the sync. An empty list
// admits every company.
type Companies struct {
	Allowed []string `yaml:"allowed"`
}

// Cache configures the persistent snapshot store.
type Cache struct {
	// TTLMinutes bounds persistent snapshot age. Zero means the snapshot
	// never expires and stays valid until explicitly cleared.
	TTLMinutes int    `yaml:"ttl_minutes"`
	Path       string `yaml:"path"`
}

// Sync holds cross-cutting sync behavior.
type Sync struct {
	// KeyField selects the employee identifier the target matches active
	// uploads on: "cpf" or "matricula".
	KeyField string `yaml:"key_field"`
	// ReportDir receives the per-run JSON report. Empty disables reports.
	ReportDir string `yaml:"report_dir"`
}

// Log configures optional file logging with rotation.
type Log struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load reads, expands, defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes configuration bytes. Split from Load for tests.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandEnv resolves ${ENV_VAR} references in credential-bearing fields.
func (c *Config) expandEnv() {
	for _, p := range []*string{
		&c.Source.Token, &c.Source.User, &c.Source.Password, &c.Source.Alias,
		&c.Target.User, &c.Target.TokenBase,
		&c.SOAP.ClientID, &c.SOAP.User, &c.SOAP.Password,
	} {
		*p = os.ExpandEnv(*p)
	}
}

func (c *Config) applyDefaults() {
	if c.Source.PageSize <= 0 {
		c.Source.PageSize = DefaultPageSize
	}
	if c.SOAP.Namespace == "" {
		c.SOAP.Namespace = DefaultSOAPNamespace
	}
	if c.Cache.Path == "" {
		c.Cache.Path = DefaultCachePath
	}
	if c.Sync.KeyField == "" {
		c.Sync.KeyField = DefaultKeyField
	}
}

// Validate checks each section. Sections for optional features (SOAP,
// situations catalog, reports) only validate when partially filled in.
func (c *Config) Validate() error {
	var errs []error

	if c.Source.BaseURL == "" {
		errs = append(errs, errors.New("source.base_url is required"))
	}
	if c.Source.Token == "" && c.Source.LoginURL == "" {
		errs = append(errs, errors.New("source: either token or login_url must be set"))
	}
	if c.Source.LoginURL != "" && c.Source.Token == "" {
		if c.Source.User == "" || c.Source.Password == "" || c.Source.Alias == "" {
			errs = append(errs, errors.New("source: login_url requires alias, user and password"))
		}
	}

	if c.Target.URL == "" {
		errs = append(errs, errors.New("target.url is required"))
	}
	if c.Target.User == "" || c.Target.TokenBase == "" {
		errs = append(errs, errors.New("target: user and token_base are required"))
	}

	if c.SOAP.URL != "" {
		if c.SOAP.ClientID == "" || c.SOAP.User == "" || c.SOAP.Password == "" {
			errs = append(errs, errors.New("soap: url requires client_id, user and password"))
		}
	}

	if c.Cache.TTLMinutes < 0 {
		errs = append(errs, errors.New("cache.ttl_minutes must not be negative"))
	}

	switch c.Sync.KeyField {
	case "cpf", "matricula":
	default:
		errs = append(errs, fmt.Errorf("sync.key_field must be cpf or matricula, got %q", c.Sync.KeyField))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
