// Package config loads the server configuration from YAML with defaults
// and environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server   Server   `yaml:"server"`
	OData    OData    `yaml:"odata"`
	RDBMS    RDBMS    `yaml:"rdbms"`
	Store    Store    `yaml:"store"`
	Accounts Accounts `yaml:"accounts"`
	Log      Log      `yaml:"log"`
}

// Server configures the HTTP listener and URL keywords.
type Server struct {
	Addr         string `yaml:"addr"`
	PublicURL    string `yaml:"public_url"`
	SysPath      string `yaml:"sys_path"`
	HelpPath     string `yaml:"help_path"`
	BucketPrefix string `yaml:"bucket_prefix"`
	AllowCORS    bool   `yaml:"allow_cors"`
	TLSCert      string `yaml:"tls_cert"`
	TLSKey       string `yaml:"tls_key"`
}

// OData configures the query compiler.
type OData struct {
	DefaultRowCount int `yaml:"default_row_count"`
}

// RDBMS selects the relational backend.
type RDBMS struct {
	Backend       string `yaml:"backend"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Database      string `yaml:"database"`
	DataDir       string `yaml:"data_dir"`
	AdminUser     string `yaml:"admin_user"`
	AdminPassword string `yaml:"admin_password"`
}

// Store configures the blob store.
type Store struct {
	Engine    string `yaml:"engine"`
	Path      string `yaml:"path"`
	ChunkSize int    `yaml:"chunk_size"`
}

// Accounts configures account ids and password resets.
type Accounts struct {
	SecretSalt    string        `yaml:"secret_salt"`
	ResetTokenTTL time.Duration `yaml:"reset_token_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// ResetWithoutLink returns the new password directly from the POST
	// request instead of mailing a link. Meant for tests.
	ResetWithoutLink bool `yaml:"reset_without_link"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			Addr:         ":9000",
			PublicURL:    "http://localhost:9000",
			SysPath:      "s",
			HelpPath:     "help",
			BucketPrefix: "b_",
			AllowCORS:    true,
		},
		OData: OData{DefaultRowCount: 100},
		RDBMS: RDBMS{
			Backend: "sqlite",
			Host:    "127.0.0.1",
			DataDir: "data/rdbms",
		},
		Store: Store{
			Engine:    "leveldb",
			Path:      "data/buckets",
			ChunkSize: 64 << 10,
		},
		Accounts: Accounts{
			ResetTokenTTL: 24 * time.Hour,
			SweepInterval: time.Hour,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Environment variables read by ApplyEnv.
const (
	EnvAdminUser     = "ADMIN_USER"
	EnvAdminPassword = "ADMIN_PASSWORD"
	EnvSecretSalt    = "SECRET_SALT"
)

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := Decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode overlays YAML data onto cfg. Unknown fields are rejected.
func Decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// ApplyEnv overrides secrets from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAdminUser); ok {
		c.RDBMS.AdminUser = v
	}
	if v, ok := lookup(EnvAdminPassword); ok {
		c.RDBMS.AdminPassword = v
	}
	if v, ok := lookup(EnvSecretSalt); ok {
		c.Accounts.SecretSalt = v
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr required"))
	}
	for name, v := range map[string]string{
		"server.sys_path":      c.Server.SysPath,
		"server.help_path":     c.Server.HelpPath,
		"server.bucket_prefix": c.Server.BucketPrefix,
	} {
		if v == "" || strings.Contains(v, "/") {
			errs = append(errs, fmt.Errorf("%s must be a non-empty path segment", name))
		}
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		errs = append(errs, errors.New("server.tls_cert and server.tls_key must be set together"))
	}
	if c.OData.DefaultRowCount <= 0 {
		errs = append(errs, errors.New("odata.default_row_count must be positive"))
	}
	switch c.RDBMS.Backend {
	case "sqlite":
		if c.RDBMS.DataDir == "" {
			errs = append(errs, errors.New("rdbms.data_dir required for sqlite"))
		}
	case "mysql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("rdbms.backend %q not supported", c.RDBMS.Backend))
	}
	switch c.Store.Engine {
	case "leveldb", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("store.engine %q not supported", c.Store.Engine))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path required"))
	}
	if c.Store.ChunkSize <= 0 {
		errs = append(errs, errors.New("store.chunk_size must be positive"))
	}
	if c.Accounts.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("accounts.reset_token_ttl must be positive"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q not supported", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q not supported", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
