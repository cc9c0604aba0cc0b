// Package config loads settings for the leaderboard server, the CLI and the
// desktop app.
//
// Sources are applied in order: built-in defaults, an optional YAML file, an
// optional .env file, then process environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables.
const (
	EnvConfigFile      = "SCOREQUEST_CONFIG"
	EnvAddr            = "SCOREQUEST_ADDR"
	EnvDBDriver        = "SCOREQUEST_DB_DRIVER"
	EnvDBPath          = "SCOREQUEST_DB_PATH"
	EnvDBDSN           = "SCOREQUEST_DB_DSN"
	EnvSubmitToken     = "SCOREQUEST_SUBMIT_TOKEN"
	EnvAPIURL          = "SCOREQUEST_API_URL"
	EnvRequestTimeout  = "SCOREQUEST_REQUEST_TIMEOUT"
	EnvShutdownTimeout = "SCOREQUEST_SHUTDOWN_TIMEOUT"
	EnvClientRetries   = "SCOREQUEST_CLIENT_RETRIES"
)

// Config is the merged configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Client   ClientConfig
}

// ServerConfig configures cmd/leaderboardd.
type ServerConfig struct {
	Addr            string
	SubmitToken     string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects the leaderboard store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	Path   string
	DSN    string
}

// Target returns the path or DSN for the configured driver.
func (d DatabaseConfig) Target() string {
	if d.Driver == "postgres" {
		return d.DSN
	}
	return d.Path
}

// ClientConfig configures the leaderboard client used by the desktop app
// and the CLI.
type ClientConfig struct {
	APIURL      string
	SubmitToken string
	Timeout     time.Duration
	// MaxRetries of zero leaves the client default in place.
	MaxRetries int
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":5000",
			RequestTimeout:  15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "scorequest.db",
		},
		Client: ClientConfig{
			APIURL:     "http://localhost:5000",
			Timeout:    10 * time.Second,
			MaxRetries: 3,
		},
	}
}

type fileConfig struct {
	Server struct {
		Addr            string `yaml:"addr"`
		SubmitToken     string `yaml:"submit_token"`
		RequestTimeout  string `yaml:"request_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Client struct {
		APIURL      string `yaml:"api_url"`
		SubmitToken string `yaml:"submit_token"`
		Timeout     string `yaml:"timeout"`
		MaxRetries  *int   `yaml:"max_retries"`
	} `yaml:"client"`
}

// Loader reads configuration. The zero value is not usable; use NewLoader.
type Loader struct {
	// File is the YAML path. Empty means the SCOREQUEST_CONFIG variable.
	File string
	// DotEnv lists .env files; missing ones are skipped.
	DotEnv []string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// NewLoader returns a loader that reads ./.env and the process environment.
func NewLoader() *Loader {
	return &Loader{DotEnv: []string{".env"}, LookupEnv: os.LookupEnv}
}

// Load is NewLoader().Load().
func Load() (Config, error) {
	return NewLoader().Load()
}

// Load merges every source and validates the result.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	env, err := l.environment()
	if err != nil {
		return cfg, err
	}

	path := l.File
	if path == "" {
		path = env[EnvConfigFile]
	}
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg, env); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// environment returns .env values overlaid by the real environment.
func (l *Loader) environment() (map[string]string, error) {
	env := map[string]string{}
	for _, f := range l.DotEnv {
		vals, err := godotenv.Read(f)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", f, err)
		}
		for k, v := range vals {
			env[k] = v
		}
	}

	lookup := l.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, k := range []string{
		EnvConfigFile, EnvAddr, EnvDBDriver, EnvDBPath, EnvDBDSN, EnvSubmitToken,
		EnvAPIURL, EnvRequestTimeout, EnvShutdownTimeout, EnvClientRetries,
	} {
		if v, ok := lookup(k); ok {
			env[k] = v
		}
	}
	return env, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	setString(&cfg.Server.Addr, fc.Server.Addr)
	setString(&cfg.Server.SubmitToken, fc.Server.SubmitToken)
	setString(&cfg.Database.Driver, fc.Database.Driver)
	setString(&cfg.Database.Path, fc.Database.Path)
	setString(&cfg.Database.DSN, fc.Database.DSN)
	setString(&cfg.Client.APIURL, fc.Client.APIURL)
	setString(&cfg.Client.SubmitToken, fc.Client.SubmitToken)
	if fc.Client.MaxRetries != nil {
		cfg.Client.MaxRetries = *fc.Client.MaxRetries
	}

	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.request_timeout", fc.Server.RequestTimeout, &cfg.Server.RequestTimeout},
		{"server.shutdown_timeout", fc.Server.ShutdownTimeout, &cfg.Server.ShutdownTimeout},
		{"client.timeout", fc.Client.Timeout, &cfg.Client.Timeout},
	} {
		if err := setDuration(d.dst, d.raw, d.name); err != nil {
			return err
		}
	}
	return nil
}

func applyEnv(cfg *Config, env map[string]string) error {
	setString(&cfg.Server.Addr, env[EnvAddr])
	setString(&cfg.Database.Driver, env[EnvDBDriver])
	setString(&cfg.Database.Path, env[EnvDBPath])
	setString(&cfg.Database.DSN, env[EnvDBDSN])
	setString(&cfg.Client.APIURL, env[EnvAPIURL])
	if tok := env[EnvSubmitToken]; tok != "" {
		cfg.Server.SubmitToken = tok
		cfg.Client.SubmitToken = tok
	}

	if err := setDuration(&cfg.Server.RequestTimeout, env[EnvRequestTimeout], EnvRequestTimeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.Server.ShutdownTimeout, env[EnvShutdownTimeout], EnvShutdownTimeout); err != nil {
		return err
	}
	if raw := strings.TrimSpace(env[EnvClientRetries]); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvClientRetries, err)
		}
		cfg.Client.MaxRetries = n
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, raw, name string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: %s: %w", name, err)
	}
	*dst = d
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("config: database path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("config: database dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("config: server addr is required")
	}
	if c.Server.RequestTimeout <= 0 || c.Server.ShutdownTimeout <= 0 || c.Client.Timeout <= 0 {
		return fmt.Errorf("config: timeouts must be positive")
	}
	if c.Client.MaxRetries < 0 {
		return fmt.Errorf("config: client max retries must not be negative")
	}

	u, err := url.Parse(c.Client.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: invalid api url %q", c.Client.APIURL)
	}
	return nil
}
