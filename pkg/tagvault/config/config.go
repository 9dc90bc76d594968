package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/tagvault/internal/logger"
	"github.com/cognicore/tagvault/pkg/tagvault/classify"
	"github.com/cognicore/tagvault/pkg/tagvault/internalerr"
	"github.com/cognicore/tagvault/pkg/tagvault/taxonomy"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the full service configuration.
type Config struct {
	Server     Server          `yaml:"server"`
	Store      Store           `yaml:"store"`
	Classifier Classifier      `yaml:"classifier"`
	Logging    Logging         `yaml:"logging"`
	Rules      []taxonomy.Rule `yaml:"rules"`
}

// Server configures the HTTP API.
type Server struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxConnections int           `yaml:"max_connections"`
	RateLimit      float64       `yaml:"rate_limit"` // requests per second per client, 0 disables
	RateBurst      int           `yaml:"rate_burst"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

// Store selects and configures the tag store backend.
type Store struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// Classifier configures the OpenAI-compatible endpoint used for categorization.
type Classifier struct {
	BaseURL  string        `yaml:"base_url"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	Encoding string        `yaml:"encoding"`
	Timeout  time.Duration `yaml:"timeout"`
	JSONMode bool          `yaml:"json_mode"`
}

// Enabled reports whether a generator can be built. Without an API key the
// service runs in fallback-only mode.
func (c Classifier) Enabled() bool { return strings.TrimSpace(c.APIKey) != "" }

// Logging configures the zap logger.
type Logging struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{
			Addr:           ":3001",
			AllowedOrigins: []string{"http://localhost:5173", "https://suno.rsdaly.com"},
			MaxConnections: 256,
			RateLimit:      5,
			RateBurst:      20,
			MaxBodyBytes:   1 << 20,
			ShutdownGrace:  10 * time.Second,
		},
		Store: Store{
			Driver: DriverSQLite,
			Path:   "./suno_tags.db",
		},
		Classifier: Classifier{
			BaseURL:  "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:    "gemini-1.5-flash",
			Encoding: string(classify.EncodingIndex),
			Timeout:  classify.DefaultTimeout,
		},
		Logging: Logging{
			Mode:  "prod",
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse %s: %w", internalerr.ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment overrides using getenv (os.Getenv when nil).
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("TAGVAULT_LLM_API_KEY"); v != "" {
		c.Classifier.APIKey = v
	} else if v := getenv("GEMINI_API_KEY"); v != "" && c.Classifier.APIKey == "" {
		c.Classifier.APIKey = v
	}
	if v := getenv("TAGVAULT_LLM_BASE_URL"); v != "" {
		c.Classifier.BaseURL = v
	}
	if v := getenv("TAGVAULT_LLM_MODEL"); v != "" {
		c.Classifier.Model = v
	}
	if v := getenv("TAGVAULT_DB"); v != "" {
		if c.Store.Driver == DriverPostgres {
			c.Store.DSN = v
		} else {
			c.Store.Path = v
		}
	}
	if v := getenv("TAGVAULT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("TAGVAULT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("TAGVAULT_LLM_JSON_MODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Classifier.JSONMode = b
		}
	}
}

// Validate checks the configuration and returns every problem found.
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for postgres"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of sqlite, postgres, memory", c.Store.Driver))
	}

	if _, err := classify.ParseEncoding(c.Classifier.Encoding); err != nil {
		errs = append(errs, err)
	}
	if c.Classifier.Timeout < 0 {
		errs = append(errs, errors.New("classifier.timeout must not be negative"))
	}
	if c.Classifier.Enabled() && c.Classifier.Model == "" {
		errs = append(errs, errors.New("classifier.model is required when an api key is set"))
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, errors.New("server.max_connections must not be negative"))
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		errs = append(errs, errors.New("server.rate_limit and server.rate_burst must not be negative"))
	}

	if !logger.ValidMode(c.Logging.Mode) {
		errs = append(errs, fmt.Errorf("logging.mode %q is not dev or prod", c.Logging.Mode))
	}

	if _, err := c.Normalizer(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", internalerr.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Normalizer builds the taxonomy normalizer: the default rules followed by
// the configured ones.
func (c Config) Normalizer() (*taxonomy.Normalizer, error) {
	rules := append(append([]taxonomy.Rule{}, taxonomy.DefaultRules...), c.Rules...)
	return taxonomy.NewNormalizer(taxonomy.Default(), rules...)
}
