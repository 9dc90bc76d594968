package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/tagvault/pkg/tagvault/internalerr"
	"github.com/cognicore/tagvault/pkg/tagvault/taxonomy"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tagvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Classifier.Enabled())
	assert.Equal(t, ":3001", cfg.Server.Addr)
	assert.Contains(t, cfg.Server.AllowedOrigins, "http://localhost:5173")
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: postgres
  dsn: postgres://tags@localhost/tags
classifier:
  model: gpt-4o-mini
  encoding: label
  timeout: 5s
rules:
  - contains: chiptune
    category: Instrumentation & Sound Sources
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "gpt-4o-mini", cfg.Classifier.Model)
	assert.Equal(t, "label", cfg.Classifier.Encoding)
	assert.Equal(t, 5*time.Second, cfg.Classifier.Timeout)
	assert.Equal(t, ":3001", cfg.Server.Addr, "unset fields keep defaults")
	require.NoError(t, cfg.Validate())

	norm, err := cfg.Normalizer()
	require.NoError(t, err)
	assert.Equal(t, "Instrumentation & Sound Sources", norm.Normalize("8-bit chiptune"))
	assert.Equal(t, "Language & Lyrical Context", norm.Normalize("lyrical"))
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/tagvault.yaml")
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(envMap(map[string]string{
		"GEMINI_API_KEY":        "gemini-key",
		"TAGVAULT_LLM_MODEL":    "gemini-2.0-flash",
		"TAGVAULT_DB":           "/var/lib/tagvault/tags.db",
		"TAGVAULT_ADDR":         "127.0.0.1:8080",
		"TAGVAULT_LLM_BASE_URL": "http://localhost:11434/v1",
	}))

	assert.Equal(t, "gemini-key", cfg.Classifier.APIKey)
	assert.True(t, cfg.Classifier.Enabled())
	assert.Equal(t, "gemini-2.0-flash", cfg.Classifier.Model)
	assert.Equal(t, "/var/lib/tagvault/tags.db", cfg.Store.Path)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Classifier.BaseURL)
}

func TestApplyEnvPrefersTagvaultKey(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(envMap(map[string]string{
		"GEMINI_API_KEY":       "gemini-key",
		"TAGVAULT_LLM_API_KEY": "primary",
	}))
	assert.Equal(t, "primary", cfg.Classifier.APIKey)
}

func TestApplyEnvDBForPostgres(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = DriverPostgres
	cfg.ApplyEnv(envMap(map[string]string{"TAGVAULT_DB": "postgres://x"}))
	assert.Equal(t, "postgres://x", cfg.Store.DSN)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "mongodb"
	cfg.Classifier.Encoding = "emoji"
	cfg.Logging.Mode = "verbose"
	cfg.Rules = append(cfg.Rules, taxonomy.Rule{Contains: "x", Category: "Polka"})

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
	for _, want := range []string{"mongodb", "emoji", "verbose", "Polka"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateAcceptsLongModeNames(t *testing.T) {
	cfg := Default()
	cfg.Logging.Mode = "production"
	assert.NoError(t, cfg.Validate())
	cfg.Logging.Mode = "development"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresModelWithKey(t *testing.T) {
	cfg := Default()
	cfg.Classifier.APIKey = "k"
	cfg.Classifier.Model = ""
	assert.ErrorIs(t, cfg.Validate(), internalerr.ErrInvalidConfig)
}
