package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable applyEnv reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SERPAPI_API_KEY", "GOOGLE_CLOUD_PROJECT", "GOOGLE_CLOUD_LOCATION", "AI_PROVIDER", "AI_MODEL",
		"DB_PASSWORD", "MINIO_SECRET_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY", "PORT",
	} {
		t.Setenv(k, "")
	}
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, ProviderVertex, cfg.AI.Provider)
	assert.Equal(t, "us-central1", cfg.AI.Location)
	assert.Equal(t, "cdd_crp_analyser", cfg.AI.Agent)
	assert.Equal(t, "transaction_history_analysis", cfg.AI.Schema)
	assert.Equal(t, float32(0), cfg.AI.Temperature)
	assert.Equal(t, 2*time.Minute, cfg.AI.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Search.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.DatabaseEnabled())
}

func TestParse_YAML(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte(`
server:
  port: 9000
  writeTimeout: 90s
database:
  driver: postgres
  host: db
  user: aml
  password: s3cret
  name: aml
ai:
  provider: openai
  model: gpt-4o-mini
  temperature: 0.1
search:
  timeout: 5s
auth:
  apiKeys:
    bank-a: key-a
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.InDelta(t, 0.1, cfg.AI.Temperature, 1e-6)
	assert.Equal(t, 5*time.Second, cfg.Search.Timeout)
	assert.Equal(t, map[string]string{"bank-a": "key-a"}, cfg.Auth.APIKeys)
	assert.Equal(t, "postgres://aml:s3cret@db:5432/aml?sslmode=disable", cfg.PostgresDSN())
	assert.True(t, cfg.DatabaseEnabled())
}

func TestParse_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERPAPI_API_KEY", "serp")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "aml-prod")
	t.Setenv("GOOGLE_CLOUD_LOCATION", "asia-southeast2")
	t.Setenv("PORT", "7070")

	cfg, err := Parse([]byte("search:\n  apiKey: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "serp", cfg.Search.APIKey)
	assert.Equal(t, "aml-prod", cfg.AI.Project)
	assert.Equal(t, "asia-southeast2", cfg.AI.Location)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestParse_ProviderKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GOOGLE_API_KEY", "g-test")

	cfg, err := Parse([]byte("ai:\n  provider: openai\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)

	cfg, err = Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "g-test", cfg.AI.APIKey)
}

func TestParse_Invalid(t *testing.T) {
	clearEnv(t)
	tests := map[string]string{
		"driver":      "database:\n  driver: sqlite\n",
		"provider":    "ai:\n  provider: bedrock\n",
		"temperature": "ai:\n  temperature: 3\n",
		"yaml":        "server: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  host: mysql\n  user: u\n  password: p\n  name: aml\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "u:p@tcp(mysql:3306)/aml?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	cfg, err = LoadOrDefault(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}
