package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Providers for Config.AI.Provider.
const (
	ProviderVertex = "vertex"
	ProviderOpenAI = "openai"
)

type Config struct {
	Server struct {
		Port           int           `yaml:"port"`
		ReadTimeout    time.Duration `yaml:"readTimeout"`
		WriteTimeout   time.Duration `yaml:"writeTimeout"`
		AllowedOrigins []string      `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
		Migrate  bool   `yaml:"migrate"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	AI struct {
		Provider    string        `yaml:"provider"` // vertex | openai
		Model       string        `yaml:"model"`
		Temperature float32       `yaml:"temperature"`
		Project     string        `yaml:"project"`
		Location    string        `yaml:"location"`
		APIKey      string        `yaml:"apiKey"`
		BaseURL     string        `yaml:"baseURL"`
		Agent       string        `yaml:"agent"`
		PromptsDir  string        `yaml:"promptsDir"`
		Schema      string        `yaml:"schema"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"ai"`

	Search struct {
		APIKey  string        `yaml:"apiKey"`
		BaseURL string        `yaml:"baseURL"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"search"`

	Auth struct {
		// APIKeys maps tenant ID to its API key.
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json | text
	} `yaml:"log"`
}

// Load baca file config.yaml
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// LoadOrDefault is Load that falls back to defaults and environment when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Parse(nil)
	}
	return cfg, err
}

// Parse decodes YAML, applies defaults and environment overrides, then
// validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	// one model call per request, keep room for slow generations
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 3 * time.Minute
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "postgres":
			c.Database.Port = 5432
		default:
			c.Database.Port = 3306
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.AI.Provider == "" {
		c.AI.Provider = ProviderVertex
	}
	if c.AI.Location == "" {
		c.AI.Location = "us-central1"
	}
	if c.AI.Agent == "" {
		c.AI.Agent = "cdd_crp_analyser"
	}
	if c.AI.Schema == "" {
		c.AI.Schema = "transaction_history_analysis"
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 2 * time.Minute
	}
	if c.Search.Timeout == 0 {
		c.Search.Timeout = 30 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// applyEnv lets deployment secrets and project settings come from the
// environment; set variables win over the file.
func (c *Config) applyEnv() {
	setString(&c.Search.APIKey, "SERPAPI_API_KEY")
	setString(&c.AI.Project, "GOOGLE_CLOUD_PROJECT")
	setString(&c.AI.Location, "GOOGLE_CLOUD_LOCATION")
	setString(&c.AI.Provider, "AI_PROVIDER")
	setString(&c.AI.Model, "AI_MODEL")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	switch c.AI.Provider {
	case ProviderOpenAI:
		setString(&c.AI.APIKey, "OPENAI_API_KEY")
	default:
		setString(&c.AI.APIKey, "GOOGLE_API_KEY")
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

func setString(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		*dst = v
	}
}

// Validate reports settings no component could start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be mysql or postgres, got %q", c.Database.Driver))
	}
	switch c.AI.Provider {
	case ProviderVertex, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("ai.provider must be %s or %s, got %q", ProviderVertex, ProviderOpenAI, c.AI.Provider))
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		errs = append(errs, fmt.Errorf("ai.temperature must be within [0, 2], got %v", c.AI.Temperature))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	return errors.Join(errs...)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection URL.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": {c.Database.SSLMode}}.Encode(),
	}
	return u.String()
}

// DatabaseEnabled reports whether a database host is configured. The API
// requires one; amlctl does not use it.
func (c *Config) DatabaseEnabled() bool { return c.Database.Host != "" }
