package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the survey API
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Stats     StatsConfig     `toml:"stats"`
	Artifacts ArtifactsConfig `toml:"artifacts"`
	Cache     CacheConfig     `toml:"cache"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string   `toml:"host"`
	Port         int      `toml:"port"`
	ReadTimeout  int      `toml:"read_timeout"`
	WriteTimeout int      `toml:"write_timeout"`
	MaxBodyBytes int64    `toml:"max_body_bytes"`
	StaticDir    string   `toml:"static_dir"`
	AllowOrigins []string `toml:"allow_origins"`
	LogLevel     string   `toml:"log_level"`
}

// DatabaseConfig selects and configures the durable store
type DatabaseConfig struct {
	Driver     string `toml:"driver"` // "postgres" or "sqlite"
	URL        string `toml:"url"`
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	User       string `toml:"user"`
	Password   string `toml:"password"`
	Database   string `toml:"database"`
	SSLMode    string `toml:"ssl_mode"`
	SQLitePath string `toml:"sqlite_path"`
}

// StatsConfig holds the shared credential guarding the statistics views
type StatsConfig struct {
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	PasswordHash string `toml:"password_hash"`
	Realm        string `toml:"realm"`
	TokenSecret  string `toml:"token_secret"`
	TokenTTL     int    `toml:"token_ttl_minutes"`
}

// ArtifactsConfig holds share image storage settings
type ArtifactsConfig struct {
	Backend     string `toml:"backend"` // "filesystem", "memory" or "s3"
	Dir         string `toml:"dir"`
	BaseURL     string `toml:"base_url"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Prefix    string `toml:"s3_prefix"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
}

// CacheConfig holds the optional stats cache settings
type CacheConfig struct {
	Enabled    bool   `toml:"enabled"`
	RedisAddr  string `toml:"redis_addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	TTLSeconds int    `toml:"ttl_seconds"`
	Key        string `toml:"key"`
}

// Load loads configuration from a TOML file. A missing file is not an error:
// defaults and environment overrides still apply.
func Load(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	config.SetDefaults()

	return &config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// ApplyEnv overrides file values with the deployment environment variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Database.URL = v
		if c.Database.Driver == "" {
			c.Database.Driver = "postgres"
		}
	}
	if v, ok := lookup("SQLITE_PATH"); ok && v != "" {
		c.Database.SQLitePath = v
	}
	if v, ok := lookup("STATS_USER"); ok && v != "" {
		c.Stats.Username = v
	}
	if v, ok := lookup("STATS_PASS"); ok && v != "" {
		c.Stats.Password = v
	}
	if v, ok := lookup("STATS_TOKEN_SECRET"); ok && v != "" {
		c.Stats.TokenSecret = v
	}
	// RENDER_EXTERNAL_URL wins over BASE_URL
	if v, ok := lookup("BASE_URL"); ok && v != "" {
		c.Artifacts.BaseURL = v
	}
	if v, ok := lookup("RENDER_EXTERNAL_URL"); ok && v != "" {
		c.Artifacts.BaseURL = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Cache.RedisAddr = v
		c.Cache.Enabled = true
	}
	return nil
}

// DSN returns the connection string for the configured driver
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath
	}
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TokenLifetime returns how long issued stats tokens stay valid
func (c *StatsConfig) TokenLifetime() time.Duration {
	return time.Duration(c.TokenTTL) * time.Minute
}

// TTL returns the cache entry lifetime
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// SetDefaults sets default values for config
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 10 << 20 // 10MB
	}
	if len(c.Server.AllowOrigins) == 0 {
		c.Server.AllowOrigins = []string{"*"}
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.User == "" {
		c.Database.User = "postgres"
	}
	if c.Database.Database == "" {
		c.Database.Database = "encuesta"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/encuesta.db"
	}
	if c.Stats.Username == "" {
		c.Stats.Username = "admin"
	}
	if c.Stats.Password == "" && c.Stats.PasswordHash == "" {
		c.Stats.Password = "changeme"
	}
	if c.Stats.Realm == "" {
		c.Stats.Realm = "Stats"
	}
	if c.Stats.TokenTTL == 0 {
		c.Stats.TokenTTL = 60
	}
	if c.Artifacts.Backend == "" {
		c.Artifacts.Backend = "filesystem"
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "tmp_share"
	}
	c.Artifacts.BaseURL = strings.TrimRight(c.Artifacts.BaseURL, "/")
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = 30
	}
	if c.Cache.Key == "" {
		c.Cache.Key = "encuesta:stats:summary"
	}
}
