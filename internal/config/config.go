package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SALESBOARD_"

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Data      DataConfig      `toml:"data"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Snapshot  SnapshotConfig  `toml:"snapshot"`
	Log       LogConfig       `toml:"log"`
}

type ServerConfig struct {
	Addr                   string   `toml:"addr" validate:"required"`
	AllowOrigins           []string `toml:"allow_origins"`
	RateLimit              float64  `toml:"rate_limit" validate:"gte=0"` // requests per second per client, 0 disables
	ShutdownTimeoutSeconds int      `toml:"shutdown_timeout_seconds" validate:"gte=1"`
}

func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// DataConfig locates the sales CSV: a path, http(s):// URL or s3://bucket/key.
type DataConfig struct {
	Source string   `toml:"source" validate:"required"`
	S3     S3Config `toml:"s3"`
}

type S3Config struct {
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint" validate:"omitempty,url"`
	PathStyle       bool   `toml:"path_style"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key" validate:"required_with=AccessKeyID"`
	SessionToken    string `toml:"session_token"`
}

type DashboardConfig struct {
	TopN int `toml:"top_n" validate:"min=1,max=50"`
}

// SnapshotConfig optionally writes the summary tables to SQLite after load.
type SnapshotConfig struct {
	SQLitePath string `toml:"sqlite_path"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `toml:"pretty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                   ":8080",
			AllowOrigins:           []string{"*"},
			ShutdownTimeoutSeconds: 5,
		},
		Data: DataConfig{
			Source: "retail_sales.csv",
		},
		Dashboard: DashboardConfig{
			TopN: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path (optional), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	str("ADDR", &c.Server.Addr)
	str("DATA_SOURCE", &c.Data.Source)
	str("S3_REGION", &c.Data.S3.Region)
	str("S3_ENDPOINT", &c.Data.S3.Endpoint)
	str("S3_ACCESS_KEY_ID", &c.Data.S3.AccessKeyID)
	str("S3_SECRET_ACCESS_KEY", &c.Data.S3.SecretAccessKey)
	str("S3_SESSION_TOKEN", &c.Data.S3.SessionToken)
	str("SNAPSHOT_SQLITE", &c.Snapshot.SQLitePath)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup(EnvPrefix + "ALLOW_ORIGINS"); ok {
		c.Server.AllowOrigins = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "S3_PATH_STYLE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %sS3_PATH_STYLE: %w", EnvPrefix, err)
		}
		c.Data.S3.PathStyle = b
	}
	if v, ok := lookup(EnvPrefix + "LOG_PRETTY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %sLOG_PRETTY: %w", EnvPrefix, err)
		}
		c.Log.Pretty = b
	}
	if v, ok := lookup(EnvPrefix + "RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: %sRATE_LIMIT: %w", EnvPrefix, err)
		}
		c.Server.RateLimit = f
	}
	if v, ok := lookup(EnvPrefix + "TOP_N"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sTOP_N: %w", EnvPrefix, err)
		}
		c.Dashboard.TopN = n
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
