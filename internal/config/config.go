package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "SHARE_FETCH"

// Config represents the entire application configuration
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Download DownloadConfig `mapstructure:"download"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// HTTPConfig contains settings for the shared HTTP client
type HTTPConfig struct {
	Timeout         string `mapstructure:"timeout"`
	DownloadTimeout string `mapstructure:"download_timeout"`
	// InsecureSkipVerify disables TLS certificate validation. Opt-in only.
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	UserAgent          string `mapstructure:"user_agent"`
	Proxy              string `mapstructure:"proxy"`
}

// DownloadConfig contains streaming and naming settings
type DownloadConfig struct {
	ChunkSize    int    `mapstructure:"chunk_size"`
	NameTemplate string `mapstructure:"name_template"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.download_timeout", "0s")
	v.SetDefault("http.insecure_skip_verify", false)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.proxy", "")
	v.SetDefault("download.chunk_size", 32*1024)
	v.SetDefault("download.name_template", "{{.Filename}}")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load loads configuration from defaults, an optional YAML file and SHARE_FETCH_* environment variables. With an
// empty configPath, share-fetch.yaml is looked for in the working directory and the user config directory, and
// a missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("share-fetch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "share-fetch"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if d, err := time.ParseDuration(c.HTTP.Timeout); err != nil {
		return fmt.Errorf("invalid http.timeout: %w", err)
	} else if d <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	if d, err := time.ParseDuration(c.HTTP.DownloadTimeout); err != nil {
		return fmt.Errorf("invalid http.download_timeout: %w", err)
	} else if d < 0 {
		return fmt.Errorf("http.download_timeout must not be negative")
	}

	if c.Download.ChunkSize < 1024 || c.Download.ChunkSize > 1024*1024 {
		return fmt.Errorf("download.chunk_size must be between 1024 and 1048576")
	}
	if _, err := template.New("name_template").Parse(c.Download.NameTemplate); err != nil {
		return fmt.Errorf("invalid download.name_template: %w", err)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GetTimeout returns the per-request timeout as time.Duration
func (c *HTTPConfig) GetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetDownloadTimeout returns the bound on a whole fetch, zero meaning unbounded
func (c *HTTPConfig) GetDownloadTimeout() time.Duration {
	d, _ := time.ParseDuration(c.DownloadTimeout)
	return d
}
