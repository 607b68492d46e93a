package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds the full runtime configuration. Values come from
// defaults, then an optional YAML file, then CLEANDL_* environment
// variables, each layer overriding the last.
type Config struct {
	DownloadDir string        `yaml:"download_dir" envconfig:"DOWNLOAD_DIR"`
	MaxParallel int           `yaml:"max_parallel" envconfig:"MAX_PARALLEL"`
	Connections int           `yaml:"connections" envconfig:"CONNECTIONS"`
	MaxRetries  int           `yaml:"max_retries" envconfig:"MAX_RETRIES"`
	RetryDelay  time.Duration `yaml:"retry_delay" envconfig:"RETRY_DELAY"`
	RateLimit   int64         `yaml:"rate_limit" envconfig:"RATE_LIMIT"` // bytes per second, 0 disables
	ListenAddr  string        `yaml:"listen_addr" envconfig:"LISTEN_ADDR"`
	HistoryDB   string        `yaml:"history_db" envconfig:"HISTORY_DB"`

	VirusTotalKey string `yaml:"virustotal_key" envconfig:"VIRUSTOTAL_API_KEY"`

	UserAgent     string        `yaml:"user_agent" envconfig:"USER_AGENT"`
	Proxy         string        `yaml:"proxy" envconfig:"PROXY"`
	ProxyUsername string        `yaml:"proxy_username" envconfig:"PROXY_USERNAME"`
	ProxyPassword string        `yaml:"proxy_password" envconfig:"PROXY_PASSWORD"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	KATimeout     time.Duration `yaml:"keep_alive_timeout" envconfig:"KEEP_ALIVE_TIMEOUT"`

	Debug bool `yaml:"debug" envconfig:"DEBUG"`
}

func Default() Config {
	return Config{
		DownloadDir: ".",
		MaxParallel: 5,
		Connections: 8,
		MaxRetries:  5,
		RetryDelay:  3 * time.Second,
		ListenAddr:  "127.0.0.1:8077",
		HistoryDB:   "cleandl-history.db",
		Timeout:     3 * time.Minute,
		KATimeout:   90 * time.Second,
	}
}

// Load builds the configuration. A missing file at path is only an
// error when the path was given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process("cleandl", &cfg); err != nil {
		return cfg, fmt.Errorf("error reading environment: %w", err)
	}
	return cfg, nil
}
