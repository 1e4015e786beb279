package infra

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application settings. Values load from YAML, then a
// local .env file and process environment variables override them.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`

	Prices struct {
		APIURL          string            `yaml:"api_url"`
		VsCurrency      string            `yaml:"vs_currency"`
		PollIntervalSec int               `yaml:"poll_interval_sec"`
		// Symbols maps a base symbol to its CoinGecko coin id (BTC: bitcoin)
		Symbols map[string]string `yaml:"symbols"`
	} `yaml:"prices"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	// A missing .env is fine; it only supplies overrides
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage db_path is required")
	}
	if c.Prices.APIURL == "" {
		return fmt.Errorf("prices api_url is required")
	}
	if c.Prices.PollIntervalSec <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if len(c.Prices.Symbols) == 0 {
		return fmt.Errorf("at least one price symbol is required")
	}
	if c.Prices.VsCurrency == "" {
		c.Prices.VsCurrency = "usd"
	}
	return nil
}

// overrideWithEnv applies environment variable overrides when present.
func overrideWithEnv(cfg *Config) {
	if addr := os.Getenv("PAPER_SERVER_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if path := os.Getenv("PAPER_DB_PATH"); path != "" {
		cfg.Storage.DBPath = path
	}
	if url := os.Getenv("PAPER_PRICES_URL"); url != "" {
		cfg.Prices.APIURL = url
	}
	if level := os.Getenv("PAPER_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
