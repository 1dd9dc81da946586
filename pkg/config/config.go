package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	DB struct {
		Path string `yaml:"path" default:"data/quantterm.db"`
	} `yaml:"db"`
	Assets          []string          `yaml:"assets"`
	ReferenceSymbol string            `yaml:"reference_symbol" default:"DXY"`
	SymbolMap       map[string]string `yaml:"symbol_map"`
	Providers       struct {
		AlphaVantage struct {
			APIKey  string        `yaml:"api_key"`
			BaseURL string        `yaml:"base_url" default:"https://www.alphavantage.co"`
			Timeout time.Duration `yaml:"timeout" default:"30s"`
		} `yaml:"alpha_vantage"`
		Polygon struct {
			APIKey  string        `yaml:"api_key"`
			BaseURL string        `yaml:"base_url" default:"https://api.polygon.io"`
			Timeout time.Duration `yaml:"timeout" default:"30s"`
		} `yaml:"polygon"`
		Yahoo struct {
			BaseURL string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
			Timeout time.Duration `yaml:"timeout" default:"30s"`
		} `yaml:"yahoo"`
		RateLimit struct {
			Capacity     float64 `yaml:"capacity" default:"5"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"0.0833"`
		} `yaml:"rate_limit"`
		Retry struct {
			MaxAttempts int           `yaml:"max_attempts" default:"3"`
			BaseDelay   time.Duration `yaml:"base_delay" default:"1s"`
			MaxDelay    time.Duration `yaml:"max_delay" default:"10s"`
			Jitter      bool          `yaml:"jitter" default:"true"`
		} `yaml:"retry"`
	} `yaml:"providers"`
	Features struct {
		Window         int     `yaml:"window" default:"20"`
		MomentumPeriod int     `yaml:"momentum_period" default:"5"`
		MinRows        int     `yaml:"min_rows" default:"50"`
		Amplification  float64 `yaml:"amplification" default:"5"`
		MacroMetric    string  `yaml:"macro_metric" default:"FEDFUNDS"`
		MacroDefault   float64 `yaml:"macro_default" default:"5.33"`
	} `yaml:"features"`
	Models struct {
		Dir          string  `yaml:"dir" default:"models"`
		MinSamples   int     `yaml:"min_samples" default:"60"`
		CVSplits     int     `yaml:"cv_splits" default:"5"`
		Epochs       int     `yaml:"epochs" default:"400"`
		LearningRate float64 `yaml:"learning_rate" default:"0.1"`
	} `yaml:"models"`
	Cache struct {
		DataTTL   time.Duration `yaml:"data_ttl" default:"1h"`
		SignalTTL time.Duration `yaml:"signal_ttl" default:"2h"`
		Redis     struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"quantterm.signals"`
		RequiredAcks int           `yaml:"required_acks" default:"1"`
		Compression  string        `yaml:"compression" default:"snappy"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`
	Archive struct {
		Enabled     bool          `yaml:"enabled"`
		Host        string        `yaml:"host" default:"localhost"`
		Port        int           `yaml:"port" default:"9000"`
		Database    string        `yaml:"database" default:"quantterm"`
		User        string        `yaml:"user" default:"default"`
		Password    string        `yaml:"password"`
		DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
	} `yaml:"archive"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if len(c.SymbolMap) == 0 {
		c.SymbolMap = DefaultSymbolMap()
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ALPHA_VANTAGE_KEY"); v != "" {
		c.Providers.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("POLYGON_KEY"); v != "" {
		c.Providers.Polygon.APIKey = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DB.Path = v
	}
	if v := os.Getenv("ASSETS"); v != "" {
		c.Assets = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db.path is required")
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("assets cannot be empty")
	}
	if c.ReferenceSymbol == "" {
		return fmt.Errorf("reference_symbol is required")
	}
	if c.Features.Window < 2 {
		return fmt.Errorf("features.window must be >= 2, got %d", c.Features.Window)
	}
	if c.Features.MinRows < 1 {
		return fmt.Errorf("features.min_rows must be >= 1, got %d", c.Features.MinRows)
	}
	if c.Providers.Retry.MaxAttempts < 1 {
		return fmt.Errorf("providers.retry.max_attempts must be >= 1, got %d", c.Providers.Retry.MaxAttempts)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

// DefaultSymbolMap maps canonical asset identifiers to provider tickers.
// An unmapped symbol passes through unchanged.
func DefaultSymbolMap() map[string]string {
	return map[string]string{
		"DXY":    "DX-Y.NYB",
		"XAUUSD": "GC=F",
		"ES":     "ES=F",
		"NQ":     "NQ=F",
		"EURUSD": "EURUSD=X",
		"GBPUSD": "GBPUSD=X",
	}
}
