package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Logger struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout"`
		TimeFormat string `yaml:"time_format"`
		Collector  struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"stockpulse.logs"`
			Interval       time.Duration `yaml:"interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"50"`
		} `yaml:"collector"`
	} `yaml:"logger"`
	Provider struct {
		BaseURL   string        `yaml:"base_url" default:"http://127.0.0.1:8000/api" validate:"required,url"`
		Timeout   time.Duration `yaml:"timeout" default:"10s"`
		Attempts  int           `yaml:"attempts" default:"3" validate:"gte=1,lte=10"`
		RateLimit float64       `yaml:"rate_limit" default:"20"`
		Burst     int           `yaml:"burst" default:"10"`
		CacheTTL  struct {
			List   time.Duration `yaml:"list" default:"30s"`
			Detail time.Duration `yaml:"detail" default:"2m"`
			Chart  time.Duration `yaml:"chart" default:"1m"`
		} `yaml:"cache_ttl"`
	} `yaml:"provider"`
	Cache struct {
		MemoryMaxSize   int           `yaml:"memory_max_size" default:"10000"`
		CleanupInterval time.Duration `yaml:"cleanup_interval" default:"1m"`
		MemoryTTL       time.Duration `yaml:"memory_ttl" default:"30s"`
	} `yaml:"cache"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"127.0.0.1:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"stockpulse"`
	} `yaml:"redis"`
	Preferences struct {
		TTL time.Duration `yaml:"ttl" default:"720h"`
	} `yaml:"preferences"`
	Summarizer struct {
		Provider       string        `yaml:"provider" default:"gemini" validate:"oneof=gemini placeholder"`
		APIKey         string        `yaml:"api_key"`
		Model          string        `yaml:"model" default:"gemini-1.5-flash-latest"`
		Temperature    float32       `yaml:"temperature" default:"0.4"`
		MaxTokens      int32         `yaml:"max_tokens" default:"1024"`
		Timeout        time.Duration `yaml:"timeout" default:"60s"`
		CacheTTL       time.Duration `yaml:"cache_ttl" default:"6h"`
		PlaceholderLag time.Duration `yaml:"placeholder_delay" default:"0s"`
		PerViewerRate  float64       `yaml:"per_viewer_rate" default:"0.2"`
		PerViewerBurst int           `yaml:"per_viewer_burst" default:"5"`
		Queue          struct {
			Enabled    bool          `yaml:"enabled"`
			Name       string        `yaml:"name" default:"summaries"`
			Workers    int           `yaml:"workers" default:"2" validate:"min=1"`
			MaxRetries int           `yaml:"max_retries" default:"2"`
			ResultTTL  time.Duration `yaml:"result_ttl" default:"1h"`
		} `yaml:"queue"`
	} `yaml:"summarizer"`
	Storage struct {
		Driver string `yaml:"driver" default:"sqlite" validate:"oneof=sqlite clickhouse none"`
		SQLite struct {
			Path string `yaml:"path" default:"data/stockpulse.db"`
		} `yaml:"sqlite"`
		ClickHouse struct {
			Host             string        `yaml:"host" default:"127.0.0.1"`
			Port             int           `yaml:"port" default:"9000"`
			Database         string        `yaml:"database" default:"stockpulse"`
			User             string        `yaml:"user" default:"default"`
			Password         string        `yaml:"password"`
			UseHTTP          bool          `yaml:"use_http"`
			AsyncInsert      bool          `yaml:"async_insert"`
			WaitForAsync     bool          `yaml:"wait_for_async_insert"`
			DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
			ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
			WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
			MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		} `yaml:"clickhouse"`
	} `yaml:"storage"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		ChangesTopic string   `yaml:"changes_topic" default:"stockpulse.signal-changes"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"20ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled      bool          `yaml:"enabled"`
			UpdatesTopic string        `yaml:"updates_topic" default:"stockpulse.signal-updates"`
			GroupID      string        `yaml:"group_id" default:"stockpulse"`
			Workers      int           `yaml:"workers" default:"4"`
			BufferSize   int           `yaml:"buffer_size" default:"256"`
			RetryMax     int           `yaml:"retry_max" default:"3"`
			BackoffMin   time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax   time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic     string        `yaml:"dlq_topic" default:"stockpulse.signal-updates.dlq"`
			MinBytes     int           `yaml:"min_bytes" default:"1"`
			MaxBytes     int           `yaml:"max_bytes" default:"10485760"`
			MaxPerSecond int           `yaml:"max_per_second" default:"5"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Scheduler struct {
		Enabled     bool   `yaml:"enabled" default:"true"`
		RefreshCron string `yaml:"refresh_cron" default:"0 */5 * * * *"`
	} `yaml:"scheduler"`
	WebSocket struct {
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		PongTimeout  time.Duration `yaml:"pong_timeout" default:"60s"`
		PingInterval time.Duration `yaml:"ping_interval" default:"30s"`
		SendBuffer   int           `yaml:"send_buffer" default:"16"`
	} `yaml:"websocket"`
}

// Default returns a config populated from `default` tags only.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (when present), the YAML file, and then applies
// environment overrides. A missing config file falls back to defaults.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c := Default()
	if _, statErr := os.Stat(path); statErr == nil {
		var err error
		if c, err = read(path); err != nil {
			return nil, err
		}
	}
	applyEnv(c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Summarizer.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Logger.Collector.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("logger.collector requires kafka.enabled")
	}
	if c.Storage.Driver == "clickhouse" && c.Storage.ClickHouse.Host == "" {
		return fmt.Errorf("storage.clickhouse.host is required")
	}
	return nil
}
