package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"MarketPulse/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		RateLimitRPS    float64       `yaml:"rate_limit_rps" default:"20"`
		RateLimitBurst  int           `yaml:"rate_limit_burst" default:"40"`
	} `yaml:"server"`
	Logging struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
		MaxBackups int    `yaml:"max_backups" default:"5"`
		MaxAgeDays int    `yaml:"max_age_days" default:"14"`
	} `yaml:"logging"`
	Metrics struct {
		Path string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Assets struct {
		Stocks []string `yaml:"stocks"`
		Crypto []string `yaml:"crypto"`
	} `yaml:"assets"`
	Intelligence struct {
		Disabled     bool          `yaml:"disabled"`
		Cadence      time.Duration `yaml:"cadence" default:"1h" validate:"gt=0"`
		TTL          time.Duration `yaml:"ttl" default:"24h" validate:"gt=0"`
		Selection    string        `yaml:"selection" default:"round_robin" validate:"oneof=round_robin all"`
		Concurrency  int           `yaml:"concurrency" default:"1" validate:"gte=1,lte=16"`
		VoteWindow   time.Duration `yaml:"vote_window" default:"24h" validate:"gt=0"`
		CommentLimit int           `yaml:"comment_limit" default:"50" validate:"gte=1,lte=500"`
		NewsLimit    int           `yaml:"news_limit" default:"20" validate:"gte=0,lte=200"`
		QueueSize    int           `yaml:"queue_size" default:"64" validate:"gte=1"`
		Workers      int           `yaml:"workers" default:"2" validate:"gte=1,lte=32"`
	} `yaml:"intelligence"`
	Quotes struct {
		Disabled    bool          `yaml:"disabled"`
		Cadence     time.Duration `yaml:"cadence" default:"15m" validate:"gt=0"`
		TTL         time.Duration `yaml:"ttl" default:"60m" validate:"gt=0"`
		Selection   string        `yaml:"selection" default:"all" validate:"oneof=round_robin all"`
		Concurrency int           `yaml:"concurrency" default:"2" validate:"gte=1,lte=16"`
		QueueSize   int           `yaml:"queue_size" default:"128" validate:"gte=1"`
		Workers     int           `yaml:"workers" default:"2" validate:"gte=1,lte=32"`
	} `yaml:"quotes"`
	Finnhub struct {
		APIKey       string        `yaml:"api_key"`
		BaseURL      string        `yaml:"base_url" default:"https://finnhub.io/api/v1" validate:"url"`
		Timeout      time.Duration `yaml:"timeout" default:"7s"`
		RatePerSec   float64       `yaml:"rate_per_sec" default:"1"`
		Burst        int           `yaml:"burst" default:"5"`
		CryptoFormat string        `yaml:"crypto_format" default:"BINANCE:%sUSDT"`
	} `yaml:"finnhub"`
	Yahoo struct {
		Disabled   bool          `yaml:"disabled"`
		BaseURL    string        `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"url"`
		Timeout    time.Duration `yaml:"timeout" default:"10s"`
		RatePerSec float64       `yaml:"rate_per_sec" default:"2"`
		Burst      int           `yaml:"burst" default:"5"`
	} `yaml:"yahoo"`
	AI struct {
		Gemini AIProvider `yaml:"gemini"`
		Groq   AIProvider `yaml:"groq"`
		OpenAI AIProvider `yaml:"openai"`
	} `yaml:"ai"`
	Breaker struct {
		MaxFailures uint32        `yaml:"max_failures" default:"3" validate:"gte=1"`
		OpenTimeout time.Duration `yaml:"open_timeout" default:"5m"`
		Interval    time.Duration `yaml:"interval" default:"0s"`
	} `yaml:"breaker"`
	Mongo struct {
		Enabled        bool          `yaml:"enabled"`
		URI            string        `yaml:"uri"`
		Database       string        `yaml:"database" default:"marketpulse"`
		ConnectTimeout time.Duration `yaml:"connect_timeout" default:"10s"`
		QueryTimeout   time.Duration `yaml:"query_timeout" default:"5s"`
		MaxPoolSize    uint64        `yaml:"max_pool_size" default:"20"`
	} `yaml:"mongo"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"marketpulse"`
		PoolSize int    `yaml:"pool_size" default:"10"`
	} `yaml:"redis"`
	Snapshot struct {
		Backend string `yaml:"backend" default:"none" validate:"oneof=mongo redis none"`
	} `yaml:"snapshot"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic" default:"marketpulse.intelligence.updated"`
		RequestTopic string   `yaml:"request_topic" default:"marketpulse.refresh.requests"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"marketpulse"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"2"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"marketpulse"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
}

// AIProvider configures one analysis backend. An empty APIKey disables it.
type AIProvider struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout" default:"60s"`
	Temperature float64       `yaml:"temperature" default:"0.4"`
	RatePerSec  float64       `yaml:"rate_per_sec" default:"0.5"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	c.applyProviderDefaults()
	return &c, nil
}

func (c *Config) applyProviderDefaults() {
	setIfEmpty(&c.AI.Gemini.BaseURL, "https://generativelanguage.googleapis.com")
	setIfEmpty(&c.AI.Gemini.Model, "gemini-1.5-flash")
	setIfEmpty(&c.AI.Groq.BaseURL, "https://api.groq.com/openai/v1")
	setIfEmpty(&c.AI.Groq.Model, "llama-3.1-8b-instant")
	setIfEmpty(&c.AI.OpenAI.BaseURL, "https://api.openai.com/v1")
	setIfEmpty(&c.AI.OpenAI.Model, "gpt-4o-mini")
}

func (c *Config) applyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := getenv(key); v != "" {
			*dst = util.SplitCSV(v)
		}
	}
	flag := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("APP_ENV", &c.Environment)
	str("LOG_LEVEL", &c.Logging.Level)
	c.Server.Port = util.ParseIntDefault(getenv("PORT"), c.Server.Port)
	list("STOCK_SYMBOLS", &c.Assets.Stocks)
	list("CRYPTO_SYMBOLS", &c.Assets.Crypto)

	str("FINNHUB_API_KEY", &c.Finnhub.APIKey)
	str("GEMINI_API_KEY", &c.AI.Gemini.APIKey)
	str("GROQ_API_KEY", &c.AI.Groq.APIKey)
	str("OPENAI_API_KEY", &c.AI.OpenAI.APIKey)

	if v := getenv("MONGO_URI"); v != "" {
		c.Mongo.URI = v
		c.Mongo.Enabled = true
	}
	flag("MONGO_ENABLED", &c.Mongo.Enabled)
	str("REDIS_HOST", &c.Redis.Host)
	str("REDIS_PASSWORD", &c.Redis.Password)
	flag("REDIS_ENABLED", &c.Redis.Enabled)
	str("SNAPSHOT_BACKEND", &c.Snapshot.Backend)

	list("KAFKA_BROKERS", &c.Kafka.Brokers)
	flag("KAFKA_ENABLED", &c.Kafka.Enabled)
	str("CLICKHOUSE_HOST", &c.ClickHouse.Host)
	str("CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
	flag("CLICKHOUSE_ENABLED", &c.ClickHouse.Enabled)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	if len(c.Assets.Stocks)+len(c.Assets.Crypto) == 0 {
		return fmt.Errorf("assets: at least one stock or crypto symbol is required")
	}
	if c.Mongo.Enabled && c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required when mongo is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	switch c.Snapshot.Backend {
	case "mongo":
		if !c.Mongo.Enabled {
			return fmt.Errorf("snapshot.backend 'mongo' requires mongo.enabled")
		}
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("snapshot.backend 'redis' requires redis.enabled")
		}
	}
	return nil
}

// IntelligenceCoverageGap reports whether round-robin rotation over n
// distinct targets cannot revisit each one before its entry expires.
func (c *Config) IntelligenceCoverageGap(n int) bool {
	if c.Intelligence.Selection != "round_robin" || n <= 0 {
		return false
	}
	return c.Intelligence.TTL < time.Duration(n)*c.Intelligence.Cadence
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
