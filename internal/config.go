package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Notification  NotificationConfig  `mapstructure:"notification"`
	StepUp        StepUpConfig        `mapstructure:"step_up"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Bank          BankConfig          `mapstructure:"bank"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Env               string        `mapstructure:"env" envconfig:"APP_ENV" default:"development"`
	Port              int           `mapstructure:"port" envconfig:"HTTP_PORT" default:"8080"`
	BaseURL           string        `mapstructure:"base_url" envconfig:"BASE_URL" default:"http://localhost:8080"`
	AllowedOrigins    string        `mapstructure:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitPerMin   int           `mapstructure:"rate_limit_per_min" envconfig:"RATE_LIMIT_PER_MIN" default:"120"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" envconfig:"DB_CONN_MAX_IDLE_TIME" default:"5m"`
	Source          string        `mapstructure:"source" envconfig:"DATABASE_URL" required:"true"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret" envconfig:"JWT_ACCESS_SECRET" required:"true"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret" envconfig:"JWT_REFRESH_SECRET" required:"true"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" envconfig:"ACCESS_TOKEN_DURATION" default:"15m"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" envconfig:"REFRESH_TOKEN_DURATION" default:"168h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" envconfig:"BCRYPT_COST" default:"10"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr" envconfig:"REDIS_ADDR"`
	Password string        `mapstructure:"password" envconfig:"REDIS_PASSWORD"`
	DB       int           `mapstructure:"db" envconfig:"REDIS_DB" default:"0"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" envconfig:"REDIS_CACHE_TTL" default:"5m"`
}

// NotificationConfig controls delivery of the external WhatsApp/email channel.
// Driver "memory" sends through the in-process worker pool, "redis" through the asynq queue.
type NotificationConfig struct {
	Driver       string        `mapstructure:"driver" envconfig:"NOTIFICATION_DRIVER" default:"memory"`
	SendURL      string        `mapstructure:"send_url" envconfig:"NOTIFICATION_SEND_URL"`
	APIKey       string        `mapstructure:"api_key" envconfig:"NOTIFICATION_API_KEY"`
	Timeout      time.Duration `mapstructure:"timeout" envconfig:"NOTIFICATION_TIMEOUT" default:"10s"`
	MaxWorkers   int           `mapstructure:"max_workers" envconfig:"NOTIFICATION_MAX_WORKERS" default:"4"`
	JobQueueSize int           `mapstructure:"job_queue_size" envconfig:"NOTIFICATION_QUEUE_SIZE" default:"100"`
}

type StepUpConfig struct {
	CodeTTL    time.Duration `mapstructure:"code_ttl" envconfig:"STEP_UP_CODE_TTL" default:"15m"`
	CodeLength int           `mapstructure:"code_length" envconfig:"STEP_UP_CODE_LENGTH" default:"6"`
}

type StorageConfig struct {
	Root         string        `mapstructure:"root" envconfig:"STORAGE_ROOT" default:"./storage"`
	SigningKey   string        `mapstructure:"signing_key" envconfig:"STORAGE_SIGNING_KEY"`
	SignedURLTTL time.Duration `mapstructure:"signed_url_ttl" envconfig:"STORAGE_SIGNED_URL_TTL" default:"10m"`
	MaxFileSize  int64         `mapstructure:"max_file_size" envconfig:"STORAGE_MAX_FILE_SIZE" default:"10485760"`
}

type BankConfig struct {
	CallbackSecret string `mapstructure:"callback_secret" envconfig:"BANK_CALLBACK_SECRET"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" envconfig:"METRICS_ENABLED" default:"true"`
	Path    string `mapstructure:"path" envconfig:"METRICS_PATH" default:"/metrics"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" envconfig:"LOG_LEVEL" default:"info"`
	Format string `mapstructure:"format" envconfig:"LOG_FORMAT" default:"json"`
}

// LoadConfigFromEnv reads the container deployment configuration from environment variables.
func LoadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Notification.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("notification config: %v", err))
	}

	if err := c.StepUp.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("step_up config: %v", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if err := c.Observability.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if c.Notification.Driver == "redis" && c.Redis.Addr == "" {
		errs = append(errs, "notification driver redis requires redis.addr")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *SecurityConfig) Validate() error {
	if len(c.AccessTokenSecret) < 32 {
		return errors.New("access_token_secret must be at least 32 characters")
	}
	if len(c.RefreshTokenSecret) < 32 {
		return errors.New("refresh_token_secret must be at least 32 characters")
	}
	if c.BCryptCost != 0 && (c.BCryptCost < 10 || c.BCryptCost > 15) {
		return errors.New("bcrypt_cost must be between 10 and 15")
	}
	return nil
}

func (c *NotificationConfig) Validate() error {
	switch c.Driver {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	if c.SendURL != "" {
		if _, err := url.ParseRequestURI(c.SendURL); err != nil {
			return fmt.Errorf("invalid send_url: %w", err)
		}
	}
	return nil
}

func (c *StepUpConfig) Validate() error {
	if c.CodeLength != 0 && (c.CodeLength < 4 || c.CodeLength > 10) {
		return errors.New("code_length must be between 4 and 10")
	}
	return nil
}

func (c *StorageConfig) Validate() error {
	if c.Root == "" {
		return errors.New("root is required")
	}
	if len(c.SigningKey) < 32 {
		return errors.New("signing_key must be at least 32 characters")
	}
	if c.MaxFileSize < 0 {
		return errors.New("max_file_size cannot be negative")
	}
	return nil
}

func (c *LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("unknown level %q", c.Level)
}
