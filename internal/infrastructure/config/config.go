package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Bus drivers.
const (
	BusDriverRedis    = "redis"
	BusDriverKafka    = "kafka"
	BusDriverRabbitMQ = "rabbitmq"
)

// Checkout providers.
const (
	ProviderStripe = "stripe"
	ProviderMock   = "mock"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Stripe        StripeConfig        `mapstructure:"stripe"`
	Bus           BusConfig           `mapstructure:"bus"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout"`
	IdleTimeout         time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout     time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitPerMinute  int           `mapstructure:"rate_limit_per_minute"`
	MaxWebhookBodyBytes int64         `mapstructure:"max_webhook_body_bytes"`
	CORS                CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// StripeConfig holds the processor credentials and redirect targets. All of
// it is read once at startup.
type StripeConfig struct {
	SecretKey        string        `mapstructure:"secret_key"`
	WebhookSecret    string        `mapstructure:"webhook_secret"`
	SuccessURL       string        `mapstructure:"success_url"`
	CancelURL        string        `mapstructure:"cancel_url"`
	APIURL           string        `mapstructure:"api_url"`
	WebhookTolerance time.Duration `mapstructure:"webhook_tolerance"`
}

type BusConfig struct {
	Driver           string   `mapstructure:"driver"`
	KafkaBrokers     []string `mapstructure:"kafka_brokers"`
	RabbitMQURL      string   `mapstructure:"rabbitmq_url"`
	RabbitMQExchange string   `mapstructure:"rabbitmq_exchange"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type PaymentConfig struct {
	Provider                string        `mapstructure:"provider"`
	CircuitBreakerThreshold uint32        `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
}

type WorkerConfig struct {
	BatchSize     int64         `mapstructure:"batch_size"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
	ConsumerGroup string        `mapstructure:"consumer_group"`
	ReplyTTL      time.Duration `mapstructure:"reply_ttl"`
	// ClaimIdle is how long a request may stay pending on another consumer
	// before this one takes it over. Zero disables reclaiming.
	ClaimIdle time.Duration `mapstructure:"claim_idle"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables, e.g. PAYMENTS_STRIPE_SECRET_KEY
	v.SetEnvPrefix("PAYMENTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/payments-gateway")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = DefaultInstanceID()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Server.MaxWebhookBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_webhook_body_bytes must be positive"))
	}

	if c.Stripe.SecretKey == "" {
		errs = append(errs, fmt.Errorf("stripe.secret_key is required"))
	}
	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, fmt.Errorf("stripe.webhook_secret is required"))
	}
	if c.Stripe.SuccessURL == "" {
		errs = append(errs, fmt.Errorf("stripe.success_url is required"))
	}
	if c.Stripe.CancelURL == "" {
		errs = append(errs, fmt.Errorf("stripe.cancel_url is required"))
	}

	switch c.Payment.Provider {
	case ProviderStripe, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("payment.provider must be %q or %q, got %q", ProviderStripe, ProviderMock, c.Payment.Provider))
	}

	switch c.Bus.Driver {
	case BusDriverRedis:
	case BusDriverKafka:
		if len(c.Bus.KafkaBrokers) == 0 {
			errs = append(errs, fmt.Errorf("bus.kafka_brokers is required for the kafka driver"))
		}
	case BusDriverRabbitMQ:
		if c.Bus.RabbitMQURL == "" {
			errs = append(errs, fmt.Errorf("bus.rabbitmq_url is required for the rabbitmq driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("bus.driver must be one of redis, kafka, rabbitmq, got %q", c.Bus.Driver))
	}

	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive"))
	}
	if c.Worker.ClaimIdle < 0 {
		errs = append(errs, fmt.Errorf("worker.claim_idle must not be negative"))
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if strings.HasPrefix(c.Stripe.SecretKey, "sk_test_") {
			errs = append(errs, fmt.Errorf("stripe.secret_key must be a live key in production"))
		}
		if c.Payment.Provider == ProviderMock {
			errs = append(errs, fmt.Errorf("payment.provider mock is not allowed in production"))
		}
	}

	// JWT secret length validation
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 3003)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.rate_limit_per_minute", 600)
	v.SetDefault("server.max_webhook_body_bytes", 512*1024)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Stripe: secrets and redirect URLs must come from the environment
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.success_url", "")
	v.SetDefault("stripe.cancel_url", "")
	v.SetDefault("stripe.api_url", "")
	v.SetDefault("stripe.webhook_tolerance", "5m")

	// Bus defaults
	v.SetDefault("bus.driver", BusDriverRedis)
	v.SetDefault("bus.kafka_brokers", []string{})
	v.SetDefault("bus.rabbitmq_url", "")
	v.SetDefault("bus.rabbitmq_exchange", "payments")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Worker defaults
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.block_duration", "1s")
	v.SetDefault("worker.consumer_group", "payments-gateway")
	v.SetDefault("worker.reply_ttl", "5m")
	v.SetDefault("worker.claim_idle", "1m")

	// Payment defaults
	v.SetDefault("payment.provider", ProviderStripe)
	v.SetDefault("payment.circuit_breaker_threshold", 10)
	v.SetDefault("payment.circuit_breaker_timeout", "30s")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", false)

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")

	// Instance ID, generated per process when unset
	v.SetDefault("instance_id", "")
}

// DefaultInstanceID names this process within the worker consumer group:
// the host name plus a random suffix, so replicas sharing a host name still
// get their own pending lists.
func DefaultInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "payments-gateway"
	}
	return host + "-" + uuid.NewString()[:8]
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
