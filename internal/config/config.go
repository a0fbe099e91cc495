package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/config"
)

type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	HTTP          HTTPConfig          `yaml:"http"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Storage       StorageConfig       `yaml:"storage"`
	Redis         RedisConfig         `yaml:"redis"`
	SMTP          SMTPConfig          `yaml:"smtp"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Auth          AuthConfig          `yaml:"auth"`
	ClickHouse    ClickHouseConfig    `yaml:"clickhouse"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

type HTTPConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type KafkaConfig struct {
	Enabled bool `yaml:"enabled"`
	// Brokers y Topics son listas separadas por comas para poder venir de una sola variable de entorno.
	Brokers        string        `yaml:"brokers"`
	Topics         string        `yaml:"topics"`
	GroupID        string        `yaml:"group_id"`
	ClientID       string        `yaml:"client_id"`
	Members        int           `yaml:"members"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

func (k KafkaConfig) BrokerList() []string { return splitList(k.Brokers) }

func (k KafkaConfig) TopicList() []string { return splitList(k.Topics) }

type StorageConfig struct {
	Driver        string `yaml:"driver"` // mongodb | postgres | sqlite
	DSN           string `yaml:"dsn"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
}

type SMTPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type NotificationsConfig struct {
	LogPath     string        `yaml:"log_path"`
	MaxRetries  int           `yaml:"max_retries"`
	MailTimeout time.Duration `yaml:"mail_timeout"`
	// EventRecipient recibe por email los eventos sin email del actor.
	EventRecipient string `yaml:"event_recipient"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	// Issuer vacío acepta cualquier iss.
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl"`
	// ServiceURL activa la validación remota (GET /api/auth/profile) para tokens que no valida el secreto local.
	ServiceURL     string        `yaml:"service_url"`
	ServiceTimeout time.Duration `yaml:"service_timeout"`
}

// ClickHouseConfig: sin Addr no hay analítica de entregas.
type ClickHouseConfig struct {
	Addr          string        `yaml:"addr"`
	Database      string        `yaml:"database"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load lee .env (si existe) y después el YAML de CONFIG_PATH, expandiendo ${VAR:default}.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFile(getEnv("CONFIG_PATH", "./config/base.yaml"))
}

func LoadFile(path string) (*Config, error) {
	provider, err := config.NewYAML(
		config.File(path),
		config.Expand(os.LookupEnv),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create config provider: %w", err)
	}

	var cfg Config
	if err := provider.Get(config.Root).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("failed to populate config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == "" {
		c.HTTP.Port = "3004"
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "notification-group"
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "notification-service"
	}
	if c.Kafka.Members <= 0 {
		c.Kafka.Members = 1
	}
	if c.Kafka.Topics == "" {
		c.Kafka.Topics = "passport.created,passport.updated,passport.deleted"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Redis.CacheTTL <= 0 {
		c.Redis.CacheTTL = 5 * time.Minute
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.FromEmail == "" {
		c.SMTP.FromEmail = c.SMTP.Username
	}
	if c.Notifications.LogPath == "" {
		c.Notifications.LogPath = "./notifications"
	}
	if c.Notifications.MailTimeout <= 0 {
		c.Notifications.MailTimeout = 15 * time.Second
	}
	if c.Auth.ServiceTimeout <= 0 {
		c.Auth.ServiceTimeout = 5 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate comprueba lo que impediría arrancar.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "mongodb":
		if c.Storage.MongoURI == "" {
			errs = append(errs, errors.New("storage.mongo_uri is required for the mongodb driver"))
		}
	case "postgres", "sqlite":
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for the %s driver", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage.driver %q", c.Storage.Driver))
	}

	if c.Kafka.Enabled && len(c.Kafka.BrokerList()) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Notifications.MaxRetries < 0 {
		errs = append(errs, errors.New("notifications.max_retries cannot be negative"))
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid smtp.port %d", c.SMTP.Port))
	}

	return errors.Join(errs...)
}

// EmailEnabled: el envío SMTP sólo se activa con el flag y credenciales completas.
func (c *Config) EmailEnabled() bool {
	return c.SMTP.Enabled && c.SMTP.Host != "" && c.SMTP.Username != "" && c.SMTP.Password != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
