// Package config loads service configuration.
//
// Values come from an optional YAML file, named by the --config flag or the
// TIGERTIX_CONFIG environment variable, and are then overridden by individual
// environment variables. Defaults suit local development against SQLite.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/tigertix/internal/database"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the config file when --config is not given.
const EnvConfigPath = "TIGERTIX_CONFIG"

// Supported values for BrokerConfig.Kind.
const (
	BrokerNone  = "none"
	BrokerKafka = "kafka"
	BrokerAMQP  = "amqp"
)

// Config is the full service configuration.
type Config struct {
	Server ServerConfig    `yaml:"server"`
	DB     database.Config `yaml:"db"`
	Redis  RedisConfig     `yaml:"redis"`
	Broker BrokerConfig    `yaml:"broker"`
	Auth   AuthConfig      `yaml:"auth"`
	Log    LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port string `yaml:"port"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowedOrigin is sent in Access-Control-Allow-Origin.
	AllowedOrigin string `yaml:"allowed_origin"`
}

// RedisConfig enables the event read cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type BrokerConfig struct {
	Kind         string   `yaml:"kind"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
	AMQPURL      string   `yaml:"amqp_url"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used before the file and environment
// are applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigin:   "*",
		},
		DB: database.Config{
			Driver:      database.DriverSQLite,
			Host:        "localhost",
			Port:        "5432",
			User:        "postgres",
			Password:    "postgres",
			Name:        "tigertix",
			SSLMode:     "disable",
			Path:        "tigertix.db",
			MaxConns:    10,
			BusyTimeout: 5 * time.Second,
		},
		Broker: BrokerConfig{Kind: BrokerNone},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path (if non-empty, else $TIGERTIX_CONFIG if set) over the
// defaults, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)

	c.DB.Driver = getEnv("DB_DRIVER", c.DB.Driver)
	c.DB.Host = getEnv("DB_HOST", c.DB.Host)
	c.DB.Port = getEnv("DB_PORT", c.DB.Port)
	c.DB.User = getEnv("DB_USER", c.DB.User)
	c.DB.Password = getEnv("DB_PASSWORD", c.DB.Password)
	c.DB.Name = getEnv("DB_NAME", c.DB.Name)
	c.DB.SSLMode = getEnv("DB_SSLMODE", c.DB.SSLMode)
	c.DB.Path = getEnv("DB_PATH", c.DB.Path)
	c.DB.MySQLDSN = getEnv("MYSQL_DSN", c.DB.MySQLDSN)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)

	c.Broker.Kind = getEnv("BROKER_KIND", c.Broker.Kind)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Broker.KafkaBrokers = splitList(v)
	}
	c.Broker.AMQPURL = getEnv("AMQP_URL", c.Broker.AMQPURL)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("server.port %q is not a number", c.Server.Port))
	}

	switch c.DB.Driver {
	case database.DriverPostgres:
	case database.DriverMySQL:
		if c.DB.MySQLDSN == "" {
			errs = append(errs, errors.New("db.mysql_dsn is required for the mysql driver"))
		}
	case database.DriverSQLite:
		if c.DB.Path == "" {
			errs = append(errs, errors.New("db.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("db.driver %q is not one of postgres, mysql, sqlite", c.DB.Driver))
	}

	switch c.Broker.Kind {
	case BrokerNone, "":
	case BrokerKafka:
		if len(c.Broker.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("broker.kafka_brokers is required for kafka"))
		}
	case BrokerAMQP:
		if c.Broker.AMQPURL == "" {
			errs = append(errs, errors.New("broker.amqp_url is required for amqp"))
		}
	default:
		errs = append(errs, fmt.Errorf("broker.kind %q is not one of none, kafka, amqp", c.Broker.Kind))
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, console", c.Log.Format))
	}

	return errors.Join(errs...)
}

// RequireAuth reports whether tokens can be verified and issued. Only the
// commands that touch tokens call it, so migrate runs without a secret.
func (c *Config) RequireAuth() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required (set JWT_SECRET)")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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
