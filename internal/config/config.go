package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvProduction = "production"

type Config struct {
	Environment string        `mapstructure:"environment"`
	Server      ServerConfig  `mapstructure:"server"`
	MySQL       MySQLConfig   `mapstructure:"mysql"`
	Redis       RedisConfig   `mapstructure:"redis"`
	MongoDB     MongoDBConfig `mapstructure:"mongodb"`
	Payment     PaymentConfig `mapstructure:"payment"`
	Auth        AuthConfig    `mapstructure:"auth"`
	Log         LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type MySQLConfig struct {
	// DSNOverride wins over the individual fields when set.
	DSNOverride     string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// RedisConfig is optional. An empty Addr disables the shared settings cache.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MongoDBConfig is optional. An empty URI sends audit events to the log only.
type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type PaymentConfig struct {
	StripeSecretKey  string        `mapstructure:"stripe_secret_key"`
	Currency         string        `mapstructure:"currency"`
	AllowDevFallback bool          `mapstructure:"allow_dev_fallback"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})

	v.SetDefault("mysql.dsn", "")
	v.SetDefault("mysql.host", "127.0.0.1")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.username", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "visioncraft")
	v.SetDefault("mysql.max_idle_conns", 25)
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.ttl", 10*time.Minute)

	v.SetDefault("mongodb.uri", "")
	v.SetDefault("mongodb.database", "visioncraft")
	v.SetDefault("mongodb.collection", "audit_logs")

	v.SetDefault("payment.stripe_secret_key", "")
	v.SetDefault("payment.currency", "usd")
	v.SetDefault("payment.timeout", 15*time.Second)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 72*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

// Load reads configPath (optional, yaml) and overlays STOREFRONT_* environment
// variables, e.g. STOREFRONT_MYSQL_DSN or STOREFRONT_PAYMENT_STRIPE_SECRET_KEY.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// No default: whether it was set decides the fallback in normalize.
	_ = v.BindEnv("payment.allow_dev_fallback")

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.normalize(v.IsSet("payment.allow_dev_fallback")); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) normalize(devFallbackSet bool) error {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.Payment.Currency = strings.ToLower(c.Payment.Currency)

	// Unless configured, development intents are only accepted while no real
	// provider is.
	if !devFallbackSet {
		c.Payment.AllowDevFallback = c.Payment.StripeSecretKey == ""
	}

	if c.IsProduction() {
		// Development intents would create unpaid orders.
		c.Payment.AllowDevFallback = false
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required in production")
		}
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = "dev-only-secret-change-me"
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *MySQLConfig) DSN() string {
	if c.DSNOverride != "" {
		return c.DSNOverride
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}
