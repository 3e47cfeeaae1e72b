package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "evconsole/backend/libs/config"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config defines console-api configuration.
type Config struct {
	HTTP struct {
		Port            string        `yaml:"port" env:"CONSOLE_HTTP_PORT"`
		AllowedOrigins  []string      `yaml:"allowedOrigins" env:"CONSOLE_ALLOWED_ORIGINS"`
		ReadTimeout     time.Duration `yaml:"readTimeout" env:"CONSOLE_HTTP_READ_TIMEOUT"`
		WriteTimeout    time.Duration `yaml:"writeTimeout" env:"CONSOLE_HTTP_WRITE_TIMEOUT"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"CONSOLE_HTTP_SHUTDOWN_TIMEOUT"`
	} `yaml:"http"`
	Storage string `yaml:"storage" env:"CONSOLE_STORAGE"`
	Database struct {
		DSN          string        `yaml:"dsn" env:"CONSOLE_POSTGRES_DSN"`
		MaxOpenConns int           `yaml:"maxOpenConns" env:"CONSOLE_POSTGRES_MAX_OPEN_CONNS"`
		MaxIdleConns int           `yaml:"maxIdleConns" env:"CONSOLE_POSTGRES_MAX_IDLE_CONNS"`
		ConnLifetime time.Duration `yaml:"connLifetime" env:"CONSOLE_POSTGRES_CONN_LIFETIME"`
	} `yaml:"database"`
	// Redis caches active sessions; an empty Addr disables the cache.
	Redis struct {
		Addr     string        `yaml:"addr" env:"CONSOLE_REDIS_ADDR"`
		Password string        `yaml:"password" env:"CONSOLE_REDIS_PASSWORD"`
		DB       int           `yaml:"db" env:"CONSOLE_REDIS_DB"`
		TTL      time.Duration `yaml:"ttl" env:"CONSOLE_REDIS_TTL"`
	} `yaml:"redis"`
	JWT struct {
		Secret    string        `yaml:"secret" env:"CONSOLE_JWT_SECRET"`
		ExpiresIn time.Duration `yaml:"expiresIn" env:"CONSOLE_JWT_EXPIRES_IN"`
	} `yaml:"jwt"`
	Sweep struct {
		Schedule string        `yaml:"schedule" env:"CONSOLE_SWEEP_SCHEDULE"`
		Timeout  time.Duration `yaml:"timeout" env:"CONSOLE_SWEEP_TIMEOUT"`
	} `yaml:"sweep"`
	WS struct {
		WriteTimeout time.Duration `yaml:"writeTimeout" env:"CONSOLE_WS_WRITE_TIMEOUT"`
		PingInterval time.Duration `yaml:"pingInterval" env:"CONSOLE_WS_PING_INTERVAL"`
	} `yaml:"ws"`
	// Bootstrap provisions a Backoffice account at startup when both fields are set.
	Bootstrap struct {
		Username string `yaml:"username" env:"CONSOLE_BOOTSTRAP_USERNAME"`
		Password string `yaml:"password" env:"CONSOLE_BOOTSTRAP_PASSWORD"`
	} `yaml:"bootstrap"`
}

// Load reads configuration via the shared loader on top of defaults.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns configuration with every optional value filled in.
func Default() *Config {
	cfg := &Config{Storage: StoragePostgres}
	cfg.HTTP.Port = "8080"
	cfg.HTTP.ReadTimeout = 10 * time.Second
	cfg.HTTP.WriteTimeout = 15 * time.Second
	cfg.HTTP.ShutdownTimeout = 10 * time.Second
	cfg.Redis.TTL = 24 * time.Hour
	cfg.JWT.ExpiresIn = 8 * time.Hour
	cfg.Sweep.Schedule = "@every 5m"
	cfg.Sweep.Timeout = 30 * time.Second
	cfg.WS.WriteTimeout = 10 * time.Second
	cfg.WS.PingInterval = 30 * time.Second
	return cfg
}

// Validate checks required settings.
func (c *Config) Validate() error {
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	switch c.Storage {
	case StoragePostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database dsn required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	if len(c.JWT.Secret) < 16 {
		return errors.New("jwt secret must be at least 16 characters")
	}
	if (c.Bootstrap.Username == "") != (c.Bootstrap.Password == "") {
		return errors.New("bootstrap username and password must be set together")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// OriginAllowed reports whether a websocket origin may connect. An empty list allows all.
func (c *Config) OriginAllowed(origin string) bool {
	if len(c.HTTP.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range c.HTTP.AllowedOrigins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
