package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "CARTD"

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTP      HTTP      `mapstructure:"http"`
	Log       Log       `mapstructure:"log"`
	Store     Store     `mapstructure:"store"`
	Cart      Cart      `mapstructure:"cart"`
	Events    Events    `mapstructure:"events"`
	Metrics   Metrics   `mapstructure:"metrics"`
	RateLimit RateLimit `mapstructure:"ratelimit"`
	CORS      CORS      `mapstructure:"cors"`
}

type HTTP struct {
	Addr string `mapstructure:"addr"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

type Store struct {
	Driver   string        `mapstructure:"driver"`
	File     FileStore     `mapstructure:"file"`
	Postgres PostgresStore `mapstructure:"postgres"`
	Cache    Cache         `mapstructure:"cache"`
}

type FileStore struct {
	Dir string `mapstructure:"dir"`
}

type PostgresStore struct {
	DSN string `mapstructure:"dsn"`
}

type Cache struct {
	// Size is the number of carts kept in memory; 0 disables the cache.
	Size int `mapstructure:"size"`
}

type Cart struct {
	DefaultSession string `mapstructure:"default_session"`
}

type Events struct {
	PopupURL  string        `mapstructure:"popup_url"`
	Buffer    int           `mapstructure:"buffer"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

type Metrics struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

type RateLimit struct {
	PopupPerMin int `mapstructure:"popup_per_min"`
}

type CORS struct {
	// AllowedOrigins may hold "*"; an empty list turns CORS off.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":5000")
	v.SetDefault("log.level", "info")
	v.SetDefault("store.driver", DriverFile)
	v.SetDefault("store.file.dir", "./data/carts")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.cache.size", 0)
	v.SetDefault("cart.default_session", "default")
	v.SetDefault("events.popup_url", "https://example.com/offer")
	v.SetDefault("events.buffer", 16)
	v.SetDefault("events.heartbeat", 25*time.Second)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.token", "")
	v.SetDefault("ratelimit.popup_per_min", 30)
	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// Load reads defaults, then the optional config file at path, then
// CARTD_* environment variables (CARTD_STORE_DRIVER, CARTD_HTTP_ADDR, ...).
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverFile:
		if c.Store.File.Dir == "" {
			errs = append(errs, errors.New("store.file.dir is required for the file driver"))
		}
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, errors.New("store.postgres.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: want memory, file or postgres", c.Store.Driver))
	}

	if c.Store.Cache.Size < 0 {
		errs = append(errs, errors.New("store.cache.size must not be negative"))
	}
	if strings.TrimSpace(c.Cart.DefaultSession) == "" {
		errs = append(errs, errors.New("cart.default_session is required"))
	}
	if c.Events.Buffer <= 0 {
		errs = append(errs, errors.New("events.buffer must be positive"))
	}
	if c.Events.Heartbeat < 0 {
		errs = append(errs, errors.New("events.heartbeat must not be negative"))
	}
	if c.Metrics.Enabled && c.Metrics.Token == "" {
		errs = append(errs, errors.New("metrics.token is required when metrics.enabled is set"))
	}
	if c.RateLimit.PopupPerMin < 0 {
		errs = append(errs, errors.New("ratelimit.popup_per_min must not be negative"))
	}

	return errors.Join(errs...)
}
