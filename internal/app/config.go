package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Config holds the complete application configuration, loadable from a .env
// file, environment variables (FOOD_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (FOOD_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL     string `usage:"Redis connection URL (FOOD_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	JWTSecret    string `usage:"HMAC secret for bearer tokens (FOOD_JWT_SECRET)" flag:"jwt-secret"`
	ImageBaseURL string `default:"" usage:"Base URL prepended to menu item images" flag:"image-base-url"`
	Cart         CartConfig
	Notification NotificationConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// CartConfig controls the cart store.
type CartConfig struct {
	TTL time.Duration `default:"168h" usage:"Idle lifetime of a user's cart, 0 keeps carts forever"`
}

// NotificationConfig controls stored notifications and realtime sessions.
type NotificationConfig struct {
	TTL           time.Duration `default:"24h" usage:"Lifetime of stored notifications"`
	SweepInterval time.Duration `default:"10m" usage:"Interval between expired notification sweeps" flag:"sweep-interval"`
	SendBuffer    int           `default:"16" usage:"Frames queued per restaurant session before dropping" flag:"send-buffer"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max     int           `default:"100" usage:"Max requests per window"`
	Window  time.Duration `default:"1m" usage:"Rate limit window duration"`
	Backend string        `default:"redis" usage:"Limiter backend: redis or memory"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS and websocket origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads .env, then configuration from environment variables and
// YAML config files, and applies platform defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "FOOD",
		Files:     []string{"config.yaml", "/etc/food/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set FOOD_DATABASE_URL or DATABASE_URL")
	case c.RedisURL == "":
		return errors.New("redis URL is required: set FOOD_REDIS_URL or REDIS_URL")
	case len(c.JWTSecret) < 32:
		return errors.New("FOOD_JWT_SECRET must be at least 32 bytes")
	case c.Cart.TTL < 0:
		return errors.Errorf("cart TTL must not be negative, got %s", c.Cart.TTL)
	case c.Notification.TTL <= 0:
		return errors.Errorf("notification TTL must be positive, got %s", c.Notification.TTL)
	case c.Notification.SweepInterval <= 0:
		return errors.Errorf("notification sweep interval must be positive, got %s", c.Notification.SweepInterval)
	case c.Notification.SendBuffer <= 0:
		return errors.Errorf("notification send buffer must be positive, got %d", c.Notification.SendBuffer)
	case c.RateLimit.Max <= 0:
		return errors.Errorf("rate limit max must be positive, got %d", c.RateLimit.Max)
	case c.RateLimit.Window <= 0:
		return errors.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window)
	case c.RateLimit.Backend != "redis" && c.RateLimit.Backend != "memory":
		return errors.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided variables like DATABASE_URL,
// REDIS_URL and PORT onto the FOOD_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
