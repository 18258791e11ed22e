package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Store     StoreConfig
	Share     ShareConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	KeyPrefix string
}

type StoreConfig struct {
	// MaxContentBytes limits each version's content independently, not
	// cumulative storage.
	MaxContentBytes int
}

type ShareConfig struct {
	Secret  string
	BaseURL string
	// MaxExpiryMinutes caps requested share-link lifetimes (default one week).
	MaxExpiryMinutes int
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5020")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_KEY_PREFIX", "")
	viper.SetDefault("MAX_CONTENT_BYTES", 256*1024)
	viper.SetDefault("SHARE_BASE_URL", "http://localhost:5020")
	viper.SetDefault("SHARE_MAX_EXPIRY_MINUTES", 10080)
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_USE_REDIS", false)
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Host:      viper.GetString("REDIS_HOST"),
			Port:      viper.GetString("REDIS_PORT"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        viper.GetInt("REDIS_DB"),
			KeyPrefix: viper.GetString("REDIS_KEY_PREFIX"),
		},
		Store: StoreConfig{
			MaxContentBytes: viper.GetInt("MAX_CONTENT_BYTES"),
		},
		Share: ShareConfig{
			Secret:           os.Getenv("SHARE_SECRET"),
			BaseURL:          viper.GetString("SHARE_BASE_URL"),
			MaxExpiryMinutes: viper.GetInt("SHARE_MAX_EXPIRY_MINUTES"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	// Basic validation
	if cfg.Share.Secret == "" {
		log.Println("WARNING: SHARE_SECRET is not set; set a secure value in production")
	}

	return cfg, nil
}
