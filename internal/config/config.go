package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

var ErrMissingSecret = errors.New("secret is required")

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	LogLevel       string        `mapstructure:"log_level"`
	Storage        string        `mapstructure:"storage"`
	MongoURL       string        `mapstructure:"mongodb_url"`
	Database       string        `mapstructure:"database"`
	Secret         string        `mapstructure:"secret"`
	Algorithm      string        `mapstructure:"algorithm"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	RateLimit      int           `mapstructure:"rate_limit"`
	RateInterval   time.Duration `mapstructure:"rate_interval"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// Load reads config/config.<CONFIG_ENV>.yaml when present, then the
// environment. A .env file in the working directory is loaded first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("failed to read .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("storage", cfg.Storage).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("storage", StorageMongo)
	v.SetDefault("mongodb_url", "mongodb://localhost:27017")
	v.SetDefault("database", "kopa_db")
	v.SetDefault("secret", "")
	v.SetDefault("algorithm", "HS256")
	v.SetDefault("token_ttl", "30m")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 256)
	v.SetDefault("rate_limit", 10)
	v.SetDefault("rate_interval", "1s")
	v.SetDefault("allowed_origins", []string{})
}

// bindEnv maps CHAT_<KEY> for every key, plus the variable names the
// account service already uses for the shared settings.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("mongodb_url", "CHAT_MONGODB_URL", "MONGODB_URL")
	_ = v.BindEnv("secret", "CHAT_SECRET", "SECRET_KEY")
	_ = v.BindEnv("algorithm", "CHAT_ALGORITHM", "ALGORITM")
}

func (c *Config) Validate() error {
	if c.Secret == "" {
		return ErrMissingSecret
	}
	switch c.Storage {
	case StorageMongo, StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}
