package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env  string     `yaml:"env"  env:"APP_ENV" env-default:"local"`
	HTTP HTTPConfig `yaml:"http"`
	Hub  HubConfig  `yaml:"hub"`
	Auth AuthConfig `yaml:"auth"`
	AMQP AMQPConfig `yaml:"amqp"`
	Log  LogConfig  `yaml:"log"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"          env:"HTTP_ADDR"          env-default:":8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout"  env:"HTTP_READ_TIMEOUT"  env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"  env:"HTTP_IDLE_TIMEOUT"  env-default:"60s"`
}

type HubConfig struct {
	ProbeInterval time.Duration `yaml:"probe_interval" env:"HUB_PROBE_INTERVAL" env-default:"30s"`
	EvictAfter    time.Duration `yaml:"evict_after"    env:"HUB_EVICT_AFTER"    env-default:"5m"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
}

type AMQPConfig struct {
	URL     string `yaml:"url"     env:"AMQP_URL"`
	Queue   string `yaml:"queue"   env:"AMQP_QUEUE" env-default:"platform-events"`
	Enabled bool   `yaml:"enabled" env:"AMQP_ENABLED" env-default:"false"`
}

type LogConfig struct {
	Level    string `yaml:"level"     env:"LOG_LEVEL"     env-default:"info"`
	Format   string `yaml:"format"    env:"LOG_FORMAT"    env-default:"console"`
	Output   string `yaml:"output"    env:"LOG_OUTPUT"    env-default:"stdout"`
	FilePath string `yaml:"file_path" env:"LOG_FILE_PATH"`
}

// Load reads configuration from the file at CONFIG_PATH when set, falling
// back to environment variables only.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	return &cfg, nil
}
