package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		TTL string `yaml:"ttl"`
	} `yaml:"questions"`
	Answers struct {
		// Ledger selects where answers live: "store" (same backend as rooms) or "redis".
		Ledger string `yaml:"ledger"`
		TTL    string `yaml:"ttl"`
	} `yaml:"answers"`
	Auth struct {
		JWTSecret  string `yaml:"jwt_secret"`
		BcryptCost int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	Bots struct {
		Accuracy float64 `yaml:"accuracy"`
	} `yaml:"bots"`
}

// Load reads YAML config from path. A missing file yields the zero Config so
// the service can run purely from environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// Validate rejects combinations the server cannot run safely.
func (c Config) Validate() error {
	switch c.Answers.Ledger {
	case "", "store":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("answers.ledger is redis but redis.addr is not configured")
		}
		// Ledger keys use room and slot ids, which only Postgres hands out uniquely across instances and restarts.
		if c.Postgres.URL == "" {
			return errors.New("answers.ledger is redis but postgres.url is not configured")
		}
	default:
		return fmt.Errorf("unknown answers.ledger %q", c.Answers.Ledger)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// applyEnv lets secrets and endpoints come from the environment.
func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Postgres.URL, "POSTGRES_URL")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.RabbitMQ.URL, "RABBITMQ_URL")
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
