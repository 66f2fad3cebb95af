package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type App struct {
	Env     string `yaml:"env"`
	Port    int    `yaml:"port"`
	Timeout string `yaml:"shutdown_timeout"`
}

func (a *App) PortString() string { return fmt.Sprintf("%d", a.Port) }

// Store selects the persistence backend for the chat hierarchy.
type Store struct {
	Backend string `yaml:"backend"` // memory | redis | mongo
	Prefix  string `yaml:"prefix"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Mongo struct {
	URI string `yaml:"uri"`
	DB  string `yaml:"db"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type S3 struct {
	Region     string `yaml:"region"`
	Bucket     string `yaml:"bucket"`
	PublicRead bool   `yaml:"public_read"`
}

type JWT struct {
	HSSecret string `yaml:"hs_secret"`
}

type Config struct {
	App   App   `yaml:"app"`
	Store Store `yaml:"store"`
	Redis Redis `yaml:"redis"`
	Mongo Mongo `yaml:"mongo"`
	Kafka Kafka `yaml:"kafka"`
	S3    S3    `yaml:"s3"`
	JWT   JWT   `yaml:"jwt"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat("config.yaml"); err == nil {
		b, _ := os.ReadFile("config.yaml")
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, err
		}
	}

	_ = godotenv.Load()
	overrideFromEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("SERVICE_PORT"); v != "" {
		n, _ := strconv.Atoi(v)
		cfg.App.Port = n
	}

	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("MONGODB_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("MONGO_NAME"); v != "" {
		cfg.Mongo.DB = v
	}

	if v := os.Getenv("KAFKA_BROKER"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}

	if v := os.Getenv("S3_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.S3.Bucket = v
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.HSSecret = v
	}
}

func validate(cfg *Config) error {
	if cfg.App.Port == 0 {
		return errors.New("app.port missing or invalid")
	}

	switch cfg.Store.Backend {
	case "", "memory":
		cfg.Store.Backend = "memory"
	case "redis":
		if cfg.Redis.Addr == "" {
			return errors.New("redis.addr required for redis store")
		}
	case "mongo":
		if cfg.Mongo.URI == "" {
			return errors.New("mongo.uri required for mongo store")
		}
		if cfg.Mongo.DB == "" {
			return errors.New("mongo.db required for mongo store")
		}
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if cfg.Store.Prefix == "" {
		cfg.Store.Prefix = "chatsync:"
	}

	if cfg.JWT.HSSecret == "" {
		return errors.New("jwt.hs_secret missing")
	}

	return nil
}
