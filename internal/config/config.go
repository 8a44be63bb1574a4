package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string   `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL          string   `env:"DATABASE_URL,required,notEmpty"`
	CORSAllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSAllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`

	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// auto picks postgres LISTEN/NOTIFY for postgres DSNs, in-process otherwise.
	RealtimeSource string `env:"REALTIME_SOURCE" envDefault:"auto"`

	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"800ms"`

	S3 S3Config `envPrefix:"S3_"`
}

type S3Config struct {
	Endpoint      string `env:"ENDPOINT" envDefault:"http://localhost:9000"`
	Region        string `env:"REGION" envDefault:"us-east-1"`
	AccessKey     string `env:"ACCESS_KEY"`
	SecretKey     string `env:"SECRET_KEY"`
	Bucket        string `env:"BUCKET" envDefault:"date-photos"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.CORSAllowedOrigins = compact(cfg.CORSAllowedOrigins)

	if cfg.S3.PublicBaseURL == "" {
		cfg.S3.PublicBaseURL = cfg.S3.Endpoint
	}

	switch cfg.RealtimeSource {
	case "auto", "postgres", "local":
	default:
		return Config{}, fmt.Errorf("invalid REALTIME_SOURCE %q", cfg.RealtimeSource)
	}
	return cfg, nil
}

// WatchConfig configures the terminal watcher.
type WatchConfig struct {
	APIURL         string        `env:"OURDATES_API_URL" envDefault:"http://localhost:8080"`
	Token          string        `env:"OURDATES_TOKEN,required,notEmpty"`
	ResyncInterval time.Duration `env:"OURDATES_RESYNC_INTERVAL" envDefault:"15s"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"warn"`
}

func LoadWatch() (WatchConfig, error) {
	_ = godotenv.Load()

	var cfg WatchConfig
	if err := env.Parse(&cfg); err != nil {
		return WatchConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
