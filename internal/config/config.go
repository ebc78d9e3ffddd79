// Package config lê a configuração do serviço das variáveis de ambiente.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backends de fila aceitos em QUEUE_BACKEND.
const (
	BackendSQS    = "sqs"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Nomes usados pelo backend memory quando as URLs não são informadas.
const (
	defaultMemoryRequestQueue  = "deliveryman-requests"
	defaultMemoryResponseQueue = "deliveryman-responses"
	defaultMemoryEventQueue    = "auth-events"
)

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":3000"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	QueueBackend string `env:"QUEUE_BACKEND" envDefault:"sqs"`
	AWSRegion    string `env:"AWS_REGION" envDefault:"us-east-1"`
	SQSEndpoint  string `env:"SQS_ENDPOINT"`

	RequestQueueURL  string `env:"DELIVERYMAN_REQUEST_QUEUE_URL"`
	ResponseQueueURL string `env:"DELIVERYMAN_RESPONSE_QUEUE_URL"`
	EventQueueURL    string `env:"SQS_QUEUE_URL"`

	// Visibility vale para os backends redis e memory. Uma resposta lida por
	// outra espera só volta a aparecer depois dessa janela.
	Visibility time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT" envDefault:"1s"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret    string        `env:"JWT_SECRET"`
	JWTExpiresIn time.Duration `env:"JWT_EXPIRES_IN" envDefault:"24h"`

	CallTimeout  time.Duration `env:"DELIVERYMAN_CALL_TIMEOUT" envDefault:"10s"`
	PollWait     time.Duration `env:"DELIVERYMAN_POLL_WAIT" envDefault:"1s"`
	PollInterval time.Duration `env:"DELIVERYMAN_POLL_INTERVAL" envDefault:"100ms"`
	MaxMessages  int           `env:"DELIVERYMAN_MAX_MESSAGES" envDefault:"10"`

	// IMPORTANTE: o burst permite uma rajada inicial de tentativas por cliente.
	RateEnabled bool          `env:"RATE_ENABLED" envDefault:"true"`
	RateRPS     float64       `env:"RATE_RPS" envDefault:"1"`
	RateBurst   int           `env:"RATE_BURST" envDefault:"5"`
	KeyHeader   string        `env:"RATE_KEY_HEADER"`
	TrustXFF    bool          `env:"TRUST_XFF" envDefault:"false"`
	RetryAfter  time.Duration `env:"RETRY_AFTER" envDefault:"1s"`
	AddHeaders  bool          `env:"ADD_RATELIMIT_HEADERS" envDefault:"false"`

	ConcurrencyMax     int           `env:"CONCURRENCY_MAX" envDefault:"100"`
	ConcurrencyTimeout time.Duration `env:"CONCURRENCY_TIMEOUT" envDefault:"0s"`

	StatsEnabled bool          `env:"LOGIN_STATS_ENABLED" envDefault:"false"`
	StatsPrefix  string        `env:"LOGIN_STATS_PREFIX" envDefault:"auth:stats"`
	StatsTTL     time.Duration `env:"LOGIN_STATS_TTL" envDefault:"24h"`
	StatsClients bool          `env:"LOGIN_STATS_TRACK_CLIENTS" envDefault:"false"`

	StubSeedFile string `env:"STUB_SEED_FILE"`
	OTELEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load lê o ambiente do processo e valida.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom usa o mapa informado no lugar do ambiente do processo.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.QueueBackend = strings.ToLower(strings.TrimSpace(cfg.QueueBackend))
	if cfg.QueueBackend == BackendMemory {
		cfg.RequestQueueURL = defaultString(cfg.RequestQueueURL, defaultMemoryRequestQueue)
		cfg.ResponseQueueURL = defaultString(cfg.ResponseQueueURL, defaultMemoryResponseQueue)
		cfg.EventQueueURL = defaultString(cfg.EventQueueURL, defaultMemoryEventQueue)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.QueueBackend {
	case BackendSQS, BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return errors.New("REDIS_ADDR is required when QUEUE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("QUEUE_BACKEND must be one of sqs, redis, memory (got %q)", c.QueueBackend)
	}

	if c.RequestQueueURL == "" {
		return errors.New("DELIVERYMAN_REQUEST_QUEUE_URL is required")
	}
	if c.ResponseQueueURL == "" {
		return errors.New("DELIVERYMAN_RESPONSE_QUEUE_URL is required")
	}
	if c.EventQueueURL == "" {
		return errors.New("SQS_QUEUE_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTExpiresIn <= 0 {
		return errors.New("JWT_EXPIRES_IN must be > 0")
	}
	if c.CallTimeout <= 0 {
		return errors.New("DELIVERYMAN_CALL_TIMEOUT must be > 0")
	}
	if c.MaxMessages <= 0 || c.MaxMessages > 10 {
		return errors.New("DELIVERYMAN_MAX_MESSAGES must be between 1 and 10")
	}
	if c.RateEnabled {
		if c.RateRPS <= 0 {
			return errors.New("RATE_RPS must be > 0")
		}
		if c.RateBurst <= 0 {
			return errors.New("RATE_BURST must be > 0")
		}
	}
	if c.ConcurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if c.StatsEnabled && strings.TrimSpace(c.RedisAddr) == "" {
		return errors.New("REDIS_ADDR is required when LOGIN_STATS_ENABLED=true")
	}
	return nil
}

// SlogLevel converte LOG_LEVEL; valores desconhecidos viram info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
