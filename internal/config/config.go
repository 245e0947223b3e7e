// Package config aggregates every setting the service reads at startup.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/internal/eventbus"
	loader "github.com/wardwatch/wardwatch/pkg/config"
	"github.com/wardwatch/wardwatch/pkg/email"
	"github.com/wardwatch/wardwatch/pkg/httpserver"
	"github.com/wardwatch/wardwatch/pkg/opensearch"
	"github.com/wardwatch/wardwatch/pkg/pg"
	"github.com/wardwatch/wardwatch/pkg/push"
	"github.com/wardwatch/wardwatch/pkg/redis"
	"github.com/wardwatch/wardwatch/pkg/sms"
)

var ErrInvalidTiers = errors.New("invalid escalation tiers file")

type App struct {
	Env        string `env:"APP_ENV" envDefault:"development"` // Env selects the logger preset and the dev email sender.
	Name       string `env:"APP_NAME" envDefault:"wardwatch"`  // Name is logged as the service.
	AdminToken string `env:"ADMIN_TOKEN"`                      // AdminToken guards the admin API; empty rejects every call.
}

// IsDevelopment reports whether the service runs locally.
func (a App) IsDevelopment() bool {
	return a.Env == "" || a.Env == "development"
}

type Escalation struct {
	TickInterval   time.Duration `env:"ESCALATION_TICK_INTERVAL" envDefault:"60s"`
	MaxConcurrency int           `env:"ESCALATION_MAX_CONCURRENCY" envDefault:"8"`
	BatchSize      int           `env:"ESCALATION_BATCH_SIZE" envDefault:"500"`
	TiersFile      string        `env:"ESCALATION_TIERS_FILE"`                                       // TiersFile is a YAML ladder; empty uses the built-in one.
	LeaseKey       string        `env:"ESCALATION_LEASE_KEY" envDefault:"wardwatch:escalation:tick"` // LeaseKey is the Redis key guarding ticks across replicas.
}

type Dispatch struct {
	QueueInterval  time.Duration `env:"DISPATCH_QUEUE_INTERVAL" envDefault:"30s"`
	BatchWindow    time.Duration `env:"DISPATCH_BATCH_WINDOW" envDefault:"60s"`
	MaxAttempts    int           `env:"DISPATCH_QUEUE_MAX_ATTEMPTS" envDefault:"5"`
	MaxConcurrency int           `env:"DISPATCH_MAX_CONCURRENCY" envDefault:"8"`
	QueueBatchSize int           `env:"DISPATCH_QUEUE_BATCH_SIZE" envDefault:"100"`
	// QueueLockTimeout is how long a claimed entry stays with its worker.
	QueueLockTimeout time.Duration `env:"DISPATCH_QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
}

type Config struct {
	App        App
	HTTP       httpserver.Config
	Postgres   pg.Config
	Redis      redis.Config
	Email      email.Config
	SMS        sms.Config
	Push       push.Config
	MQTT       eventbus.MQTTConfig
	Kafka      eventbus.KafkaConfig
	OpenSearch opensearch.Config
	Escalation Escalation
	Dispatch   Dispatch
}

// Load reads the environment (and an optional .env file).
func Load() (Config, error) {
	var cfg Config
	if err := loader.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type tiersFile struct {
	Tiers domain.Tiers `yaml:"tiers"`
}

// Tiers returns the escalation ladder from TiersFile, or the default ladder
// when no file is set.
func (e Escalation) Tiers() (domain.Tiers, error) {
	if e.TiersFile == "" {
		return domain.DefaultTiers(), nil
	}

	var f tiersFile
	if err := loader.LoadYAML(e.TiersFile, &f); err != nil {
		return nil, errors.Join(ErrInvalidTiers, err)
	}
	if err := f.Tiers.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidTiers, fmt.Errorf("%s: %w", e.TiersFile, err))
	}
	return f.Tiers, nil
}
