package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Queue  Queue
	Alerts Alerts
	Redis  Redis
	HTTP   HTTP
	Log    Log
}

type Queue struct {
	Name              string        `env:"JOBQ_QUEUE_NAME" envDefault:"default"`
	Workers           int           `env:"JOBQ_WORKERS" envDefault:"1"`
	PromoteInterval   time.Duration `env:"JOBQ_PROMOTE_INTERVAL" envDefault:"100ms"`
	DispatchRate      float64       `env:"JOBQ_DISPATCH_RATE"`
	AllowUnregistered bool          `env:"JOBQ_ALLOW_UNREGISTERED"`
	SampleSize        int           `env:"JOBQ_SAMPLE_SIZE" envDefault:"1000"`
}

type Alerts struct {
	QueueThreshold       int           `env:"ALERT_QUEUE_THRESHOLD" envDefault:"1000"`
	FailureRateThreshold float64       `env:"ALERT_FAILURE_RATE_THRESHOLD" envDefault:"10"`
	LatencyThreshold     time.Duration `env:"ALERT_LATENCY_THRESHOLD" envDefault:"5s"`
}

// Redis configures the optional state mirror. An empty Addr disables it.
type Redis struct {
	Addr     string `env:"Redis_Address"`
	Password string `env:"Redis_Password"`
	DB       int    `env:"Redis_DB"`
}

type HTTP struct {
	Port int `env:"HTTP_PORT" envDefault:"8080"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty bool   `env:"LOG_PRETTY"`
}

// Parse loads .env files when present and then reads the environment.
// Variables already set in the environment win over .env values.
func Parse(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func Load() *Config {
	c, err := Parse()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	return c
}
