// Package config loads the schedulerd settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable, e.g. SCHEDULER_WORKERS.
const EnvPrefix = "SCHEDULER"

// Pool ...
type Pool struct {
	Name            string        `envconfig:"POOL_NAME" default:"scheduler" validate:"required"`
	Workers         int           `envconfig:"WORKERS" default:"4" validate:"min=1,max=10000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
}

// Metrics ...
type Metrics struct {
	Addr             string        `envconfig:"METRICS_ADDR" default:":9090" validate:"required"`
	Namespace        string        `envconfig:"METRICS_NAMESPACE" default:"taskscheduler"`
	SnapshotInterval time.Duration `envconfig:"SNAPSHOT_INTERVAL" default:"5s" validate:"gt=0"`
}

type Log struct {
	Level string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn warning error fatal panic"`
}

type Config struct {
	Pool    Pool
	Metrics Metrics
	Log     Log
}

// Load reads the optional env files, then the process environment, and
// validates the result. Variables already set in the environment win over
// the files; missing files are skipped.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
