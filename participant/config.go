package participant

import (
	"errors"
	"time"
)

type Config struct {
	ID                 string        `env:"ID"                  envDefault:""`
	CoordinatorAddress string        `env:"COORDINATOR_ADDRESS" envDefault:"localhost:7070"`
	Codec              string        `env:"CODEC"               envDefault:"json"`
	KeepaliveInterval  time.Duration `env:"KEEPALIVE_INTERVAL"  envDefault:"10s"`
	DialTimeout        time.Duration `env:"DIAL_TIMEOUT"        envDefault:"10s"`
	DataPath           string        `env:"DATA_PATH"           envDefault:""`
	SyntheticSamples   int           `env:"SYNTHETIC_SAMPLES"   envDefault:"1000"`
	SyntheticFeatures  int           `env:"SYNTHETIC_FEATURES"  envDefault:"10"`
	Epochs             int           `env:"EPOCHS"              envDefault:"50"`
	LearningRate       float64       `env:"LEARNING_RATE"       envDefault:"0.1"`
	TestFraction       float64       `env:"TEST_FRACTION"       envDefault:"0.2"`
	Seed               uint64        `env:"SEED"                envDefault:"42"`
}

func (c Config) Validate() error {
	if c.CoordinatorAddress == "" {
		return errors.New("coordinator address is required")
	}
	if c.DataPath == "" && (c.SyntheticSamples <= 0 || c.SyntheticFeatures <= 0) {
		return errors.New("synthetic samples and features must be positive without a data path")
	}
	if c.Epochs <= 0 {
		return errors.New("epochs must be positive")
	}
	if c.LearningRate <= 0 {
		return errors.New("learning rate must be positive")
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return errors.New("test fraction must be in (0, 1)")
	}

	return nil
}
