package fedavg

import (
	"fmt"
	"os"
	"time"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/participant"
	"github.com/pelletier/go-toml"
)

// Config is the optional run file. Fields left out of the file keep the
// values already loaded from the environment.
type Config struct {
	Run         RunConfig         `toml:"run"`
	Participant ParticipantConfig `toml:"participant"`
}

type RunConfig struct {
	ExpectedParticipants int     `toml:"expected_participants"`
	Rounds               int     `toml:"rounds"`
	RoundTimeoutS        int     `toml:"round_timeout_s"`
	RegistrationTimeoutS int     `toml:"registration_timeout_s"`
	Dimension            int     `toml:"dimension"`
	Evaluate             *bool   `toml:"evaluate"`
	EvaluationTimeoutS   int     `toml:"evaluation_timeout_s"`
	ConvergenceEpsilon   float64 `toml:"convergence_epsilon"`
	PlateauPatience      int     `toml:"plateau_patience"`
	PlateauMinDelta      float64 `toml:"plateau_min_delta"`
}

type ParticipantConfig struct {
	ID                 string  `toml:"id"`
	CoordinatorAddress string  `toml:"coordinator_address"`
	Codec              string  `toml:"codec"`
	KeepaliveS         int     `toml:"keepalive_s"`
	DataPath           string  `toml:"data_path"`
	Epochs             int     `toml:"epochs"`
	LearningRate       float64 `toml:"learning_rate"`
	TestFraction       float64 `toml:"test_fraction"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// ApplyRun overrides cfg with every value set in the [run] table.
func (c *Config) ApplyRun(cfg *coordinator.RunConfig) {
	r := c.Run
	setInt(&cfg.ExpectedParticipants, r.ExpectedParticipants)
	setInt(&cfg.Rounds, r.Rounds)
	setSeconds(&cfg.RoundTimeout, r.RoundTimeoutS)
	setSeconds(&cfg.RegistrationTimeout, r.RegistrationTimeoutS)
	setInt(&cfg.Dimension, r.Dimension)
	if r.Evaluate != nil {
		cfg.Evaluate = *r.Evaluate
	}
	setSeconds(&cfg.EvaluationTimeout, r.EvaluationTimeoutS)
	setFloat(&cfg.ConvergenceEpsilon, r.ConvergenceEpsilon)
	setInt(&cfg.PlateauPatience, r.PlateauPatience)
	setFloat(&cfg.PlateauMinDelta, r.PlateauMinDelta)
}

// ApplyParticipant overrides cfg with every value set in the [participant] table.
func (c *Config) ApplyParticipant(cfg *participant.Config) {
	p := c.Participant
	setString(&cfg.ID, p.ID)
	setString(&cfg.CoordinatorAddress, p.CoordinatorAddress)
	setString(&cfg.Codec, p.Codec)
	setSeconds(&cfg.KeepaliveInterval, p.KeepaliveS)
	setString(&cfg.DataPath, p.DataPath)
	setInt(&cfg.Epochs, p.Epochs)
	setFloat(&cfg.LearningRate, p.LearningRate)
	setFloat(&cfg.TestFraction, p.TestFraction)
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setSeconds(dst *time.Duration, s int) {
	if s != 0 {
		*dst = time.Duration(s) * time.Second
	}
}
