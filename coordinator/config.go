package coordinator

import (
	"fmt"
	"time"

	"github.com/absmach/fedavg/pkg/fl"
)

// RunConfig describes one FedAvg run. A run always executes Rounds rounds
// unless a convergence criterion is explicitly configured.
type RunConfig struct {
	ExpectedParticipants int           `env:"EXPECTED_PARTICIPANTS" envDefault:"3"`
	Rounds               int           `env:"ROUNDS"                envDefault:"10"`
	RoundTimeout         time.Duration `env:"ROUND_TIMEOUT"         envDefault:"60s"`
	RegistrationTimeout  time.Duration `env:"REGISTRATION_TIMEOUT"  envDefault:"5m"`
	Dimension            int           `env:"DIMENSION"             envDefault:"0"`

	Evaluate          bool          `env:"EVALUATE"           envDefault:"true"`
	EvaluationTimeout time.Duration `env:"EVALUATION_TIMEOUT" envDefault:"30s"`

	ConvergenceEpsilon float64 `env:"CONVERGENCE_EPSILON" envDefault:"0"`
	PlateauPatience    int     `env:"PLATEAU_PATIENCE"    envDefault:"0"`
	PlateauMinDelta    float64 `env:"PLATEAU_MIN_DELTA"   envDefault:"0"`
}

func (c RunConfig) Validate() error {
	switch {
	case c.ExpectedParticipants <= 0:
		return fmt.Errorf("%w: expected participants must be positive, got %d", ErrInvalidConfig, c.ExpectedParticipants)
	case c.Rounds <= 0:
		return fmt.Errorf("%w: rounds must be positive, got %d", ErrInvalidConfig, c.Rounds)
	case c.RoundTimeout <= 0:
		return fmt.Errorf("%w: round timeout must be positive", ErrInvalidConfig)
	case c.RegistrationTimeout <= 0:
		return fmt.Errorf("%w: registration timeout must be positive", ErrInvalidConfig)
	case c.Dimension < 0:
		return fmt.Errorf("%w: dimension must not be negative", ErrInvalidConfig)
	case c.Evaluate && c.EvaluationTimeout <= 0:
		return fmt.Errorf("%w: evaluation timeout must be positive", ErrInvalidConfig)
	case c.ConvergenceEpsilon < 0, c.PlateauPatience < 0, c.PlateauMinDelta < 0:
		return fmt.Errorf("%w: convergence settings must not be negative", ErrInvalidConfig)
	case c.PlateauPatience > 0 && !c.Evaluate:
		return fmt.Errorf("%w: accuracy plateau requires evaluation", ErrInvalidConfig)
	}

	return nil
}

// Criterion returns the configured early-stop criterion, or nil when the run
// should execute every round.
func (c RunConfig) Criterion() fl.Criterion {
	var criteria fl.AnyOf
	if c.ConvergenceEpsilon > 0 {
		criteria = append(criteria, fl.ParameterDelta{Epsilon: c.ConvergenceEpsilon})
	}
	if c.PlateauPatience > 0 {
		criteria = append(criteria, fl.AccuracyPlateau{Patience: c.PlateauPatience, MinDelta: c.PlateauMinDelta})
	}

	switch len(criteria) {
	case 0:
		return nil
	case 1:
		return criteria[0]
	default:
		return criteria
	}
}
