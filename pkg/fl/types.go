package fl

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// GlobalModel is the shared parameter vector published for a round.
type GlobalModel struct {
	Round      int       `json:"round"      cbor:"round"`
	Parameters []float64 `json:"parameters" cbor:"parameters"`
}

func NewGlobalModel(params []float64) GlobalModel {
	return GlobalModel{Parameters: slices.Clone(params)}
}

func (m GlobalModel) Dim() int {
	return len(m.Parameters)
}

// Clone returns a deep copy so that published models are never aliased.
func (m GlobalModel) Clone() GlobalModel {
	return GlobalModel{
		Round:      m.Round,
		Parameters: slices.Clone(m.Parameters),
	}
}

type ModelUpdate struct {
	ParticipantID string    `json:"participant_id" cbor:"participant_id"`
	Round         int       `json:"round"          cbor:"round"`
	Parameters    []float64 `json:"parameters"     cbor:"parameters"`
	SampleCount   int       `json:"sample_count"   cbor:"sample_count"`
	LocalAccuracy float64   `json:"local_accuracy" cbor:"local_accuracy"`
}

// Validate checks the update against the agreed dimensionality and the round
// currently being collected.
func (u ModelUpdate) Validate(dim, round int) error {
	if u.ParticipantID == "" {
		return fmt.Errorf("%w: missing participant id", ErrMalformedUpdate)
	}
	if u.Round != round {
		return fmt.Errorf("%w: got round %d, want %d", ErrOutOfRound, u.Round, round)
	}
	if len(u.Parameters) != dim {
		return fmt.Errorf("%w: got %d parameters, want %d", ErrDimensionMismatch, len(u.Parameters), dim)
	}
	if u.SampleCount <= 0 {
		return fmt.Errorf("%w: sample count must be positive, got %d", ErrMalformedUpdate, u.SampleCount)
	}
	if math.IsNaN(u.LocalAccuracy) || u.LocalAccuracy < 0 || u.LocalAccuracy > 1 {
		return fmt.Errorf("%w: local accuracy %v outside [0,1]", ErrMalformedUpdate, u.LocalAccuracy)
	}
	for i, p := range u.Parameters {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: parameter %d is not finite", ErrMalformedUpdate, i)
		}
	}

	return nil
}

// RoundRecord is the immutable audit entry of a completed round.
type RoundRecord struct {
	Round             int       `json:"round"`
	Participants      []string  `json:"participants"`
	Parameters        []float64 `json:"parameters"`
	TotalSamples      int       `json:"total_samples"`
	AvgLocalAccuracy  float64   `json:"avg_local_accuracy"`
	AvgGlobalAccuracy float64   `json:"avg_global_accuracy"`
	Evaluations       int       `json:"evaluations"`
	StartedAt         time.Time `json:"started_at"`
	CompletedAt       time.Time `json:"completed_at"`
}

func (r RoundRecord) ParticipantCount() int {
	return len(r.Participants)
}

func (r RoundRecord) Clone() RoundRecord {
	r.Participants = slices.Clone(r.Participants)
	r.Parameters = slices.Clone(r.Parameters)

	return r
}

// Evaluated reports whether the record carries a global accuracy.
func (r RoundRecord) Evaluated() bool {
	return r.Evaluations > 0
}

// Evaluation is a participant's accuracy of a global model on its held-out data.
type Evaluation struct {
	ParticipantID string  `json:"participant_id" cbor:"participant_id"`
	Round         int     `json:"round"          cbor:"round"`
	Accuracy      float64 `json:"accuracy"       cbor:"accuracy"`
}

type Aggregator interface {
	Aggregate(round int, updates []ModelUpdate) (GlobalModel, error)
}
