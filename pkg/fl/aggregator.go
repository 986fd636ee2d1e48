package fl

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// FedAvgAggregator implements federated averaging over sample counts.
type FedAvgAggregator struct{}

// NewFedAvgAggregator returns the FedAvg Aggregator.
func NewFedAvgAggregator() Aggregator {
	return &FedAvgAggregator{}
}

// Aggregate returns the sample-weighted mean of the update parameters.
// Updates are summed in ascending participant id order so that the result
// does not depend on arrival order.
func (f *FedAvgAggregator) Aggregate(round int, updates []ModelUpdate) (GlobalModel, error) {
	if len(updates) == 0 {
		return GlobalModel{}, ErrEmptyRound
	}

	sorted := sortedUpdates(updates)
	weights, err := Weights(sorted)
	if err != nil {
		return GlobalModel{}, err
	}

	dim := len(sorted[0].Parameters)
	aggregated := make([]float64, dim)
	for i, update := range sorted {
		if len(update.Parameters) != dim {
			return GlobalModel{}, fmt.Errorf("%w: update from %s has %d parameters, want %d",
				ErrDimensionMismatch, update.ParticipantID, len(update.Parameters), dim)
		}
		for j, v := range update.Parameters {
			aggregated[j] += weights[i] * v
		}
	}

	return GlobalModel{
		Round:      round,
		Parameters: aggregated,
	}, nil
}

// Weights returns n_i / sum(n) for every update, in the order given.
func Weights(updates []ModelUpdate) ([]float64, error) {
	if len(updates) == 0 {
		return nil, ErrEmptyRound
	}

	total, err := TotalSamples(updates)
	if err != nil {
		return nil, err
	}

	weights := make([]float64, len(updates))
	for i, u := range updates {
		weights[i] = float64(u.SampleCount) / float64(total)
	}

	return weights, nil
}

// TotalSamples sums the sample counts of updates. Every count must be
// positive and the sum must fit in an int.
func TotalSamples(updates []ModelUpdate) (int, error) {
	var total int
	for _, u := range updates {
		if u.SampleCount <= 0 {
			return 0, fmt.Errorf("%w: update from %s has sample count %d", ErrMalformedUpdate, u.ParticipantID, u.SampleCount)
		}
		if total > math.MaxInt-u.SampleCount {
			return 0, ErrOverflow
		}
		total += u.SampleCount
	}

	return total, nil
}

func sortedUpdates(updates []ModelUpdate) []ModelUpdate {
	sorted := slices.Clone(updates)
	slices.SortStableFunc(sorted, func(a, b ModelUpdate) int {
		return cmp.Compare(a.ParticipantID, b.ParticipantID)
	})

	return sorted
}
