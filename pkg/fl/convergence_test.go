package fl_test

import (
	"testing"

	"github.com/absmach/fedavg/pkg/fl"
	"github.com/stretchr/testify/assert"
)

func TestParameterDelta(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc     string
		epsilon  float64
		previous []float64
		last     []float64
		met      bool
	}{
		{desc: "change below epsilon", epsilon: 0.1, previous: []float64{1, 1}, last: []float64{1.01, 0.99}, met: true},
		{desc: "change above epsilon", epsilon: 0.1, previous: []float64{1, 1}, last: []float64{2, 1}},
		{desc: "disabled", epsilon: 0, previous: []float64{1}, last: []float64{1}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			c := fl.ParameterDelta{Epsilon: tc.epsilon}
			history := []fl.RoundRecord{{Round: 1, Parameters: tc.last}}
			assert.Equal(t, tc.met, c.Met(tc.previous, history))
		})
	}
}

func TestAccuracyPlateau(t *testing.T) {
	t.Parallel()

	record := func(acc float64) fl.RoundRecord {
		return fl.RoundRecord{AvgGlobalAccuracy: acc, Evaluations: 3}
	}

	cases := []struct {
		desc    string
		history []fl.RoundRecord
		met     bool
	}{
		{desc: "still improving", history: []fl.RoundRecord{record(0.5), record(0.6), record(0.7)}},
		{desc: "flat for two rounds", history: []fl.RoundRecord{record(0.5), record(0.8), record(0.8), record(0.79)}, met: true},
		{desc: "not enough rounds", history: []fl.RoundRecord{record(0.5), record(0.5)}},
		{desc: "unevaluated rounds are ignored", history: []fl.RoundRecord{record(0.5), {AvgGlobalAccuracy: 0}, record(0.9)}},
	}

	c := fl.AccuracyPlateau{Patience: 2, MinDelta: 0.001}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.met, c.Met(nil, tc.history))
		})
	}
}
