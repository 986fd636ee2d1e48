package fl_test

import (
	"math"
	"testing"

	"github.com/absmach/fedavg/pkg/fl"
	"github.com/stretchr/testify/assert"
)

func TestModelUpdateValidate(t *testing.T) {
	t.Parallel()

	valid := fl.ModelUpdate{
		ParticipantID: "p1",
		Round:         2,
		Parameters:    []float64{1, 2, 3},
		SampleCount:   10,
		LocalAccuracy: 0.8,
	}

	cases := []struct {
		desc   string
		mutate func(u *fl.ModelUpdate)
		err    error
	}{
		{desc: "valid update", mutate: func(*fl.ModelUpdate) {}},
		{desc: "missing participant", mutate: func(u *fl.ModelUpdate) { u.ParticipantID = "" }, err: fl.ErrMalformedUpdate},
		{desc: "previous round", mutate: func(u *fl.ModelUpdate) { u.Round = 1 }, err: fl.ErrOutOfRound},
		{desc: "too few parameters", mutate: func(u *fl.ModelUpdate) { u.Parameters = []float64{1, 2} }, err: fl.ErrDimensionMismatch},
		{desc: "too many parameters", mutate: func(u *fl.ModelUpdate) { u.Parameters = []float64{1, 2, 3, 4} }, err: fl.ErrDimensionMismatch},
		{desc: "zero samples", mutate: func(u *fl.ModelUpdate) { u.SampleCount = 0 }, err: fl.ErrMalformedUpdate},
		{desc: "accuracy above one", mutate: func(u *fl.ModelUpdate) { u.LocalAccuracy = 1.2 }, err: fl.ErrMalformedUpdate},
		{desc: "nan parameter", mutate: func(u *fl.ModelUpdate) { u.Parameters = []float64{1, math.NaN(), 3} }, err: fl.ErrMalformedUpdate},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			u := valid
			u.Parameters = append([]float64(nil), valid.Parameters...)
			tc.mutate(&u)

			err := u.Validate(3, 2)
			if tc.err == nil {
				assert.NoError(t, err)

				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestGlobalModelClone(t *testing.T) {
	t.Parallel()

	m := fl.NewGlobalModel([]float64{1, 2})
	c := m.Clone()
	c.Parameters[0] = 9

	assert.Equal(t, 1.0, m.Parameters[0])
	assert.Equal(t, 2, m.Dim())
}
