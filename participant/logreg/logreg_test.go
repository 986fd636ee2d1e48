package logreg_test

import (
	"context"
	"strings"
	"testing"

	"github.com/absmach/fedavg/participant/logreg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSV(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc     string
		input    string
		samples  int
		features int
		err      error
	}{
		{
			desc:     "with header",
			input:    "x1,x2,label\n0.5,1,1\n-1,2,0\n",
			samples:  2,
			features: 2,
		},
		{
			desc:     "without header",
			input:    "1, 2, 0\n3, 4, 1\n5, 6, 1\n",
			samples:  3,
			features: 2,
		},
		{
			desc:  "header only",
			input: "a,b\n",
			err:   logreg.ErrEmptyDataset,
		},
		{
			desc:  "label only",
			input: "1\n0\n",
			err:   logreg.ErrInvalidRecord,
		},
		{
			desc:  "non binary label",
			input: "1,2\n3,4\n",
			err:   logreg.ErrInvalidRecord,
		},
		{
			desc:  "bad field",
			input: "1,2,0\n1,x,1\n",
			err:   logreg.ErrInvalidRecord,
		},
		{
			desc:  "ragged rows",
			input: "1,2,0\n1,1\n",
			err:   logreg.ErrInvalidRecord,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			d, err := logreg.LoadCSV(strings.NewReader(tc.input))
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.samples, d.Len())
			assert.Equal(t, tc.features, d.Features())
		})
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	d, err := logreg.Synthetic(100, 3, 7)
	require.NoError(t, err)

	train, test, err := d.Split(0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, 80, train.Len())
	assert.Equal(t, 20, test.Len())
	assert.Equal(t, 3, train.Features())

	again, _, err := d.Split(0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train.X.RawMatrix().Data, again.X.RawMatrix().Data)

	_, _, err = d.Split(0.001, 42)
	assert.ErrorIs(t, err, logreg.ErrEmptyDataset)
}

func TestTrainImprovesAccuracy(t *testing.T) {
	t.Parallel()

	d, err := logreg.Synthetic(400, 4, 11)
	require.NoError(t, err)
	train, test, err := d.Split(0.2, 42)
	require.NoError(t, err)

	tr, err := logreg.New(train, test, logreg.Options{Epochs: 200, LearningRate: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 320, tr.Samples())
	assert.Equal(t, 5, tr.Dimension())

	update, err := tr.Train(context.Background(), make([]float64, 5))
	require.NoError(t, err)
	assert.Len(t, update.Parameters, 5)
	assert.Equal(t, 320, update.SampleCount)
	assert.Greater(t, update.LocalAccuracy, 0.8)

	acc, err := tr.Evaluate(context.Background(), update.Parameters)
	require.NoError(t, err)
	assert.InDelta(t, update.LocalAccuracy, acc, 1e-12)
}

func TestTrainerRejectsBadInput(t *testing.T) {
	t.Parallel()

	d, err := logreg.Synthetic(50, 2, 3)
	require.NoError(t, err)
	train, test, err := d.Split(0.2, 1)
	require.NoError(t, err)

	_, err = logreg.New(train, test, logreg.Options{})
	assert.Error(t, err)

	tr, err := logreg.New(train, test, logreg.Options{Epochs: 1, LearningRate: 0.1})
	require.NoError(t, err)

	_, err = tr.Train(context.Background(), []float64{0, 0})
	assert.ErrorIs(t, err, logreg.ErrParameters)
	_, err = tr.Evaluate(context.Background(), nil)
	assert.ErrorIs(t, err, logreg.ErrParameters)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Train(ctx, []float64{0, 0, 0})
	assert.ErrorIs(t, err, context.Canceled)
}
