// Package logreg is a binary logistic regression trainer for participants.
// Parameters are laid out as the feature weights followed by the bias.
package logreg

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/absmach/fedavg/pkg/fl"
	"gonum.org/v1/gonum/mat"
)

var ErrParameters = errors.New("parameter vector does not match the feature count")

type Options struct {
	Epochs       int
	LearningRate float64
}

type Trainer struct {
	train Dataset
	test  Dataset
	opts  Options
}

func New(train, test Dataset, opts Options) (*Trainer, error) {
	if train.Len() == 0 || test.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	if train.Features() != test.Features() {
		return nil, fmt.Errorf("%w: train has %d features, test has %d", ErrInvalidRecord, train.Features(), test.Features())
	}
	if opts.Epochs <= 0 || opts.LearningRate <= 0 {
		return nil, errors.New("epochs and learning rate must be positive")
	}

	return &Trainer{train: train, test: test, opts: opts}, nil
}

func (t *Trainer) Samples() int {
	return t.train.Len()
}

func (t *Trainer) Dimension() int {
	return t.train.Features() + 1
}

// Train runs full-batch gradient descent from the global parameters and
// reports accuracy on the held-out rows.
func (t *Trainer) Train(ctx context.Context, global []float64) (fl.ModelUpdate, error) {
	w, b, err := t.unpack(global)
	if err != nil {
		return fl.ModelUpdate{}, err
	}

	n := float64(t.train.Len())
	diff := mat.NewVecDense(t.train.Len(), nil)
	grad := mat.NewVecDense(t.train.Features(), nil)
	for range t.opts.Epochs {
		if err := ctx.Err(); err != nil {
			return fl.ModelUpdate{}, err
		}

		predict(diff, t.train.X, w, b)
		diff.SubVec(diff, t.train.Y)
		grad.MulVec(t.train.X.T(), diff)

		w.AddScaledVec(w, -t.opts.LearningRate/n, grad)
		b -= t.opts.LearningRate * mat.Sum(diff) / n
	}

	params := pack(w, b)

	return fl.ModelUpdate{
		Parameters:    params,
		SampleCount:   t.train.Len(),
		LocalAccuracy: accuracy(t.test, w, b),
	}, nil
}

func (t *Trainer) Evaluate(_ context.Context, params []float64) (float64, error) {
	w, b, err := t.unpack(params)
	if err != nil {
		return 0, err
	}

	return accuracy(t.test, w, b), nil
}

func (t *Trainer) unpack(params []float64) (*mat.VecDense, float64, error) {
	f := t.train.Features()
	if len(params) != f+1 {
		return nil, 0, fmt.Errorf("%w: got %d, want %d", ErrParameters, len(params), f+1)
	}
	w := mat.NewVecDense(f, nil)
	w.CopyVec(mat.NewVecDense(f, params[:f]))

	return w, params[f], nil
}

func pack(w *mat.VecDense, b float64) []float64 {
	params := make([]float64, w.Len()+1)
	for i := range w.Len() {
		params[i] = w.AtVec(i)
	}
	params[w.Len()] = b

	return params
}

// predict writes the positive class probability of every row into dst.
func predict(dst *mat.VecDense, x *mat.Dense, w *mat.VecDense, b float64) {
	dst.MulVec(x, w)
	for i := range dst.Len() {
		dst.SetVec(i, sigmoid(dst.AtVec(i)+b))
	}
}

func accuracy(d Dataset, w *mat.VecDense, b float64) float64 {
	p := mat.NewVecDense(d.Len(), nil)
	predict(p, d.X, w, b)

	var correct int
	for i := range p.Len() {
		label := 0.0
		if p.AtVec(i) >= 0.5 {
			label = 1
		}
		if label == d.Y.AtVec(i) {
			correct++
		}
	}

	return float64(correct) / float64(d.Len())
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
