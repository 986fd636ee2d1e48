package logreg

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmptyDataset  = errors.New("dataset has no samples")
	ErrInvalidRecord = errors.New("invalid dataset record")
)

// Dataset holds a feature matrix with one binary label per row.
type Dataset struct {
	X *mat.Dense
	Y *mat.VecDense
}

func (d Dataset) Len() int {
	if d.Y == nil {
		return 0
	}

	return d.Y.Len()
}

func (d Dataset) Features() int {
	if d.X == nil {
		return 0
	}
	_, c := d.X.Dims()

	return c
}

// LoadCSV reads rows of features followed by a 0/1 label. A first row that
// does not parse as numbers is treated as a header.
func LoadCSV(r io.Reader) (Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return Dataset{}, errors.Join(ErrInvalidRecord, err)
	}
	if len(records) > 0 && !numeric(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return Dataset{}, ErrEmptyDataset
	}

	cols := len(records[0])
	if cols < 2 {
		return Dataset{}, fmt.Errorf("%w: need at least one feature and a label, got %d columns", ErrInvalidRecord, cols)
	}

	features := cols - 1
	x := make([]float64, 0, len(records)*features)
	y := make([]float64, 0, len(records))
	for i, rec := range records {
		if len(rec) != cols {
			return Dataset{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidRecord, i+1, len(rec), cols)
		}
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return Dataset{}, fmt.Errorf("%w: row %d column %d: %w", ErrInvalidRecord, i+1, j+1, err)
			}
			if j < features {
				x = append(x, v)

				continue
			}
			if v != 0 && v != 1 {
				return Dataset{}, fmt.Errorf("%w: row %d label must be 0 or 1, got %v", ErrInvalidRecord, i+1, v)
			}
			y = append(y, v)
		}
	}

	return Dataset{
		X: mat.NewDense(len(records), features, x),
		Y: mat.NewVecDense(len(y), y),
	}, nil
}

// Synthetic generates a linearly separable-ish binary problem. Partitions
// built from different seeds get different distributions.
func Synthetic(samples, features int, seed uint64) (Dataset, error) {
	if samples <= 0 || features <= 0 {
		return Dataset{}, ErrEmptyDataset
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	truth := make([]float64, features)
	for j := range truth {
		truth[j] = rng.NormFloat64()
	}

	x := mat.NewDense(samples, features, nil)
	y := mat.NewVecDense(samples, nil)
	for i := range samples {
		var z float64
		for j := range features {
			v := rng.NormFloat64()
			x.Set(i, j, v)
			z += v * truth[j]
		}
		if z+0.5*rng.NormFloat64() > 0 {
			y.SetVec(i, 1)
		}
	}

	return Dataset{X: x, Y: y}, nil
}

// Split shuffles the rows with seed and holds out testFraction of them.
func (d Dataset) Split(testFraction float64, seed uint64) (train, test Dataset, err error) {
	n := d.Len()
	nTest := int(float64(n) * testFraction)
	if nTest < 1 || nTest >= n {
		return Dataset{}, Dataset{}, fmt.Errorf("%w: cannot hold out %v of %d samples", ErrEmptyDataset, testFraction, n)
	}

	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)

	return d.subset(perm[nTest:]), d.subset(perm[:nTest]), nil
}

func (d Dataset) subset(rows []int) Dataset {
	f := d.Features()
	x := mat.NewDense(len(rows), f, nil)
	y := mat.NewVecDense(len(rows), nil)
	for i, r := range rows {
		x.SetRow(i, d.X.RawRowView(r))
		y.SetVec(i, d.Y.AtVec(r))
	}

	return Dataset{X: x, Y: y}
}

func numeric(rec []string) bool {
	for _, field := range rec {
		if _, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err != nil {
			return false
		}
	}

	return true
}
