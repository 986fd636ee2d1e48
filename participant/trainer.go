package participant

import (
	"context"

	"github.com/absmach/fedavg/pkg/fl"
)

// Trainer runs local training and evaluation on a participant's private data.
// Implementations are used from a single goroutine.
type Trainer interface {
	// Train starts from the global parameters and returns the locally trained
	// parameters with the sample count and local accuracy. The caller fills in
	// the participant id and round.
	Train(ctx context.Context, global []float64) (fl.ModelUpdate, error)
	// Evaluate scores params against held-out data.
	Evaluate(ctx context.Context, params []float64) (float64, error)
	Samples() int
	Dimension() int
}
