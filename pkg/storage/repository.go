package storage

import (
	"context"

	"github.com/absmach/fedavg/pkg/fl"
)

// HistoryRepository keeps the append-only record of completed rounds of a
// single run. Records are returned in ascending round order.
type HistoryRepository interface {
	Append(ctx context.Context, rec fl.RoundRecord) error
	Get(ctx context.Context, round int) (fl.RoundRecord, error)
	List(ctx context.Context, offset, limit uint64) ([]fl.RoundRecord, uint64, error)
	Count(ctx context.Context) (uint64, error)
}
