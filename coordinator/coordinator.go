package coordinator

import (
	"context"

	"github.com/absmach/fedavg/pkg/fl"
)

type Service interface {
	// Run executes the FedAvg run and returns its result; it can be called once.
	Run(ctx context.Context) (Result, error)

	Status(ctx context.Context) (RunStatus, error)
	ListRounds(ctx context.Context, offset, limit uint64) (RoundPage, error)
	GetRound(ctx context.Context, round int) (fl.RoundRecord, error)
	GetModel(ctx context.Context) (fl.GlobalModel, error)
	ListSessions(ctx context.Context) ([]SessionInfo, error)
}

type RoundPage struct {
	Offset uint64           `json:"offset"`
	Limit  uint64           `json:"limit"`
	Total  uint64           `json:"total"`
	Rounds []fl.RoundRecord `json:"rounds"`
}
