package coordinator

import (
	"context"

	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/storage"
)

const defLimit = 10

type service struct {
	orch    *Orchestrator
	agg     *Aggregator
	history storage.HistoryRepository
}

func NewService(orch *Orchestrator, agg *Aggregator, history storage.HistoryRepository) Service {
	return &service{
		orch:    orch,
		agg:     agg,
		history: history,
	}
}

func (svc *service) Run(ctx context.Context) (Result, error) {
	return svc.orch.Run(ctx)
}

func (svc *service) Status(_ context.Context) (RunStatus, error) {
	return svc.orch.Status(), nil
}

func (svc *service) ListRounds(ctx context.Context, offset, limit uint64) (RoundPage, error) {
	if limit == 0 {
		limit = defLimit
	}

	rounds, total, err := svc.history.List(ctx, offset, limit)
	if err != nil {
		return RoundPage{}, err
	}

	return RoundPage{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Rounds: rounds,
	}, nil
}

func (svc *service) GetRound(ctx context.Context, round int) (fl.RoundRecord, error) {
	return svc.history.Get(ctx, round)
}

func (svc *service) GetModel(_ context.Context) (fl.GlobalModel, error) {
	model := svc.agg.Model()
	if model.Dim() == 0 {
		return fl.GlobalModel{}, pkgerrors.ErrNotFound
	}

	return model, nil
}

func (svc *service) ListSessions(_ context.Context) ([]SessionInfo, error) {
	return svc.agg.Sessions(), nil
}
