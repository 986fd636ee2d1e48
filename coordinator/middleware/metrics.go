package middleware

import (
	"context"
	"time"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/go-kit/kit/metrics"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Run(ctx context.Context) (coordinator.Result, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "run").Add(1)
		mm.latency.With("method", "run").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Run(ctx)
}

func (mm *metricsMiddleware) Status(ctx context.Context) (coordinator.RunStatus, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-status").Add(1)
		mm.latency.With("method", "get-status").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Status(ctx)
}

func (mm *metricsMiddleware) ListRounds(ctx context.Context, offset, limit uint64) (coordinator.RoundPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-rounds").Add(1)
		mm.latency.With("method", "list-rounds").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListRounds(ctx, offset, limit)
}

func (mm *metricsMiddleware) GetRound(ctx context.Context, round int) (fl.RoundRecord, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-round").Add(1)
		mm.latency.With("method", "get-round").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetRound(ctx, round)
}

func (mm *metricsMiddleware) GetModel(ctx context.Context) (fl.GlobalModel, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-model").Add(1)
		mm.latency.With("method", "get-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetModel(ctx)
}

func (mm *metricsMiddleware) ListSessions(ctx context.Context) ([]coordinator.SessionInfo, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-sessions").Add(1)
		mm.latency.With("method", "list-sessions").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListSessions(ctx)
}
