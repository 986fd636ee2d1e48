package middleware

import (
	"context"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/fl"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) Run(ctx context.Context) (res coordinator.Result, err error) {
	ctx, span := tm.tracer.Start(ctx, "run")
	defer func() {
		span.SetAttributes(
			attribute.String("run_id", res.RunID),
			attribute.Int("rounds", len(res.History)),
			attribute.Bool("stopped_early", res.StoppedEarly),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return tm.svc.Run(ctx)
}

func (tm *tracing) Status(ctx context.Context) (coordinator.RunStatus, error) {
	ctx, span := tm.tracer.Start(ctx, "get-status")
	defer span.End()

	return tm.svc.Status(ctx)
}

func (tm *tracing) ListRounds(ctx context.Context, offset, limit uint64) (coordinator.RoundPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-rounds", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListRounds(ctx, offset, limit)
}

func (tm *tracing) GetRound(ctx context.Context, round int) (fl.RoundRecord, error) {
	ctx, span := tm.tracer.Start(ctx, "get-round", trace.WithAttributes(
		attribute.Int("round", round),
	))
	defer span.End()

	return tm.svc.GetRound(ctx, round)
}

func (tm *tracing) GetModel(ctx context.Context) (fl.GlobalModel, error) {
	ctx, span := tm.tracer.Start(ctx, "get-model")
	defer span.End()

	return tm.svc.GetModel(ctx)
}

func (tm *tracing) ListSessions(ctx context.Context) ([]coordinator.SessionInfo, error) {
	ctx, span := tm.tracer.Start(ctx, "list-sessions")
	defer span.End()

	return tm.svc.ListSessions(ctx)
}
