package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/api"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const roundKey = "round"

// MakeHandler returns the read-only monitoring API of a coordinator.
func MakeHandler(svc coordinator.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Get("/status", otelhttp.NewHandler(kithttp.NewServer(
		statusEndpoint(svc),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "get-status").ServeHTTP)

	mux.Route("/rounds", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listRoundsEndpoint(svc),
			decodeListRoundsReq,
			api.EncodeResponse,
			opts...,
		), "list-rounds").ServeHTTP)
		r.Get("/{round}", otelhttp.NewHandler(kithttp.NewServer(
			getRoundEndpoint(svc),
			decodeRoundReq,
			api.EncodeResponse,
			opts...,
		), "get-round").ServeHTTP)
	})

	mux.Get("/model", otelhttp.NewHandler(kithttp.NewServer(
		getModelEndpoint(svc),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "get-model").ServeHTTP)

	mux.Get("/sessions", otelhttp.NewHandler(kithttp.NewServer(
		listSessionsEndpoint(svc),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "list-sessions").ServeHTTP)

	mux.Get("/health", supermq.Health("coordinator", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeEmptyReq(_ context.Context, _ *http.Request) (any, error) {
	return nil, nil
}

func decodeRoundReq(_ context.Context, r *http.Request) (any, error) {
	round, err := strconv.Atoi(chi.URLParam(r, roundKey))
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return roundReq{round: round}, nil
}

func decodeListRoundsReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listRoundsReq{
		offset: o,
		limit:  l,
	}, nil
}
