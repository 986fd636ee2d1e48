package api

import (
	"context"
	"errors"

	"github.com/absmach/fedavg/coordinator"
	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

func statusEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		status, err := svc.Status(ctx)
		if err != nil {
			return statusResponse{}, err
		}

		return statusResponse{RunStatus: status}, nil
	}
}

func listRoundsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listRoundsReq)
		if !ok {
			return listRoundsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listRoundsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListRounds(ctx, req.offset, req.limit)
		if err != nil {
			return listRoundsResponse{}, err
		}

		return listRoundsResponse{RoundPage: page}, nil
	}
}

func getRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(roundReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		rec, err := svc.GetRound(ctx, req.round)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{
			RoundRecord:      rec,
			ParticipantCount: rec.ParticipantCount(),
		}, nil
	}
}

func getModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		model, err := svc.GetModel(ctx)
		if err != nil {
			return modelResponse{}, err
		}

		return modelResponse{
			GlobalModel: model,
			Dimension:   model.Dim(),
		}, nil
	}
}

func listSessionsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		sessions, err := svc.ListSessions(ctx)
		if err != nil {
			return listSessionsResponse{}, err
		}

		return listSessionsResponse{
			Total:    len(sessions),
			Sessions: sessions,
		}, nil
	}
}
