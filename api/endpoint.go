package api

import (
	"context"

	"github.com/go-kit/kit/endpoint"

	"github.com/00PrabalK00/RosScope/orchestrator"
	pkgerrors "github.com/00PrabalK00/RosScope/pkg/errors"
)

func pollEndpoint(svc orchestrator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(pollReq)
		if !ok {
			return pollResponse{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return pollResponse{}, err
		}

		snap, err := svc.Poll(ctx, req.Request)
		if err != nil {
			return pollResponse{}, err
		}

		return pollResponse{Snapshot: snap}, nil
	}
}

func actionEndpoint(svc orchestrator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(actionReq)
		if !ok {
			return actionResponse{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return actionResponse{}, err
		}

		out, err := svc.RunAction(ctx, req.Action, req.Payload)
		if err != nil {
			return actionResponse{}, err
		}
		if !out.Success && out.Message == "Unsupported action" {
			return actionResponse{Outcome: out}, pkgerrors.ErrUnsupportedAction
		}

		return actionResponse{Outcome: out}, nil
	}
}

func nodeParametersEndpoint(svc orchestrator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(nodeParametersReq)
		if !ok {
			return nodeParametersResponse{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return nodeParametersResponse{}, err
		}

		params, err := svc.FetchNodeParameters(ctx, req.domainID, req.node)
		if err != nil {
			return nodeParametersResponse{}, err
		}

		return nodeParametersResponse{NodeParameters: params}, nil
	}
}
