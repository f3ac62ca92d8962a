package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/00PrabalK00/RosScope/orchestrator"
	pkgerrors "github.com/00PrabalK00/RosScope/pkg/errors"
	"github.com/00PrabalK00/RosScope/pkg/telemetry"
)

const contentType = "application/json"

// MakeHandler wires the orchestrator service behind the HTTP surface the UI
// consumes.
func MakeHandler(svc orchestrator.Service, tele *telemetry.Registry, logger *slog.Logger) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(encodeError(logger)),
	}

	mux.Post("/poll", otelhttp.NewHandler(kithttp.NewServer(
		pollEndpoint(svc),
		decodePollReq,
		encodeResponse,
		opts...,
	), "poll").ServeHTTP)

	mux.Post("/actions", otelhttp.NewHandler(kithttp.NewServer(
		actionEndpoint(svc),
		decodeActionReq,
		encodeResponse,
		opts...,
	), "run-action").ServeHTTP)

	mux.Get("/parameters", otelhttp.NewHandler(kithttp.NewServer(
		nodeParametersEndpoint(svc),
		decodeNodeParametersReq,
		encodeResponse,
		opts...,
	), "node-parameters").ServeHTTP)

	mux.Get("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, telemetryResponse{Snapshot: tele.Snapshot()})
	})

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodePollReq(_ context.Context, r *http.Request) (any, error) {
	var req pollReq
	if err := json.NewDecoder(r.Body).Decode(&req.Request); err != nil {
		return nil, errors.Join(pkgerrors.ErrInvalidData, err)
	}

	return req, nil
}

func decodeActionReq(_ context.Context, r *http.Request) (any, error) {
	var req actionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(pkgerrors.ErrInvalidData, err)
	}

	return req, nil
}

func decodeNodeParametersReq(_ context.Context, r *http.Request) (any, error) {
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		domain = "0"
	}

	return nodeParametersReq{
		domainID: domain,
		node:     r.URL.Query().Get("node"),
	}, nil
}

func encodeResponse(_ context.Context, w http.ResponseWriter, response any) error {
	code := http.StatusOK
	if resp, ok := response.(Response); ok {
		code = resp.Code()
	}
	writeJSON(w, code, response)

	return nil
}

func encodeError(logger *slog.Logger) kithttp.ErrorEncoder {
	return func(_ context.Context, err error, w http.ResponseWriter) {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, pkgerrors.ErrInvalidData),
			errors.Is(err, errMissingAction),
			errors.Is(err, errMissingNode),
			errors.Is(err, pkgerrors.ErrUnsupportedAction):
			code = http.StatusBadRequest
		case errors.Is(err, context.Canceled):
			code = http.StatusServiceUnavailable
		}
		logger.Warn("Request failed", slog.Int("code", code), slog.Any("error", err))
		writeJSON(w, code, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
