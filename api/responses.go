package api

import (
	"net/http"

	"github.com/00PrabalK00/RosScope/inspector"
	"github.com/00PrabalK00/RosScope/orchestrator"
	"github.com/00PrabalK00/RosScope/pkg/telemetry"
)

// Response lets each endpoint pick its HTTP status code.
type Response interface {
	Code() int
}

var (
	_ Response = (*pollResponse)(nil)
	_ Response = (*actionResponse)(nil)
	_ Response = (*nodeParametersResponse)(nil)
	_ Response = (*telemetryResponse)(nil)
)

type pollResponse struct {
	orchestrator.Snapshot
}

func (r pollResponse) Code() int {
	return http.StatusOK
}

type actionResponse struct {
	orchestrator.Outcome
}

func (r actionResponse) Code() int {
	if !r.Success && r.Message == "Unsupported action" {
		return http.StatusBadRequest
	}

	return http.StatusOK
}

type nodeParametersResponse struct {
	inspector.NodeParameters
}

func (r nodeParametersResponse) Code() int {
	return http.StatusOK
}

type telemetryResponse struct {
	telemetry.Snapshot
}

func (r telemetryResponse) Code() int {
	return http.StatusOK
}
