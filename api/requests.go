package api

import (
	"errors"

	"github.com/00PrabalK00/RosScope/orchestrator"
)

var (
	errMissingAction = errors.New("missing action name")
	errMissingNode   = errors.New("missing node name")
)

type pollReq struct {
	orchestrator.Request `json:",inline"`
}

func (r *pollReq) validate() error {
	return nil
}

type actionReq struct {
	Action  string               `json:"action"`
	Payload orchestrator.Payload `json:"payload"`
}

func (r *actionReq) validate() error {
	if r.Action == "" {
		return errMissingAction
	}

	return nil
}

type nodeParametersReq struct {
	domainID string
	node     string
}

func (r *nodeParametersReq) validate() error {
	if r.node == "" {
		return errMissingNode
	}

	return nil
}
