package sdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/00PrabalK00/RosScope/inspector"
	"github.com/00PrabalK00/RosScope/orchestrator"
	"github.com/00PrabalK00/RosScope/pkg/telemetry"
)

const CTJSON string = "application/json"

// SDK is a thin HTTP client for the engine API.
type SDK interface {
	// Poll requests one snapshot.
	//
	// example:
	//  snap, _ := sdk.Poll(orchestrator.Request{SelectedDomain: "0"})
	//  fmt.Println(snap.Health.Status)
	Poll(req orchestrator.Request) (orchestrator.Snapshot, error)

	// RunAction dispatches one action intent.
	//
	// example:
	//  out, _ := sdk.RunAction("restart_domain", orchestrator.Payload{DomainID: "0"})
	//  fmt.Println(out.Message)
	RunAction(action string, payload orchestrator.Payload) (orchestrator.Outcome, error)

	// NodeParameters dumps one node's parameters.
	NodeParameters(domainID, node string) (inspector.NodeParameters, error)

	// Telemetry fetches the engine's telemetry snapshot.
	Telemetry() (telemetry.Snapshot, error)
}

type rosScopeSDK struct {
	baseURL string
	client  *http.Client
}

func NewSDK(baseURL string) SDK {
	return &rosScopeSDK{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *rosScopeSDK) post(path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := s.client.Post(s.baseURL+path, CTJSON, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func (s *rosScopeSDK) get(path string, out any) error {
	resp, err := s.client.Get(s.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, apiErr.Error)
		}

		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return json.Unmarshal(raw, out)
}

func (s *rosScopeSDK) Poll(req orchestrator.Request) (orchestrator.Snapshot, error) {
	var snap orchestrator.Snapshot
	if err := s.post("/poll", req, &snap); err != nil {
		return orchestrator.Snapshot{}, err
	}

	return snap, nil
}

func (s *rosScopeSDK) RunAction(action string, payload orchestrator.Payload) (orchestrator.Outcome, error) {
	body := map[string]any{"action": action, "payload": payload}
	var out orchestrator.Outcome
	if err := s.post("/actions", body, &out); err != nil {
		return orchestrator.Outcome{}, err
	}

	return out, nil
}

func (s *rosScopeSDK) NodeParameters(domainID, node string) (inspector.NodeParameters, error) {
	query := url.Values{"domain": {domainID}, "node": {node}}
	var out inspector.NodeParameters
	if err := s.get("/parameters?"+query.Encode(), &out); err != nil {
		return inspector.NodeParameters{}, err
	}

	return out, nil
}

func (s *rosScopeSDK) Telemetry() (telemetry.Snapshot, error) {
	var out telemetry.Snapshot
	if err := s.get("/telemetry", &out); err != nil {
		return telemetry.Snapshot{}, err
	}

	return out, nil
}
