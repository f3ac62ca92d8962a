package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/00PrabalK00/RosScope/inspector"
	"github.com/00PrabalK00/RosScope/orchestrator"
	"github.com/00PrabalK00/RosScope/pkg/telemetry"
)

type fakeService struct {
	lastAction string
}

func (f *fakeService) Poll(_ context.Context, req orchestrator.Request) (orchestrator.Snapshot, error) {
	return orchestrator.Snapshot{
		SelectedDomain: req.SelectedDomain,
		SyncVersion:    7,
		Etag:           "etag-7",
	}, nil
}

func (f *fakeService) RunAction(_ context.Context, action string, _ orchestrator.Payload) (orchestrator.Outcome, error) {
	f.lastAction = action
	if action == "bogus" {
		return orchestrator.Outcome{Action: action, Success: false, Message: "Unsupported action"}, nil
	}

	return orchestrator.Outcome{Action: action, Success: true}, nil
}

func (f *fakeService) FetchNodeParameters(_ context.Context, domainID, node string) (inspector.NodeParameters, error) {
	return inspector.NodeParameters{DomainID: domainID, Node: node, Success: true, Parameters: "a: 1"}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeService) {
	t.Helper()
	svc := &fakeService{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	server := httptest.NewServer(MakeHandler(svc, telemetry.New(), logger))
	t.Cleanup(server.Close)

	return server, svc
}

func TestPollEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	body, _ := json.Marshal(orchestrator.Request{SelectedDomain: "7"})
	resp, err := http.Post(server.URL+"/poll", contentType, bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var snap orchestrator.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "7", snap.SelectedDomain)
	assert.Equal(t, uint64(7), snap.SyncVersion)
}

func TestPollEndpointRejectsBadJSON(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/poll", contentType, bytes.NewReader([]byte("{oops")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActionEndpoint(t *testing.T) {
	server, svc := newTestServer(t)

	body := []byte(`{"action":"kill_all_ros","payload":{}}`)
	resp, err := http.Post(server.URL+"/actions", contentType, bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "kill_all_ros", svc.lastAction)
}

func TestActionEndpointUnsupported(t *testing.T) {
	server, _ := newTestServer(t)

	body := []byte(`{"action":"bogus","payload":{}}`)
	resp, err := http.Post(server.URL+"/actions", contentType, bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActionEndpointMissingName(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/actions", contentType, bytes.NewReader([]byte(`{"payload":{}}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestParametersEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/parameters?domain=3&node=/amcl")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var params inspector.NodeParameters
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&params))
	assert.Equal(t, "3", params.DomainID)
	assert.Equal(t, "/amcl", params.Node)

	missing, err := http.Get(server.URL + "/parameters")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)
}

func TestTelemetryAndHealthEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/telemetry")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
