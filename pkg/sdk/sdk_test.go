package sdk

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/00PrabalK00/RosScope/orchestrator"
)

func newTestBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /poll", func(w http.ResponseWriter, r *http.Request) {
		var req orchestrator.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(orchestrator.Snapshot{SelectedDomain: req.SelectedDomain, SyncVersion: 3})
	})
	mux.HandleFunc("POST /actions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Action string `json:"action"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Action == "bogus" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unsupported action"})

			return
		}
		_ = json.NewEncoder(w).Encode(orchestrator.Outcome{Action: body.Action, Success: true})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func TestSDKPoll(t *testing.T) {
	server := newTestBackend(t)
	s := NewSDK(server.URL)

	snap, err := s.Poll(orchestrator.Request{SelectedDomain: "5"})
	require.NoError(t, err)
	assert.Equal(t, "5", snap.SelectedDomain)
	assert.Equal(t, uint64(3), snap.SyncVersion)
}

func TestSDKRunAction(t *testing.T) {
	server := newTestBackend(t)
	s := NewSDK(server.URL)

	out, err := s.RunAction("kill_all_ros", orchestrator.Payload{})
	require.NoError(t, err)
	assert.True(t, out.Success)

	_, err = s.RunAction("bogus", orchestrator.Payload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported action")
}
