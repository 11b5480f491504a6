package planner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2aproject/a2a-go/a2a"
)

func TestClient_Plan(t *testing.T) {
	reply := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "provider:\n  name: Localhost\n"})
	replyJSON, err := json.Marshal(reply)
	require.NoError(t, err, "marshal fixture reply")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req), "decode request")
		assert.Equal(t, "message/send", req.Method)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(mustMarshal(t, jsonRPCResponse{Result: replyJSON}))
	}))
	defer srv.Close()

	client := New(srv.URL)
	text, err := client.Plan(context.Background(), "deploy the app")
	require.NoError(t, err)
	assert.Equal(t, "provider:\n  name: Localhost\n", text)
}

func TestClient_Plan_RPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"1","error":{"message":"agent unavailable"}}`))
	}))
	defer srv.Close()

	client := New(srv.URL)
	_, err := client.Plan(context.Background(), "deploy the app")
	assert.Error(t, err, "expected error from RPC error response")
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
