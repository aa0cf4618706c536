package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushSuccess(t *testing.T) {
	var received pushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(pushResponse{})
	}))
	defer srv.Close()

	p := &ExpoPusher{httpClient: srv.Client(), url: srv.URL}
	err := p.Push(context.Background(), "token-1", "title", "body", PushData{VaultID: "vault-1"})
	require.NoError(t, err)
	require.Equal(t, "token-1", received.To)
	require.Equal(t, "vault-1", received.Data.VaultID)
}

func TestPushHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := &ExpoPusher{httpClient: srv.Client(), url: srv.URL}
	err := p.Push(context.Background(), "token-1", "title", "body", PushData{})
	require.ErrorIs(t, err, ErrDeliveryFailure)
}

func TestPushExpoReportedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"status": "error"}})
	}))
	defer srv.Close()

	p := &ExpoPusher{httpClient: srv.Client(), url: srv.URL}
	err := p.Push(context.Background(), "token-1", "title", "body", PushData{})
	require.ErrorIs(t, err, ErrDeliveryFailure)
}
