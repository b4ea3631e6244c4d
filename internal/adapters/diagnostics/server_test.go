package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bnema/askdb/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	m.RecordTurn("ok", 2)

	server := httptest.NewServer(Router(registry, nil))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `askdb_turns_total{outcome="ok"} 1`)
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		health      HealthFunc
		wantStatus  int
		wantBackend string
	}{
		{name: "no health func", wantStatus: http.StatusOK, wantBackend: "unchecked"},
		{name: "reachable", health: func(context.Context) error { return nil }, wantStatus: http.StatusOK, wantBackend: "reachable"},
		{name: "unreachable", health: func(context.Context) error { return errors.New("connection refused") }, wantStatus: http.StatusServiceUnavailable, wantBackend: "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(Router(prometheus.NewRegistry(), tt.health))
			defer server.Close()

			resp, err := http.Get(server.URL + "/healthz")
			require.NoError(t, err)
			defer resp.Body.Close()

			var decoded healthResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantBackend, decoded.Backend)
			assert.Equal(t, "askdb", decoded.Service)
		})
	}
}

func TestRunStopsWithContext(t *testing.T) {
	server := NewServer("127.0.0.1:0", prometheus.NewRegistry(), nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("diagnostics server did not stop")
	}
}
