package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ypapub/internal/pub"
)

func TestRegistry_RecordPublish(t *testing.T) {
	r := NewRegistry()

	r.RecordPublish("orders", 10, 20*time.Millisecond, nil)
	r.RecordPublish("orders", 5, time.Second, &pub.PublishError{Kind: pub.FailureResponse, Err: errors.New("eof")})
	r.RecordPublish("orders", 5, time.Millisecond, errors.New("failed to encode message 0"))
	r.RecordClose("orders", nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.publishTotal.WithLabelValues("orders", "success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.publishTotal.WithLabelValues("orders", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.publishFailures.WithLabelValues("orders", "response")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.publishFailures.WithLabelValues("orders", "encoding")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.closeTotal.WithLabelValues("orders", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.publishBatchSize))
	assert.Equal(t, 1, testutil.CollectAndCount(r.publishDuration))
}

func TestServer_Endpoints(t *testing.T) {
	r := NewRegistry()
	r.SetSystemInfo("test", "now")
	r.RecordPublish("orders", 1, time.Millisecond, nil)

	srv := httptest.NewServer(newMux(r))
	t.Cleanup(srv.Close)

	tests := []struct {
		path string
		want string
	}{
		{path: "/health", want: `"status":"healthy"`},
		{path: "/ready", want: `"status":"ready"`},
		{path: "/metrics", want: `pub_publisher_publish_total{status="success",topic="orders"} 1`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, string(body), tt.want)
		})
	}
}

func TestNewServer(t *testing.T) {
	s := NewServer(ServerConfig{Port: 9191, Timeout: time.Second}, NewRegistry(), zap.NewNop())

	assert.Equal(t, ":9191", s.Addr())
}

func TestServer_Run(t *testing.T) {
	s := NewServer(ServerConfig{Port: 0, Timeout: time.Second, ShutdownTimeout: time.Second}, NewRegistry(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-s.Ready():
	case err := <-done:
		t.Fatalf("server exited before listening: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}
	assert.NotEqual(t, ":0", s.Addr(), "bound address replaces the configured one")

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err, "cancelling ctx is a clean shutdown")
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = http.Get("http://" + s.Addr() + "/health")
	assert.Error(t, err)
}

func TestServer_RunListenError(t *testing.T) {
	s := NewServer(ServerConfig{Port: -1}, NewRegistry(), zap.NewNop())

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
