package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSyncChecker_Check_OffsetWithinBounds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/ping":
			w.WriteHeader(http.StatusOK)
		case "/fapi/v1/time":
			json.NewEncoder(w).Encode(map[string]int64{"serverTime": time.Now().UnixMilli()})
		}
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.PingSamples = 2
	cfg.PingInterval = time.Millisecond

	checker := NewTimeSyncChecker(cfg)
	stats, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Samples)
	assert.LessOrEqual(t, stats.TimeOffset.Abs(), cfg.MaxTimeOffset)
}

func TestTimeSyncChecker_Check_OffsetTooLargeErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/ping":
			w.WriteHeader(http.StatusOK)
		case "/fapi/v1/time":
			skewed := time.Now().Add(10 * time.Second).UnixMilli()
			json.NewEncoder(w).Encode(map[string]int64{"serverTime": skewed})
		}
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.PingSamples = 1

	_, err := NewTimeSyncChecker(cfg).Check(context.Background())
	require.Error(t, err)
}

func TestTimeSyncChecker_Check_PingFailurePropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.PingSamples = 1

	_, err := NewTimeSyncChecker(cfg).Check(context.Background())
	require.Error(t, err)
}
