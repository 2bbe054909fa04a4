package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/readings"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, rs []readings.Reading, ok bool) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "p1_test_total",
		Help: "test counter",
	}))
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	srv := httptest.NewServer(newServer(func() ([]readings.Reading, bool) { return rs, ok }, ws, reg))
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_Status(t *testing.T) {
	srv := testServer(t, nil, false)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "running", body["status"])
}

func TestServer_LatestBeforeFirstTelegram(t *testing.T) {
	srv := testServer(t, nil, false)

	resp, err := http.Get(srv.URL + "/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Latest(t *testing.T) {
	rs := []readings.Reading{
		{Name: "power_consumption", Value: 378},
		{Name: "tarif", Value: 1, Dirty: true},
	}
	srv := testServer(t, rs, true)

	resp, err := http.Get(srv.URL + "/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []readings.Reading
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, rs, got)
}

func TestServer_RoutesWebsocketAndMetrics(t *testing.T) {
	srv := testServer(t, nil, false)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "p1_test_total 0")
}
