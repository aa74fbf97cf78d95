package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-net/control"
	"github.com/momentics/hioload-net/session"
)

type stubStats struct{}

func (stubStats) Stats() session.Stats { return session.Stats{TotalAcceptCount: 5, Sessions: 2} }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(control.NewStatsCollector(stubStats{})))
	probes := control.NewDebugProbes()
	control.RegisterStatsProbes(probes, stubStats{})
	store := control.NewConfigStore(control.DefaultConfig(), nil)
	return newAdminRouter(reg, probes, store)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestAdminRouter(t *testing.T) {
	h := newTestRouter(t)

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hioload_session_accepts_total 5")

	rec = get(t, h, "/debug/probes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "session.sessions: 2")

	rec = get(t, h, "/debug/config")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "log_level: info"))

	assert.Equal(t, http.StatusNotFound, get(t, h, "/nope").Code)
}

func TestConfigCommand(t *testing.T) {
	var out strings.Builder
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "--log-level", "debug", "--metrics-addr", "off"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		logLevel, metricsAddr = "", ""
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "log_level: debug")
	assert.Contains(t, out.String(), "metrics_addr: \"off\"")
}

func TestConfigCommand_RejectsBadLevel(t *testing.T) {
	rootCmd.SetArgs([]string{"config", "--log-level", "shouting"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		logLevel = ""
	})
	assert.Error(t, rootCmd.Execute())
}
