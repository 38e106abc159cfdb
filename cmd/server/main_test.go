package main

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/pkg/config"
)

func TestRun_InvalidConfigReturnsExitCode(t *testing.T) {
	t.Setenv("SERVER_PORT", "70000")
	assert.Equal(t, 1, run())
}

func TestRun_ForeignHomeCurrencyWithoutRates(t *testing.T) {
	t.Setenv("CAPTURE_HOME_CURRENCY", "EUR")
	assert.Equal(t, 1, run())
}

func TestRunServer_ListenErrorReturned(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := &config.Config{Server: config.ServerConfig{
		Host: "127.0.0.1",
		Port: ln.Addr().(*net.TCPAddr).Port,
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	done := make(chan error, 1)
	go func() { done <- runServer(cfg, logger, http.NotFoundHandler()) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not return after listen failure")
	}
}
