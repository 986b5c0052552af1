package server

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/credkeeper/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.StorageBackend = repomanager.BackendMemory
	c.SessionBackend = repomanager.BackendMemory
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.AccessTokenSecret = strings.Repeat("a", 32)
	c.RefreshTokenSecret = strings.Repeat("r", 32)
	c.BcryptCost = 4
	c.JanitorInterval = 10 * time.Millisecond
	c.ShutdownTimeout = time.Second
	return c
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	app, err := newApp(context.Background(), memoryConfig(), logging.Nop())
	require.NoError(t, err)
	require.NotNil(t, app.janitor)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestApp_RunReturnsServerError(t *testing.T) {
	c := memoryConfig()
	c.EndpointAddrHTTP = "127.0.0.1:99999"

	app, err := newApp(context.Background(), c, logging.Nop())
	require.NoError(t, err)

	select {
	case err := <-runAsync(app):
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop after a server failed")
	}
}

func runAsync(app *App) <-chan error {
	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()
	return done
}

func TestNewApp_StorageError(t *testing.T) {
	orig := openStores
	t.Cleanup(func() { openStores = orig })
	openStores = func(context.Context, repomanager.Options, logging.Logger) (*repomanager.Stores, error) {
		return nil, errors.New("connection refused")
	}

	_, err := newApp(context.Background(), memoryConfig(), logging.Nop())
	assert.ErrorContains(t, err, "storage init error")
}

// countShutdowns replaces tracing setup with a noop that counts flushes.
func countShutdowns(t *testing.T) *int {
	t.Helper()
	calls := 0
	orig := setupTracing
	t.Cleanup(func() { setupTracing = orig })
	setupTracing = func(context.Context, string, string) (telemetry.ShutdownFunc, error) {
		return func(context.Context) error { calls++; return nil }, nil
	}
	return &calls
}

func TestNewApp_BadBcryptCost(t *testing.T) {
	calls := countShutdowns(t)
	c := memoryConfig()
	c.BcryptCost = 99

	_, err := newApp(context.Background(), c, logging.Nop())
	assert.Error(t, err)
	assert.Equal(t, 1, *calls, "tracing flushed on early failure")
}

func TestNewApp_BadSecretFlushesTracing(t *testing.T) {
	calls := countShutdowns(t)
	c := memoryConfig()
	c.AccessTokenSecret = "short"

	_, err := newApp(context.Background(), c, logging.Nop())
	assert.Error(t, err)
	assert.Equal(t, 1, *calls)
}
