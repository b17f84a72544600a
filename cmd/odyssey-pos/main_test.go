package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/app"
	_ "github.com/odyssey-erp/odyssey-pos/internal/testing/guard"
)

func TestMainSkipsInTestMode(t *testing.T) {
	require.True(t, app.InTestMode())
	main()
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	require.Equal(t, app.StoreMemory, cfg.ShiftStore)
	cfg.AppAddr = "127.0.0.1:0"
	cfg.ReceiptDir = t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.NoError(t, serve(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunJobsUsage(t *testing.T) {
	cfg := &app.Config{RedisAddr: "127.0.0.1:0"}
	var out bytes.Buffer
	assert.Equal(t, 2, runJobs(context.Background(), cfg, []string{"purge"}, &out))
	assert.Equal(t, 1, runJobs(context.Background(), &app.Config{}, nil, &out))
}
