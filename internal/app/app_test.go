package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shift"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.ShiftStore)
	assert.Equal(t, ReceiptText, cfg.ReceiptMode)
	assert.InDelta(t, 150, cfg.ShiftDefaultFloat, 0.001)
	assert.Equal(t, 14*time.Hour, cfg.ShiftStaleAfter)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdle)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Madrid", loc.String())
}

func TestLoadConfigPaymentMap(t *testing.T) {
	t.Setenv("PAYMENT_METHOD_MAP", "bizum:card,VOUCHER:CASH")
	t.Setenv("SHIFT_STORE", "memory")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	mapping, err := cfg.PaymentMapping()
	require.NoError(t, err)
	bucket, err := mapping.Resolve("BIZUM")
	require.NoError(t, err)
	assert.Equal(t, sales.BucketCard, bucket)
	bucket, err = mapping.Resolve("voucher")
	require.NoError(t, err)
	assert.Equal(t, sales.BucketCash, bucket)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"store":    {"SHIFT_STORE", "mongo"},
		"feed":     {"SALES_FEED", "redis"},
		"receipt":  {"RECEIPT_MODE", "fax"},
		"float":    {"SHIFT_DEFAULT_FLOAT", "-1"},
		"timezone": {"SHIFT_TIMEZONE", "Mars/Olympus"},
		"mapping":  {"PAYMENT_METHOD_MAP", "BIZUM:CRYPTO"},
		"idle":     {"SESSION_IDLE_TIMEOUT", "0s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
}

type stubMounter struct{}

func (stubMounter) MountRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
}

func TestRouterRoutes(t *testing.T) {
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{
		Config:        &Config{AppEnv: "test", RateLimitPerMin: 60},
		Metrics:       metrics,
		ShiftHandler:  stubMounter{},
		ReportHandler: stubMounter{},
		JobHandler:    stubMounter{},
	})

	for path, code := range map[string]int{
		"/healthz":     http.StatusOK,
		"/ping":        http.StatusTeapot,
		"/report/ping": http.StatusTeapot,
		"/jobs/ping":   http.StatusTeapot,
		"/missing":     http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, code, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "odyssey_pos_http_requests_total"))
}

func TestInTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())
	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}

func TestOpenResourcesMemory(t *testing.T) {
	cfg := &Config{ShiftStore: StoreMemory, SalesFeed: StoreMemory}
	res, err := OpenResources(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer res.Close()

	assert.Nil(t, res.Pool)
	assert.Nil(t, res.Redis)
	assert.IsType(t, &shift.MemoryStore{}, res.Store)
	assert.IsType(t, &sales.StaticFeed{}, res.Feed)
}

func TestOpenResourcesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &Config{ShiftStore: StoreRedis, SalesFeed: StoreMemory, RedisAddr: mr.Addr()}
	res, err := OpenResources(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer res.Close()

	require.NotNil(t, res.Redis)
	assert.IsType(t, &shift.RedisStore{}, res.Store)
	assert.Equal(t, mr.Addr(), cfg.RedisOptions().AsynqOpts().Addr)
}
