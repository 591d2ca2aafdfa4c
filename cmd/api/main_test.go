package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/expert-call-booker/internal/app/bootstrap"
	appconfig "github.com/wolfman30/expert-call-booker/internal/config"
	"github.com/wolfman30/expert-call-booker/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Port:               "9090",
		MarketplaceBaseURL: "https://marketplace.test",
		CallerName:         "Sam Caller",
		CallerEmail:        "sam@example.com",
		BrowserHeadless:    true,
		NotifyProvider:     "stub",
	}
}

func TestNewServerAllowsLongRuns(t *testing.T) {
	srv := newServer(testConfig(), http.NotFoundHandler())
	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, runWriteTimeout, srv.WriteTimeout)
	assert.Greater(t, srv.WriteTimeout, srv.ReadTimeout)
}

func TestBuildHandlerServesHealthAndMetrics(t *testing.T) {
	cfg := testConfig()
	reg := newRegistry()
	rt, err := bootstrap.Build(context.Background(), cfg, aws.Config{Region: "us-east-1"}, reg, logging.Discard())
	require.NoError(t, err)
	defer rt.Close()

	handler, err := buildHandler(cfg, rt, reg, logging.Discard())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestBuildHandlerValidatesBeforeRunning(t *testing.T) {
	cfg := testConfig()
	reg := newRegistry()
	rt, err := bootstrap.Build(context.Background(), cfg, aws.Config{Region: "us-east-1"}, reg, logging.Discard())
	require.NoError(t, err)
	defer rt.Close()

	handler, err := buildHandler(cfg, rt, reg, logging.Discard())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{"targetCompany":""}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_failed")
}
