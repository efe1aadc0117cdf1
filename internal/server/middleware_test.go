// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString(requestID(c))
	})

	t.Run("generates an id when absent", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
		require.NoError(t, err)
		rid := resp.Header.Get(RequestIDHeader)
		assert.NotEmpty(t, rid)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, rid, string(body))
	})

	t.Run("keeps an incoming id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, "test-id-123")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, "test-id-123", resp.Header.Get(RequestIDHeader))
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(RequestID())
	app.Use(Logger(slog.New(slog.NewJSONHandler(&buf, nil))))
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "request", record["msg"])
	assert.NotEmpty(t, record["request_id"])
	assert.Equal(t, "GET", record["method"])
	assert.Equal(t, "/test", record["path"])
	assert.Equal(t, float64(fiber.StatusAccepted), record["status"])
	assert.NotNil(t, record["latency_ms"])
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(m.Handler())
	app.Get("/items/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/error", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadRequest, "bad request")
	})

	_, err = app.Test(httptest.NewRequest("GET", "/items/1", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest("GET", "/items/2", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest("GET", "/error", nil))
	require.NoError(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues("GET", "/items/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("GET", "/error", "400")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice on one registry fails")
}
