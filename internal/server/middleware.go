// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"

	// RequestIDLocalKey is the fiber locals key holding the request ID.
	RequestIDLocalKey = "request_id"
)

// RequestID reuses an incoming X-Request-ID or generates a UUID, stores it
// in locals and echoes it on the response.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(RequestIDLocalKey, id)
		c.Set(RequestIDHeader, id)
		return c.Next()
	}
}

// Logger writes one structured record per request after the handler ran.
func Logger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		logger.Info("request",
			"request_id", requestID(c),
			"method", c.Method(),
			"path", c.Path(),
			"status", statusOf(c, err),
			"latency_ms", float64(time.Since(start).Microseconds())/1000,
		)
		return err
	}
}

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	requests    *prometheus.CounterVec
	extractions *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extractions_total",
				Help: "Upload-and-extract attempts by outcome.",
			},
			[]string{"outcome"},
		),
	}
	for _, col := range []prometheus.Collector{m.requests, m.extractions} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler counts requests by route pattern. /metrics itself is not counted.
func (m *Metrics) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}
		err := c.Next()

		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		m.requests.WithLabelValues(c.Method(), path, strconv.Itoa(statusOf(c, err))).Inc()
		return err
	}
}

func (m *Metrics) extraction(outcome string) {
	m.extractions.WithLabelValues(outcome).Inc()
}

func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

func requestID(c *fiber.Ctx) string {
	if s, ok := c.Locals(RequestIDLocalKey).(string); ok {
		return s
	}
	return ""
}
