// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server is the local web UI: one page backed by a single session
// controller, plus JSON endpoints for state and text formatting.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/insurance-extract/internal/format"
	"github.com/pdiddy/insurance-extract/internal/remote"
	"github.com/pdiddy/insurance-extract/internal/session"
	"github.com/pdiddy/insurance-extract/pkg/types"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = ":3000"

	// DefaultMaxUploadBytes bounds request bodies.
	DefaultMaxUploadBytes = 32 << 20

	healthTimeout = 5 * time.Second
)

// HealthChecker reports the extraction service's health.
type HealthChecker interface {
	Health(ctx context.Context) (*types.HealthStatus, error)
}

// Server wires the controller into a fiber app.
type Server struct {
	app     *fiber.App
	ctrl    *session.Controller
	health  HealthChecker
	metrics *Metrics
	logger  *slog.Logger
}

// New builds the app and registers routes and middleware. A nil registry
// uses a fresh one.
func New(ctrl *session.Controller, health HealthChecker, cfg types.ServeConfig, logger *slog.Logger, reg *prometheus.Registry) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics, err := NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	limit := cfg.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}

	s := &Server{
		app: fiber.New(fiber.Config{
			ErrorHandler:          ErrorHandler(),
			BodyLimit:             limit,
			DisableStartupMessage: true,
		}),
		ctrl:    ctrl,
		health:  health,
		metrics: metrics,
		logger:  logger,
	}

	s.app.Use(RequestID())
	s.app.Use(Logger(logger))
	s.app.Use(metrics.Handler())
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			logger.Error("panic in handler", "error", e, "request_id", requestID(c))
		},
	}))

	s.app.Get("/", s.handleIndex)
	s.app.Post("/upload", s.handleUpload)
	s.app.Post("/download", s.handleDownload)
	s.app.Get("/api/state", s.handleState)
	s.app.Post("/api/format", s.handleFormat)
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return s, nil
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	state := s.ctrl.Snapshot()
	var buf bytes.Buffer
	if err := page.Execute(&buf, pageData{State: state, RawHTML: format.HTML(state.RawText)}); err != nil {
		s.logger.Error("rendering page", "error", err, "request_id", requestID(c))
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

// handleUpload selects the posted file (if any) and runs the upload flow.
// Browsers are redirected back to the page; JSON clients get the state.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	if fh, err := c.FormFile("file"); err == nil && fh.Filename != "" {
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot read uploaded file")
		}
		if err := s.ctrl.SelectFile(fh.Filename, fh.Header.Get("Content-Type"), data); err != nil {
			s.metrics.extraction("invalid_file")
			return s.respond(c, fiber.StatusUnprocessableEntity)
		}
	}

	err := s.ctrl.Upload(c.UserContext())
	switch {
	case err == nil:
		s.metrics.extraction("success")
		return s.respond(c, fiber.StatusOK)
	case errors.Is(err, session.ErrNoFile):
		return s.respond(c, fiber.StatusBadRequest)
	case errors.Is(err, session.ErrUploadPending):
		return s.respond(c, fiber.StatusConflict)
	default:
		s.metrics.extraction("failure")
		s.logger.Warn("upload failed", "error", err, "request_id", requestID(c))
		return s.respond(c, fiber.StatusBadGateway)
	}
}

// handleDownload streams the spreadsheet as an attachment.
func (s *Server) handleDownload(c *fiber.Ctx) error {
	sheet, err := s.ctrl.Download(c.UserContext())
	if errors.Is(err, session.ErrNoResult) {
		return s.respond(c, fiber.StatusConflict)
	}
	if err != nil {
		s.logger.Warn("download failed", "error", err, "request_id", requestID(c))
		return s.respond(c, fiber.StatusBadGateway)
	}

	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, remote.SafeFilename(sheet.Filename)))
	c.Set(fiber.HeaderContentType, sheet.ContentType)
	return c.Send(sheet.Data)
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Snapshot())
}

type formatRequest struct {
	Text string `json:"text"`
}

type formatResponse struct {
	HTML string `json:"html"`
}

func (s *Server) handleFormat(c *fiber.Ctx) error {
	var req formatRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "expected JSON body with a text field")
	}
	return c.JSON(formatResponse{HTML: format.ToHTML(req.Text)})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if s.health == nil {
		return c.JSON(fiber.Map{"status": "healthy"})
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	hs, err := s.health.Health(ctx)
	if err != nil {
		return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "extraction service unavailable")
	}
	return c.JSON(fiber.Map{"status": "healthy", "service": hs})
}

// respond redirects browsers to the page, which shows the session's
// messages, and sends the state with status to JSON clients.
func (s *Server) respond(c *fiber.Ctx, status int) error {
	if c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
		return c.Status(status).JSON(s.ctrl.Snapshot())
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}
