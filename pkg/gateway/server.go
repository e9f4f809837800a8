// Package gateway exposes the serving pipeline, handler registry and
// captcha generator over HTTP.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/changyy/captcha-ocr-devkit/pkg/captcha"
	"github.com/changyy/captcha-ocr-devkit/pkg/gateway/middleware"
	"github.com/changyy/captcha-ocr-devkit/pkg/infra/store"
	"github.com/changyy/captcha-ocr-devkit/pkg/registry"
	"github.com/changyy/captcha-ocr-devkit/pkg/serving"
)

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	EnableCORS      bool
	CORSConfig      middleware.CORSConfig
	TLSCert         string
	TLSKey          string
	Logger          *slog.Logger
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            "127.0.0.1:8000",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxUploadBytes:  10 << 20,
		EnableCORS:      true,
		CORSConfig:      middleware.DefaultCORSConfig(),
		Logger:          nil,
	}
}

type Server struct {
	pipeline  *serving.Pipeline
	registry  *registry.Registry
	generator *captcha.Generator
	runs      store.RunStore
	config    ServerConfig
	http      *http.Server
	logger    *slog.Logger
}

// NewServer wires the HTTP surface. The run store may be nil, in
// which case the runs endpoint reports an empty history.
func NewServer(pipeline *serving.Pipeline, reg *registry.Registry, generator *captcha.Generator, runs store.RunStore, config ServerConfig) *Server {
	if config.Addr == "" {
		config.Addr = "127.0.0.1:8000"
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 15 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 30 * time.Second
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 60 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	if config.MaxUploadBytes == 0 {
		config.MaxUploadBytes = 10 << 20
	}

	return &Server{
		pipeline:  pipeline,
		registry:  reg,
		generator: generator,
		runs:      runs,
		config:    config,
		logger:    config.Logger,
	}
}

func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	if s.logger != nil {
		s.logger.Info("starting HTTP server", slog.String("addr", s.config.Addr))
	}

	var err error
	if s.config.TLSCert != "" && s.config.TLSKey != "" {
		err = s.http.ListenAndServeTLS(s.config.TLSCert, s.config.TLSKey)
	} else {
		err = s.http.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Handler returns the full middleware-wrapped route tree.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.routes()

	if s.config.EnableCORS {
		handler = middleware.CORS(s.config.CORSConfig)(handler)
	}

	handler = middleware.RequestID()(handler)

	// Logging and Recovery are outermost so they observe every
	// request and catch panics from any middleware.
	handler = middleware.Logging(s.logger)(handler)
	handler = middleware.Recovery(s.logger)(handler)

	return handler
}

func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}

	if s.logger != nil {
		s.logger.Info("stopping HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	return nil
}

func (s *Server) Config() ServerConfig {
	return s.config
}
