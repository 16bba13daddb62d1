// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the verification editor as a local web
// application: the browser is the GUI, the API below carries crop, extract,
// edit, and save operations for one deed at a time.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/surveyth/cadastre-engine/internal/editor"
	"github.com/surveyth/cadastre-engine/internal/ocr"
	"github.com/surveyth/cadastre-engine/pkg/types"
	"github.com/surveyth/cadastre-engine/web"
)

// Server is the verification editor HTTP server. It serves the embedded
// frontend and a JSON API over one scans folder.
type Server struct {
	httpServer *http.Server
	folder     string
	cfg        types.Config
	engine     ocr.Engine
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*editor.Session
}

// Config holds server configuration.
type Config struct {
	// Folder is the directory of deed scans to edit.
	Folder string
	// Engine recognizes cropped tables; nil disables the extract endpoint.
	Engine ocr.Engine
	// App carries office metadata and datum defaults for new sessions.
	App types.Config
	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// New creates a Server for the given scans folder.
func New(cfg Config) (*Server, error) {
	if cfg.Folder == "" {
		return nil, errors.New("scans folder is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		folder:   cfg.Folder,
		cfg:      cfg.App,
		engine:   cfg.Engine,
		logger:   cfg.Logger,
		sessions: make(map[string]*editor.Session),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	static, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("loading embedded assets: %w", err)
	}
	mux.Handle("/", http.FileServerFS(static))

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.App.Serve.Host, strconv.Itoa(cfg.App.Serve.Port)),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the server until the context is cancelled or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting editor server", "addr", s.httpServer.Addr, "folder", s.folder)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// session returns the open session for a deed base, opening one on demand
// so a browser reload does not lose the folder view.
func (s *Server) session(base string) (*editor.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[base]; ok {
		return sess, nil
	}
	scan, err := s.findScan(base)
	if err != nil {
		return nil, err
	}
	sess, err := editor.Open(scan, s.cfg)
	if err != nil {
		return nil, err
	}
	s.sessions[base] = sess
	return sess, nil
}
