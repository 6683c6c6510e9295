// Copyright © 2025 Attestant Limited.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes validator metrics over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/watcheth/stakewatch/internal/logger"
	"github.com/watcheth/stakewatch/internal/monitor"
	"github.com/watcheth/stakewatch/internal/report"
)

const shutdownTimeout = 5 * time.Second

// Scraper refreshes the cache if due and returns its current state.
type Scraper interface {
	Scrape(ctx context.Context) monitor.Snapshot
}

type Server struct {
	scraper  Scraper
	reporter *report.Reporter
	engine   *gin.Engine

	// mu keeps each response consistent with the snapshot it applied.
	mu sync.Mutex
}

func New(scraper Scraper, reporter *report.Reporter) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		scraper:  scraper,
		reporter: reporter,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.engine.GET("/metrics", s.metricsHandler)
	s.engine.GET("/healthz", s.healthHandler)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on bind until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, bind string) error {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", bind, err)
	}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	log := logger.WithComponent("server")

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: time.Minute,
		IdleTimeout:  time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("bind", listener.Addr().String()).Msg("serving metrics")
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down metrics server: %w", err)
	}
	log.Info().Msg("metrics server stopped")
	return nil
}

func (s *Server) metricsHandler(c *gin.Context) {
	snap := s.scraper.Scrape(c.Request.Context())

	var buf bytes.Buffer
	s.mu.Lock()
	s.reporter.Apply(report.Project(snap))
	err := s.reporter.WriteText(&buf)
	s.mu.Unlock()

	if err != nil {
		log := logger.WithComponent("server")
		log.Error().Err(err).Msg("failed to encode metrics")
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, string(report.TextFormat), buf.Bytes())
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := logger.WithComponent("server")
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
