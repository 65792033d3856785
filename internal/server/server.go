// Package server exposes the subset pipeline over HTTP.
//
// Every path that is not one of the service routes names a parquet file
// beneath the storage root. The query string carries the subset parameters
// and a successful response body is the resulting parquet file.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	"github.com/vegasq/parslice/internal/pipeline"
)

// Options configure a Server.
type Options struct {
	Addr          string
	Root          string
	MaxConcurrent int64
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration

	// RateLimit is the sustained number of subset requests per second
	// allowed per client IP. Zero disables rate limiting.
	RateLimit float64
	RateBurst int

	Pipeline *pipeline.Pipeline
	Logger   *slog.Logger
}

// Server is the HTTP front end of the subset pipeline.
type Server struct {
	opts     Options
	root     string
	pipeline *pipeline.Pipeline
	sem      *semaphore.Weighted
	log      *slog.Logger
	engine   *gin.Engine
}

// New builds a server and its routes.
func New(opts Options) *Server {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Pipeline == nil {
		opts.Pipeline = pipeline.New(pipeline.Options{Logger: opts.Logger})
	}

	s := &Server{
		opts:     opts,
		root:     opts.Root,
		pipeline: opts.Pipeline,
		sem:      semaphore.NewWeighted(opts.MaxConcurrent),
		log:      opts.Logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID(s.log))
	router.Use(accessLog())
	router.Use(instrument())

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "online")
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// gin does not allow a root catch-all next to static routes, so file
	// paths are served from the fallback handler.
	if opts.RateLimit > 0 {
		router.NoRoute(rateLimit(newRateLimiter(opts.RateLimit, opts.RateBurst, 10*time.Minute)), s.handleSubset)
	} else {
		router.NoRoute(s.handleSubset)
	}

	s.engine = router
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", s.opts.Addr, "root", s.root)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
