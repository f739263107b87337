// Package inspect serves a read-only HTTP view of live bridge sessions.
package inspect

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/rollbridge/internal/auth"
	"github.com/danmuck/rollbridge/internal/bridge"
	"github.com/danmuck/rollbridge/internal/observability"
	"github.com/danmuck/rollbridge/internal/registry"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Server struct {
	ID       string    `json:"id"`
	Addr     string    `json:"addr"`
	Appeared time.Time `json:"appeared"`

	bridge    *bridge.Bridge
	router    *gin.Engine
	validator auth.Validator
}

// New builds the inspector for b. A non-nil validator guards the session
// routes with a bearer token; /health and /metrics stay open.
func New(id, addr string, b *bridge.Bridge, corsOrigins []string, validator auth.Validator) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:        id,
		Addr:      addr,
		Appeared:  time.Now(),
		bridge:    b,
		router:    r,
		validator: validator,
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"uptime":   time.Since(s.Appeared).String(),
			"service":  s.ID,
			"sessions": len(s.bridge.Sessions()),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sessions := s.router.Group("/sessions", auth.Require(s.validator))

	sessions.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"sessions": s.bridge.Sessions(),
		})
	})

	sessions.GET("/:handle", func(c *gin.Context) {
		raw, err := strconv.ParseUint(c.Param("handle"), 10, 32)
		if err != nil || registry.Handle(raw) == registry.Invalid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session handle"})
			return
		}
		info, ok := s.bridge.Session(registry.Handle(raw))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": bridge.ErrUnknownSession.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	})
}

// Serve listens on Addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "inspect").Str("addr", s.Addr).Msg("inspector listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
