// Package httpapi serves a read-only status surface: health, current
// positions and the journal tail. No endpoint mutates anything.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"quantbot/internal/journal"
	"quantbot/internal/logger"
	"quantbot/internal/position"
)

const defaultJournalLimit = 50

type Server struct {
	addr   string
	router *gin.Engine
}

type ServerConfig struct {
	Addr      string
	Mode      string
	Positions *position.Store
	Journal   *journal.Journal
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Positions == nil || cfg.Journal == nil {
		return nil, errors.New("http server requires position store and journal")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": cfg.Mode})
	})

	api := router.Group("/api")
	api.GET("/positions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"positions": cfg.Positions.All()})
	})
	api.GET("/positions/:symbol", func(c *gin.Context) {
		c.JSON(http.StatusOK, cfg.Positions.Get(c.Param("symbol")))
	})
	api.GET("/journal", func(c *gin.Context) {
		limit := defaultJournalLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			limit = n
		}
		entries, err := cfg.Journal.Tail(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if entries == nil {
			entries = []journal.Entry{}
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	})

	return &Server{addr: cfg.Addr, router: router}, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
